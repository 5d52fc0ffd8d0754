package models

import "time"

// LifecycleState - состояние сопровождаемой позиции.
//
//	AwaitingFill -> ExitsArmed -> Runner -> Closed
//	AwaitingFill -> ExpiredUnfilled
type LifecycleState int

const (
	StateAwaitingFill LifecycleState = iota
	StateExitsArmed
	StateRunner
	StateClosed
	StateExpiredUnfilled
)

func (s LifecycleState) String() string {
	switch s {
	case StateAwaitingFill:
		return "AWAITING_FILL"
	case StateExitsArmed:
		return "EXITS_ARMED"
	case StateRunner:
		return "RUNNER"
	case StateClosed:
		return "CLOSED"
	case StateExpiredUnfilled:
		return "EXPIRED_UNFILLED"
	}
	return "UNKNOWN"
}

// ExitsArmed - брекет уже стоит (ExitsArmed или Runner).
func (s LifecycleState) ExitsArmed() bool {
	return s == StateExitsArmed || s == StateRunner
}

// Terminal - запись должна быть удалена из реестра.
func (s LifecycleState) Terminal() bool {
	return s == StateClosed || s == StateExpiredUnfilled
}

// PositionRecord - всё, что нужно монитору по одному символу.
// Владелец - реестр; меняют только монитор и путь размещения, который её создал.
type PositionRecord struct {
	ID     string
	Symbol string
	Kind   SignalKind
	Side   Side

	EntryOrderID string
	// DCAOrderIDs: 3 link id у wickhunter, пусто у classic.
	DCAOrderIDs []string

	// TakeProfitOrderIDs: "" = слот пропущен (qty округлилась в ноль) или не выставлен.
	TakeProfitOrderIDs [3]string

	// InitialEntryPrice - цена входа из сигнала, якорь для безубытка.
	InitialEntryPrice float64
	// TakeProfitDistancesPct - расстояния тейков от входа в %, считаются один раз при размещении.
	TakeProfitDistancesPct [3]float64
	DCATriggerPrices       []float64
	// StopLoss - литеральный стоп classic-сигнала.
	StopLoss float64
	// BreakEvenStop - цена стопа после переноса в безубыток (0 - не переносили).
	BreakEvenStop float64

	State LifecycleState
	// RepricedTranches - номера DCA-траншей (1..3), по которым тейки уже перевыставлены.
	RepricedTranches map[int]bool
	// EntriesCancelled - лимитки входа уже отменены по истечению срока.
	EntriesCancelled bool
	// RepricePending - тейки сняты, а новый брекет не встал; повторяем на следующем тике.
	RepricePending bool

	Leverage  int
	CreatedAt time.Time
	Expiry    time.Duration
}

// EntryOrderIDs - вход и DCA в порядке траншей.
func (p *PositionRecord) EntryOrderIDs() []string {
	out := make([]string, 0, 1+len(p.DCAOrderIDs))
	if p.EntryOrderID != "" {
		out = append(out, p.EntryOrderID)
	}
	for _, id := range p.DCAOrderIDs {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (p *PositionRecord) Expired(now time.Time) bool {
	return p.Expiry > 0 && now.Sub(p.CreatedAt) > p.Expiry
}

// Clone - глубокая копия для выдачи наружу из реестра.
func (p *PositionRecord) Clone() *PositionRecord {
	if p == nil {
		return nil
	}
	c := *p
	c.DCAOrderIDs = append([]string(nil), p.DCAOrderIDs...)
	c.DCATriggerPrices = append([]float64(nil), p.DCATriggerPrices...)
	c.RepricedTranches = make(map[int]bool, len(p.RepricedTranches))
	for k, v := range p.RepricedTranches {
		c.RepricedTranches[k] = v
	}
	return &c
}
