package models

type SignalKind string

const (
	// SignalClassic - 2 тейка + явный стоп (формат "Timeframe: ...").
	SignalClassic SignalKind = "classic"
	// SignalWickhunter - 3 тейка + 3 уровня усреднения, стоп считается от DCA3.
	SignalWickhunter SignalKind = "wickhunter"
)

// Side - направление позиции: "long"/"short".
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// OrderSide - сторона ордера на бирже ("Buy"/"Sell").
func (s Side) OrderSide() string {
	if s == SideShort {
		return "Sell"
	}
	return "Buy"
}

// CloseSide - сторона закрывающего (reduce-only) ордера.
func (s Side) CloseSide() string {
	if s == SideShort {
		return "Buy"
	}
	return "Sell"
}

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// Signal - провалидированный сигнал от парсера. После валидации не меняется.
type Signal struct {
	Kind  SignalKind
	Base  string
	Quote string
	Side  Side
	Entry float64

	// TakeProfits: 2 уровня (classic) или 3 (wickhunter).
	TakeProfits []float64
	// StopLoss задан только у classic.
	StopLoss float64
	// DCA: ровно 3 уровня у wickhunter, пусто у classic.
	DCA []float64

	Timeframe string
}

func (s Signal) Symbol() string { return s.Base + s.Quote }

// Valid проверяет упорядоченность уровней: для long
// sl < entry < tp1 <= tp2 (<= tp3) и dca3 < dca2 < dca1 < entry, для short зеркально.
func (s Signal) Valid() bool {
	if !s.Side.Valid() || s.Entry <= 0 || s.Base == "" || s.Quote == "" {
		return false
	}
	long := s.Side == SideLong

	// below(a, b): a "хуже" b по направлению позиции
	below := func(a, b float64) bool {
		if long {
			return a < b
		}
		return a > b
	}
	notAbove := func(a, b float64) bool {
		if long {
			return a <= b
		}
		return a >= b
	}

	switch s.Kind {
	case SignalClassic:
		if len(s.TakeProfits) != 2 || len(s.DCA) != 0 || s.StopLoss <= 0 {
			return false
		}
		return below(s.StopLoss, s.Entry) &&
			below(s.Entry, s.TakeProfits[0]) &&
			notAbove(s.TakeProfits[0], s.TakeProfits[1])
	case SignalWickhunter:
		if len(s.TakeProfits) != 3 || len(s.DCA) != 3 {
			return false
		}
		return below(s.DCA[0], s.Entry) &&
			below(s.DCA[1], s.DCA[0]) &&
			below(s.DCA[2], s.DCA[1]) &&
			below(s.Entry, s.TakeProfits[0]) &&
			notAbove(s.TakeProfits[0], s.TakeProfits[1]) &&
			notAbove(s.TakeProfits[1], s.TakeProfits[2])
	}
	return false
}
