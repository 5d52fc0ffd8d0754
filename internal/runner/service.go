package runner

import (
	"context"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/metrics"
	"signal_bot/pkg/tracing"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AcceptResult - что получил вызывающий после приёма сигнала.
type AcceptResult struct {
	ID       string            `json:"id"`
	Symbol   string            `json:"symbol"`
	Side     models.Side       `json:"side"`
	Kind     models.SignalKind `json:"kind"`
	Leverage int               `json:"leverage"`
	OrderIDs []string          `json:"order_ids"`
	Notional float64           `json:"notional"`
}

// Service - приём сигналов: проверки, плечо, лестница входа, запись в реестр.
type Service struct {
	ex       ExchangeClient
	placer   *BracketPlacer
	registry *Registry
	throttle *Throttle
	notifier TelegramNotifier
	trading  config.Trading

	// символы, по которым приём сигнала сейчас в полёте
	mu       sync.Mutex
	inflight map[string]bool

	now func() time.Time
}

func NewService(ex ExchangeClient, placer *BracketPlacer, registry *Registry, throttle *Throttle, notifier TelegramNotifier, trading config.Trading) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		ex:       ex,
		placer:   placer,
		registry: registry,
		throttle: throttle,
		notifier: notifier,
		trading:  trading,
		inflight: make(map[string]bool),
		now:      time.Now,
	}
}

// HealthSnapshot - сопровождаемые символы.
func (s *Service) HealthSnapshot() []string {
	return s.registry.ListSymbols()
}

// AcceptSignal превращает сигнал в выставленную лестницу входа и запись в реестре.
// Любая ошибка здесь означает, что ордеров на бирже не осталось.
func (s *Service) AcceptSignal(ctx context.Context, sig models.Signal, notionalOverride float64) (res AcceptResult, err error) {
	symbol := sig.Symbol()
	span, ctx := tracing.StartSpan(ctx, "admission.accept", symbol)
	defer func() {
		tracing.Finish(span, err)
		metrics.Signals.WithLabelValues(admissionResult(err)).Inc()
	}()

	if !sig.Valid() {
		return res, errors.Wrapf(ErrInvalidSignal, "%s %s", symbol, sig.Side)
	}
	if !s.reserve(symbol) {
		return res, errors.Wrap(ErrAlreadyWatched, symbol)
	}
	defer s.release(symbol)

	now := s.now()
	if left := s.throttle.Remaining(now); left > 0 {
		return res, errors.Wrapf(ErrCooldownActive, "%s left", left.Round(time.Second))
	}
	if err := s.checkCaps(ctx, sig.Side); err != nil {
		return res, err
	}

	notional := s.trading.DefaultNotional
	if notionalOverride > 0 {
		notional = notionalOverride
	}

	anchor := sig.StopLoss
	if sig.Kind == models.SignalWickhunter {
		anchor = StopFromDCA3(sig.Side, sig.DCA[2], s.trading.SLOverDCA3Pct)
	}
	lev := Leverage(sig.Entry, anchor, s.trading.FixLeverage, s.trading.MaxLeverageCap, s.trading.SafetyPct)

	if err := s.ex.SetLeverage(ctx, symbol, lev); err != nil {
		return res, rejected("set leverage "+symbol, err)
	}

	prices := []float64{sig.Entry}
	notionals := []float64{notional}
	if sig.Kind == models.SignalWickhunter {
		prices = append(prices, sig.DCA...)
		notionals = Allocate(notional, s.trading.DCAScales)
		if len(notionals) != len(prices) {
			return res, errors.Errorf("dca scales %v do not match %d tranches", s.trading.DCAScales, len(prices))
		}
	}

	ids, err := s.placer.PlaceEntryLadder(ctx, symbol, sig.Side, prices, notionals, lev)
	if err != nil {
		return res, err
	}

	rec := &models.PositionRecord{
		ID:                     uuid.NewString(),
		Symbol:                 symbol,
		Kind:                   sig.Kind,
		Side:                   sig.Side,
		EntryOrderID:           ids[0],
		DCAOrderIDs:            append([]string(nil), ids[1:]...),
		InitialEntryPrice:      sig.Entry,
		TakeProfitDistancesPct: TakeProfitDistances(sig),
		DCATriggerPrices:       append([]float64(nil), sig.DCA...),
		StopLoss:               sig.StopLoss,
		State:                  models.StateAwaitingFill,
		RepricedTranches:       make(map[int]bool),
		Leverage:               lev,
		CreatedAt:              now,
		Expiry:                 s.trading.EntryExpiry,
	}
	if !s.registry.Insert(rec) {
		s.placer.cancelAll(ctx, symbol, ids)
		return res, errors.Wrap(ErrAlreadyWatched, symbol)
	}
	metrics.Transitions.WithLabelValues(models.StateAwaitingFill.String()).Inc()

	res = AcceptResult{
		ID:       rec.ID,
		Symbol:   symbol,
		Side:     sig.Side,
		Kind:     sig.Kind,
		Leverage: lev,
		OrderIDs: ids,
		Notional: notional,
	}
	logger.Info("[ADMIT] %s %s %s lev=%dx notional=%v orders=%v", symbol, sig.Kind, sig.Side, lev, notional, ids)
	s.notifier.SendF(ctx, "✅ %s %s (%s) x%d, %v USDT, ордеров: %d", symbol, sig.Side, sig.Kind, lev, notional, len(ids))
	return res, nil
}

// TakeProfitDistances - расстояния тейков от входа в %, всегда положительные.
// У classic третий тейк совпадает со вторым.
func TakeProfitDistances(sig models.Signal) [3]float64 {
	var tps [3]float64
	switch len(sig.TakeProfits) {
	case 2:
		tps = [3]float64{sig.TakeProfits[0], sig.TakeProfits[1], sig.TakeProfits[1]}
	case 3:
		copy(tps[:], sig.TakeProfits)
	}

	var d [3]float64
	for i, tp := range tps {
		if sig.Side == models.SideShort {
			d[i] = (sig.Entry - tp) / sig.Entry * 100
		} else {
			d[i] = (tp - sig.Entry) / sig.Entry * 100
		}
	}
	return d
}

// checkCaps - лимит одновременно открытых лонгов/шортов по живым позициям биржи.
func (s *Service) checkCaps(ctx context.Context, side models.Side) error {
	positions, err := s.ex.GetPositions(ctx, "")
	if err != nil {
		return errors.Wrap(err, "open positions")
	}
	longs, shorts := 0, 0
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		switch p.Side {
		case models.SideLong:
			longs++
		case models.SideShort:
			shorts++
		}
	}
	if side == models.SideLong && longs >= s.trading.MaxOpenLongs {
		return errors.Wrapf(ErrPositionCapReached, "longs %d/%d", longs, s.trading.MaxOpenLongs)
	}
	if side == models.SideShort && shorts >= s.trading.MaxOpenShorts {
		return errors.Wrapf(ErrPositionCapReached, "shorts %d/%d", shorts, s.trading.MaxOpenShorts)
	}
	return nil
}

func (s *Service) reserve(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[symbol] || s.registry.Has(symbol) {
		return false
	}
	s.inflight[symbol] = true
	return true
}

func (s *Service) release(symbol string) {
	s.mu.Lock()
	delete(s.inflight, symbol)
	s.mu.Unlock()
}

func admissionResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrCooldownActive):
		return "cooldown"
	case errors.Is(err, ErrPositionCapReached):
		return "cap"
	case errors.Is(err, ErrOrderTooSmall):
		return "too_small"
	case errors.Is(err, ErrAlreadyWatched):
		return "busy"
	case errors.Is(err, ErrExchangeRejected):
		return "rejected"
	}
	return "error"
}
