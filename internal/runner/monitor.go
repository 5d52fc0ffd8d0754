package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/metrics"
	"signal_bot/pkg/tracing"
	"time"
)

// Monitor - поллинговая машина состояний. Один тик обходит все символы
// последовательно, ошибка одного символа не прерывает тик для остальных.
type Monitor struct {
	ex       ExchangeClient
	status   OrderStatusSource
	placer   *BracketPlacer
	registry *Registry
	throttle *Throttle
	notifier TelegramNotifier

	interval      time.Duration
	slOverDCA3Pct float64

	now func() time.Time
}

type MonitorDeps struct {
	Exchange      ExchangeClient
	Status        OrderStatusSource
	Placer        *BracketPlacer
	Registry      *Registry
	Throttle      *Throttle
	Notifier      TelegramNotifier
	Interval      time.Duration
	SLOverDCA3Pct float64
}

func NewMonitor(d MonitorDeps) *Monitor {
	m := &Monitor{
		ex:            d.Exchange,
		status:        d.Status,
		placer:        d.Placer,
		registry:      d.Registry,
		throttle:      d.Throttle,
		notifier:      d.Notifier,
		interval:      d.Interval,
		slOverDCA3Pct: d.SLOverDCA3Pct,
		now:           time.Now,
	}
	if m.status == nil {
		m.status = NewPolledStatus(d.Exchange)
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	if m.interval <= 0 {
		m.interval = 5 * time.Second
	}
	return m
}

// Run крутит тики до отмены ctx. Тик в полёте не прерывается.
func (m *Monitor) Run(ctx context.Context, onTick func()) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logger.Info("[MONITOR] started, interval=%s", m.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[MONITOR] stopped")
			return
		case <-ticker.C:
			m.Tick(context.WithoutCancel(ctx))
			if onTick != nil {
				onTick()
			}
		}
	}
}

// Tick - один проход по снимку символов.
func (m *Monitor) Tick(ctx context.Context) {
	metrics.MonitorTicks.Inc()
	for _, symbol := range m.registry.ListSymbols() {
		if err := m.processSymbol(ctx, symbol); err != nil {
			metrics.SymbolErrors.WithLabelValues(symbol).Inc()
			logger.Error("[MONITOR] %s: %v", symbol, err)
		}
	}
}

func (m *Monitor) processSymbol(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	rec, ok := m.registry.Get(symbol)
	if !ok {
		return nil
	}

	span, ctx := tracing.StartSpan(ctx, "monitor.symbol", symbol)
	defer func() { tracing.Finish(span, err) }()

	removed := false
	defer func() {
		if !removed {
			m.registry.Upsert(rec)
		}
	}()

	now := m.now()

	// 1. срок жизни лимиток входа
	expired := rec.Expired(now)
	if expired && !rec.EntriesCancelled {
		// флаг ставим, только если ни одна лимитка не могла остаться в стакане
		rec.EntriesCancelled = m.cancelOpen(ctx, rec, rec.EntryOrderIDs())
	}

	pos, err := m.position(ctx, symbol)
	if err != nil {
		return err
	}

	if expired && rec.EntriesCancelled && pos.Size == 0 && !rec.State.ExitsArmed() {
		m.finish(ctx, rec, models.StateExpiredUnfilled)
		removed = true
		return nil
	}

	// 2. появился объём - сразу ставим выходы
	if pos.Size > 0 && rec.State == models.StateAwaitingFill {
		if err := m.armExits(ctx, rec, pos); err != nil {
			return err
		}
		m.throttle.MarkFill(now)
		return nil
	}

	// 3. TP1 исполнен - стоп в безубыток от исходного входа
	if rec.State == models.StateExitsArmed && rec.TakeProfitOrderIDs[0] != "" {
		st, err := m.status.OrderStatus(ctx, symbol, rec.TakeProfitOrderIDs[0])
		switch {
		case err != nil:
			logger.Warn("[MONITOR] %s TP1 status: %v", symbol, err)
		case st == models.OrderStatusFilled:
			be, err := m.placer.MoveStopToBreakEven(ctx, symbol, rec.Side, rec.InitialEntryPrice)
			if err != nil {
				// остаёмся в ExitsArmed, повторим на следующем тике
				logger.Error("[MONITOR] %s break-even: %v", symbol, err)
				break
			}
			rec.BreakEvenStop = be
			m.transition(ctx, rec, models.StateRunner)
		}
	}

	// 4. исполнился DCA - перевыставляем брекет от новой средней
	due := rec.RepricePending
	for i, id := range rec.DCAOrderIDs {
		n := i + 1
		if id == "" || rec.RepricedTranches[n] {
			continue
		}
		st, err := m.status.OrderStatus(ctx, symbol, id)
		if err != nil {
			logger.Warn("[MONITOR] %s dca%d status: %v", symbol, n, err)
			continue
		}
		if st == models.OrderStatusFilled {
			if rec.RepricedTranches == nil {
				rec.RepricedTranches = make(map[int]bool)
			}
			rec.RepricedTranches[n] = true
			due = true
			logger.Info("[MONITOR] %s dca%d filled", symbol, n)
		}
	}
	if due && rec.State.ExitsArmed() {
		if pos, err = m.position(ctx, symbol); err != nil {
			rec.RepricePending = true
			return err
		}
		if pos.Size > 0 {
			if err := m.reprice(ctx, rec, pos); err != nil {
				return err
			}
		}
	}

	// 5. объём ушёл в ноль после выставления выходов - позиция закрыта
	if rec.State.ExitsArmed() && pos.Size == 0 {
		// хвосты входа не должны открыть новую позицию без присмотра
		if !m.cancelOpen(ctx, rec, append(rec.EntryOrderIDs(), rec.TakeProfitOrderIDs[:]...)) {
			logger.Warn("[MONITOR] %s closed, orders left, retry next tick", symbol)
			return nil
		}
		m.finish(ctx, rec, models.StateClosed)
		removed = true
	}
	return nil
}

func (m *Monitor) armExits(ctx context.Context, rec *models.PositionRecord, pos models.ExchangePosition) error {
	tps := m.takeProfitPrices(rec, pos.AvgPrice)
	stop := m.stopPrice(rec)

	res, err := m.placer.PlaceExitBracket(ctx, rec.Symbol, rec.Side, pos.Size, tps, stop)
	if err != nil {
		return fmt.Errorf("arm exits: %w", err)
	}
	rec.TakeProfitOrderIDs = res.TakeProfitIDs
	m.transition(ctx, rec, models.StateExitsArmed)
	return nil
}

func (m *Monitor) reprice(ctx context.Context, rec *models.PositionRecord, pos models.ExchangePosition) error {
	m.cancelOpen(ctx, rec, rec.TakeProfitOrderIDs[:])
	rec.TakeProfitOrderIDs = [3]string{}

	tps := m.takeProfitPrices(rec, pos.AvgPrice)
	res, err := m.placer.PlaceExitBracket(ctx, rec.Symbol, rec.Side, pos.Size, tps, m.stopPrice(rec))
	if err != nil {
		// без свежих тейков до следующего тика
		rec.RepricePending = true
		return fmt.Errorf("reprice: %w", err)
	}
	rec.TakeProfitOrderIDs = res.TakeProfitIDs
	rec.RepricePending = false
	logger.Info("[MONITOR] %s repriced from avg %v, size %v", rec.Symbol, pos.AvgPrice, pos.Size)
	return nil
}

// takeProfitPrices применяет сохранённые дистанции к текущей средней.
func (m *Monitor) takeProfitPrices(rec *models.PositionRecord, avg float64) [3]float64 {
	return TakeProfitPrices(rec.Side, avg, rec.InitialEntryPrice, rec.TakeProfitDistancesPct)
}

func TakeProfitPrices(side models.Side, avg, fallback float64, dist [3]float64) [3]float64 {
	if avg <= 0 {
		avg = fallback
	}
	var out [3]float64
	for i, d := range dist {
		if side == models.SideShort {
			out[i] = avg * (1 - d/100)
		} else {
			out[i] = avg * (1 + d/100)
		}
	}
	return out
}

// stopPrice: после безубытка держим безубыток, иначе литеральный SL (classic)
// или отступ от DCA3.
func (m *Monitor) stopPrice(rec *models.PositionRecord) float64 {
	if rec.State == models.StateRunner && rec.BreakEvenStop > 0 {
		return rec.BreakEvenStop
	}
	return AnchorStop(rec, m.slOverDCA3Pct)
}

func AnchorStop(rec *models.PositionRecord, slOverDCA3Pct float64) float64 {
	if rec.Kind == models.SignalClassic || len(rec.DCATriggerPrices) == 0 {
		return rec.StopLoss
	}
	return StopFromDCA3(rec.Side, rec.DCATriggerPrices[len(rec.DCATriggerPrices)-1], slOverDCA3Pct)
}

// StopFromDCA3 - стоп за последним уровнем усреднения.
func StopFromDCA3(side models.Side, dca3, pct float64) float64 {
	if side == models.SideShort {
		return dca3 * (1 + pct/100)
	}
	return dca3 * (1 - pct/100)
}

// position - живая позиция по символу; нулевая, если биржа объёма не вернула.
func (m *Monitor) position(ctx context.Context, symbol string) (models.ExchangePosition, error) {
	list, err := m.ex.GetPositions(ctx, symbol)
	if err != nil {
		return models.ExchangePosition{}, fmt.Errorf("positions: %w", err)
	}
	for _, p := range list {
		if p.Symbol == symbol && p.Size > 0 {
			return p, nil
		}
	}
	return models.ExchangePosition{Symbol: symbol}, nil
}

// cancelOpen снимает ордера, которые ещё висят. Статус неизвестен - снимаем
// вслепую. false, если хотя бы один ордер мог остаться в стакане.
func (m *Monitor) cancelOpen(ctx context.Context, rec *models.PositionRecord, ids []string) bool {
	settled := true
	for _, id := range ids {
		if id == "" {
			continue
		}
		st, err := m.status.OrderStatus(ctx, rec.Symbol, id)
		if err != nil {
			logger.Warn("[MONITOR] %s status %s: %v", rec.Symbol, id, err)
		} else if !st.Open() {
			continue
		}
		if err := m.ex.CancelOrder(ctx, rec.Symbol, id); err != nil {
			logger.Warn("[MONITOR] %s cancel %s: %v", rec.Symbol, id, err)
			settled = false
			continue
		}
		metrics.Orders.WithLabelValues(orderKindByID(id), "cancelled").Inc()
		logger.Info("[MONITOR] %s cancelled %s", rec.Symbol, id)
	}
	return settled
}

func (m *Monitor) transition(ctx context.Context, rec *models.PositionRecord, to models.LifecycleState) {
	from := rec.State
	rec.State = to
	metrics.Transitions.WithLabelValues(to.String()).Inc()
	logger.Info("[MONITOR] %s %s -> %s", rec.Symbol, from, to)
	m.notifier.SendF(ctx, "%s %s: %s -> %s", rec.Symbol, rec.Side, from, to)
}

// finish переводит запись в терминальное состояние и убирает из реестра.
func (m *Monitor) finish(ctx context.Context, rec *models.PositionRecord, to models.LifecycleState) {
	m.transition(ctx, rec, to)
	m.registry.Remove(rec.Symbol)
}
