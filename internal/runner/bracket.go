package runner

import (
	"context"
	"fmt"
	"math"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/metrics"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// защитный отступ стопа от точки безубытка
const breakEvenGuardPct = 0.0002

var ladderLabels = []string{"ent", "dca1", "dca2", "dca3"}

// BracketResult - что реально встало после PlaceExitBracket.
type BracketResult struct {
	// "" - слот пропущен (объём меньше minQty или цена <= 0)
	TakeProfitIDs [3]string
	Quantities    [3]float64
	Stop          float64
	StopArmed     bool
}

// BracketPlacer ставит лестницу входа и брекет выхода с учётом фильтров символа.
type BracketPlacer struct {
	ex      ExchangeClient
	filters *FilterCache
	// доли TP1..TP3 в % от позиции
	splits [3]float64

	now func() time.Time
}

func NewBracketPlacer(ex ExchangeClient, filters *FilterCache, splits []float64) *BracketPlacer {
	b := &BracketPlacer{ex: ex, filters: filters, splits: [3]float64{30, 30, 30}, now: time.Now}
	if len(splits) == 3 {
		copy(b.splits[:], splits)
	}
	return b
}

type tranche struct {
	label string
	price float64
	qty   float64
}

// PlaceEntryLadder выставляет вход и DCA лимитками. Возвращает link id в порядке траншей.
// Сначала считаются все объёмы: при ErrOrderTooSmall на бирже не остаётся ничего.
func (b *BracketPlacer) PlaceEntryLadder(ctx context.Context, symbol string, side models.Side, prices, notionals []float64, leverage int) ([]string, error) {
	if len(prices) != len(notionals) || len(prices) == 0 || len(prices) > len(ladderLabels) {
		return nil, fmt.Errorf("entry ladder %s: %d prices vs %d notionals", symbol, len(prices), len(notionals))
	}
	f, err := b.filters.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}

	plan := make([]tranche, 0, len(prices))
	for i, p := range prices {
		px := helper.QuantizePrice(p, f.TickSize)
		if px <= 0 {
			return nil, errors.Wrapf(ErrOrderTooSmall, "%s %s: price %v quantized to %v", symbol, ladderLabels[i], p, px)
		}
		qty := helper.QuantizeQty(notionals[i]*float64(leverage)/px, f.StepSize, helper.RoundFloor)
		if qty <= 0 || qty < f.MinQty {
			return nil, errors.Wrapf(ErrOrderTooSmall, "%s %s: qty %v < min %v", symbol, ladderLabels[i], qty, f.MinQty)
		}
		if f.MinNotional > 0 && qty*px < f.MinNotional {
			return nil, errors.Wrapf(ErrOrderTooSmall, "%s %s: notional %v < min %v", symbol, ladderLabels[i], qty*px, f.MinNotional)
		}
		plan = append(plan, tranche{label: ladderLabels[i], price: px, qty: qty})
	}

	ids := make([]string, 0, len(plan))
	for _, t := range plan {
		id := helper.LinkID(t.label, symbol, b.now())
		_, err := b.ex.PlaceLimitOrder(ctx, models.LimitOrder{
			Symbol: symbol,
			Side:   side.OrderSide(),
			Price:  t.price,
			Qty:    t.qty,
			LinkID: id,
		})
		if err != nil {
			metrics.Orders.WithLabelValues(orderKind(t.label), "rejected").Inc()
			// лестница либо целиком, либо никак
			b.cancelAll(ctx, symbol, ids)
			return nil, rejected(fmt.Sprintf("place %s %s", t.label, symbol), err)
		}
		metrics.Orders.WithLabelValues(orderKind(t.label), "placed").Inc()
		logger.Info("[BRACKET] %s %s %s px=%v qty=%v id=%s", symbol, side, t.label, t.price, t.qty, id)
		ids = append(ids, id)
	}
	return ids, nil
}

// splitExitQty режет позицию на три тейка по долям. Перебор после округления
// снимается только с последнего слота.
func splitExitQty(size float64, splits [3]float64, step float64) [3]float64 {
	var q [3]float64
	total := 0.0
	for i, s := range splits {
		q[i] = helper.QuantizeQty(size*s/100, step, helper.RoundFloor)
		total += q[i]
	}
	if total > size {
		last := q[2] - (total - size)
		if last < 0 {
			last = 0
		}
		q[2] = helper.QuantizeQty(last, step, helper.RoundFloor)
	}
	return q
}

// PlaceExitBracket - три reduce-only тейка и один стоп на всю позицию.
// Слот с объёмом меньше minQty пропускается. При отказе биржи уже
// выставленные тейки снимаются, чтобы повтор на следующем тике не задвоил их.
func (b *BracketPlacer) PlaceExitBracket(ctx context.Context, symbol string, side models.Side, size float64, tps [3]float64, stop float64) (BracketResult, error) {
	var res BracketResult
	f, err := b.filters.Get(ctx, symbol)
	if err != nil {
		return res, err
	}

	res.Quantities = splitExitQty(size, b.splits, f.StepSize)
	placed := make([]string, 0, 3)
	for i, qty := range res.Quantities {
		px := helper.QuantizePrice(tps[i], f.TickSize)
		if qty <= 0 || qty < f.MinQty || px <= 0 {
			metrics.Orders.WithLabelValues("tp", "skipped").Inc()
			logger.Warn("[BRACKET] %s TP%d skipped: qty=%v px=%v", symbol, i+1, qty, px)
			continue
		}
		id := helper.LinkID(fmt.Sprintf("tp%d", i+1), symbol, b.now())
		_, err := b.ex.PlaceLimitOrder(ctx, models.LimitOrder{
			Symbol:     symbol,
			Side:       side.CloseSide(),
			Price:      px,
			Qty:        qty,
			LinkID:     id,
			ReduceOnly: true,
		})
		if err != nil {
			metrics.Orders.WithLabelValues("tp", "rejected").Inc()
			b.cancelAll(ctx, symbol, placed)
			return BracketResult{}, rejected(fmt.Sprintf("place tp%d %s", i+1, symbol), err)
		}
		metrics.Orders.WithLabelValues("tp", "placed").Inc()
		res.TakeProfitIDs[i] = id
		placed = append(placed, id)
	}

	res.Stop = helper.QuantizePrice(stop, f.TickSize)
	if err := b.ex.SetPositionStop(ctx, symbol, res.Stop); err != nil {
		metrics.Orders.WithLabelValues("stop", "rejected").Inc()
		b.cancelAll(ctx, symbol, placed)
		return BracketResult{}, rejected("set stop "+symbol, err)
	}
	metrics.Orders.WithLabelValues("stop", "placed").Inc()
	res.StopArmed = true

	logger.Info("[BRACKET] %s %s exits armed: tp=%v qty=%v sl=%v", symbol, side, res.TakeProfitIDs, res.Quantities, res.Stop)
	return res, nil
}

// BreakEvenPrice - стоп чуть за входом со стороны убытка:
// отступ max(0.02% цены, один тик), чтобы шум не выбил ровно по входу.
func BreakEvenPrice(f models.SymbolFilter, side models.Side, entry float64) float64 {
	be := helper.QuantizePrice(entry, f.TickSize)
	off := math.Max(be*breakEvenGuardPct, f.TickSize)
	if side == models.SideShort {
		return helper.QuantizePrice(be+off, f.TickSize)
	}
	return helper.QuantizePrice(be-off, f.TickSize)
}

// MoveStopToBreakEven переставляет стоп позиции в безубыток от entry.
func (b *BracketPlacer) MoveStopToBreakEven(ctx context.Context, symbol string, side models.Side, entry float64) (float64, error) {
	f, err := b.filters.Get(ctx, symbol)
	if err != nil {
		return 0, err
	}
	stop := BreakEvenPrice(f, side, entry)
	if err := b.ex.SetPositionStop(ctx, symbol, stop); err != nil {
		metrics.Orders.WithLabelValues("stop", "rejected").Inc()
		return 0, rejected("break-even stop "+symbol, err)
	}
	metrics.Orders.WithLabelValues("stop", "placed").Inc()
	logger.Info("[BRACKET] %s stop -> break-even %v (entry %v)", symbol, stop, entry)
	return stop, nil
}

// cancelAll - отмена по возможности: ордер мог уже исполниться или пропасть.
func (b *BracketPlacer) cancelAll(ctx context.Context, symbol string, ids []string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := b.ex.CancelOrder(ctx, symbol, id); err != nil {
			logger.Warn("[BRACKET] cancel %s %s: %v", symbol, id, err)
			continue
		}
		metrics.Orders.WithLabelValues(orderKindByID(id), "cancelled").Inc()
	}
}

func orderKind(label string) string {
	if label == "ent" {
		return "entry"
	}
	return "dca"
}

func orderKindByID(id string) string {
	switch {
	case strings.HasPrefix(id, "ent_"):
		return "entry"
	case strings.HasPrefix(id, "dca"):
		return "dca"
	case strings.HasPrefix(id, "tp"):
		return "tp"
	}
	return "other"
}
