package runner

import (
	"context"
	"fmt"
	"os"
	"signal_bot/internal/models"
	bybit "signal_bot/internal/modules/bybit_client/service"
	"signal_bot/pkg/logger"
	"sync"
	"testing"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// fakeExchange - биржа в памяти: ордера, статусы, позиции, стопы.
type fakeExchange struct {
	mu sync.Mutex

	filters   map[string]models.SymbolFilter
	statuses  map[string]models.OrderStatus
	positions map[string]models.ExchangePosition

	placed    []models.LimitOrder
	cancelled []string
	stops     map[string][]float64
	leverage  map[string]int

	filterCalls int
	placeCalls  int
	// failPlaceAt - номер вызова PlaceLimitOrder (с 1), который вернёт отказ
	failPlaceAt int
	stopErr     error
	leverageErr error
	positionErr map[string]error
	cancelErr   map[string]error
	panicOn     map[string]bool
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		filters:     make(map[string]models.SymbolFilter),
		statuses:    make(map[string]models.OrderStatus),
		positions:   make(map[string]models.ExchangePosition),
		stops:       make(map[string][]float64),
		leverage:    make(map[string]int),
		positionErr: make(map[string]error),
		cancelErr:   make(map[string]error),
		panicOn:     make(map[string]bool),
	}
}

func (f *fakeExchange) withFilter(symbol string, tick, step, minQty float64) *fakeExchange {
	f.filters[symbol] = models.SymbolFilter{Symbol: symbol, TickSize: tick, StepSize: step, MinQty: minQty}
	return f
}

func (f *fakeExchange) GetInstrumentFilter(_ context.Context, symbol string) (models.SymbolFilter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filterCalls++
	flt, ok := f.filters[symbol]
	if !ok {
		return models.SymbolFilter{}, fmt.Errorf("%s: %w", symbol, bybit.ErrInstrumentNotFound)
	}
	return flt, nil
}

func (f *fakeExchange) PlaceLimitOrder(_ context.Context, o models.LimitOrder) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placeCalls++
	if f.failPlaceAt == f.placeCalls {
		return "", &bybit.APIError{Path: "/v5/order/create", Code: 110007, Message: "insufficient balance"}
	}
	f.placed = append(f.placed, o)
	f.statuses[o.LinkID] = models.OrderStatusNew
	return fmt.Sprintf("oid-%d", f.placeCalls), nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, _ string, linkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.cancelErr[linkID]; err != nil {
		return err
	}
	f.cancelled = append(f.cancelled, linkID)
	f.statuses[linkID] = models.OrderStatusCancelled
	return nil
}

func (f *fakeExchange) GetOrderStatus(_ context.Context, _ string, linkID string) (models.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[linkID], nil
}

func (f *fakeExchange) GetPositions(_ context.Context, symbol string) ([]models.ExchangePosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn[symbol] {
		panic("boom " + symbol)
	}
	if err := f.positionErr[symbol]; err != nil {
		return nil, err
	}
	var out []models.ExchangePosition
	for s, p := range f.positions {
		if symbol == "" || s == symbol {
			p.Symbol = s
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeExchange) SetLeverage(_ context.Context, symbol string, lev int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leverageErr != nil {
		return f.leverageErr
	}
	f.leverage[symbol] = lev
	return nil
}

func (f *fakeExchange) SetPositionStop(_ context.Context, symbol string, stop float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stops[symbol] = append(f.stops[symbol], stop)
	return nil
}

func (f *fakeExchange) setStatus(linkID string, st models.OrderStatus) {
	f.mu.Lock()
	f.statuses[linkID] = st
	f.mu.Unlock()
}

func (f *fakeExchange) setPosition(symbol string, side models.Side, size, avg float64) {
	f.mu.Lock()
	f.positions[symbol] = models.ExchangePosition{Symbol: symbol, Side: side, Size: size, AvgPrice: avg}
	f.mu.Unlock()
}

func (f *fakeExchange) reduceOnly() []models.LimitOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LimitOrder
	for _, o := range f.placed {
		if o.ReduceOnly {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeExchange) lastStop(symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stops[symbol]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

func approx(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
