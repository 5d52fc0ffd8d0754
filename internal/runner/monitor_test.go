package runner

import (
	"context"
	"errors"
	"signal_bot/internal/models"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMonitor(ex *fakeExchange) (*Monitor, *Registry, *Throttle) {
	reg := NewRegistry()
	thr := NewThrottle(45 * time.Minute)
	m := NewMonitor(MonitorDeps{
		Exchange:      ex,
		Placer:        newPlacer(ex),
		Registry:      reg,
		Throttle:      thr,
		SLOverDCA3Pct: 38,
	})
	m.now = func() time.Time { return testNow }
	return m, reg, thr
}

func wickhunterRecord(symbol string, side models.Side, ex *fakeExchange) *models.PositionRecord {
	rec := &models.PositionRecord{
		ID:                     "rec-" + symbol,
		Symbol:                 symbol,
		Kind:                   models.SignalWickhunter,
		Side:                   side,
		EntryOrderID:           "ent_" + symbol,
		DCAOrderIDs:            []string{"dca1_" + symbol, "dca2_" + symbol, "dca3_" + symbol},
		InitialEntryPrice:      100,
		TakeProfitDistancesPct: [3]float64{5, 10, 15},
		DCATriggerPrices:       []float64{95, 90, 80},
		State:                  models.StateAwaitingFill,
		RepricedTranches:       map[int]bool{},
		CreatedAt:              testNow.Add(-time.Minute),
		Expiry:                 60 * time.Minute,
	}
	if side == models.SideShort {
		rec.DCATriggerPrices = []float64{105, 110, 120}
	}
	for _, id := range rec.EntryOrderIDs() {
		ex.setStatus(id, models.OrderStatusNew)
	}
	return rec
}

func classicRecord(symbol string, ex *fakeExchange) *models.PositionRecord {
	rec := &models.PositionRecord{
		ID:                     "rec-" + symbol,
		Symbol:                 symbol,
		Kind:                   models.SignalClassic,
		Side:                   models.SideLong,
		EntryOrderID:           "ent_" + symbol,
		InitialEntryPrice:      100,
		TakeProfitDistancesPct: [3]float64{5, 10, 10},
		StopLoss:               95,
		State:                  models.StateAwaitingFill,
		RepricedTranches:       map[int]bool{},
		CreatedAt:              testNow.Add(-time.Minute),
		Expiry:                 60 * time.Minute,
	}
	ex.setStatus(rec.EntryOrderID, models.OrderStatusNew)
	return rec
}

func armed(rec *models.PositionRecord, ex *fakeExchange) *models.PositionRecord {
	rec.State = models.StateExitsArmed
	rec.TakeProfitOrderIDs = [3]string{"tp1_" + rec.Symbol, "tp2_" + rec.Symbol, "tp3_" + rec.Symbol}
	for _, id := range rec.TakeProfitOrderIDs {
		ex.setStatus(id, models.OrderStatusNew)
	}
	return rec
}

func TestMonitorExpiryWithoutFill(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)

	rec := wickhunterRecord("SOLUSDT", models.SideLong, ex)
	rec.CreatedAt = testNow.Add(-61 * time.Minute)
	reg.Upsert(rec)

	m.Tick(context.Background())

	if len(ex.cancelled) != 4 {
		t.Errorf("expected all 4 entry orders cancelled, got %v", ex.cancelled)
	}
	if reg.Len() != 0 {
		t.Errorf("expired record must be removed")
	}
	if len(ex.reduceOnly()) != 0 {
		t.Errorf("no exit orders expected")
	}
	if _, ok := ex.lastStop("SOLUSDT"); ok {
		t.Errorf("no stop expected")
	}
}

// failingStatus отдаёт ошибку для выбранных ордеров, остальное берёт у биржи.
type failingStatus struct {
	ex   *fakeExchange
	fail map[string]error
}

func (s *failingStatus) OrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error) {
	if err := s.fail[linkID]; err != nil {
		return "", err
	}
	return s.ex.GetOrderStatus(ctx, symbol, linkID)
}

func TestMonitorExpiryCancelsWhenStatusUnknown(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	m.status = &failingStatus{ex: ex, fail: map[string]error{"dca3_SOLUSDT": errors.New("timeout")}}

	rec := wickhunterRecord("SOLUSDT", models.SideLong, ex)
	rec.CreatedAt = testNow.Add(-61 * time.Minute)
	reg.Upsert(rec)

	m.Tick(context.Background())

	if ex.statuses["dca3_SOLUSDT"] != models.OrderStatusCancelled {
		t.Errorf("dca3 must be cancelled despite status error, cancelled=%v", ex.cancelled)
	}
	if len(ex.cancelled) != 4 {
		t.Errorf("expected all 4 entry orders cancelled, got %v", ex.cancelled)
	}
	if reg.Len() != 0 {
		t.Errorf("expired record must be removed")
	}
}

func TestMonitorExpiryRetriesFailedCancel(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	status := &failingStatus{ex: ex, fail: map[string]error{"dca3_SOLUSDT": errors.New("timeout")}}
	m.status = status
	ex.cancelErr["dca3_SOLUSDT"] = errors.New("rate limit")

	rec := wickhunterRecord("SOLUSDT", models.SideLong, ex)
	rec.CreatedAt = testNow.Add(-61 * time.Minute)
	reg.Upsert(rec)

	m.Tick(context.Background())

	got, ok := reg.Get("SOLUSDT")
	if !ok {
		t.Fatalf("record with a possibly resting order must stay")
	}
	if got.EntriesCancelled {
		t.Errorf("EntriesCancelled must stay false while dca3 may rest")
	}
	if ex.statuses["dca3_SOLUSDT"] != models.OrderStatusNew {
		t.Fatalf("dca3 status = %s, want New", ex.statuses["dca3_SOLUSDT"])
	}

	// сеть ожила - следующий тик добивает отмену
	delete(status.fail, "dca3_SOLUSDT")
	delete(ex.cancelErr, "dca3_SOLUSDT")
	m.Tick(context.Background())

	if ex.statuses["dca3_SOLUSDT"] != models.OrderStatusCancelled {
		t.Errorf("dca3 must be cancelled on retry, cancelled=%v", ex.cancelled)
	}
	if reg.Len() != 0 {
		t.Errorf("record must be removed once entries are cancelled")
	}
}

func TestMonitorCloseKeepsRecordWhileOrdersLeft(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)

	reg.Upsert(armed(wickhunterRecord("SOLUSDT", models.SideLong, ex), ex))
	ex.cancelErr["dca2_SOLUSDT"] = errors.New("rate limit")

	m.Tick(context.Background())
	if !reg.Has("SOLUSDT") {
		t.Fatalf("record must stay while dca2 may still rest")
	}

	delete(ex.cancelErr, "dca2_SOLUSDT")
	m.Tick(context.Background())
	if reg.Has("SOLUSDT") {
		t.Errorf("record must be removed after the retry")
	}
	if ex.statuses["dca2_SOLUSDT"] != models.OrderStatusCancelled {
		t.Errorf("dca2 must be cancelled")
	}
}

func TestMonitorExpiryWithFillKeepsProtection(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)

	rec := wickhunterRecord("SOLUSDT", models.SideLong, ex)
	rec.CreatedAt = testNow.Add(-61 * time.Minute)
	reg.Upsert(rec)
	ex.setPosition("SOLUSDT", models.SideLong, 1, 100)

	m.Tick(context.Background())

	got, ok := reg.Get("SOLUSDT")
	if !ok {
		t.Fatalf("filled record must stay supervised")
	}
	if got.State != models.StateExitsArmed {
		t.Errorf("expected EXITS_ARMED, got %s", got.State)
	}
	if !got.EntriesCancelled {
		t.Errorf("expected entries cancelled")
	}
	if _, ok := ex.lastStop("SOLUSDT"); !ok {
		t.Errorf("stop must be armed")
	}
}

func TestMonitorArmsClassicExits(t *testing.T) {
	ex := newFakeExchange().withFilter("BTCUSDT", 0.01, 0.001, 0.001)
	m, reg, thr := newTestMonitor(ex)
	reg.Upsert(classicRecord("BTCUSDT", ex))
	ex.setPosition("BTCUSDT", models.SideLong, 1, 100)

	m.Tick(context.Background())

	rec, _ := reg.Get("BTCUSDT")
	if rec.State != models.StateExitsArmed {
		t.Fatalf("expected EXITS_ARMED, got %s", rec.State)
	}
	tps := ex.reduceOnly()
	if len(tps) != 3 {
		t.Fatalf("expected 3 take-profits, got %d", len(tps))
	}
	want := []float64{105, 110, 110}
	for i, o := range tps {
		if !approx(o.Price, want[i], 1e-9) || o.Qty != 0.3 {
			t.Errorf("TP%d = %v x %v, expected %v x 0.3", i+1, o.Price, o.Qty, want[i])
		}
	}
	if stop, _ := ex.lastStop("BTCUSDT"); stop != 95 {
		t.Errorf("expected literal stop 95, got %v", stop)
	}
	if !thr.LastFill().Equal(testNow) {
		t.Errorf("cooldown must start at first fill, got %v", thr.LastFill())
	}
}

func TestMonitorArmsShortStopFromDCA3(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.1, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(wickhunterRecord("SOLUSDT", models.SideShort, ex))
	ex.setPosition("SOLUSDT", models.SideShort, 1, 100)

	m.Tick(context.Background())

	stop, ok := ex.lastStop("SOLUSDT")
	if !ok || !approx(stop, 165.6, 1e-9) {
		t.Errorf("expected stop 165.6, got %v", stop)
	}
}

func TestMonitorBreakEven(t *testing.T) {
	ex := newFakeExchange().withFilter("BTCUSDT", 0.01, 0.001, 0.001)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(armed(classicRecord("BTCUSDT", ex), ex))
	ex.setStatus("tp1_BTCUSDT", models.OrderStatusFilled)
	ex.setPosition("BTCUSDT", models.SideLong, 0.7, 101)

	m.Tick(context.Background())

	rec, _ := reg.Get("BTCUSDT")
	if rec.State != models.StateRunner {
		t.Fatalf("expected RUNNER, got %s", rec.State)
	}
	stop, _ := ex.lastStop("BTCUSDT")
	if !approx(stop, 99.98, 1e-9) || !approx(rec.BreakEvenStop, 99.98, 1e-9) {
		t.Errorf("expected break-even stop 99.98 from the original entry, got %v", stop)
	}

	m.Tick(context.Background())
	if n := len(ex.stops["BTCUSDT"]); n != 1 {
		t.Errorf("break-even must be moved once, got %d stop updates", n)
	}
}

func TestMonitorBreakEvenRetriesAfterFailure(t *testing.T) {
	ex := newFakeExchange().withFilter("BTCUSDT", 0.01, 0.001, 0.001)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(armed(classicRecord("BTCUSDT", ex), ex))
	ex.setStatus("tp1_BTCUSDT", models.OrderStatusFilled)
	ex.setPosition("BTCUSDT", models.SideLong, 0.7, 100)
	ex.stopErr = errors.New("timeout")

	m.Tick(context.Background())
	if rec, _ := reg.Get("BTCUSDT"); rec.State != models.StateExitsArmed {
		t.Fatalf("failed move must keep EXITS_ARMED, got %s", rec.State)
	}

	ex.stopErr = nil
	m.Tick(context.Background())
	if rec, _ := reg.Get("BTCUSDT"); rec.State != models.StateRunner {
		t.Errorf("expected RUNNER after retry, got %s", rec.State)
	}
}

func TestMonitorRepricesOnDCAFill(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(armed(wickhunterRecord("SOLUSDT", models.SideLong, ex), ex))
	ex.setStatus("ent_SOLUSDT", models.OrderStatusFilled)
	ex.setStatus("dca1_SOLUSDT", models.OrderStatusFilled)
	ex.setPosition("SOLUSDT", models.SideLong, 2, 97.5)

	m.Tick(context.Background())

	if len(ex.cancelled) != 3 {
		t.Errorf("expected old take-profits cancelled, got %v", ex.cancelled)
	}
	tps := ex.reduceOnly()
	if len(tps) != 3 {
		t.Fatalf("expected 3 new take-profits, got %d", len(tps))
	}
	for i, d := range []float64{5, 10, 15} {
		want := 97.5 * (1 + d/100)
		if !approx(tps[i].Price, want, 0.01) {
			t.Errorf("TP%d = %v, expected %v within one tick", i+1, tps[i].Price, want)
		}
	}
	if stop, _ := ex.lastStop("SOLUSDT"); !approx(stop, 49.6, 1e-9) {
		t.Errorf("expected stop from DCA3 anchor 49.6, got %v", stop)
	}
	rec, _ := reg.Get("SOLUSDT")
	if !rec.RepricedTranches[1] || rec.RepricedTranches[2] {
		t.Errorf("unexpected repriced set %v", rec.RepricedTranches)
	}

	placed := len(ex.placed)
	m.Tick(context.Background())
	if len(ex.placed) != placed {
		t.Errorf("processed tranche must not reprice again")
	}
}

func TestMonitorRunnerKeepsBreakEvenOnReprice(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	rec := armed(wickhunterRecord("SOLUSDT", models.SideLong, ex), ex)
	rec.State = models.StateRunner
	rec.BreakEvenStop = 99.98
	reg.Upsert(rec)
	ex.setStatus("dca1_SOLUSDT", models.OrderStatusFilled)
	ex.setPosition("SOLUSDT", models.SideLong, 2, 97.5)

	m.Tick(context.Background())

	if stop, _ := ex.lastStop("SOLUSDT"); !approx(stop, 99.98, 1e-9) {
		t.Errorf("runner must keep break-even stop, got %v", stop)
	}
}

func TestMonitorRepriceRetriesAfterFailure(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(armed(wickhunterRecord("SOLUSDT", models.SideLong, ex), ex))
	ex.setStatus("dca1_SOLUSDT", models.OrderStatusFilled)
	ex.setPosition("SOLUSDT", models.SideLong, 2, 97.5)
	ex.failPlaceAt = 1

	m.Tick(context.Background())
	rec, _ := reg.Get("SOLUSDT")
	if !rec.RepricePending || rec.TakeProfitOrderIDs != [3]string{} {
		t.Fatalf("expected pending reprice without targets, got %+v", rec)
	}

	ex.failPlaceAt = 0
	m.Tick(context.Background())
	rec, _ = reg.Get("SOLUSDT")
	if rec.RepricePending || rec.TakeProfitOrderIDs[0] == "" {
		t.Errorf("expected targets re-armed on the next tick, got %+v", rec)
	}
}

func TestMonitorClose(t *testing.T) {
	ex := newFakeExchange().withFilter("SOLUSDT", 0.01, 0.1, 0.1)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(armed(wickhunterRecord("SOLUSDT", models.SideLong, ex), ex))
	ex.setStatus("ent_SOLUSDT", models.OrderStatusFilled)

	m.Tick(context.Background())

	if reg.Len() != 0 {
		t.Errorf("closed position must be removed")
	}
	// хвосты: 3 DCA и 3 TP ещё висели
	if len(ex.cancelled) != 6 {
		t.Errorf("expected leftovers cancelled, got %v", ex.cancelled)
	}
}

func TestMonitorIsolatesSymbolFailures(t *testing.T) {
	ex := newFakeExchange().
		withFilter("AAAUSDT", 0.01, 0.001, 0.001).
		withFilter("BBBUSDT", 0.01, 0.001, 0.001).
		withFilter("CCCUSDT", 0.01, 0.001, 0.001)
	m, reg, _ := newTestMonitor(ex)
	reg.Upsert(classicRecord("AAAUSDT", ex))
	reg.Upsert(classicRecord("BBBUSDT", ex))
	reg.Upsert(classicRecord("CCCUSDT", ex))
	ex.positionErr["AAAUSDT"] = errors.New("connection reset")
	ex.panicOn["BBBUSDT"] = true
	ex.setPosition("CCCUSDT", models.SideLong, 1, 100)

	m.Tick(context.Background())

	if rec, _ := reg.Get("CCCUSDT"); rec.State != models.StateExitsArmed {
		t.Errorf("healthy symbol must be armed, got %s", rec.State)
	}
	if reg.Len() != 3 {
		t.Errorf("failing symbols must stay supervised, got %d records", reg.Len())
	}
}

func TestTakeProfitPricesPreserveDistances(t *testing.T) {
	dist := [3]float64{2.5, 5, 12}
	for _, avg := range []float64{0.987, 95, 97.5, 1234.56} {
		long := TakeProfitPrices(models.SideLong, avg, 100, dist)
		short := TakeProfitPrices(models.SideShort, avg, 100, dist)
		for i, d := range dist {
			if !approx(long[i], avg*(1+d/100), 1e-9) {
				t.Errorf("long avg %v slot %d = %v", avg, i, long[i])
			}
			if !approx(short[i], avg*(1-d/100), 1e-9) {
				t.Errorf("short avg %v slot %d = %v", avg, i, short[i])
			}
		}
	}
	if got := TakeProfitPrices(models.SideLong, 0, 100, dist); !approx(got[0], 102.5, 1e-9) {
		t.Errorf("zero avg must fall back to entry, got %v", got[0])
	}
}
