package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

func newTestStream(url string) *Stream {
	cfg := &config.Config{}
	cfg.Bybit.WSPrivateURL = url
	cfg.Bybit.APIKey = "key"
	cfg.Bybit.APISecret = "secret"
	s := NewStream(cfg)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

type restStub struct {
	status models.OrderStatus
	calls  int
}

func (r *restStub) GetOrderStatus(context.Context, string, string) (models.OrderStatus, error) {
	r.calls++
	return r.status, nil
}

func TestAuthMessage(t *testing.T) {
	msg := newTestStream("").authMessage()
	args := msg["args"].([]string)
	if msg["op"] != "auth" || args[0] != "key" || args[1] != "1700000010000" {
		t.Fatalf("unexpected auth frame %v", msg)
	}
	h := hmac.New(sha256.New, []byte("secret"))
	h.Write([]byte("GET/realtime1700000010000"))
	if args[2] != hex.EncodeToString(h.Sum(nil)) {
		t.Errorf("bad signature %s", args[2])
	}
}

func TestHandle(t *testing.T) {
	s := newTestStream("")
	var states []bool
	s.OnStateChange(func(v bool) { states = append(states, v) })

	s.handle([]byte(`{"topic":"order","data":[{"orderLinkId":"tp1_x","orderStatus":"New"}]}`))
	if _, ok := s.Status("tp1_x"); ok {
		t.Errorf("status must not be served before auth")
	}

	s.handle([]byte(`{"op":"auth","success":false,"ret_msg":"invalid key"}`))
	if s.Connected() {
		t.Fatalf("failed auth must not connect")
	}

	s.handle([]byte(`{"op":"auth","success":true}`))
	s.handle([]byte(`{"topic":"order","data":[{"orderLinkId":"tp1_x","orderStatus":"Filled"},{"orderLinkId":"","orderStatus":"New"}]}`))
	s.handle([]byte(`not json`))

	st, ok := s.Status("tp1_x")
	if !ok || st != models.OrderStatusFilled {
		t.Errorf("got %q %v, expected Filled", st, ok)
	}
	if len(states) != 1 || !states[0] {
		t.Errorf("unexpected state changes %v", states)
	}

	s.setConnected(false)
	if _, ok := s.Status("tp1_x"); ok {
		t.Errorf("disconnected stream must not answer")
	}
}

func TestCachedStatus(t *testing.T) {
	s := newTestStream("")
	s.handle([]byte(`{"op":"auth","success":true}`))
	s.handle([]byte(`{"topic":"order","data":[{"orderLinkId":"ent_x","orderStatus":"PartiallyFilled"}]}`))

	rest := &restStub{status: models.OrderStatusCancelled}
	src := NewCachedStatus(s, rest)

	st, _ := src.OrderStatus(context.Background(), "BTCUSDT", "ent_x")
	if st != models.OrderStatusPartiallyFilled || rest.calls != 0 {
		t.Errorf("cached status expected, got %q after %d REST calls", st, rest.calls)
	}

	st, _ = src.OrderStatus(context.Background(), "BTCUSDT", "dca1_x")
	if st != models.OrderStatusCancelled || rest.calls != 1 {
		t.Errorf("cache miss must go to REST, got %q after %d calls", st, rest.calls)
	}

	s.setConnected(false)
	_, _ = src.OrderStatus(context.Background(), "BTCUSDT", "ent_x")
	if rest.calls != 2 {
		t.Errorf("disconnected stream must fall back to REST")
	}
}

func TestReconnectDelay(t *testing.T) {
	tests := []struct {
		name  string
		prev  time.Duration
		wasUp bool
		want  time.Duration
	}{
		{"first drop", 0, false, time.Second},
		{"doubles while down", 4 * time.Second, false, 8 * time.Second},
		{"capped", 20 * time.Second, false, 30 * time.Second},
		{"stays at cap", 30 * time.Second, false, 30 * time.Second},
		{"resets after authed session", 30 * time.Second, true, time.Second},
		{"resets from any delay", 8 * time.Second, true, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconnectDelay(tt.prev, tt.wasUp); got != tt.want {
				t.Errorf("reconnectDelay(%s, %v) = %s, want %s", tt.prev, tt.wasUp, got, tt.want)
			}
		})
	}

	// цепочка: несколько неудач, затем рабочая сессия, затем снова обрыв
	var d time.Duration
	for i := 0; i < 6; i++ {
		d = reconnectDelay(d, false)
	}
	if d != maxReconnectIn {
		t.Fatalf("after 6 failures delay = %s, want %s", d, maxReconnectIn)
	}
	if d = reconnectDelay(d, true); d != time.Second {
		t.Errorf("healthy session must reset delay, got %s", d)
	}
	if d = reconnectDelay(d, false); d != 2*time.Second {
		t.Errorf("next failure after reset = %s, want 2s", d)
	}
}

func TestRunAgainstServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- string(msg)
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"auth","success":true}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"topic":"order","data":[{"symbol":"BTCUSDT","orderLinkId":"tp2_x","orderStatus":"Filled"}]}`))
		// держим соединение, пока клиент не закроет
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := newTestStream("ws" + strings.TrimPrefix(srv.URL, "http"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if st, ok := s.Status("tp2_x"); ok && st == models.OrderStatusFilled {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("order event not received")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if auth := <-frames; !strings.Contains(auth, `"op":"auth"`) {
		t.Errorf("first frame must be auth, got %s", auth)
	}
	if sub := <-frames; !strings.Contains(sub, `"subscribe"`) || !strings.Contains(sub, `"order"`) {
		t.Errorf("second frame must subscribe to order, got %s", sub)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop")
	}
	if s.Connected() {
		t.Errorf("stopped stream must report disconnected")
	}
}
