package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	pingInterval   = 20 * time.Second
	minReconnectIn = time.Second
	maxReconnectIn = 30 * time.Second
)

// Stream держит приватный WS Bybit (топик "order") и кеширует последний статус
// каждого ордера по orderLinkId.
type Stream struct {
	url       string
	apiKey    string
	apiSecret string
	dialer    *websocket.Dialer

	connected atomic.Bool
	onState   func(connected bool)

	mu       sync.RWMutex
	statuses map[string]models.OrderStatus // orderLinkId -> status

	now func() time.Time
}

func NewStream(cfg *config.Config) *Stream {
	return &Stream{
		url:       cfg.Bybit.WSPrivateURL,
		apiKey:    cfg.Bybit.APIKey,
		apiSecret: cfg.Bybit.APISecret,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		statuses:  make(map[string]models.OrderStatus),
		now:       time.Now,
	}
}

func (s *Stream) Connected() bool { return s.connected.Load() }

// OnStateChange - колбэк на подключение/разрыв (для health). Ставить до Run.
func (s *Stream) OnStateChange(fn func(connected bool)) { s.onState = fn }

func (s *Stream) setConnected(v bool) {
	s.connected.Store(v)
	if s.onState != nil {
		s.onState(v)
	}
}

// Status - последний статус из стрима. ok=false, если событий по ордеру не было
// или стрим сейчас не подключён.
func (s *Stream) Status(linkID string) (models.OrderStatus, bool) {
	if !s.connected.Load() {
		return models.OrderStatusUnknown, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[linkID]
	return st, ok
}

// Run - цикл подключения с backoff до отмены ctx.
func (s *Stream) Run(ctx context.Context) {
	var delay time.Duration
	for {
		err := s.session(ctx)
		wasUp := s.Connected()
		s.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		delay = reconnectDelay(delay, wasUp)
		logger.Warn("[WS] order stream dropped: %v, reconnect in %s", err, delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// reconnectDelay: после авторизованной сессии backoff начинается заново,
// иначе удваивается до maxReconnectIn.
func reconnectDelay(prev time.Duration, wasUp bool) time.Duration {
	if wasUp || prev <= 0 {
		return minReconnectIn
	}
	next := prev * 2
	if next > maxReconnectIn {
		next = maxReconnectIn
	}
	return next
}

type wsMessage struct {
	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Topic   string `json:"topic"`
	Data    []struct {
		Symbol      string `json:"symbol"`
		OrderLinkID string `json:"orderLinkId"`
		OrderStatus string `json:"orderStatus"`
	} `json:"data"`
}

func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// всё, что было до разрыва, могло устареть - дальше только свежие события или REST
	s.mu.Lock()
	s.statuses = make(map[string]models.OrderStatus)
	s.mu.Unlock()

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(s.authMessage()); err != nil {
		return err
	}
	if err := write(map[string]any{"op": "subscribe", "args": []string{"order"}}); err != nil {
		return err
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stopPing:
				return
			case <-t.C:
				_ = write(map[string]string{"op": "ping"})
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(msg)
	}
}

func (s *Stream) authMessage() map[string]any {
	expires := strconv.FormatInt(s.now().Add(10*time.Second).UnixMilli(), 10)
	h := hmac.New(sha256.New, []byte(s.apiSecret))
	h.Write([]byte("GET/realtime" + expires))
	return map[string]any{
		"op":   "auth",
		"args": []string{s.apiKey, expires, hex.EncodeToString(h.Sum(nil))},
	}
}

func (s *Stream) handle(raw []byte) {
	var m wsMessage
	if err := sonic.Unmarshal(raw, &m); err != nil {
		logger.Debug("[WS] skip message: %v", err)
		return
	}

	switch {
	case m.Op == "auth":
		if m.Success != nil && *m.Success {
			s.setConnected(true)
			logger.Info("[WS] order stream authorised")
		} else {
			logger.Error("[WS] order stream auth failed: %s", m.RetMsg)
		}
	case m.Topic == "order":
		s.mu.Lock()
		for _, d := range m.Data {
			if d.OrderLinkID == "" {
				continue
			}
			s.statuses[d.OrderLinkID] = models.OrderStatus(d.OrderStatus)
		}
		s.mu.Unlock()
	}
}
