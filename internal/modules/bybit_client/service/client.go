package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/metrics"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"
)

const (
	category = "linear"

	// retCode Bybit
	retOK                  = 0
	retLeverageNotModified = 110043 // плечо уже такое - считаем успехом
	retTooManyVisits       = 10006
)

// APIError - ответ Bybit с retCode != 0.
type APIError struct {
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit %s: retCode=%d retMsg=%s", e.Path, e.Code, e.Message)
}

// Client - подписанный REST клиент Bybit v5 (SignType=2).
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	recvWindow string
	settleCoin string

	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration

	now func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.Bybit.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.Bybit.RateLimit
	if rps <= 0 {
		rps = 10
	}
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	recv := cfg.Bybit.RecvWindow
	if recv <= 0 {
		recv = 5000
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		baseURL:    cfg.Bybit.BaseURL,
		apiKey:     cfg.Bybit.APIKey,
		apiSecret:  cfg.Bybit.APISecret,
		recvWindow: strconv.Itoa(recv),
		settleCoin: cfg.Bybit.SettleCoin,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: cfg.Bybit.MaxRetries,
		backoff:    500 * time.Millisecond,
		now:        time.Now,
	}
}

func (c *Client) sign(ts, payload string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(ts + c.apiKey + c.recvWindow + payload))
	return hex.EncodeToString(h.Sum(nil))
}

// envelope - общий конверт ответа v5.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// get/post возвращают сырой result, ошибку при retCode != 0 (кроме 110043).
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body map[string]any) ([]byte, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, fmt.Errorf("bybit %s: api key/secret not set", path)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = sonic.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("bybit %s marshal: %w", path, err)
		}
	}

	attempt := 0
	for {
		res, retry, err := c.once(ctx, method, path, params, payload)
		if err == nil || !retry || attempt >= c.maxRetries {
			return res, err
		}
		attempt++
		wait := c.backoff * time.Duration(1<<uint(attempt-1))
		logger.Warn("[BYBIT] %s %s rate limited, retry %d/%d in %s", method, path, attempt, c.maxRetries, wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// once - один запрос. retry=true только для 429 / retCode 10006.
func (c *Client) once(ctx context.Context, method, path string, params url.Values, payload []byte) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	reqURL := c.baseURL + path

	var (
		signPayload string
		bodyReader  io.Reader
	)
	if method == http.MethodGet {
		q := params.Encode()
		signPayload = q
		if q != "" {
			reqURL += "?" + q
		}
	} else {
		signPayload = string(payload)
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, false, fmt.Errorf("bybit %s new request: %w", path, err)
	}
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-SIGN-TYPE", "2")
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(ts, signPayload))
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExchangeLatency.WithLabelValues(path, "transport").Observe(time.Since(started).Seconds())
		return nil, false, fmt.Errorf("bybit %s do: %w", path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	metrics.ExchangeLatency.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Observe(time.Since(started).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, &APIError{Path: path, Code: resp.StatusCode, Message: "http 429"}
	}

	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, false, fmt.Errorf("bybit %s non-JSON response (%d): %.200s", path, resp.StatusCode, string(data))
	}

	switch env.RetCode {
	case retOK, retLeverageNotModified:
		return env.Result, false, nil
	case retTooManyVisits:
		return nil, true, &APIError{Path: path, Code: env.RetCode, Message: env.RetMsg}
	}

	logger.Error("[BYBIT] %s %s -> %d %s", method, path, env.RetCode, env.RetMsg)
	return nil, false, &APIError{Path: path, Code: env.RetCode, Message: env.RetMsg}
}
