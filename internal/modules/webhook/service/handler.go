package service

import (
	"context"
	"io"
	"net/http"
	"signal_bot/internal/models"
	parser "signal_bot/internal/modules/signal_parser/service"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// тело вебхука больше этого не читаем
const maxBody = 1 << 20

type SignalAcceptor interface {
	AcceptSignal(ctx context.Context, sig models.Signal, notionalOverride float64) (runner.AcceptResult, error)
	HealthSnapshot() []string
}

type SignalParser interface {
	Parse(text string) (models.Signal, bool)
}

// Handler - HTTP вход для алертов и /health.
type Handler struct {
	acceptor SignalAcceptor
	parser   SignalParser
	textPath string
}

func NewHandler(acceptor SignalAcceptor, parser SignalParser, textPath string) *Handler {
	return &Handler{acceptor: acceptor, parser: parser, textPath: textPath}
}

type acceptResponse struct {
	OK bool `json:"ok"`
	runner.AcceptResult
}

// Webhook принимает {"text": "...", "notional": 50} или произвольный JSON,
// где текст лежит по text_path.
// POST /webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}
	var body map[string]any
	if err := sonic.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	text, _ := body["text"].(string)
	if strings.TrimSpace(text) == "" {
		text = parser.ExtractText(body, h.textPath)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "no signal text")
		return
	}

	sig, ok := h.parser.Parse(text)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "no valid signal")
		return
	}

	res, err := h.acceptor.AcceptSignal(r.Context(), sig, notional(body["notional"]))
	if err != nil {
		code := StatusFor(err)
		logger.Warn("[WEBHOOK] %s %s rejected (%d): %v", sig.Symbol(), sig.Side, code, err)
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acceptResponse{OK: true, AcceptResult: res})
}

// Health - список сопровождаемых символов.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	watch := h.acceptor.HealthSnapshot()
	if watch == nil {
		watch = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "watch": watch})
}

// StatusFor - HTTP код для ошибки приёма сигнала.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, runner.ErrCooldownActive), errors.Is(err, runner.ErrPositionCapReached):
		return http.StatusTooManyRequests
	case errors.Is(err, runner.ErrAlreadyWatched):
		return http.StatusConflict
	case errors.Is(err, runner.ErrOrderTooSmall), errors.Is(err, runner.ErrUnknownSymbol):
		return http.StatusBadRequest
	case errors.Is(err, runner.ErrInvalidSignal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, runner.ErrExchangeRejected):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// notional: число или строка; всё остальное - без переопределения.
func notional(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	}
	return 0
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": msg})
}
