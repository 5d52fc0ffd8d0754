package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"signal_bot/internal/models"
	healthsvc "signal_bot/internal/modules/health/service"
	parser "signal_bot/internal/modules/signal_parser/service"
	"signal_bot/internal/modules/webhook/service"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

type idleAcceptor struct{}

func (idleAcceptor) AcceptSignal(context.Context, models.Signal, float64) (runner.AcceptResult, error) {
	return runner.AcceptResult{}, runner.ErrCooldownActive
}

func (idleAcceptor) HealthSnapshot() []string { return nil }

func TestRouter(t *testing.T) {
	state := healthsvc.NewState()
	r := NewRouter(service.NewHandler(idleAcceptor{}, parser.New(nil), "content"), state)

	do := func(method, path string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"livez", http.MethodGet, "/livez", http.StatusOK},
		{"not ready", http.MethodGet, "/readyz", http.StatusServiceUnavailable},
		{"healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"webhook wants POST", http.MethodGet, "/webhook", http.StatusMethodNotAllowed},
		{"unknown", http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(tt.method, tt.path); got != tt.want {
				t.Errorf("%s %s = %d, expected %d", tt.method, tt.path, got, tt.want)
			}
		})
	}

	state.SetReady(true)
	state.TouchTick(time.Now())
	if got := do(http.MethodGet, "/readyz"); got != http.StatusOK {
		t.Errorf("ready monitor must pass readiness, got %d", got)
	}
}
