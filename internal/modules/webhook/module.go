package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	healthsvc "signal_bot/internal/modules/health/service"
	parser "signal_bot/internal/modules/signal_parser/service"
	"signal_bot/internal/modules/webhook/service"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// NewRouter собирает все HTTP маршруты процесса:
//
//	POST /webhook  - приём алерта
//	GET  /health   - {"ok":true,"watch":[...]}
//	GET  /livez, /readyz, /healthz
//	GET  /metrics  - prometheus
func NewRouter(h *service.Handler, state *healthsvc.State) *mux.Router {
	r := mux.NewRouter()
	r.Use(service.Recovery)
	r.Use(service.Logging)

	r.HandleFunc("/webhook", h.Webhook).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	health.Routes(r, state)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, r *mux.Router) {
	srv := &http.Server{
		Addr:              cfg.Service.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("[HTTP] listening on %s", srv.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[HTTP] serve: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("webhook",
		fx.Provide(
			func(s *runner.Service, p *parser.Parser, cfg *config.Config) *service.Handler {
				return service.NewHandler(s, p, cfg.Trading.TextPath)
			},
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
