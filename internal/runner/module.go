package runner

import (
	"context"
	"signal_bot/internal/modules/config"
	health "signal_bot/internal/modules/health/service"
	"time"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewFilterCache,
			func(ex ExchangeClient, filters *FilterCache, cfg *config.Config) *BracketPlacer {
				return NewBracketPlacer(ex, filters, cfg.Trading.TPSplits)
			},
			NewRegistry,
			func(cfg *config.Config) *Throttle {
				return NewThrottle(cfg.Trading.Cooldown)
			},
			func(
				ex ExchangeClient,
				status OrderStatusSource,
				placer *BracketPlacer,
				registry *Registry,
				throttle *Throttle,
				n TelegramNotifier,
				cfg *config.Config,
			) *Monitor {
				return NewMonitor(MonitorDeps{
					Exchange:      ex,
					Status:        status,
					Placer:        placer,
					Registry:      registry,
					Throttle:      throttle,
					Notifier:      n,
					Interval:      cfg.Trading.PollInterval,
					SLOverDCA3Pct: cfg.Trading.SLOverDCA3Pct,
				})
			},
			func(
				ex ExchangeClient,
				placer *BracketPlacer,
				registry *Registry,
				throttle *Throttle,
				n TelegramNotifier,
				cfg *config.Config,
			) *Service {
				return NewService(ex, placer, registry, throttle, n, cfg.Trading)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, m *Monitor, state *health.State) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						m.Run(ctx, func() { state.TouchTick(time.Now()) })
					}()
					state.SetReady(true)
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					state.SetReady(false)
					cancel()
					// ждём текущий тик, но не дольше таймаута остановки
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
