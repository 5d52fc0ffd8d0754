package bybit_stream

import (
	"context"
	bybit "signal_bot/internal/modules/bybit_client/service"
	"signal_bot/internal/modules/bybit_stream/service"
	"signal_bot/internal/modules/config"
	health "signal_bot/internal/modules/health/service"
	"signal_bot/internal/runner"

	"go.uber.org/fx"
)

// Module отдаёт runner.OrderStatusSource: WS-кеш с откатом на REST,
// если включён bybit.use_order_stream, иначе чистый поллинг REST.
func Module() fx.Option {
	return fx.Module("bybit_stream",
		fx.Provide(
			service.NewStream,
			func(cfg *config.Config, s *service.Stream, c *bybit.Client) runner.OrderStatusSource {
				if !cfg.Bybit.UseOrderStream {
					return runner.NewPolledStatus(c)
				}
				return service.NewCachedStatus(s, c)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *service.Stream, state *health.State) {
			if !cfg.Bybit.UseOrderStream {
				return
			}
			s.OnStateChange(state.SetWSConnected)

			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go s.Run(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
