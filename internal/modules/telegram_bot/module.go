package telegram

import (
	"context"
	"signal_bot/internal/modules/config"
	parser "signal_bot/internal/modules/signal_parser/service"
	"signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/internal/runner"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(cfg *config.Config, p *parser.Parser) (*service.Telegram, error) {
				return service.NewTelegram(cfg, p)
			},
		),

		// Адаптер: *service.Telegram -> runner.TelegramNotifier
		fx.Provide(
			func(t *service.Telegram) runner.TelegramNotifier {
				return t
			},
		),

		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, s *runner.Service) {
				t.SetAcceptor(s)

				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(_ context.Context) error {
						go t.Start(ctx)
						return nil
					},
					OnStop: func(_ context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
