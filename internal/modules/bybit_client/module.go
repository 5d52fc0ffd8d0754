package bybit_client

import (
	"signal_bot/internal/modules/bybit_client/service"
	"signal_bot/internal/runner"

	"go.uber.org/fx"
)

// Module - REST клиент Bybit v5 как runner.ExchangeClient.
func Module() fx.Option {
	return fx.Module("bybit_client",
		fx.Provide(
			service.NewClient,
			func(c *service.Client) runner.ExchangeClient {
				return c
			},
		),
	)
}
