package signal_parser

import (
	"signal_bot/internal/modules/signal_parser/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("signal_parser",
		fx.Provide(service.NewParser),
	)
}
