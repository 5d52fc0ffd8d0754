package config

import "go.uber.org/fx"

// Module отдаёт уже загруженный конфиг: логгер и трейсер поднимаются по нему до fx.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
