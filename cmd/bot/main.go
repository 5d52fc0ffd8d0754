package main

import (
	"log"
	"signal_bot/internal/modules/bybit_client"
	"signal_bot/internal/modules/bybit_stream"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/signal_parser"
	"signal_bot/internal/modules/webhook"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	telegram "signal_bot/internal/modules/telegram_bot"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

const serviceName = "signal_bot"

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("[LOGGER] %v", err)
	}
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)
	defer logger.Sync()

	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		logger.Fatal("[TRACING] %v", err)
	}
	defer closeTracer()

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.InfoLogger}
		}),
		config.Module(cfg),
		health.Module(),
		bybit_client.Module(),
		bybit_stream.Module(),
		signal_parser.Module(),
		runner.Module(),
		telegram.Module(),
		webhook.Module(),
	)
	app.Run()
}
