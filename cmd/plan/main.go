package main

import (
	"fmt"
	"io"
	"os"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	parser "signal_bot/internal/modules/signal_parser/service"
	"signal_bot/internal/runner"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// plan - сухой прогон алерта: что бы сделал бот без обращения к бирже.
//
//	go run ./cmd/plan alert.txt
//	cat alert.txt | go run ./cmd/plan
//	PLAN_NOTIONAL=100 go run ./cmd/plan alert.txt

func readAlert(args []string) (string, error) {
	if len(args) > 1 && args[1] != "-" {
		b, err := os.ReadFile(args[1])
		if err != nil {
			return "", errors.Wrap(err, "read alert file")
		}
		return string(b), nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	return string(b), nil
}

func buildPlan(sig models.Signal, t config.Trading, notional float64) map[string]interface{} {
	if notional <= 0 {
		notional = t.DefaultNotional
	}

	anchor := sig.StopLoss
	prices := []float64{sig.Entry}
	notionals := []float64{notional}
	if sig.Kind == models.SignalWickhunter {
		anchor = runner.StopFromDCA3(sig.Side, sig.DCA[2], t.SLOverDCA3Pct)
		prices = append(prices, sig.DCA...)
		notionals = runner.Allocate(notional, t.DCAScales)
	}
	lev := runner.Leverage(sig.Entry, anchor, t.FixLeverage, t.MaxLeverageCap, t.SafetyPct)
	dist := runner.TakeProfitDistances(sig)

	engine := viper.New()
	engine.Set("signal.symbol", sig.Symbol())
	engine.Set("signal.kind", string(sig.Kind))
	engine.Set("signal.side", string(sig.Side))
	engine.Set("signal.entry", sig.Entry)
	engine.Set("signal.take_profits", sig.TakeProfits)
	if len(sig.DCA) > 0 {
		engine.Set("signal.dca", sig.DCA)
	}
	engine.Set("signal.timeframe", sig.Timeframe)

	engine.Set("plan.leverage", lev)
	engine.Set("plan.stop", anchor)
	engine.Set("plan.notional", notional)
	engine.Set("plan.ladder.prices", prices)
	engine.Set("plan.ladder.notionals", notionals)
	engine.Set("plan.tp_distances_pct", dist[:])
	engine.Set("plan.tp_splits_pct", t.TPSplits)
	engine.Set("plan.entry_expiry", t.EntryExpiry.String())
	return engine.AllSettings()
}

func run() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	text, err := readAlert(os.Args)
	if err != nil {
		return err
	}

	sig, ok := parser.NewParser(cfg).Parse(text)
	if !ok {
		return errors.Errorf("no valid signal (allowed timeframes %v)", cfg.Trading.AllowedTFs)
	}

	env := viper.New()
	env.AutomaticEnv()
	bs, err := yaml.Marshal(buildPlan(sig, cfg.Trading, env.GetFloat64("PLAN_NOTIONAL")))
	if err != nil {
		return errors.Wrap(err, "marshal plan to yaml")
	}
	fmt.Print(string(bs))
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
