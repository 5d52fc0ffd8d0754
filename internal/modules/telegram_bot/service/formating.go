package service

import (
	"fmt"
	"signal_bot/internal/models"
	"signal_bot/internal/runner"
	"strings"

	"github.com/pkg/errors"
)

func formatWatch(symbols []string) string {
	if len(symbols) == 0 {
		return "📭 Сопровождаемых позиций нет"
	}
	return fmt.Sprintf("📊 Сопровождаю %d:\n%s", len(symbols), strings.Join(symbols, "\n"))
}

func formatReject(sig models.Signal, err error) string {
	reason := "ошибка"
	switch {
	case errors.Is(err, runner.ErrCooldownActive):
		reason = "кулдаун"
	case errors.Is(err, runner.ErrPositionCapReached):
		reason = "лимит позиций"
	case errors.Is(err, runner.ErrAlreadyWatched):
		reason = "символ уже сопровождается"
	case errors.Is(err, runner.ErrOrderTooSmall):
		reason = "объём меньше минимального"
	case errors.Is(err, runner.ErrUnknownSymbol):
		reason = "неизвестный символ"
	case errors.Is(err, runner.ErrExchangeRejected):
		reason = "отказ биржи"
	}
	return fmt.Sprintf("⛔️ %s %s (%s): %s\n%v", sig.Symbol(), sig.Side, sig.Kind, reason, err)
}
