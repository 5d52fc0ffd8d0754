package service

import (
	"context"
	"signal_bot/pkg/logger"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// 1) Посты канала с алертами
	msg := update.ChannelPost
	if msg == nil {
		// 2) Группа/личка
		msg = update.Message
	}
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() && chatID == t.chatID {
		t.handleCommand(ctx, chatID, msg.Command())
		return
	}
	if t.alertChatID == 0 || chatID != t.alertChatID {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	t.handleAlert(ctx, strings.TrimSpace(text))
}

func (t *Telegram) handleCommand(ctx context.Context, chatID int64, cmd string) {
	switch cmd {
	case "start", "status":
		a := t.getAcceptor()
		if a == nil {
			_, _ = t.Send(ctx, chatID, "⏳ Сервис ещё стартует")
			return
		}
		_, _ = t.Send(ctx, chatID, formatWatch(a.HealthSnapshot()))
	default:
		// остальные команды не поддерживаем
	}
}

// handleAlert - один алерт, один сигнал (первый валидный).
func (t *Telegram) handleAlert(ctx context.Context, text string) {
	if text == "" {
		return
	}
	sig, ok := t.parser.Parse(text)
	if !ok {
		logger.Debug("[TG] alert without valid signal: %.80q", text)
		return
	}
	a := t.getAcceptor()
	if a == nil {
		logger.Warn("[TG] %s skipped: acceptor not attached", sig.Symbol())
		return
	}

	// приём не зависит от отмены long-poll: лестницу входа не бросаем на середине
	if _, err := a.AcceptSignal(context.WithoutCancel(ctx), sig, 0); err != nil {
		logger.Warn("[TG] %s %s rejected: %v", sig.Symbol(), sig.Side, err)
		t.SendF(ctx, "%s", formatReject(sig, err))
	}
}
