package service

import (
	"context"
	"fmt"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type SignalAcceptor interface {
	AcceptSignal(ctx context.Context, sig models.Signal, notionalOverride float64) (runner.AcceptResult, error)
	HealthSnapshot() []string
}

type SignalParser interface {
	Parse(text string) (models.Signal, bool)
}

// Telegram читает алерты из канала/группы ALERT_CHAT_ID и шлёт уведомления в TELEGRAM_CHAT_ID.
// Без токена превращается в заглушку: SendF ничего не делает, Start сразу выходит.
type Telegram struct {
	bot         *tgbot.BotAPI
	chatID      int64
	alertChatID int64
	parser      SignalParser

	mu       sync.RWMutex
	acceptor SignalAcceptor
}

func NewTelegram(cfg *config.Config, parser SignalParser) (*Telegram, error) {
	t := &Telegram{
		chatID:      cfg.Telegram.ChatID,
		alertChatID: cfg.Telegram.AlertChatID,
		parser:      parser,
	}
	if cfg.Telegram.Token == "" {
		logger.Warn("[TG] token not set, telegram disabled")
		return t, nil
	}

	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	t.bot = b
	return t, nil
}

// SetAcceptor - приём сигналов подключается после сборки графа:
// сервис приёма сам шлёт уведомления через Telegram.
func (t *Telegram) SetAcceptor(a SignalAcceptor) {
	t.mu.Lock()
	t.acceptor = a
	t.mu.Unlock()
}

func (t *Telegram) getAcceptor() SignalAcceptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.acceptor
}

func (t *Telegram) Enabled() bool { return t.bot != nil }

func (t *Telegram) Send(_ context.Context, chatID int64, msg string) (tgbot.Message, error) {
	if t.bot == nil || chatID == 0 {
		return tgbot.Message{}, nil
	}
	return t.bot.Send(tgbot.NewMessage(chatID, msg))
}

// SendF - уведомление в основной чат; ошибки отправки только логируются.
func (t *Telegram) SendF(ctx context.Context, format string, args ...any) {
	if _, err := t.Send(ctx, t.chatID, fmt.Sprintf(format, args...)); err != nil {
		logger.Warn("[TG] send: %v", err)
	}
}

// Start - long-poll апдейтов до отмены ctx.
func (t *Telegram) Start(ctx context.Context) {
	if t.bot == nil {
		return
	}
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	logger.Info("[TG] polling as @%s, alerts from %d", t.bot.Self.UserName, t.alertChatID)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) Stop() {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
}
