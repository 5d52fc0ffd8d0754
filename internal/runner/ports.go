package runner

import (
	"context"
	"signal_bot/internal/models"
)

// ExchangeClient - то, что ядру нужно от биржи.
type ExchangeClient interface {
	GetInstrumentFilter(ctx context.Context, symbol string) (models.SymbolFilter, error)
	PlaceLimitOrder(ctx context.Context, o models.LimitOrder) (string, error)
	CancelOrder(ctx context.Context, symbol, linkID string) error
	GetOrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error)
	GetPositions(ctx context.Context, symbol string) ([]models.ExchangePosition, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetPositionStop(ctx context.Context, symbol string, stopPrice float64) error
}

// OrderStatusSource - откуда монитор берёт статусы ордеров (REST поллинг или WS).
type OrderStatusSource interface {
	OrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error)
}

// PolledStatus - статусы прямым запросом к REST на каждом тике.
type PolledStatus struct {
	ex ExchangeClient
}

func NewPolledStatus(ex ExchangeClient) *PolledStatus {
	return &PolledStatus{ex: ex}
}

func (p *PolledStatus) OrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error) {
	return p.ex.GetOrderStatus(ctx, symbol, linkID)
}

// TelegramNotifier - уведомления о приёме сигналов и переходах состояний.
type TelegramNotifier interface {
	SendF(ctx context.Context, format string, args ...any)
}

type nopNotifier struct{}

func (nopNotifier) SendF(context.Context, string, ...any) {}
