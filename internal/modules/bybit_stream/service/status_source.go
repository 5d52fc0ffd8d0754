package service

import (
	"context"
	"signal_bot/internal/models"
)

// RestStatus - то, чем закрываем промахи кеша.
type RestStatus interface {
	GetOrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error)
}

// CachedStatus - статус из WS, если он есть, иначе REST.
type CachedStatus struct {
	stream   *Stream
	fallback RestStatus
}

func NewCachedStatus(stream *Stream, fallback RestStatus) *CachedStatus {
	return &CachedStatus{stream: stream, fallback: fallback}
}

func (c *CachedStatus) OrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error) {
	if st, ok := c.stream.Status(linkID); ok && st != models.OrderStatusUnknown {
		return st, nil
	}
	return c.fallback.GetOrderStatus(ctx, symbol, linkID)
}
