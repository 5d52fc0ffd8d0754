package service

import (
	"context"
	"fmt"
	"net/url"
	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
)

// GetOrderStatus ищет ордер сначала в realtime, потом в истории
// (исполненные/отменённые пропадают из realtime).
// Не нашли нигде - OrderStatusUnknown без ошибки.
func (c *Client) GetOrderStatus(ctx context.Context, symbol, linkID string) (models.OrderStatus, error) {
	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		st, err := c.orderStatusFrom(ctx, path, symbol, linkID)
		if err != nil {
			return models.OrderStatusUnknown, err
		}
		if st != models.OrderStatusUnknown {
			return st, nil
		}
	}
	return models.OrderStatusUnknown, nil
}

func (c *Client) orderStatusFrom(ctx context.Context, path, symbol, linkID string) (models.OrderStatus, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)
	params.Set("orderLinkId", linkID)

	raw, err := c.get(ctx, path, params)
	if err != nil {
		return models.OrderStatusUnknown, err
	}

	var res ordersResult
	if err := sonic.Unmarshal(raw, &res); err != nil {
		return models.OrderStatusUnknown, fmt.Errorf("%s decode: %w", path, err)
	}
	for _, o := range res.List {
		if o.OrderLinkID == linkID {
			return models.OrderStatus(o.OrderStatus), nil
		}
	}
	return models.OrderStatusUnknown, nil
}
