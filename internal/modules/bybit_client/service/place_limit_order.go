package service

import (
	"context"
	"fmt"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
)

// PlaceLimitOrder ставит GTC лимитку с нашим orderLinkId. Возвращает orderId биржи.
func (c *Client) PlaceLimitOrder(ctx context.Context, o models.LimitOrder) (string, error) {
	if o.Qty <= 0 {
		return "", fmt.Errorf("PlaceLimitOrder: qty <= 0")
	}
	if o.Price <= 0 {
		return "", fmt.Errorf("PlaceLimitOrder: price <= 0")
	}

	body := map[string]any{
		"category":       category,
		"symbol":         o.Symbol,
		"side":           o.Side,
		"orderType":      "Limit",
		"price":          helper.FormatDecimal(o.Price),
		"qty":            helper.FormatDecimal(o.Qty),
		"timeInForce":    "GTC",
		"reduceOnly":     o.ReduceOnly,
		"closeOnTrigger": false,
		"orderLinkId":    o.LinkID,
	}

	raw, err := c.post(ctx, "/v5/order/create", body)
	if err != nil {
		return "", err
	}

	var res createOrderResult
	if err := sonic.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("order/create decode: %w", err)
	}
	return res.OrderID, nil
}
