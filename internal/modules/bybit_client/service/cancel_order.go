package service

import "context"

func (c *Client) CancelOrder(ctx context.Context, symbol, linkID string) error {
	_, err := c.post(ctx, "/v5/order/cancel", map[string]any{
		"category":    category,
		"symbol":      symbol,
		"orderLinkId": linkID,
	})
	return err
}
