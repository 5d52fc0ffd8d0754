package service

import (
	"context"
	"strconv"
)

// SetLeverage - одинаковое плечо на обе стороны. 110043 (не изменилось) - успех.
func (c *Client) SetLeverage(ctx context.Context, symbol string, lev int) error {
	_, err := c.post(ctx, "/v5/position/set-leverage", map[string]any{
		"category":     category,
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(lev),
		"sellLeverage": strconv.Itoa(lev),
	})
	return err
}
