package service

import (
	"context"
	"fmt"
	"signal_bot/internal/helper"
)

// SetPositionStop ставит один стоп на всю позицию (tpslMode=Full).
func (c *Client) SetPositionStop(ctx context.Context, symbol string, stopPrice float64) error {
	if stopPrice <= 0 {
		return fmt.Errorf("SetPositionStop: stopPrice <= 0")
	}
	_, err := c.post(ctx, "/v5/position/set-trading-stop", map[string]any{
		"category":    category,
		"symbol":      symbol,
		"tpslMode":    "Full",
		"positionIdx": 0,
		"stopLoss":    helper.FormatDecimal(stopPrice),
	})
	return err
}
