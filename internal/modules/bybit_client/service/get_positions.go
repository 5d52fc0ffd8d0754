package service

import (
	"context"
	"fmt"
	"net/url"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"strconv"

	"github.com/bytedance/sonic"
)

// GetPositions - позиции по символу или все по settleCoin (symbol == "").
// Пустые (size=0) записи Bybit тоже возвращаются - фильтрует вызывающий.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]models.ExchangePosition, error) {
	out := make([]models.ExchangePosition, 0)
	cursor := ""
	for {
		params := url.Values{}
		params.Set("category", category)
		if symbol != "" {
			params.Set("symbol", symbol)
		} else {
			params.Set("settleCoin", c.settleCoin)
			params.Set("limit", "200")
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		raw, err := c.get(ctx, "/v5/position/list", params)
		if err != nil {
			return nil, err
		}
		var res positionsResult
		if err := sonic.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("position/list decode: %w", err)
		}

		for _, p := range res.List {
			lev, _ := strconv.Atoi(p.Leverage)
			var side models.Side
			switch p.Side {
			case "Buy":
				side = models.SideLong
			case "Sell":
				side = models.SideShort
			}
			out = append(out, models.ExchangePosition{
				Symbol:   p.Symbol,
				Side:     side,
				Size:     helper.ParseFloat(p.Size, 0),
				AvgPrice: helper.ParseFloat(p.AvgPrice, 0),
				Leverage: lev,
			})
		}

		if res.NextPageCursor == "" || res.NextPageCursor == cursor || symbol != "" {
			return out, nil
		}
		cursor = res.NextPageCursor
	}
}
