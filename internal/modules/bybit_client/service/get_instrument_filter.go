package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"signal_bot/internal/helper"
	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
)

// ErrInstrumentNotFound - биржа не знает символ или он не торгуется.
var ErrInstrumentNotFound = errors.New("instrument not found or inactive")

// GetInstrumentFilter тянет tick/step/minQty по линейному контракту.
// Отсутствующие поля заменяются дефолтами, а не ошибкой.
func (c *Client) GetInstrumentFilter(ctx context.Context, symbol string) (models.SymbolFilter, error) {
	params := url.Values{}
	params.Set("category", category)
	params.Set("symbol", symbol)

	raw, err := c.get(ctx, "/v5/market/instruments-info", params)
	if err != nil {
		return models.SymbolFilter{}, err
	}

	var res instrumentsResult
	if err := sonic.Unmarshal(raw, &res); err != nil {
		return models.SymbolFilter{}, fmt.Errorf("instruments-info decode: %w", err)
	}
	if len(res.List) == 0 {
		return models.SymbolFilter{}, fmt.Errorf("%s: %w", symbol, ErrInstrumentNotFound)
	}

	item := res.List[0]
	if item.Status != "" && item.Status != "Trading" {
		return models.SymbolFilter{}, fmt.Errorf("%s status=%s: %w", symbol, item.Status, ErrInstrumentNotFound)
	}

	lf := item.LotSizeFilter
	step := lf.QtyStep
	if step == "" {
		step = lf.StepSize
	}
	minNotional := lf.MinOrderAmt
	if minNotional == "" {
		minNotional = lf.MinNotionalValue
	}

	return models.SymbolFilter{
		Symbol:      symbol,
		TickSize:    helper.ParseFloat(item.PriceFilter.TickSize, 0.01),
		StepSize:    helper.ParseFloat(step, 0.001),
		MinQty:      helper.ParseFloat(lf.MinOrderQty, 0.001),
		MinNotional: helper.ParseFloat(minNotional, 0),
	}, nil
}
