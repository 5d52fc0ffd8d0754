package runner

import (
	"context"
	"signal_bot/internal/models"
	bybit "signal_bot/internal/modules/bybit_client/service"
	"sync"

	"github.com/pkg/errors"
)

// FilterCache - правила квантования по символу, живут до рестарта.
// Инвалидации нет: если биржа поменяет шаг цены, узнаем об этом по отказам ордеров.
type FilterCache struct {
	ex ExchangeClient

	mu      sync.RWMutex
	filters map[string]models.SymbolFilter
}

func NewFilterCache(ex ExchangeClient) *FilterCache {
	return &FilterCache{ex: ex, filters: make(map[string]models.SymbolFilter)}
}

func (c *FilterCache) Get(ctx context.Context, symbol string) (models.SymbolFilter, error) {
	c.mu.RLock()
	f, ok := c.filters[symbol]
	c.mu.RUnlock()
	if ok {
		return f, nil
	}

	f, err := c.ex.GetInstrumentFilter(ctx, symbol)
	if err != nil {
		if errors.Is(err, bybit.ErrInstrumentNotFound) {
			return models.SymbolFilter{}, errors.Wrap(ErrUnknownSymbol, symbol)
		}
		return models.SymbolFilter{}, errors.Wrapf(err, "instrument filter %s", symbol)
	}

	c.mu.Lock()
	c.filters[symbol] = f
	c.mu.Unlock()
	return f, nil
}
