package runner

import (
	"signal_bot/internal/models"
	"signal_bot/pkg/metrics"
	"sort"
	"sync"
)

// Registry - единственный источник правды о том, что сопровождается.
// Наружу отдаются только копии записей.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*models.PositionRecord
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*models.PositionRecord)}
}

func (r *Registry) Upsert(rec *models.PositionRecord) {
	r.mu.Lock()
	r.records[rec.Symbol] = rec.Clone()
	n := len(r.records)
	r.mu.Unlock()
	metrics.Watched.Set(float64(n))
}

// Insert - атомарное создание: false, если символ уже сопровождается.
func (r *Registry) Insert(rec *models.PositionRecord) bool {
	r.mu.Lock()
	if _, ok := r.records[rec.Symbol]; ok {
		r.mu.Unlock()
		return false
	}
	r.records[rec.Symbol] = rec.Clone()
	n := len(r.records)
	r.mu.Unlock()
	metrics.Watched.Set(float64(n))
	return true
}

func (r *Registry) Get(symbol string) (*models.PositionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[symbol]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (r *Registry) Has(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[symbol]
	return ok
}

// Update применяет fn к записи под локом. false - записи нет.
func (r *Registry) Update(symbol string, fn func(rec *models.PositionRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[symbol]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Remove удаляет запись; true только для того вызова, который реально удалил.
func (r *Registry) Remove(symbol string) bool {
	r.mu.Lock()
	_, ok := r.records[symbol]
	delete(r.records, symbol)
	n := len(r.records)
	r.mu.Unlock()
	if ok {
		metrics.Watched.Set(float64(n))
	}
	return ok
}

// ListSymbols - отсортированный снимок ключей; реестр можно менять во время обхода.
func (r *Registry) ListSymbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.records))
	for s := range r.records {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
