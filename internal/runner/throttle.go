package runner

import (
	"sync"
	"time"
)

// Throttle - глобальный кулдаун от последнего ПЕРВОГО филла позиции.
// Лимиты лонгов/шортов не кешируются и берутся с биржи при каждом приёме сигнала.
type Throttle struct {
	mu       sync.Mutex
	lastFill time.Time
	cooldown time.Duration
}

func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{cooldown: cooldown}
}

func (t *Throttle) MarkFill(at time.Time) {
	t.mu.Lock()
	t.lastFill = at
	t.mu.Unlock()
}

// Remaining - сколько ещё ждать; 0 - можно входить.
func (t *Throttle) Remaining(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cooldown <= 0 || t.lastFill.IsZero() {
		return 0
	}
	left := t.lastFill.Add(t.cooldown).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func (t *Throttle) LastFill() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFill
}
