package runner

import (
	"math"
)

// минимальная дистанция до стопа в %, чтобы не делить на ноль
const minStopDistancePct = 1e-4

// Leverage - плечо, при котором ход до стопа съедает не больше safetyPct маржи.
// fixed > 0 отключает расчёт. Результат всегда в [1, maxCap].
func Leverage(entry, stopLoss float64, fixed, maxCap int, safetyPct float64) int {
	if maxCap < 1 {
		maxCap = 1
	}
	if fixed > 0 {
		return min(fixed, maxCap)
	}
	if entry <= 0 {
		return 1
	}

	slPct := math.Abs(entry-stopLoss) / entry * 100
	raw := math.Floor(safetyPct / math.Max(slPct, minStopDistancePct))
	if math.IsNaN(raw) || raw < 1 {
		return 1
	}
	if raw > float64(maxCap) {
		return maxCap
	}
	return int(raw)
}

// Allocate делит base пропорционально весам траншей.
// Пустые веса или неположительная сумма - nil.
func Allocate(base float64, weights []float64) []float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if len(weights) == 0 || total <= 0 {
		return nil
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = base * w / total
	}
	return out
}
