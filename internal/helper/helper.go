package helper

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type RoundMode int

const (
	// RoundNearest - для цен: тейк/стоп должны лечь ровно на тик.
	RoundNearest RoundMode = iota
	// RoundFloor - для объёма: никогда не тратим больше маржи.
	RoundFloor
	// RoundCeil - только там, где опасен недолив.
	RoundCeil
)

// квантовый "люфт" против хвостов float64 (2.9999999999 -> 3)
var quantEps = decimal.New(1, -12)

// Quantize приводит v к сетке step. step <= 0 - без округления.
func Quantize(v, step float64, mode RoundMode) float64 {
	if step <= 0 {
		return v
	}
	s := decimal.NewFromFloat(step)
	n := decimal.NewFromFloat(v).Div(s)
	switch mode {
	case RoundFloor:
		n = n.Add(quantEps).Floor()
	case RoundCeil:
		n = n.Sub(quantEps).Ceil()
	default:
		n = n.Round(0)
	}
	f, _ := n.Mul(s).Float64()
	return f
}

func QuantizePrice(price, tick float64) float64 {
	return Quantize(price, tick, RoundNearest)
}

func QuantizeQty(qty, step float64, mode RoundMode) float64 {
	return Quantize(qty, step, mode)
}

// FormatDecimal - строка для биржи без экспоненты и хвостов float64.
func FormatDecimal(v float64) string {
	return decimal.NewFromFloat(v).String()
}

// ParseFloat - пустая или битая строка даёт def.
func ParseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

var linkSeq atomic.Uint32

// LinkID собирает orderLinkId: <label>_<SYMBOL>_<hex millis><seq>.
// Счётчик нужен, чтобы транши одной лестницы в одну миллисекунду не совпали.
func LinkID(label, symbol string, now time.Time) string {
	seq := linkSeq.Add(1) % 0x1000
	nonce := strconv.FormatInt(now.UnixMilli(), 16) + strconv.FormatUint(uint64(seq), 16)
	// у Bybit лимит 36 символов, режем символ, а не метку и nonce
	if over := len(label) + len(symbol) + len(nonce) + 2 - 36; over > 0 && over < len(symbol) {
		symbol = symbol[:len(symbol)-over]
	}
	return label + "_" + symbol + "_" + nonce
}
