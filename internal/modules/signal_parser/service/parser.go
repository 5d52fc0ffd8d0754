package service

import (
	"regexp"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"strconv"
	"strings"
)

const num = `([0-9]*\.?[0-9]+)`

var (
	blockSep = regexp.MustCompile(`\n\s*\n`)

	// classic: блок "Timeframe: H1 ... BUY on BTC/USDT ... Price: ... TP1: ... TP2: ... SL: ..."
	reTF    = regexp.MustCompile(`(?i)Timeframe:\s*([A-Za-z0-9]+)`)
	reSide  = regexp.MustCompile(`(?i)\b(BUY|SELL)\b`)
	rePair  = regexp.MustCompile(`(?i)on\s+([A-Z0-9]+)[/\-]([A-Z0-9]+)`)
	reEntry = regexp.MustCompile(`(?i)Price:\s*` + num)
	reTP1   = regexp.MustCompile(`(?i)TP\s*1:\s*` + num)
	reTP2   = regexp.MustCompile(`(?i)TP\s*2:\s*` + num)
	reSL    = regexp.MustCompile(`(?i)\bSL\s*:\s*` + num)

	// wickhunter: "BTC LONG Signal" ... "Enter on Trigger: $" ... TP1-3 ... DCA #1-3
	reWickhunter = regexp.MustCompile(`(?ims)` +
		`^\s*(?P<base>[A-Z0-9]+)\s+(?P<side>LONG|SHORT)\s+Signal\s*$` +
		`.*?Enter\s+on\s+Trigger:\s*\$(?P<entry>[0-9]*\.?[0-9]+)\s*` +
		`.*?TP1:\s*\$(?P<tp1>[0-9]*\.?[0-9]+)\s*` +
		`TP2:\s*\$(?P<tp2>[0-9]*\.?[0-9]+)\s*` +
		`TP3:\s*\$(?P<tp3>[0-9]*\.?[0-9]+)\s*` +
		`.*?DCA\s*#1:\s*\$(?P<d1>[0-9]*\.?[0-9]+)\s*` +
		`DCA\s*#2:\s*\$(?P<d2>[0-9]*\.?[0-9]+)\s*` +
		`DCA\s*#3:\s*\$(?P<d3>[0-9]*\.?[0-9]+)`)
)

// Parser разбирает свободный текст алерта в models.Signal.
type Parser struct {
	allowedTFs map[string]bool
}

func NewParser(cfg *config.Config) *Parser {
	return New(cfg.Trading.AllowedTFs)
}

func New(allowedTFs []string) *Parser {
	p := &Parser{allowedTFs: make(map[string]bool, len(allowedTFs))}
	for _, tf := range allowedTFs {
		p.allowedTFs[strings.ToUpper(strings.TrimSpace(tf))] = true
	}
	return p
}

// Parse - первый валидный сигнал в тексте. Сначала формат wickhunter, потом classic.
func (p *Parser) Parse(text string) (models.Signal, bool) {
	if sigs := p.ParseWickhunter(text); len(sigs) > 0 {
		return sigs[0], true
	}
	if sigs := p.ParseClassic(text); len(sigs) > 0 {
		return sigs[0], true
	}
	return models.Signal{}, false
}

// ParseWickhunter - все правдоподобные DCA-сигналы в порядке появления.
func (p *Parser) ParseWickhunter(text string) []models.Signal {
	text = strings.ReplaceAll(text, "\r", "")
	var out []models.Signal
	for _, m := range reWickhunter.FindAllStringSubmatch(text, -1) {
		g := func(name string) string { return m[reWickhunter.SubexpIndex(name)] }

		side := models.SideLong
		if strings.EqualFold(g("side"), "SHORT") {
			side = models.SideShort
		}
		sig := models.Signal{
			Kind:        models.SignalWickhunter,
			Base:        strings.ToUpper(g("base")),
			Quote:       "USDT",
			Side:        side,
			Entry:       atof(g("entry")),
			TakeProfits: []float64{atof(g("tp1")), atof(g("tp2")), atof(g("tp3"))},
			DCA:         []float64{atof(g("d1")), atof(g("d2")), atof(g("d3"))},
		}
		if sig.Valid() {
			out = append(out, sig)
		}
	}
	return out
}

// ParseClassic - блоки через пустую строку, таймфрейм должен быть в разрешённых.
func (p *Parser) ParseClassic(text string) []models.Signal {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r", ""))
	var out []models.Signal
	for _, b := range blockSep.Split(text, -1) {
		tf := reTF.FindStringSubmatch(b)
		if tf == nil {
			continue
		}
		timeframe := strings.ToUpper(tf[1])
		if !p.allowedTFs[timeframe] {
			continue
		}

		side := reSide.FindStringSubmatch(b)
		pair := rePair.FindStringSubmatch(b)
		entry := reEntry.FindStringSubmatch(b)
		tp1 := reTP1.FindStringSubmatch(b)
		tp2 := reTP2.FindStringSubmatch(b)
		sl := reSL.FindStringSubmatch(b)
		if side == nil || pair == nil || entry == nil || tp1 == nil || tp2 == nil || sl == nil {
			continue
		}

		quote := strings.ToUpper(pair[2])
		if quote == "USD" {
			quote = "USDT"
		}
		sig := models.Signal{
			Kind:        models.SignalClassic,
			Base:        strings.ToUpper(pair[1]),
			Quote:       quote,
			Side:        models.SideLong,
			Entry:       atof(entry[1]),
			TakeProfits: []float64{atof(tp1[1]), atof(tp2[1])},
			StopLoss:    atof(sl[1]),
			Timeframe:   timeframe,
		}
		if strings.EqualFold(side[1], "SELL") {
			sig.Side = models.SideShort
		}
		if sig.Valid() {
			out = append(out, sig)
		}
	}
	return out
}

// ExtractText достаёт строку из JSON по пути через точку ("content", "data.text").
func ExtractText(payload map[string]any, path string) string {
	var node any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return ""
		}
		if node, ok = m[part]; !ok {
			return ""
		}
	}
	s, _ := node.(string)
	return s
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
