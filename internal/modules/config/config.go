package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs/"
)

// Config ...
type Config struct {
	LogLevel string `yaml:"log_level"`

	Bybit struct {
		BaseURL      string        `yaml:"base_url"`
		WSPrivateURL string        `yaml:"ws_private_url"`
		APIKey       string        `yaml:"api_key"`
		APISecret    string        `yaml:"api_secret"`
		SettleCoin   string        `yaml:"settle_coin"`
		RecvWindow   int           `yaml:"recv_window"`
		Timeout      time.Duration `yaml:"timeout"`
		// лимит REST запросов в секунду (у Bybit ~10 rps на эндпоинт)
		RateLimit  float64 `yaml:"rate_limit"`
		MaxRetries int     `yaml:"max_retries"`
		// статусы ордеров из приватного WS вместо поллинга REST
		UseOrderStream bool `yaml:"use_order_stream"`
	} `yaml:"bybit"`

	Telegram struct {
		Token string `yaml:"token"`
		// куда слать уведомления
		ChatID int64 `yaml:"chat_id"`
		// откуда читать сигналы (канал/группа); 0 - не читать
		AlertChatID int64 `yaml:"alert_chat_id"`
	} `yaml:"telegram"`

	Service struct {
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"service"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	Trading Trading `yaml:"trading"`
}

// Trading - параметры ядра (сайзинг, брекеты, мониторинг).
type Trading struct {
	// таймфреймы, которые принимаем у classic-сигналов
	AllowedTFs []string `yaml:"allowed_tfs"`
	// доли позиции на TP1..TP3 в %, сумма <= 100
	TPSplits []float64 `yaml:"tp_splits"`

	// 0 - плечо из дистанции до SL
	FixLeverage    int     `yaml:"fix_leverage"`
	MaxLeverageCap int     `yaml:"max_leverage_cap"`
	SafetyPct      float64 `yaml:"safety_pct"`

	// кулдаун после ПЕРВОГО филла, а не после выставления
	Cooldown    time.Duration `yaml:"cooldown"`
	EntryExpiry time.Duration `yaml:"entry_expiry"`

	MaxOpenLongs  int `yaml:"max_open_longs"`
	MaxOpenShorts int `yaml:"max_open_shorts"`

	// путь к тексту в произвольном JSON вебхука, через точку
	TextPath string `yaml:"text_path"`
	// маржа на сигнал без плеча (USDT); у DCA-сигналов делится по весам траншей
	DefaultNotional float64 `yaml:"default_notional"`
	// веса траншей: initial, DCA1..3
	DCAScales []float64 `yaml:"dca_scales"`
	// стоп от DCA3 в % (long: ниже, short: выше)
	SLOverDCA3Pct float64 `yaml:"sl_over_dca3_pct"`

	PollInterval time.Duration `yaml:"poll_interval"`
}

var (
	defaultTPSplits  = []float64{30, 30, 30}
	defaultDCAScales = []float64{1, 1.5, 2.25, 3.4}
)

func defaults() Config {
	c := Config{LogLevel: "info"}
	c.Bybit.BaseURL = "https://api-testnet.bybit.com"
	c.Bybit.WSPrivateURL = "wss://stream-testnet.bybit.com/v5/private"
	c.Bybit.SettleCoin = "USDT"
	c.Bybit.RecvWindow = 5000
	c.Bybit.Timeout = 15 * time.Second
	c.Bybit.RateLimit = 10
	c.Bybit.MaxRetries = 3
	c.Service.HTTPAddr = ":8080"
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	c.Trading = Trading{
		AllowedTFs:      []string{"H1", "M15", "M5"},
		TPSplits:        append([]float64(nil), defaultTPSplits...),
		FixLeverage:     0,
		MaxLeverageCap:  75,
		SafetyPct:       80,
		Cooldown:        45 * time.Minute,
		EntryExpiry:     60 * time.Minute,
		MaxOpenLongs:    999,
		MaxOpenShorts:   999,
		TextPath:        "content",
		DefaultNotional: 50,
		DCAScales:       append([]float64(nil), defaultDCAScales...),
		SLOverDCA3Pct:   38,
		PollInterval:    5 * time.Second,
	}
	return c
}

func NewConfig() (*Config, error) {
	// .env опционален
	_ = godotenv.Load()

	config := defaults()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open(configDir + configFileName)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Printf("[CONFIG] %s не найден, только env", configDir+configFileName)
	case err != nil:
		return nil, fmt.Errorf("open config file: %w", err)
	default:
		defer func() {
			_ = file.Close()
		}()
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
	}

	applyEnv(&config, newEnv())
	config.Trading.normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	return v
}

// applyEnv - env перекрывает файл. Имена как у старого деплоя.
func applyEnv(c *Config, v *viper.Viper) {
	stringFromEnv(v, "LOG_LEVEL", &c.LogLevel)

	stringFromEnv(v, "BYBIT_BASE", &c.Bybit.BaseURL)
	stringFromEnv(v, "BYBIT_WS_PRIVATE", &c.Bybit.WSPrivateURL)
	stringFromEnv(v, "BYBIT_KEY", &c.Bybit.APIKey)
	stringFromEnv(v, "BYBIT_SECRET", &c.Bybit.APISecret)
	stringFromEnv(v, "SETTLE_COIN", &c.Bybit.SettleCoin)
	intFromEnv(v, "BYBIT_RECV_WINDOW", &c.Bybit.RecvWindow)
	floatFromEnv(v, "BYBIT_RATE_LIMIT", &c.Bybit.RateLimit)
	boolFromEnv(v, "BYBIT_ORDER_STREAM", &c.Bybit.UseOrderStream)

	stringFromEnv(v, "TELEGRAM_TOKEN", &c.Telegram.Token)
	int64FromEnv(v, "TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	int64FromEnv(v, "ALERT_CHAT_ID", &c.Telegram.AlertChatID)

	stringFromEnv(v, "HTTP_ADDR", &c.Service.HTTPAddr)

	boolFromEnv(v, "JAEGER_ENABLED", &c.Tracing.Enabled)
	stringFromEnv(v, "JAEGER_HOST", &c.Tracing.Host)
	intFromEnv(v, "JAEGER_PORT", &c.Tracing.Port)

	t := &c.Trading
	if s := v.GetString("ALLOWED_TFS"); s != "" {
		t.AllowedTFs = splitList(s)
	}
	if s := v.GetString("TP_SPLITS_THREE"); s != "" {
		t.TPSplits = parseFloatList(s)
	}
	intFromEnv(v, "FIX_LEVERAGE", &t.FixLeverage)
	intFromEnv(v, "MAX_LEV_CAP", &t.MaxLeverageCap)
	floatFromEnv(v, "SAFETY_PCT", &t.SafetyPct)
	minutesFromEnv(v, "COOLDOWN_MIN", &t.Cooldown)
	minutesFromEnv(v, "ENTRY_EXP_MIN", &t.EntryExpiry)
	intFromEnv(v, "MAX_OPEN_LONGS", &t.MaxOpenLongs)
	intFromEnv(v, "MAX_OPEN_SHORTS", &t.MaxOpenShorts)
	stringFromEnv(v, "TEXT_PATH", &t.TextPath)
	floatFromEnv(v, "DEFAULT_NOTIONAL", &t.DefaultNotional)
	if s := v.GetString("DCA_SCALES"); s != "" {
		t.DCAScales = parseFloatList(s)
	}
	floatFromEnv(v, "SL_OVER_DCA3_PCT", &t.SLOverDCA3Pct)
	durationFromEnv(v, "POLL_INTERVAL", &t.PollInterval)
}

// normalize - кривые сплиты/веса не валят процесс, а откатываются к дефолтам.
func (t *Trading) normalize() {
	if len(t.TPSplits) != 3 || sum(t.TPSplits) > 100 || hasNegative(t.TPSplits) {
		t.TPSplits = append([]float64(nil), defaultTPSplits...)
	}
	if len(t.DCAScales) != 4 || t.DCAScales[0] <= 0 || hasNegative(t.DCAScales) {
		t.DCAScales = append([]float64(nil), defaultDCAScales...)
	}
	for i, tf := range t.AllowedTFs {
		t.AllowedTFs[i] = strings.ToUpper(strings.TrimSpace(tf))
	}
	if t.PollInterval <= 0 {
		t.PollInterval = 5 * time.Second
	}
	if t.MaxLeverageCap < 1 {
		t.MaxLeverageCap = 1
	}
}

func (c *Config) Validate() error {
	if c.Trading.DefaultNotional <= 0 {
		return fmt.Errorf("default_notional must be > 0")
	}
	if c.Trading.SafetyPct <= 0 {
		return fmt.Errorf("safety_pct must be > 0")
	}
	if c.Trading.SLOverDCA3Pct < 0 || c.Trading.SLOverDCA3Pct >= 100 {
		return fmt.Errorf("sl_over_dca3_pct must be in [0,100)")
	}
	return nil
}

func stringFromEnv(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func intFromEnv(v *viper.Viper, key string, dst *int) {
	if s := v.GetString(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			*dst = n
		}
	}
}

func int64FromEnv(v *viper.Viper, key string, dst *int64) {
	if s := v.GetString(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			*dst = n
		}
	}
}

func floatFromEnv(v *viper.Viper, key string, dst *float64) {
	if s := v.GetString(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*dst = f
		}
	}
}

func boolFromEnv(v *viper.Viper, key string, dst *bool) {
	switch v.GetString(key) {
	case "1", "true", "TRUE":
		*dst = true
	case "0", "false", "FALSE":
		*dst = false
	}
}

func minutesFromEnv(v *viper.Viper, key string, dst *time.Duration) {
	if s := v.GetString(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			*dst = time.Duration(n) * time.Minute
		}
	}
}

func durationFromEnv(v *viper.Viper, key string, dst *time.Duration) {
	if s := v.GetString(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(strings.ReplaceAll(s, " ", ""), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseFloatList: "30,30,30" -> [30 30 30]; битый элемент делает список пустым,
// чтобы normalize откатил его к дефолту.
func parseFloatList(s string) []float64 {
	parts := splitList(s)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func hasNegative(xs []float64) bool {
	for _, x := range xs {
		if x < 0 {
			return true
		}
	}
	return false
}
