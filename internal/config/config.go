package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"pricenegotiator/internal/negotiator"
	"pricenegotiator/internal/netx"
)

type Peer struct {
	Host           string `json:"host" toml:"host" yaml:"host"`
	Port           int    `json:"port" toml:"port" yaml:"port"`
	DialTimeoutSec int    `json:"dial_timeout_sec" toml:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	IOTimeoutSec   int    `json:"io_timeout_sec" toml:"io_timeout_sec" yaml:"io_timeout_sec"`
}

type Shopping struct {
	Items []string `json:"items" toml:"items" yaml:"items"`
	// Budget decodes from a bare number or a quoted string in every format.
	// Quote amounts beyond float precision in JSON and YAML.
	Budget   decimal.Decimal `json:"budget" toml:"budget" yaml:"budget"`
	Currency string          `json:"currency" toml:"currency" yaml:"currency"`
}

type Decision struct {
	MaxMarkupPct decimal.Decimal `json:"max_markup_pct" toml:"max_markup_pct" yaml:"max_markup_pct"`
	OnMalformed  string          `json:"on_malformed" toml:"on_malformed" yaml:"on_malformed"`
}

type Pacing struct {
	PauseMs             int `json:"pause_ms" toml:"pause_ms" yaml:"pause_ms"`
	MaxQueriesPerMinute int `json:"max_queries_per_minute" toml:"max_queries_per_minute" yaml:"max_queries_per_minute"`
	Burst               int `json:"burst" toml:"burst" yaml:"burst"`
}

type StaticCache struct {
	TTLSec   int `json:"ttl_sec" toml:"ttl_sec" yaml:"ttl_sec"`
	MaxItems int `json:"max_items" toml:"max_items" yaml:"max_items"`
}

type Log struct {
	Level  string `json:"level" toml:"level" yaml:"level"`
	Format string `json:"format" toml:"format" yaml:"format"`
}

type Config struct {
	Peer        Peer        `json:"peer" toml:"peer" yaml:"peer"`
	Shopping    Shopping    `json:"shopping" toml:"shopping" yaml:"shopping"`
	Decision    Decision    `json:"decision" toml:"decision" yaml:"decision"`
	Pacing      Pacing      `json:"pacing" toml:"pacing" yaml:"pacing"`
	StaticCache StaticCache `json:"static_cache" toml:"static_cache" yaml:"static_cache"`
	Log         Log         `json:"log" toml:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		Peer: Peer{Host: "localhost", Port: 5555, DialTimeoutSec: 3},
		Shopping: Shopping{
			Items:    []string{"laptop", "smartphone", "headphones"},
			Budget:   decimal.NewFromInt(30000000),
			Currency: "IDR",
		},
		Decision:    Decision{MaxMarkupPct: decimal.NewFromInt(10), OnMalformed: "abort"},
		Pacing:      Pacing{PauseMs: 1000, Burst: 1},
		StaticCache: StaticCache{MaxItems: 1000},
		Log:         Log{Level: "info", Format: "console"},
	}
}

// Load reads the config file at path, picking the decoder by extension
// (.json, .toml, .yaml, .yml). If path is empty or the file does not exist,
// it returns defaults. Environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := decode(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		return json.Unmarshal(b, cfg)
	case ".toml":
		_, err := toml.Decode(string(b), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("NEGOTIATOR_HOST"); v != "" {
		cfg.Peer.Host = v
	}
	var errs []error
	intEnv := func(key string, min int, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		x, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || x < min {
			errs = append(errs, fmt.Errorf("%s: invalid value %q", key, v))
			return
		}
		*dst = x
	}
	intEnv("NEGOTIATOR_PORT", 1, &cfg.Peer.Port)
	intEnv("NEGOTIATOR_DIAL_TIMEOUT_SEC", 0, &cfg.Peer.DialTimeoutSec)
	intEnv("NEGOTIATOR_IO_TIMEOUT_SEC", 0, &cfg.Peer.IOTimeoutSec)
	intEnv("NEGOTIATOR_PAUSE_MS", 0, &cfg.Pacing.PauseMs)
	intEnv("NEGOTIATOR_MAX_QPM", 0, &cfg.Pacing.MaxQueriesPerMinute)
	intEnv("NEGOTIATOR_BURST", 1, &cfg.Pacing.Burst)
	intEnv("NEGOTIATOR_STATIC_CACHE_TTL_SEC", 0, &cfg.StaticCache.TTLSec)

	if v := os.Getenv("NEGOTIATOR_ITEMS"); v != "" {
		cfg.Shopping.Items = SplitCSV(v)
	}
	decEnv := func(key string, dst *decimal.Decimal) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		x, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid value %q", key, v))
			return
		}
		*dst = x
	}
	decEnv("NEGOTIATOR_BUDGET", &cfg.Shopping.Budget)
	decEnv("NEGOTIATOR_MAX_MARKUP_PCT", &cfg.Decision.MaxMarkupPct)

	if v := os.Getenv("NEGOTIATOR_CURRENCY"); v != "" {
		cfg.Shopping.Currency = v
	}
	if v := os.Getenv("NEGOTIATOR_ON_MALFORMED"); v != "" {
		cfg.Decision.OnMalformed = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Peer.Host) == "" {
		errs = append(errs, errors.New("peer host is empty"))
	}
	if c.Peer.Port < 1 || c.Peer.Port > 65535 {
		errs = append(errs, fmt.Errorf("peer port %d out of range", c.Peer.Port))
	}
	if len(c.Shopping.Items) == 0 {
		errs = append(errs, errors.New("no items to evaluate"))
	}
	for _, it := range c.Shopping.Items {
		if strings.TrimSpace(it) == "" || strings.ContainsAny(it, ":\r\n") {
			errs = append(errs, fmt.Errorf("item %q cannot be sent on the wire", it))
		}
	}
	if !c.Shopping.Budget.IsPositive() {
		errs = append(errs, fmt.Errorf("budget must be positive, got %s", c.Shopping.Budget))
	}
	if c.Decision.MaxMarkupPct.IsNegative() {
		errs = append(errs, fmt.Errorf("max markup must not be negative, got %s", c.Decision.MaxMarkupPct))
	}
	if _, err := c.MalformedPolicy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Rule turns the markup percentage into a decision rule.
func (c Config) Rule() negotiator.Rule {
	return negotiator.Rule{MaxMarkup: c.Decision.MaxMarkupPct.Div(decimal.NewFromInt(100))}
}

func (c Config) MalformedPolicy() (negotiator.MalformedPolicy, error) {
	return negotiator.ParseMalformedPolicy(c.Decision.OnMalformed)
}

func (c Config) Addr() string { return netx.Addr(c.Peer.Host, c.Peer.Port) }

func (c Config) DialTimeout() time.Duration {
	return time.Duration(c.Peer.DialTimeoutSec) * time.Second
}

func (c Config) IOTimeout() time.Duration {
	return time.Duration(c.Peer.IOTimeoutSec) * time.Second
}

func (c Config) Pause() time.Duration {
	return time.Duration(c.Pacing.PauseMs) * time.Millisecond
}

func (c Config) StaticCacheTTL() time.Duration {
	return time.Duration(c.StaticCache.TTLSec) * time.Second
}

func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
