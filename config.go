package reqstrategy

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// EnvPrefix prefixes every environment variable LoadConfig reads, e.g.
// REQSTRATEGY_RETRY_MAXATTEMPTS
const EnvPrefix = "REQSTRATEGY_"

// Config describes a strategy, its connection pool and its retry policy
type Config struct {
	Timeout   TimeoutConfig   `koanf:"timeout"`
	Pool      PoolConfig      `koanf:"pool"`
	Retry     RetryConfig     `koanf:"retry"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Log       LogConfig       `koanf:"log"`
}

// TimeoutConfig is the overall timeout of the client. Per-call timeouts are given
// to Request through Params.
type TimeoutConfig struct {
	Client time.Duration `koanf:"client" validate:"gte=0"`
}

// PoolConfig tunes the pooled transport from go-cleanhttp. Zero values keep its
// defaults.
type PoolConfig struct {
	MaxIdleConns        int           `koanf:"maxidleconns" validate:"gte=0"`
	MaxIdleConnsPerHost int           `koanf:"maxidleconnsperhost" validate:"gte=0"`
	IdleConnTimeout     time.Duration `koanf:"idleconntimeout" validate:"gte=0"`
}

// RetryConfig builds a Policy with a random exponential wait. The defaults are
// those of RateLimitPolicy.
type RetryConfig struct {
	Enabled           bool          `koanf:"enabled"`
	MaxAttempts       uint          `koanf:"maxattempts" validate:"min=1"`
	Multiplier        time.Duration `koanf:"multiplier" validate:"gte=0"`
	MaxWait           time.Duration `koanf:"maxwait" validate:"gtefield=Multiplier"`
	Statuses          []int         `koanf:"statuses" validate:"required,dive,gte=100,lte=599"`
	RespectRetryAfter bool          `koanf:"respectretryafter"`
	FailOnExhaustion  bool          `koanf:"failonexhaustion"`
}

// RateLimitConfig enables a client-side limiter when RequestsPerSecond is set.
// Airtable allows 5 requests per second per base.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requestspersecond" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`
}

// LogConfig sets the zerolog level; "disabled" turns logging off
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
}

func defaults() map[string]any {
	return map[string]any{
		"timeout.client":              time.Duration(0),
		"pool.maxidleconns":           0,
		"pool.maxidleconnsperhost":    0,
		"pool.idleconntimeout":        time.Duration(0),
		"retry.enabled":               true,
		"retry.maxattempts":           3,
		"retry.multiplier":            30 * time.Second,
		"retry.maxwait":               480 * time.Second,
		"retry.statuses":              []int{http.StatusTooManyRequests},
		"retry.respectretryafter":     false,
		"retry.failonexhaustion":      false,
		"ratelimit.requestspersecond": 0.0,
		"ratelimit.burst":             1,
		"log.level":                   "disabled",
	}
}

// LoadConfig loads configuration, lowest priority first, from defaults, the YAML
// file at path (skipped when path is empty) and REQSTRATEGY_ environment variables
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".")
			if key == "retry.statuses" {
				return key, strings.Split(value, ",")
			}

			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every field of c
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ConfigError{Reason: err.Error(), Err: ErrInvalidConfig}
	}

	return nil
}

// Policy returns the retry policy described by c
func (c RetryConfig) Policy() Policy {
	return Policy{
		MaxAttempts:       c.MaxAttempts,
		Wait:              RandomExponentialWait(c.Multiplier, c.MaxWait),
		RetryIf:           RetryOnStatus(c.Statuses...),
		RespectRetryAfter: c.RespectRetryAfter,
		FailOnExhaustion:  c.FailOnExhaustion,
	}
}

// Build returns the strategy c describes: a RetryingStrategy when retries are
// enabled, a SimpleStrategy otherwise. opts are applied after, and so override,
// the options derived from c.
func (c *Config) Build(opts ...Option) (Strategy, error) {
	all := append(c.options(), opts...)

	if !c.Retry.Enabled {
		return NewSimple(all...), nil
	}

	p := c.Retry.Policy()

	return NewRetrying(&p, all...)
}

func (c *Config) options() []Option {
	transport := cleanhttp.DefaultPooledTransport()

	if c.Pool.MaxIdleConns > 0 {
		transport.MaxIdleConns = c.Pool.MaxIdleConns
	}

	if c.Pool.MaxIdleConnsPerHost > 0 {
		transport.MaxIdleConnsPerHost = c.Pool.MaxIdleConnsPerHost
	}

	if c.Pool.IdleConnTimeout > 0 {
		transport.IdleConnTimeout = c.Pool.IdleConnTimeout
	}

	opts := []Option{
		WithClient(&http.Client{Transport: transport, Timeout: c.Timeout.Client}),
		WithLogger(c.Log.logger()),
	}

	if c.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, WithLimiter(rate.NewLimiter(rate.Limit(c.RateLimit.RequestsPerSecond), max(c.RateLimit.Burst, 1))))
	}

	return opts
}

func (c LogConfig) logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || level == zerolog.Disabled {
		return zerolog.Nop()
	}

	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
