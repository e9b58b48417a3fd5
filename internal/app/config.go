package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/b2b-pricing/internal/validate"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the service configuration, loadable from environment variables
// (PRICING_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PRICING_DATABASE_URL or DATABASE_URL)" flag:"database-url" validate:"required"`
	Cache       CacheConfig
	Batch       BatchConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CacheConfig selects and tunes the price result cache.
type CacheConfig struct {
	Backend         string        `default:"memory" usage:"Result cache backend: memory, redis or none" validate:"oneof=memory redis none"`
	TTL             time.Duration `default:"30s" usage:"Lifetime of cached results" validate:"gt=0"`
	CleanupInterval time.Duration `default:"1m" usage:"Sweep interval of the memory cache" validate:"gt=0"`
	RedisURL        string        `usage:"Redis URL (PRICING_CACHE_REDIS_URL or REDIS_URL)" flag:"redis-url" validate:"required_if=Backend redis"`
}

// BatchConfig bounds batch price requests.
type BatchConfig struct {
	MaxItems    int `default:"100" usage:"Max items per batch request" validate:"gt=0"`
	Concurrency int `default:"8" usage:"Calculations running at once per batch request" validate:"gt=0"`
}

// RateLimitConfig controls the per-client token bucket. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `default:"50" usage:"Sustained requests per second per client" validate:"gte=0"`
	Burst int     `default:"100" usage:"Burst size per client" validate:"gte=0"`

	// TrustedProxies are CIDRs or addresses whose X-Forwarded-For is believed.
	TrustedProxies []string `usage:"Proxies allowed to set X-Forwarded-For (CIDR or IP)" flag:"trusted-proxies"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "PRICING",
		Files:     []string{"config.yaml", "/etc/pricing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables hosting platforms
// provide (DATABASE_URL, REDIS_URL, PORT) onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
