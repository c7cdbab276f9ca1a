package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (BOOKHAVEN_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BOOKHAVEN_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Pricing     PricingConfig
	Fulfillment FulfillmentConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PricingConfig controls the tax and shipping knobs of the pricing engine.
type PricingConfig struct {
	TaxRate         string `default:"0.08" usage:"Sales tax rate applied to the taxable base" flag:"tax-rate"`
	FreeShippingMin string `default:"35" usage:"Subtotal threshold for free standard shipping" flag:"free-shipping-min"`
	HomeCountry     string `default:"United States" usage:"Domestic shipping country" flag:"home-country"`
}

// FulfillmentConfig controls return handling policy.
type FulfillmentConfig struct {
	RestockOnReturn bool `default:"false" usage:"Return physical stock to inventory on processed returns" flag:"restock-on-return"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// TaxRateDecimal parses the configured tax rate.
func (c PricingConfig) TaxRateDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse tax rate")
	}
	return d, nil
}

// FreeShippingMinDecimal parses the configured free shipping threshold.
func (c PricingConfig) FreeShippingMinDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.FreeShippingMin)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse free shipping minimum")
	}
	return d, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOOKHAVEN",
		Files:     []string{"config.yaml", "/etc/bookhaven/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set BOOKHAVEN_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BOOKHAVEN_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
