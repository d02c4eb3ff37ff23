package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/member-cart/internal/domain/cart"
	"github.com/xenking/member-cart/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (CART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis URL for cart persistence; in-memory when empty (CART_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Stripe      StripeConfig
	Shipping    ShippingConfig
	Cart        CartConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// StripeConfig configures the hosted checkout collaborator. Checkout answers
// 502 when no API key is set.
type StripeConfig struct {
	APIKey         string `usage:"Stripe secret key" flag:"stripe-api-key"`
	SuccessURL     string `default:"http://localhost:3000/checkout/success" usage:"Redirect after payment" flag:"stripe-success-url"`
	CancelURL      string `default:"http://localhost:3000/cart" usage:"Redirect when the customer abandons checkout" flag:"stripe-cancel-url"`
	MemberCouponID string `usage:"Coupon applied to member checkouts" flag:"stripe-member-coupon"`
}

// ShippingConfig holds money amounts as decimal strings.
type ShippingConfig struct {
	FreeThreshold string `default:"100" usage:"Subtotal from which shipping is free" flag:"shipping-free-threshold"`
	FlatRate      string `default:"9.95" usage:"Shipping charged below the threshold" flag:"shipping-flat-rate"`
}

// Policy parses the configured amounts.
func (c ShippingConfig) Policy() (cart.ShippingPolicy, error) {
	threshold, err := decimal.NewFromString(c.FreeThreshold)
	if err != nil {
		return cart.ShippingPolicy{}, errors.Wrap(err, "parse free shipping threshold")
	}
	rate, err := decimal.NewFromString(c.FlatRate)
	if err != nil {
		return cart.ShippingPolicy{}, errors.Wrap(err, "parse flat shipping rate")
	}
	if threshold.IsNegative() || rate.IsNegative() {
		return cart.ShippingPolicy{}, errors.New("shipping amounts must not be negative")
	}
	return cart.ShippingPolicy{FreeThreshold: threshold, FlatRate: rate}, nil
}

// CartConfig controls ledger storage.
type CartConfig struct {
	Namespace string        `default:"cart-storage" usage:"Storage key prefix for cart ledgers"`
	IdleTTL   time.Duration `default:"30m" usage:"Drop in-memory ledgers idle for this long" flag:"cart-idle-ttl"`
	TTL       time.Duration `default:"720h" usage:"Expire persisted ledgers this long after their last change" flag:"cart-ttl"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CART",
		Files:     []string{"config.yaml", "/etc/cart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CART_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Shipping.Policy(); err != nil {
		return err
	}
	if c.Cart.IdleTTL <= 0 {
		return errors.New("cart idle TTL must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	if err := pricing.ValidateTable(pricing.Tiers); err != nil {
		return errors.Wrap(err, "member price table")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
