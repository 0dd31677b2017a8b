// Package config loads application configuration from an optional TOML
// file with environment-variable overrides (AFFLINK_ prefix).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log          LogConfig
	Browser      BrowserConfig
	Amazon       AmazonConfig
	MercadoLivre MercadoLivreConfig
	Shopee       ShopeeConfig
	Product      ProductConfig
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal"`
	Format string `validate:"oneof=json console"`
	Output string
}

// BrowserConfig holds headless-browser settings.
type BrowserConfig struct {
	Headless    bool
	NoSandbox   bool
	UserAgent   string
	NavTimeout  time.Duration `validate:"required"`
	SettleDelay time.Duration
}

// AmazonConfig holds fixed-parameter converter settings. The converter
// is only registered when AssociateTag is set.
type AmazonConfig struct {
	AssociateTag string
	CookieFile   string
}

// MercadoLivreConfig holds session-scraping converter settings.
type MercadoLivreConfig struct {
	CookieFile  string `validate:"required"`
	Tag         string `validate:"required"`
	APIEndpoint string `validate:"url"`
	MinInterval time.Duration
}

// ShopeeConfig holds signed-API converter settings. The converter is
// only registered when both AppID and AppSecret are set.
type ShopeeConfig struct {
	AppID       string
	AppSecret   string
	SubID       string
	APIEndpoint string `validate:"url"`
}

// ProductConfig holds product metadata scraper settings.
type ProductConfig struct {
	Timeout   time.Duration `validate:"required"`
	UserAgent string
}

// Load reads configuration from the given file path (optional; pass ""
// to search the working directory), applies AFFLINK_* environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	v.SetEnvPrefix("AFFLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Browser: BrowserConfig{
			Headless:    v.GetBool("browser.headless"),
			NoSandbox:   v.GetBool("browser.no_sandbox"),
			UserAgent:   v.GetString("browser.user_agent"),
			NavTimeout:  v.GetDuration("browser.nav_timeout"),
			SettleDelay: v.GetDuration("browser.settle_delay"),
		},
		Amazon: AmazonConfig{
			AssociateTag: v.GetString("amazon.associate_tag"),
			CookieFile:   v.GetString("amazon.cookie_file"),
		},
		MercadoLivre: MercadoLivreConfig{
			CookieFile:  v.GetString("mercadolivre.cookie_file"),
			Tag:         v.GetString("mercadolivre.tag"),
			APIEndpoint: v.GetString("mercadolivre.api_endpoint"),
			MinInterval: v.GetDuration("mercadolivre.min_interval"),
		},
		Shopee: ShopeeConfig{
			AppID:       v.GetString("shopee.app_id"),
			AppSecret:   v.GetString("shopee.app_secret"),
			SubID:       v.GetString("shopee.sub_id"),
			APIEndpoint: v.GetString("shopee.api_endpoint"),
		},
		Product: ProductConfig{
			Timeout:   v.GetDuration("product.timeout"),
			UserAgent: v.GetString("product.user_agent"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.user_agent", chromeUA)
	v.SetDefault("browser.nav_timeout", 15*time.Second)
	v.SetDefault("browser.settle_delay", 2*time.Second)

	v.SetDefault("amazon.associate_tag", "")
	v.SetDefault("amazon.cookie_file", "sessions/amazon_cookies.json")

	v.SetDefault("mercadolivre.cookie_file", "sessions/ml_cookies.json")
	v.SetDefault("mercadolivre.tag", "promozonestories")
	v.SetDefault("mercadolivre.api_endpoint", "https://www.mercadolivre.com.br/affiliate-program/api/v2/stripe/user/links")
	v.SetDefault("mercadolivre.min_interval", 2*time.Second)

	v.SetDefault("shopee.app_id", "")
	v.SetDefault("shopee.app_secret", "")
	v.SetDefault("shopee.sub_id", "promozonestories")
	v.SetDefault("shopee.api_endpoint", "https://open-api.affiliate.shopee.com.br/graphql")

	v.SetDefault("product.timeout", 10*time.Second)
	v.SetDefault("product.user_agent", chromeUA)
}
