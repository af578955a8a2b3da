// Package config loads server and billing settings from an optional YAML file
// named by BILLING_CONFIG, overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr    string        `yaml:"http_addr"`
	DatabaseURL string        `yaml:"database_url"`
	JWTSecret   string        `yaml:"jwt_secret"`
	LogLevel    string        `yaml:"log_level"`
	Timezone    string        `yaml:"timezone"`
	Billing     BillingConfig `yaml:"billing"`
	Outbox      OutboxConfig  `yaml:"outbox"`
	Kafka       KafkaConfig   `yaml:"kafka"`
}

// BillingConfig holds metering and billing policy.
type BillingConfig struct {
	WindowOpenDay             int    `yaml:"window_open_day"`
	WindowCloseDay            int    `yaml:"window_close_day"`
	GracePeriodMonths         int    `yaml:"grace_period_months"`
	OverdueAfterDays          int    `yaml:"overdue_after_days"`
	BaselineLookbackMonths    int    `yaml:"baseline_lookback_months"`
	SignificantDeltaThreshold string `yaml:"significant_delta_threshold"`
}

// OutboxConfig controls the dispatch loop.
type OutboxConfig struct {
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	BatchSize        int           `yaml:"batch_size"`
}

// KafkaConfig enables the event relay when Brokers is set.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	ClientID     string   `yaml:"client_id"`
	RequiredAcks string   `yaml:"required_acks"`
	Compression  string   `yaml:"compression"`
}

// Enabled reports whether a relay should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Timezone: "UTC",
		Billing: BillingConfig{
			WindowOpenDay:          1,
			WindowCloseDay:         31,
			GracePeriodMonths:      1,
			OverdueAfterDays:       30,
			BaselineLookbackMonths: 1,
		},
		Outbox: OutboxConfig{
			DispatchInterval: 5 * time.Second,
			BatchSize:        100,
		},
		Kafka: KafkaConfig{
			Topic:        "water-billing.events",
			ClientID:     "water-billing",
			RequiredAcks: "all",
		},
	}
}

// Load reads defaults, then the YAML file, then environment overrides, and
// validates the result.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.overlayEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) overlayEnv() {
	c.HTTPAddr = getenvDefault("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", c.DatabaseURL))
	c.JWTSecret = getenvDefault("AUTH_JWT_SECRET", c.JWTSecret)
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.Timezone = getenvDefault("BILLING_TIMEZONE", c.Timezone)

	c.Billing.WindowOpenDay = getenvIntDefault("BILLING_WINDOW_OPEN_DAY", c.Billing.WindowOpenDay)
	c.Billing.WindowCloseDay = getenvIntDefault("BILLING_WINDOW_CLOSE_DAY", c.Billing.WindowCloseDay)
	c.Billing.GracePeriodMonths = getenvIntDefault("BILLING_GRACE_PERIOD_MONTHS", c.Billing.GracePeriodMonths)
	c.Billing.OverdueAfterDays = getenvIntDefault("BILLING_OVERDUE_AFTER_DAYS", c.Billing.OverdueAfterDays)
	c.Billing.BaselineLookbackMonths = getenvIntDefault("BILLING_BASELINE_LOOKBACK_MONTHS", c.Billing.BaselineLookbackMonths)
	c.Billing.SignificantDeltaThreshold = getenvDefault("BILLING_SIGNIFICANT_DELTA", c.Billing.SignificantDeltaThreshold)

	c.Outbox.DispatchInterval = getenvDuration("OUTBOX_DISPATCH_INTERVAL", c.Outbox.DispatchInterval)
	c.Outbox.BatchSize = getenvIntDefault("OUTBOX_BATCH_SIZE", c.Outbox.BatchSize)

	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		c.Kafka.Brokers = brokers
	}
	c.Kafka.Topic = getenvDefault("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.ClientID = getenvDefault("KAFKA_CLIENT_ID", c.Kafka.ClientID)
	c.Kafka.RequiredAcks = getenvDefault("KAFKA_REQUIRED_ACKS", c.Kafka.RequiredAcks)
	c.Kafka.Compression = getenvDefault("KAFKA_COMPRESSION", c.Kafka.Compression)
}

// Validate checks ranges and formats.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("config: http_addr required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("config: timezone %q: %w", c.Timezone, err))
	}
	b := c.Billing
	if b.WindowOpenDay < 1 || b.WindowOpenDay > 31 || b.WindowCloseDay < 1 || b.WindowCloseDay > 31 {
		errs = append(errs, errors.New("config: window days must be within 1..31"))
	} else if b.WindowOpenDay > b.WindowCloseDay {
		errs = append(errs, errors.New("config: window_open_day after window_close_day"))
	}
	if b.GracePeriodMonths < 0 {
		errs = append(errs, errors.New("config: grace_period_months must not be negative"))
	}
	if b.OverdueAfterDays < 0 {
		errs = append(errs, errors.New("config: overdue_after_days must not be negative"))
	}
	if b.BaselineLookbackMonths < 1 {
		errs = append(errs, errors.New("config: baseline_lookback_months must be at least 1"))
	}
	if _, err := c.SignificantDelta(); err != nil {
		errs = append(errs, err)
	}
	if c.Outbox.DispatchInterval <= 0 {
		errs = append(errs, errors.New("config: outbox dispatch_interval must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("config: outbox batch_size must be positive"))
	}
	return errors.Join(errs...)
}

// Location returns the billing time zone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// OverdueAfter returns the overdue grace as a duration.
func (c Config) OverdueAfter() time.Duration {
	return time.Duration(c.Billing.OverdueAfterDays) * 24 * time.Hour
}

// SignificantDelta parses the warning threshold. Empty means disabled (zero).
func (c Config) SignificantDelta() (decimal.Decimal, error) {
	value := strings.TrimSpace(c.Billing.SignificantDeltaThreshold)
	if value == "" {
		return decimal.Zero, nil
	}
	threshold, err := decimal.NewFromString(value)
	if err != nil || threshold.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: significant_delta_threshold %q is not a non-negative number", value)
	}
	return threshold, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
