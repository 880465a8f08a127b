package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/invoicely/invoicely/internal/currency"
)

// FileName is the project configuration file at the project root.
const FileName = "invoicely.yaml"

// Rate source kinds.
const (
	RateSourceFile = "file"
	RateSourceHTTP = "http"
)

// Config represents the top-level invoicely.yaml configuration.
type Config struct {
	Business BusinessConfig `yaml:"business"`
	Invoice  InvoiceConfig  `yaml:"invoice"`
	Rates    RatesConfig    `yaml:"rates"`
	Git      GitConfig      `yaml:"git"`
}

// BusinessConfig identifies who invoices are billed from.
type BusinessConfig struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email,omitempty"`
	Address string `yaml:"address,omitempty"`
}

// InvoiceConfig seeds new drafts.
type InvoiceConfig struct {
	Currency     string `yaml:"currency"`
	TaxRate      string `yaml:"tax_rate,omitempty"`
	DiscountRate string `yaml:"discount_rate,omitempty"`
	Notes        string `yaml:"notes,omitempty"`
}

// RatesConfig selects where exchange rates come from.
type RatesConfig struct {
	Source  string `yaml:"source"`         // "file" or "http"
	Path    string `yaml:"path,omitempty"` // relative to the project root
	URL     string `yaml:"url,omitempty"`
	Timeout string `yaml:"timeout,omitempty"` // Go duration, e.g. "10s"
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads an invoicely.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks currency and rate source settings.
func (c *Config) Validate() error {
	if c.Invoice.Currency != "" {
		if _, err := currency.Parse(c.Invoice.Currency); err != nil {
			return fmt.Errorf("invoice.currency: %w", err)
		}
	}
	switch c.Rates.Source {
	case "", RateSourceFile:
	case RateSourceHTTP:
		if c.Rates.URL == "" {
			return fmt.Errorf("rates.url is required for the http source")
		}
	default:
		return fmt.Errorf("unknown rates.source %q", c.Rates.Source)
	}
	if c.Rates.Timeout != "" {
		if _, err := time.ParseDuration(c.Rates.Timeout); err != nil {
			return fmt.Errorf("rates.timeout: %w", err)
		}
	}
	return nil
}

// DefaultCurrency returns the configured currency for new drafts, USD if unset.
func (c *Config) DefaultCurrency() currency.Code {
	code, err := currency.Parse(c.Invoice.Currency)
	if err != nil {
		return currency.USD
	}
	return code
}

// RatesTimeout returns how long to wait for exchange rates.
func (c *Config) RatesTimeout() time.Duration {
	d, err := time.ParseDuration(c.Rates.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Default returns a Config with sensible defaults for a new project.
func Default(businessName, email string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:  businessName,
			Email: email,
		},
		Invoice: InvoiceConfig{
			Currency: string(currency.USD),
			Notes:    "Thanks for your business!",
		},
		Rates: RatesConfig{
			Source:  RateSourceFile,
			Path:    "rates.yaml",
			Timeout: "10s",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Invoicely",
			AuthorEmail: "bot@invoicely.dev",
		},
	}
}
