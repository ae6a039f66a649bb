package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingDefaults are the system-level fallbacks applied when a user has no
// explicit setting of their own.
type BillingDefaults struct {
	Currency            string `mapstructure:"currency"`
	FollowUpDays        int    `mapstructure:"followUpDays"`
	InvoiceReminderDays int    `mapstructure:"invoiceReminderDays"`
}

func DefaultBillingDefaults() BillingDefaults {
	return BillingDefaults{
		Currency:            "EUR",
		FollowUpDays:        3,
		InvoiceReminderDays: 7,
	}
}

// BillingDefaultsHolder exposes the current billing defaults and hot-reloads
// them when the backing config file changes.
type BillingDefaultsHolder struct {
	current atomic.Value // holds BillingDefaults
}

func NewBillingDefaultsHolder() (*BillingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/backoffice")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingDefaults()
	v.SetDefault("billing.currency", defaults.Currency)
	v.SetDefault("billing.followUpDays", defaults.FollowUpDays)
	v.SetDefault("billing.invoiceReminderDays", defaults.InvoiceReminderDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingDefaults
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingDefaults
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-defaults] reload failed: %v", err)
			return
		}
		if err := validateBillingDefaults(updated); err != nil {
			log.Printf("[billing-defaults] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-defaults] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingDefaultsHolder returns a holder pinned to cfg, with no
// file watching. Used by tests and one-off tooling.
func NewStaticBillingDefaultsHolder(cfg BillingDefaults) *BillingDefaultsHolder {
	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingDefaultsHolder) Get() BillingDefaults {
	if v, ok := h.current.Load().(BillingDefaults); ok {
		return v
	}
	return DefaultBillingDefaults()
}

func validateBillingDefaults(cfg BillingDefaults) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("billing.currency cannot be empty")
	}
	if cfg.FollowUpDays < 0 {
		return errors.New("billing.followUpDays cannot be negative")
	}
	if cfg.InvoiceReminderDays < 0 {
		return errors.New("billing.invoiceReminderDays cannot be negative")
	}
	return nil
}
