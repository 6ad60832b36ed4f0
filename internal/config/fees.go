package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FeePolicy controls how the platform fee is carved out of a tip.
type FeePolicy struct {
	// PlatformFeePercent is taken from every tip, floored to whole units.
	PlatformFeePercent float64 `mapstructure:"platformFeePercent"`
	// GuestPaysFee adds the fee on top of the tip instead of deducting it.
	GuestPaysFee bool `mapstructure:"guestPaysFee"`
	// MinAmount and MaxAmount bound a single tip, in minor currency units.
	MinAmount int64 `mapstructure:"minAmount"`
	MaxAmount int64 `mapstructure:"maxAmount"`
}

func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		PlatformFeePercent: 5,
		GuestPaysFee:       false,
		MinAmount:          1_000,
		MaxAmount:          10_000_000,
	}
}

// FeePolicyHolder serves the current policy and hot-reloads fees.yml
// edits without a restart.
type FeePolicyHolder struct {
	current atomic.Value // holds FeePolicy
}

func NewFeePolicyHolder() (*FeePolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("fees")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tipdrop/config")
	v.AddConfigPath("/etc/tipdrop")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TIPDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultFeePolicy()
		v.SetDefault("fees.platformFeePercent", defaults.PlatformFeePercent)
		v.SetDefault("fees.guestPaysFee", defaults.GuestPaysFee)
		v.SetDefault("fees.minAmount", defaults.MinAmount)
		v.SetDefault("fees.maxAmount", defaults.MaxAmount)
	}

	var policy FeePolicy
	if err := v.UnmarshalKey("fees", &policy); err != nil {
		return nil, err
	}
	if err := validateFeePolicy(policy); err != nil {
		return nil, err
	}

	holder := &FeePolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FeePolicy
		if err := v.UnmarshalKey("fees", &updated); err != nil {
			log.Printf("[fee-policy] reload failed: %v", err)
			return
		}
		if err := validateFeePolicy(updated); err != nil {
			log.Printf("[fee-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fee-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// StaticFeePolicyHolder pins a policy without reading fees.yml. Used when
// the caller owns the policy, such as tests.
func StaticFeePolicyHolder(policy FeePolicy) *FeePolicyHolder {
	holder := &FeePolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func (h *FeePolicyHolder) Get() FeePolicy {
	return h.current.Load().(FeePolicy)
}

func validateFeePolicy(policy FeePolicy) error {
	if policy.PlatformFeePercent < 0 || policy.PlatformFeePercent > 100 {
		return errors.New("fees.platformFeePercent must be between 0 and 100")
	}
	if policy.MinAmount < 0 {
		return errors.New("fees.minAmount cannot be negative")
	}
	if policy.MaxAmount > 0 && policy.MaxAmount < policy.MinAmount {
		return errors.New("fees.maxAmount cannot be below fees.minAmount")
	}
	return nil
}
