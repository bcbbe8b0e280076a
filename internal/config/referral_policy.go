package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReferralTierPolicy holds the default code policy applied when a code is
// issued for a tier and the request does not override it.
type ReferralTierPolicy struct {
	Tier                    string  `mapstructure:"tier"`
	DiscountType            string  `mapstructure:"discountType"`
	DiscountAmountCents     int64   `mapstructure:"discountAmountCents"`
	DiscountPercent         float64 `mapstructure:"discountPercent"`
	RewardType              string  `mapstructure:"rewardType"`
	RewardAmountCents       int64   `mapstructure:"rewardAmountCents"`
	RewardPercent           float64 `mapstructure:"rewardPercent"`
	RewardTrigger           string  `mapstructure:"rewardTrigger"`
	MaxRewardTotalCents     *int64  `mapstructure:"maxRewardTotalCents"`
	MaxRewardPerPeriodCents *int64  `mapstructure:"maxRewardPerPeriodCents"`
	RewardPeriodDays        *int    `mapstructure:"rewardPeriodDays"`
}

type ReferralPolicyConfig struct {
	Tiers []ReferralTierPolicy `mapstructure:"tiers"`
}

func DefaultReferralPolicyConfig() ReferralPolicyConfig {
	cap100 := int64(100_00)
	period := 30
	return ReferralPolicyConfig{
		Tiers: []ReferralTierPolicy{
			{
				Tier:                    "standard",
				DiscountType:            "percent",
				DiscountPercent:         10,
				RewardType:              "fixed",
				RewardAmountCents:       25_00,
				RewardTrigger:           "first",
				MaxRewardTotalCents:     &cap100,
				MaxRewardPerPeriodCents: nil,
				RewardPeriodDays:        &period,
			},
			{
				Tier:            "friends_family",
				DiscountType:    "percent",
				DiscountPercent: 50,
				RewardType:      "none",
				RewardTrigger:   "first",
			},
			{
				Tier:              "affiliate",
				DiscountType:      "percent",
				DiscountPercent:   10,
				RewardType:        "percent",
				RewardPercent:     7,
				RewardTrigger:     "every",
				RewardPeriodDays:  &period,
			},
		},
	}
}

// ReferralPolicyHolder serves the current referral tier policy and hot
// reloads it when the config file changes.
type ReferralPolicyHolder struct {
	current atomic.Value // holds ReferralPolicyConfig
}

func NewReferralPolicyHolder() (*ReferralPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("referral")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/pagescope/config")
	v.AddConfigPath("/etc/pagescope")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAGESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultReferralPolicyConfig()
		v.SetDefault("referral.tiers", defaults.Tiers)
	}

	var cfg ReferralPolicyConfig
	if err := v.UnmarshalKey("referral", &cfg); err != nil {
		return nil, err
	}
	if err := validateReferralPolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReferralPolicyHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReferralPolicyConfig
		if err := v.UnmarshalKey("referral", &updated); err != nil {
			log.Printf("[referral-config] reload failed: %v", err)
			return
		}
		if err := validateReferralPolicyConfig(updated); err != nil {
			log.Printf("[referral-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[referral-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ReferralPolicyHolder) Get() ReferralPolicyConfig {
	return h.current.Load().(ReferralPolicyConfig)
}

// TierPolicy returns the policy for a tier, falling back to built-in
// defaults when the tier is not present in the loaded config.
func (h *ReferralPolicyHolder) TierPolicy(tier string) (ReferralTierPolicy, bool) {
	for _, p := range h.Get().Tiers {
		if p.Tier == tier {
			return p, true
		}
	}
	for _, p := range DefaultReferralPolicyConfig().Tiers {
		if p.Tier == tier {
			return p, true
		}
	}
	return ReferralTierPolicy{}, false
}

func validateReferralPolicyConfig(cfg ReferralPolicyConfig) error {
	if len(cfg.Tiers) == 0 {
		return errors.New("referral.tiers cannot be empty")
	}
	for _, p := range cfg.Tiers {
		switch p.Tier {
		case "standard", "friends_family", "affiliate":
		default:
			return errors.New("referral.tiers contains unknown tier " + p.Tier)
		}
		switch p.RewardType {
		case "fixed", "percent", "none":
		default:
			return errors.New("referral tier " + p.Tier + " has invalid rewardType")
		}
	}
	return nil
}
