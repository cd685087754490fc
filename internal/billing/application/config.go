package application

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	billing "busway-cloud/internal/billing/domain"
)

// PolicyConfig defines the fee lifecycle policy.
type PolicyConfig struct {
	GraceDays  int     `yaml:"grace_days"`
	DailyRate  float64 `yaml:"daily_rate"`
	FineCap    float64 `yaml:"fine_cap"`
	DueDay     int     `yaml:"due_day"`
	CutoffDays int     `yaml:"cutoff_days"`
	Currency   string  `yaml:"currency"`
}

// LoadPolicyConfig loads the policy from yaml or env. A file referenced by
// BILLING_POLICY_CONFIG overrides the env defaults.
func LoadPolicyConfig() (PolicyConfig, error) {
	cfg := PolicyConfig{
		GraceDays:  getenvIntDefault("BILLING_GRACE_DAYS", 0),
		DailyRate:  getenvFloatDefault("BILLING_DAILY_RATE", 50),
		FineCap:    getenvFloatDefault("BILLING_FINE_CAP", 500),
		DueDay:     getenvIntDefault("BILLING_DUE_DAY", 10),
		CutoffDays: getenvIntDefault("BILLING_CUTOFF_DAYS", 5),
		Currency:   getenvDefault("BILLING_CURRENCY", "INR"),
	}

	if path := os.Getenv("BILLING_POLICY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DailyRate < 0 || cfg.FineCap < 0 {
		return cfg, errors.New("billing policy: negative rate")
	}
	if cfg.DueDay < 1 || cfg.DueDay > 28 {
		return cfg, errors.New("billing policy: due day must be 1..28")
	}
	if cfg.CutoffDays < 1 {
		return cfg, errors.New("billing policy: cutoff days must be positive")
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return cfg, nil
}

// LateFee returns the late fee parameters of the policy.
func (c PolicyConfig) LateFee() billing.LateFeePolicy {
	return billing.LateFeePolicy{
		GraceDays: c.GraceDays,
		DailyRate: c.DailyRate,
		FineCap:   c.FineCap,
	}
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

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
