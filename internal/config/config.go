package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AdminKey    string `mapstructure:"ADMIN_KEY"`
	CORSAllowed string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	// Assignment tunables, all externally adjustable without code changes.
	MismatchPenaltySec       float64       `mapstructure:"MISMATCH_PENALTY_SEC"`
	LoadPenaltyWeightSec     float64       `mapstructure:"LOAD_PENALTY_WEIGHT_SEC"`
	DefaultServiceTimeSec    float64       `mapstructure:"DEFAULT_SERVICE_TIME_SEC"`
	ShiftPenaltyThresholdSec float64       `mapstructure:"SHIFT_PENALTY_THRESHOLD_SEC"`
	ShiftPenaltySec          float64       `mapstructure:"SHIFT_PENALTY_SEC"`
	MaxParallelWaiting       int           `mapstructure:"MAX_PARALLEL_WAITING"`
	RebalanceInterval        time.Duration `mapstructure:"REBALANCE_INTERVAL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// The mismatch penalty must dominate realistic wait and load terms so a
	// specialty match is only ever beaten inside the configured range.
	v.SetDefault("MISMATCH_PENALTY_SEC", 3600.0)
	v.SetDefault("LOAD_PENALTY_WEIGHT_SEC", 600.0)
	v.SetDefault("DEFAULT_SERVICE_TIME_SEC", 900.0)
	v.SetDefault("SHIFT_PENALTY_THRESHOLD_SEC", 1800.0)
	v.SetDefault("SHIFT_PENALTY_SEC", 1200.0)
	v.SetDefault("MAX_PARALLEL_WAITING", 3)
	v.SetDefault("REBALANCE_INTERVAL", "60s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
