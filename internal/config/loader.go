package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path (skipped when path is empty) on top of
// the defaults and applies RAFFLE_* environment overrides. The returned
// Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Raffle ──
	setStr(&cfg.Raffle.Deployer, "RAFFLE_DEPLOYER")
	setStr(&cfg.Raffle.EntranceFee, "RAFFLE_ENTRANCE_FEE")
	setDuration(&cfg.Raffle.Interval, "RAFFLE_INTERVAL")
	setStr(&cfg.Raffle.KeyHash, "RAFFLE_KEY_HASH")
	setInt(&cfg.Raffle.SubscriptionID, "RAFFLE_SUBSCRIPTION_ID")
	setInt(&cfg.Raffle.CallbackGasLimit, "RAFFLE_CALLBACK_GAS_LIMIT")
	setInt(&cfg.Raffle.RequestConfirmations, "RAFFLE_REQUEST_CONFIRMATIONS")
	setInt(&cfg.Raffle.NumWords, "RAFFLE_NUM_WORDS")

	// ── VRF ──
	setStr(&cfg.VRF.BaseFee, "RAFFLE_VRF_BASE_FEE")
	setStr(&cfg.VRF.GasPriceLink, "RAFFLE_VRF_GAS_PRICE_LINK")
	setStr(&cfg.VRF.Funding, "RAFFLE_VRF_FUNDING")
	setDuration(&cfg.VRF.FulfillmentDelay, "RAFFLE_VRF_FULFILLMENT_DELAY")

	// ── Keeper ──
	setStr(&cfg.Keeper.Address, "RAFFLE_KEEPER_ADDRESS")
	setDuration(&cfg.Keeper.Period, "RAFFLE_KEEPER_PERIOD")

	// ── Storage, metrics, log ──
	setStr(&cfg.Storage.Path, "RAFFLE_STORAGE_PATH")
	setStr(&cfg.Metrics.Addr, "RAFFLE_METRICS_ADDR")
	setStr(&cfg.Log.File, "RAFFLE_LOG_FILE")
	setStr(&cfg.Log.ErrorFile, "RAFFLE_LOG_ERROR_FILE")
	setStr(&cfg.Log.Level, "RAFFLE_LOG_LEVEL")
	setBool(&cfg.Log.Console, "RAFFLE_LOG_CONSOLE")
}

// Each helper only mutates the target when the environment variable is
// present and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
