// Package config defines the configuration of the raffle oracle daemon and
// provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lottery/internal/logger"
	"lottery/internal/raffle"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RAFFLE_* environment variables.
type Config struct {
	Raffle  RaffleConfig  `toml:"raffle"`
	VRF     VRFConfig     `toml:"vrf"`
	Keeper  KeeperConfig  `toml:"keeper"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
	Log     LogConfig     `toml:"log"`
}

// RaffleConfig holds the deployment parameters of the raffle contract.
// Amounts are decimal strings in wei.
type RaffleConfig struct {
	Deployer             string   `toml:"deployer"`
	EntranceFee          string   `toml:"entrance_fee"`
	Interval             duration `toml:"interval"`
	KeyHash              string   `toml:"key_hash"`
	SubscriptionID       int      `toml:"subscription_id"`
	CallbackGasLimit     int      `toml:"callback_gas_limit"`
	RequestConfirmations int      `toml:"request_confirmations"`
	NumWords             int      `toml:"num_words"`
}

// VRFConfig holds the parameters of the local coordinator mock and of the
// node answering it.
type VRFConfig struct {
	BaseFee          string   `toml:"base_fee"`
	GasPriceLink     string   `toml:"gas_price_link"`
	Funding          string   `toml:"funding"`
	FulfillmentDelay duration `toml:"fulfillment_delay"`
}

type KeeperConfig struct {
	Address string   `toml:"address"`
	Period  duration `toml:"period"`
}

type StorageConfig struct {
	Path string `toml:"path"`
}

// MetricsConfig holds the Prometheus listener. An empty address disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	File      string `toml:"file"`
	ErrorFile string `toml:"error_file"`
	Level     string `toml:"level"`
	Console   bool   `toml:"console"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		Raffle: RaffleConfig{
			Deployer:             "0x00000000000000000000000000000000000de910",
			EntranceFee:          "10000000000000000",
			Interval:             duration{30 * time.Second},
			KeyHash:              "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c",
			CallbackGasLimit:     500_000,
			RequestConfirmations: int(raffle.DefaultRequestConfirmations),
			NumWords:             int(raffle.DefaultNumWords),
		},
		VRF: VRFConfig{
			BaseFee:          "250000000000000000",
			GasPriceLink:     "1000000000",
			Funding:          "10000000000000000000",
			FulfillmentDelay: duration{2 * time.Second},
		},
		Keeper: KeeperConfig{
			Address: "0x000000000000000000000000000000000000cee9",
			Period:  duration{5 * time.Second},
		},
		Storage: StorageConfig{
			Path: "raffle.db",
		},
		Metrics: MetricsConfig{
			Addr: ":2112",
		},
		Log: LogConfig{
			File:      "raffle.log",
			ErrorFile: "raffle.error.log",
			Level:     "info",
			Console:   true,
		},
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if !common.IsHexAddress(c.Raffle.Deployer) {
		errs = append(errs, fmt.Sprintf("raffle.deployer %q is not an address", c.Raffle.Deployer))
	}
	if fee, err := uint256.FromDecimal(c.Raffle.EntranceFee); err != nil || fee.IsZero() {
		errs = append(errs, fmt.Sprintf("raffle.entrance_fee %q must be a positive wei amount", c.Raffle.EntranceFee))
	}
	if c.Raffle.Interval.Duration <= 0 {
		errs = append(errs, "raffle.interval must be positive")
	}
	if !isHash(c.Raffle.KeyHash) {
		errs = append(errs, fmt.Sprintf("raffle.key_hash %q is not a 0x-prefixed 32 byte hex string", c.Raffle.KeyHash))
	}
	if c.Raffle.SubscriptionID < 0 {
		errs = append(errs, "raffle.subscription_id must not be negative")
	}
	if c.Raffle.CallbackGasLimit <= 0 || int64(c.Raffle.CallbackGasLimit) > int64(^uint32(0)) {
		errs = append(errs, "raffle.callback_gas_limit must fit in 1..2^32-1")
	}
	if c.Raffle.RequestConfirmations < 0 || c.Raffle.RequestConfirmations > int(^uint16(0)) {
		errs = append(errs, "raffle.request_confirmations must fit in 0..65535")
	}
	if c.Raffle.NumWords < 1 {
		errs = append(errs, "raffle.num_words must be at least 1")
	}

	for name, value := range map[string]string{
		"vrf.base_fee":       c.VRF.BaseFee,
		"vrf.gas_price_link": c.VRF.GasPriceLink,
		"vrf.funding":        c.VRF.Funding,
	} {
		if _, err := uint256.FromDecimal(value); err != nil {
			errs = append(errs, fmt.Sprintf("%s %q is not a decimal amount", name, value))
		}
	}
	if c.VRF.FulfillmentDelay.Duration < 0 {
		errs = append(errs, "vrf.fulfillment_delay must not be negative")
	}

	if !common.IsHexAddress(c.Keeper.Address) {
		errs = append(errs, fmt.Sprintf("keeper.address %q is not an address", c.Keeper.Address))
	}
	if c.Keeper.Period.Duration <= 0 {
		errs = append(errs, "keeper.period must be positive")
	}

	if c.Storage.Path == "" {
		errs = append(errs, "storage.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	return nil
}

func isHash(value string) bool {
	decoded, err := hexutil.Decode(value)
	return err == nil && len(decoded) == common.HashLength
}

// RaffleDeployment converts the raffle section into the contract's
// deployment config. The configuration must be valid.
func (c *Config) RaffleDeployment(subscriptionID uint64) raffle.Config {
	return raffle.Config{
		EntranceFee:          uint256.MustFromDecimal(c.Raffle.EntranceFee),
		Interval:             c.Raffle.Interval.Duration,
		KeyHash:              common.HexToHash(c.Raffle.KeyHash),
		SubscriptionID:       subscriptionID,
		CallbackGasLimit:     uint32(c.Raffle.CallbackGasLimit),
		RequestConfirmations: uint16(c.Raffle.RequestConfirmations),
		NumWords:             uint32(c.Raffle.NumWords),
	}
}

func (c *Config) Deployer() common.Address {
	return common.HexToAddress(c.Raffle.Deployer)
}

func (c *Config) KeeperAddress() common.Address {
	return common.HexToAddress(c.Keeper.Address)
}

func (c *Config) Logger() logger.Configuration {
	return logger.Configuration{
		LogFile:   c.Log.File,
		ErrorFile: c.Log.ErrorFile,
		Level:     c.Log.Level,
		Console:   c.Log.Console,
	}
}
