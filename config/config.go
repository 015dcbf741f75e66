// Package config loads the daemon configuration from a TOML file.
package config

import (
	"fmt"
	"math/big"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the top-level daemon configuration.
type Config struct {
	ListenAddress string `toml:"listenAddress"`
	DBPath        string `toml:"dbPath"`
	Environment   string `toml:"environment"`
	LogLevel      string `toml:"logLevel"`

	Comptroller ComptrollerConfig `toml:"comptroller"`
	Lending     LendingConfig     `toml:"lending"`
	Interest    InterestConfig    `toml:"interest"`
	Auction     AuctionConfig     `toml:"auction"`
	NftMarkets  []NftMarketConfig `toml:"nftMarkets"`
	// Pauses disables individual flows by name, e.g. mint, borrow, liquidate.
	Pauses map[string]bool `toml:"pauses"`
}

// ComptrollerConfig configures the market registry.
type ComptrollerConfig struct {
	Owner                   common.Address `toml:"owner"`
	CloseFactorBps          uint64         `toml:"closeFactorBps"`
	LiquidationIncentiveBps uint64         `toml:"liquidationIncentiveBps"`
}

// LendingConfig configures the ETH pool engine. InitialExchangeRate is a
// decimal string interpreted as a 1e18 mantissa.
type LendingConfig struct {
	MarketAddress       common.Address `toml:"marketAddress"`
	CollateralFactorBps uint64         `toml:"collateralFactorBps"`
	ReserveFactorBps    uint64         `toml:"reserveFactorBps"`
	InitialExchangeRate *big.Int       `toml:"initialExchangeRate"`
}

// InterestConfig selects and parameterizes the interest rate model. Rates
// are yearly decimals, e.g. 0.02 for two percent.
type InterestConfig struct {
	Model                 string  `toml:"model"`
	BaseRatePerYear       float64 `toml:"baseRatePerYear"`
	MultiplierPerYear     float64 `toml:"multiplierPerYear"`
	JumpMultiplierPerYear float64 `toml:"jumpMultiplierPerYear"`
	KinkBps               uint64  `toml:"kinkBps"`
}

// AuctionConfig configures liquidation auction timing.
type AuctionConfig struct {
	Vault            common.Address `toml:"vault"`
	DurationSeconds  int64          `toml:"durationSeconds"`
	AntiSnipeSeconds int64          `toml:"antiSnipeSeconds"`
}

// NftMarketConfig declares one NFT collateral pool.
type NftMarketConfig struct {
	MarketAddress       common.Address `toml:"marketAddress"`
	Collection          common.Address `toml:"collection"`
	CollateralFactorBps uint64         `toml:"collateralFactorBps"`
}

// Load reads and validates the configuration file, filling defaults for
// omitted fields.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8545"
	}
	if c.DBPath == "" {
		c.DBPath = "nftlend.db"
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Comptroller.CloseFactorBps == 0 {
		c.Comptroller.CloseFactorBps = 5000
	}
	if c.Lending.CollateralFactorBps == 0 {
		c.Lending.CollateralFactorBps = 5000
	}
	if c.Lending.InitialExchangeRate == nil || c.Lending.InitialExchangeRate.Sign() <= 0 {
		c.Lending.InitialExchangeRate, _ = new(big.Int).SetString("1000000000000000000", 10)
	}
	if c.Interest.Model == "" {
		c.Interest.Model = "whitepaper"
	}
	if c.Auction.DurationSeconds == 0 {
		c.Auction.DurationSeconds = 24 * 60 * 60
	}
	if c.Auction.AntiSnipeSeconds == 0 {
		c.Auction.AntiSnipeSeconds = 10 * 60
	}
	for i := range c.NftMarkets {
		if c.NftMarkets[i].CollateralFactorBps == 0 {
			c.NftMarkets[i].CollateralFactorBps = 5000
		}
	}
}

func (c *Config) validate() error {
	zero := common.Address{}
	if c.Comptroller.Owner == zero {
		return fmt.Errorf("config: comptroller owner is required")
	}
	if c.Lending.MarketAddress == zero {
		return fmt.Errorf("config: lending market address is required")
	}
	if c.Comptroller.CloseFactorBps > 10_000 {
		return fmt.Errorf("config: close factor exceeds 10000 bps")
	}
	if c.Lending.CollateralFactorBps >= 10_000 {
		return fmt.Errorf("config: collateral factor must be below 10000 bps")
	}
	if c.Lending.ReserveFactorBps > 10_000 {
		return fmt.Errorf("config: reserve factor exceeds 10000 bps")
	}
	switch c.Interest.Model {
	case "whitepaper", "jump":
	default:
		return fmt.Errorf("config: unknown interest model %q", c.Interest.Model)
	}
	if c.Interest.Model == "jump" && (c.Interest.KinkBps == 0 || c.Interest.KinkBps > 10_000) {
		return fmt.Errorf("config: jump model kink must be within (0, 10000] bps")
	}
	seen := map[common.Address]bool{c.Lending.MarketAddress: true}
	for _, m := range c.NftMarkets {
		if m.MarketAddress == zero || m.Collection == zero {
			return fmt.Errorf("config: nft market address and collection are required")
		}
		if seen[m.MarketAddress] {
			return fmt.Errorf("config: duplicate market address %s", m.MarketAddress.Hex())
		}
		seen[m.MarketAddress] = true
		if m.CollateralFactorBps >= 10_000 {
			return fmt.Errorf("config: collateral factor must be below 10000 bps")
		}
	}
	return nil
}
