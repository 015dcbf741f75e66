package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validConfig = `
listenAddress = ":9000"
dbPath = "test.db"
environment = "test"
logLevel = "debug"

[comptroller]
owner = "0x00000000000000000000000000000000000000f0"
closeFactorBps = 5000
liquidationIncentiveBps = 800

[lending]
marketAddress = "0x00000000000000000000000000000000000000e1"
collateralFactorBps = 7500
reserveFactorBps = 1000
initialExchangeRate = "2000000000000000000"

[interest]
model = "jump"
baseRatePerYear = 0.02
multiplierPerYear = 0.1
jumpMultiplierPerYear = 3.0
kinkBps = 8000

[auction]
durationSeconds = 3600
antiSnipeSeconds = 120

[[nftMarkets]]
marketAddress = "0x00000000000000000000000000000000000000e2"
collection = "0x00000000000000000000000000000000000000cc"
collateralFactorBps = 5000

[pauses]
liquidate = true
`

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, "test.db", cfg.DBPath)
	require.Equal(t, common.HexToAddress("0xf0"), cfg.Comptroller.Owner)
	require.Equal(t, uint64(800), cfg.Comptroller.LiquidationIncentiveBps)
	require.Equal(t, uint64(7500), cfg.Lending.CollateralFactorBps)

	want, _ := new(big.Int).SetString("2000000000000000000", 10)
	require.Zero(t, cfg.Lending.InitialExchangeRate.Cmp(want))

	require.Equal(t, "jump", cfg.Interest.Model)
	require.Equal(t, uint64(8000), cfg.Interest.KinkBps)
	require.Equal(t, int64(3600), cfg.Auction.DurationSeconds)
	require.Len(t, cfg.NftMarkets, 1)
	require.Equal(t, common.HexToAddress("0xcc"), cfg.NftMarkets[0].Collection)
	require.True(t, cfg.Pauses["liquidate"])
	require.False(t, cfg.Pauses["mint"])
}

const minimalConfig = `
[comptroller]
owner = "0x00000000000000000000000000000000000000f0"

[lending]
marketAddress = "0x00000000000000000000000000000000000000e1"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, ":8545", cfg.ListenAddress)
	require.Equal(t, "nftlend.db", cfg.DBPath)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, uint64(5000), cfg.Comptroller.CloseFactorBps)
	require.Equal(t, uint64(5000), cfg.Lending.CollateralFactorBps)
	require.Equal(t, "whitepaper", cfg.Interest.Model)
	require.Equal(t, int64(86400), cfg.Auction.DurationSeconds)
	require.Equal(t, int64(600), cfg.Auction.AntiSnipeSeconds)

	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	require.Zero(t, cfg.Lending.InitialExchangeRate.Cmp(want))
}

func TestLoadRejectsMissingOwner(t *testing.T) {
	_, err := Load(writeConfig(t, `
[lending]
marketAddress = "0x00000000000000000000000000000000000000e1"
`))
	require.ErrorContains(t, err, "owner")
}

func TestLoadRejectsUnknownInterestModel(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[interest]
model = "quadratic"
`))
	require.ErrorContains(t, err, "interest model")
}

func TestLoadRejectsCollateralFactorAtOne(t *testing.T) {
	_, err := Load(writeConfig(t, `
[comptroller]
owner = "0x00000000000000000000000000000000000000f0"

[lending]
marketAddress = "0x00000000000000000000000000000000000000e1"
collateralFactorBps = 10000
`))
	require.ErrorContains(t, err, "collateral factor")
}

func TestLoadRejectsDuplicateMarkets(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[[nftMarkets]]
marketAddress = "0x00000000000000000000000000000000000000e1"
collection = "0x00000000000000000000000000000000000000cc"
`))
	require.ErrorContains(t, err, "duplicate market")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
