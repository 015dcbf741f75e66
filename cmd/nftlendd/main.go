// Command nftlendd runs the NFT lending protocol daemon: the market
// registry, the ETH pool, the NFT collateral pools, and the liquidation
// auction engine behind an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/phoebe87124/appworks-final-project/config"
	"github.com/phoebe87124/appworks-final-project/core/events"
	"github.com/phoebe87124/appworks-final-project/native/auction"
	nativecommon "github.com/phoebe87124/appworks-final-project/native/common"
	"github.com/phoebe87124/appworks-final-project/native/comptroller"
	"github.com/phoebe87124/appworks-final-project/native/lending"
	"github.com/phoebe87124/appworks-final-project/native/nftpool"
	"github.com/phoebe87124/appworks-final-project/observability/logging"
	"github.com/phoebe87124/appworks-final-project/oracle"
	"github.com/phoebe87124/appworks-final-project/rpc"
	"github.com/phoebe87124/appworks-final-project/state"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := logging.Setup("nftlendd", cfg.Environment, cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	manager, err := state.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer manager.Close()

	collector := events.NewCollector(1024)
	pauses := nativecommon.FlowPauses(cfg.Pauses)
	prices := oracle.NewSimple()

	registry := comptroller.New(cfg.Comptroller.Owner, prices)
	registry.SetState(manager.Registry())
	registry.SetEmitter(collector)
	if cfg.Comptroller.CloseFactorBps > 0 {
		if err := registry.SetCloseFactor(cfg.Comptroller.Owner, cfg.Comptroller.CloseFactorBps); err != nil {
			return err
		}
	}
	if cfg.Comptroller.LiquidationIncentiveBps > 0 {
		if err := registry.SetLiquidationIncentive(cfg.Comptroller.Owner, cfg.Comptroller.LiquidationIncentiveBps); err != nil {
			return err
		}
	}

	pool := lending.NewEngine(cfg.Lending.MarketAddress, registry)
	pool.SetState(manager.LendingFor(cfg.Lending.MarketAddress))
	pool.SetEmitter(collector)
	pool.SetPauses(pauses)
	pool.SetReserveFactor(cfg.Lending.ReserveFactorBps)
	pool.SetInitialExchangeRate(cfg.Lending.InitialExchangeRate)
	pool.SetBlockHeight(uint64(time.Now().Unix()))
	switch cfg.Interest.Model {
	case "jump":
		pool.SetInterestModel(lending.NewJumpRateModel(
			cfg.Interest.BaseRatePerYear,
			cfg.Interest.MultiplierPerYear,
			cfg.Interest.JumpMultiplierPerYear,
			cfg.Interest.KinkBps,
		))
	default:
		pool.SetInterestModel(lending.NewWhitePaperModel(
			cfg.Interest.BaseRatePerYear,
			cfg.Interest.MultiplierPerYear,
		))
	}

	auctionVault := cfg.Auction.Vault
	if auctionVault == (common.Address{}) {
		auctionVault = cfg.Lending.MarketAddress
	}
	auctions := auction.NewEngine(auctionVault)
	auctions.SetState(manager.Auctions())
	auctions.SetEmitter(collector)
	auctions.SetTiming(cfg.Auction.DurationSeconds, cfg.Auction.AntiSnipeSeconds)
	pool.SetAuctionEngine(auctions)

	if err := listMarket(registry, cfg.Comptroller.Owner, pool, cfg.Lending.CollateralFactorBps, false); err != nil {
		return err
	}

	nftPools := make(map[common.Address]*nftpool.Engine, len(cfg.NftMarkets))
	for _, mc := range cfg.NftMarkets {
		np := nftpool.NewEngine(mc.MarketAddress, mc.Collection, registry)
		np.SetState(manager.NftPoolFor(mc.MarketAddress))
		np.SetTokenRegistry(manager.Tokens())
		np.SetEmitter(collector)
		np.SetPauses(pauses)
		if err := listMarket(registry, cfg.Comptroller.Owner, np, mc.CollateralFactorBps, true); err != nil {
			return err
		}
		nftPools[mc.MarketAddress] = np
	}

	server := rpc.NewServer(registry, pool, nftPools, auctions, prices, collector, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// listMarket lists a market on first boot and rebinds the live view on
// subsequent boots.
func listMarket(registry *comptroller.Comptroller, owner common.Address, view comptroller.MarketView, factorBps uint64, nft bool) error {
	if registry.IsListed(view.MarketAddress()) {
		return registry.AttachMarket(view)
	}
	var err error
	if nft {
		err = registry.SupportNftMarket(owner, view)
	} else {
		err = registry.SupportMarket(owner, view)
	}
	if err != nil {
		return err
	}
	if factorBps > 0 {
		return registry.SetCollateralFactor(owner, view.MarketAddress(), factorBps)
	}
	return nil
}
