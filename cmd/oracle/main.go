// Command oracle runs the raffle on a local ledger together with the keeper
// that closes rounds, the randomness node that settles them and the tracker
// that indexes them into SQLite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/config"
	"lottery/internal/keeper"
	"lottery/internal/logger"
	"lottery/internal/metrics"
	"lottery/internal/raffle"
	"lottery/internal/storage"
	"lottery/internal/tracker"
	"lottery/internal/vrf"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %q: %v\n", *configPath, err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg)
	if err != nil {
		logger.Error("oracle: exited with error", zap.Error(err))
	} else {
		logger.Info("oracle: stopped")
	}

	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ledger := blockchain.NewLedger(blockchain.SystemClock{})
	deployer := cfg.Deployer()

	coordinator, err := vrf.NewCoordinatorMock(
		ledger,
		deployer,
		uint256.MustFromDecimal(cfg.VRF.BaseFee),
		uint256.MustFromDecimal(cfg.VRF.GasPriceLink),
	)
	if err != nil {
		return fmt.Errorf("deploy coordinator: %w", err)
	}

	subscriptionID := uint64(cfg.Raffle.SubscriptionID)
	if subscriptionID == 0 {
		subscriptionID, err = coordinator.CreateSubscription(deployer)
		if err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
	}
	if err := coordinator.FundSubscription(deployer, subscriptionID, uint256.MustFromDecimal(cfg.VRF.Funding)); err != nil {
		return fmt.Errorf("fund subscription %d: %w", subscriptionID, err)
	}

	contract, err := raffle.Deploy(ledger, coordinator, deployer, cfg.RaffleDeployment(subscriptionID))
	if err != nil {
		return fmt.Errorf("deploy raffle: %w", err)
	}
	if err := coordinator.AddConsumer(deployer, subscriptionID, contract.Address()); err != nil {
		return fmt.Errorf("add consumer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	sqliteStorage, err := storage.NewSqliteStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	trackerInstance := tracker.NewTracker(ctx, sqliteStorage, ledger, contract.Address(), m)
	defer func() {
		if err := trackerInstance.Finalize(); err != nil {
			logger.Warn("oracle: closing storage failed", zap.Error(err))
		}
	}()

	if err := trackerInstance.VerifyRaffleAccount(); err != nil {
		return err
	}

	node := vrf.NewNode(ledger, coordinator, cfg.VRF.FulfillmentDelay.Duration, m)
	node.Register(contract)

	upkeeper := keeper.New(contract, cfg.KeeperAddress(), cfg.Keeper.Period.Duration, m)

	if cfg.Metrics.Addr != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Handler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("oracle: serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error { return upkeeper.Run(ctx) })
	g.Go(func() error { return node.Run(ctx) })
	g.Go(trackerInstance.Run)

	logger.Info("oracle: started",
		zap.String("raffle", contract.Address().Hex()),
		zap.String("coordinator", coordinator.Address().Hex()),
		zap.Uint64("subscription id", subscriptionID),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	data, err := trackerInstance.GetRaffleData()
	if err != nil {
		return err
	}
	logger.Info("oracle: indexed history",
		zap.Int("rounds", len(data.Rounds)),
		zap.Int("entrants", len(data.Entrants)),
		zap.Uint64("pool tickets", data.PoolTickets),
	)

	return nil
}
