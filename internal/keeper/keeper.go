// Package keeper is the automation service that closes raffle rounds once
// they become eligible.
package keeper

import (
	"context"
	"errors"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/metrics"
	"lottery/internal/raffle"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Upkeep interface {
	CheckEligible() (bool, raffle.UpkeepStatus)
	CloseRound(from common.Address) (common.Hash, *blockchain.Receipt, error)
}

type Keeper struct {
	upkeep  Upkeep
	address common.Address
	period  time.Duration
	metrics *metrics.Metrics
}

func New(upkeep Upkeep, address common.Address, period time.Duration, m *metrics.Metrics) *Keeper {
	return &Keeper{
		upkeep:  upkeep,
		address: address,
		period:  period,
		metrics: m,
	}
}

// Poll runs one check and, when the round is eligible, closes it. It reports
// whether a round was closed.
func (k *Keeper) Poll(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	k.metrics.UpkeepChecks.Inc()
	needed, status := k.upkeep.CheckEligible()
	if !needed {
		logger.Debug("keeper: upkeep not needed",
			zap.Bool("open", status.IsOpen),
			zap.Bool("time passed", status.TimePassed),
			zap.Int("players", status.NumPlayers),
		)
		return false, nil
	}

	logger.Debug("keeper: closing round...", zap.Int("players", status.NumPlayers), zap.String("balance", status.Balance.Dec()))
	requestID, _, err := k.upkeep.CloseRound(k.address)
	if errors.Is(err, raffle.ErrUpkeepNotNeeded) {
		// someone else closed the round between the check and the call
		logger.Debug("keeper: closing round... lost race", zap.Error(err))
		return false, nil
	}
	if err != nil {
		k.metrics.UpkeepFailures.Inc()
		logger.Error("keeper: closing round... failed", zap.Error(err))
		return false, err
	}

	k.metrics.UpkeepPerformed.Inc()
	logger.Info("keeper: closing round... done", zap.String("request id", requestID.Hex()))
	return true, nil
}

// Run polls every period until ctx is cancelled. Failed polls are logged and
// retried on the next tick.
func (k *Keeper) Run(ctx context.Context) error {
	logger.Info("keeper: started", zap.Duration("period", k.period), zap.String("address", k.address.Hex()))

	ticker := time.NewTicker(k.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("keeper: stopped")
			return nil
		case <-ticker.C:
			_, _ = k.Poll(ctx)
		}
	}
}
