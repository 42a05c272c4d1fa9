package tracker

import (
	"fmt"
	"math/big"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/raffle"
	"lottery/internal/storage"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// batch is what one window of logs changed, applied to the metrics after the
// storage transaction commits.
type batch struct {
	entries int
	closed  int
	settled int
	payouts *uint256.Int
}

// Synchronize indexes the contract's logs committed since the stored cursor
// and returns how many of them were recorded.
func (t *Tracker) Synchronize() (int, error) {
	recorded := 0

	for {
		logIndex, err := t.storage.GetActionTouch(t.contract.Hex())
		if err != nil {
			logger.Debug("cannot get action touch, exiting...")
			return recorded, err
		}

		logs := t.ledger.Logs(logIndex)
		if len(logs) == 0 {
			return recorded, nil
		}
		if len(logs) > GlobalLimitWindowSize {
			logs = logs[:GlobalLimitWindowSize]
		}

		b := &batch{payouts: new(uint256.Int)}
		err = t.storage.Transaction(func(tx storage.Storage) error {
			return t.synchronizeWindow(tx, logs, b)
		})
		if err != nil {
			logger.Debug("cannot synchronize logs window, exiting...", zap.Uint64("from", logIndex))
			return recorded, err
		}

		t.report(b)
		recorded += b.entries + b.closed + b.settled
	}
}

func (t *Tracker) synchronizeWindow(tx storage.Storage, logs []blockchain.Log, b *batch) error {
	actions := make([]*storage.RaffleAction, 0, len(logs))

	for _, log := range logs {
		if log.Contract != t.contract {
			continue
		}

		var (
			action *storage.RaffleAction
			err    error
		)
		switch event := log.Event.(type) {
		case raffle.Entered:
			action, err = t.processEntered(tx, log, event)
			b.entries++
		case raffle.RoundClosed:
			action, err = t.processRoundClosed(tx, log, event)
			b.closed++
		case raffle.WinnerPicked:
			action, err = t.processWinnerPicked(tx, log, event)
			b.settled++
			b.payouts.Add(b.payouts, event.Amount)
		default:
			logger.Debug("tracker: unknown raffle log, skip", zap.String("name", log.Name))
			continue
		}
		if err != nil {
			return fmt.Errorf("log %d (%s): %w", log.Index, log.Name, err)
		}

		actions = append(actions, action)
	}

	if err := tx.UpdateActions(actions); err != nil {
		return err
	}

	return tx.UpdateActionTouch(&storage.ActionTouch{
		Contract: t.contract.Hex(),
		LogIndex: logs[len(logs)-1].Index + 1,
	})
}

func (t *Tracker) report(b *batch) {
	t.metrics.Entries.Add(float64(b.entries))
	t.metrics.RoundsClosed.Add(float64(b.closed))
	t.metrics.RoundsSettled.Add(float64(b.settled))

	payouts, _ := new(big.Float).SetInt(b.payouts.ToBig()).Float64()
	t.metrics.Payouts.Add(payouts)

	tickets, err := t.storage.SumRoundTickets(t.contract.Hex())
	if err != nil {
		logger.Warn("tracker: cannot read pool size", zap.Error(err))
		return
	}
	t.metrics.PoolSize.Set(float64(tickets))
}

func newAction(log blockchain.Log, actionType storage.ActionType) *storage.RaffleAction {
	return &storage.RaffleAction{
		LogIndex:            log.Index,
		ActionType:          actionType,
		Contract:            log.Contract.Hex(),
		TransactionHash:     log.TxHash.Hex(),
		TransactionUnixTime: log.Time.Unix(),
	}
}
