package tracker

import (
	"context"
	"errors"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/metrics"
	"lottery/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Tracker struct {
	ctx      context.Context
	storage  storage.Storage
	ledger   *blockchain.Ledger
	contract common.Address
	metrics  *metrics.Metrics
}

type Func[T any] func() (T, error)

// infinityBusyRetry repeats fn while sqlite reports the database as busy or
// locked, giving up only when ctx is done.
func infinityBusyRetry[T any](
	ctx context.Context,
	fn Func[T],
) (T, error) {
	for {
		result, err := fn()
		if err != nil {
			var e sqlite3.Error
			if errors.As(err, &e) && (e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked) {
				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(busyRetryDelay):
				}
				continue
			}
		}

		return result, err
	}
}

func NewTracker(ctx context.Context, s storage.Storage, ledger *blockchain.Ledger, contract common.Address, m *metrics.Metrics) *Tracker {
	logger.Debug("tracker initialization: initializing tracker... done", zap.String("contract", contract.Hex()))
	return &Tracker{
		ctx:      ctx,
		storage:  s,
		ledger:   ledger,
		contract: contract,
		metrics:  m,
	}
}

// Run indexes new logs whenever the ledger commits some, until the tracker
// context is cancelled.
func (t *Tracker) Run() error {
	notify, cancel := t.ledger.Subscribe()
	defer cancel()

	for {
		_, err := infinityBusyRetry(t.ctx, t.Synchronize)
		if err != nil {
			if t.ctx.Err() != nil {
				return nil
			}
			logger.Error("tracker: synchronization failed", zap.Error(err))
			return err
		}

		select {
		case <-t.ctx.Done():
			return nil
		case <-notify:
		}
	}
}

func (t *Tracker) Finalize() error {
	logger.Info("tracker: stopped")
	return t.storage.Close()
}
