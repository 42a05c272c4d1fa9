package raffle

import (
	"errors"
	"fmt"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/vrf"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// UpkeepStatus is the diagnostic data behind an eligibility answer.
type UpkeepStatus struct {
	IsOpen     bool
	TimePassed bool
	HasPlayers bool
	HasBalance bool

	State      RoundState
	NumPlayers int
	Balance    *uint256.Int
	Elapsed    time.Duration
}

func (s UpkeepStatus) UpkeepNeeded() bool {
	return s.IsOpen && s.TimePassed && s.HasPlayers && s.HasBalance
}

func (c *Contract) evaluate(current *state, balance *uint256.Int, now time.Time) UpkeepStatus {
	elapsed := now.Sub(current.lastSettledAt)

	return UpkeepStatus{
		IsOpen:     current.roundState == Open,
		TimePassed: elapsed >= c.config.Interval,
		HasPlayers: len(current.players) > 0,
		HasBalance: !balance.IsZero(),
		State:      current.roundState,
		NumPlayers: len(current.players),
		Balance:    balance,
		Elapsed:    elapsed,
	}
}

// CheckEligible tells the automation service whether CloseRound would be
// accepted right now. It reads the last committed state only.
func (c *Contract) CheckEligible() (bool, UpkeepStatus) {
	current, view := c.committed()
	status := c.evaluate(current, view.BalanceOf(c.address), view.Now())

	return status.UpkeepNeeded(), status
}

// CloseRound stops entries and asks the coordinator for randomness. Funds and
// the pool stay untouched until the request is fulfilled.
func (c *Contract) CloseRound(from common.Address) (common.Hash, *blockchain.Receipt, error) {
	logger.Debug("raffle: closing round...", zap.String("caller", from.Hex()))

	var requestID common.Hash
	receipt, err := c.ledger.Execute(blockchain.Message{From: from, To: c.address}, func(tx *blockchain.Tx) error {
		var err error
		requestID, err = c.closeRound(tx)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUpkeepNotNeeded) {
			logger.Debug("raffle: closing round... not needed", zap.Error(err))
		} else {
			logger.Warn("raffle: closing round... failed", zap.Error(err))
		}
		return common.Hash{}, nil, err
	}

	logger.Info("raffle: closing round... done", zap.String("request id", requestID.Hex()))
	return requestID, receipt, nil
}

func (c *Contract) closeRound(tx *blockchain.Tx) (common.Hash, error) {
	current := c.load(tx)

	status := c.evaluate(current, tx.BalanceOf(c.address), tx.Now())
	if !status.UpkeepNeeded() {
		return common.Hash{}, &UpkeepNotNeededError{Status: status}
	}

	requestID, err := c.coordinator.RequestRandomWords(tx, vrf.Request{
		KeyHash:              c.config.KeyHash,
		SubscriptionID:       c.config.SubscriptionID,
		RequestConfirmations: c.config.RequestConfirmations,
		CallbackGasLimit:     c.config.CallbackGasLimit,
		NumWords:             c.config.NumWords,
		Consumer:             c.address,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("request random words: %w", err)
	}

	next := current.clone()
	next.roundState = Calculating
	next.pendingRequest = &requestID
	tx.SetStorage(c.address, next)

	tx.Emit(c.address, RoundClosedEvent, RoundClosed{RequestID: requestID})
	return requestID, nil
}
