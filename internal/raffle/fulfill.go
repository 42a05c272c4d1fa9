package raffle

import (
	"fmt"

	"lottery/internal/blockchain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RawFulfillRandomWords is the coordinator's callback. It only accepts calls
// made by the configured coordinator for the request the last CloseRound
// registered.
func (c *Contract) RawFulfillRandomWords(tx *blockchain.Tx, requestID common.Hash, words []*uint256.Int) error {
	if tx.Sender() != c.coordinator.Address() {
		return fmt.Errorf("%w: caller %s, coordinator %s", ErrOnlyCoordinatorCanFulfill, tx.Sender().Hex(), c.coordinator.Address().Hex())
	}

	return c.fulfill(tx, requestID, words)
}

func (c *Contract) fulfill(tx *blockchain.Tx, requestID common.Hash, words []*uint256.Int) error {
	current := c.load(tx)

	if current.pendingRequest == nil || *current.pendingRequest != requestID || current.roundState != Calculating {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID.Hex())
	}
	if len(words) == 0 || words[0] == nil {
		return ErrNoRandomWords
	}

	// CloseRound only succeeds with a non-empty pool and nothing can leave it
	// while calculating.
	if len(current.players) == 0 {
		panic("raffle: settling a round without players")
	}

	winner := current.players[WinnerIndex(words[0], len(current.players))]
	balance := tx.BalanceOf(c.address)

	next := current.clone()
	next.players = nil
	next.pendingRequest = nil
	next.roundState = Open
	next.lastSettledAt = tx.Now()
	next.recentWinner = winner
	next.recentBalance = balance.Clone()
	tx.SetStorage(c.address, next)

	if err := tx.Transfer(c.address, winner, balance); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, winner.Hex(), err)
	}

	tx.Emit(c.address, WinnerPickedEvent, WinnerPicked{Winner: winner, Amount: balance})
	return nil
}
