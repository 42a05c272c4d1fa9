package raffle

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Coordinator() common.Address {
	return c.coordinator.Address()
}

func (c *Contract) EntranceFee() *uint256.Int {
	return c.config.EntranceFee.Clone()
}

func (c *Contract) Interval() time.Duration {
	return c.config.Interval
}

func (c *Contract) KeyHash() common.Hash {
	return c.config.KeyHash
}

func (c *Contract) SubscriptionID() uint64 {
	return c.config.SubscriptionID
}

func (c *Contract) CallbackGasLimit() uint32 {
	return c.config.CallbackGasLimit
}

func (c *Contract) RequestConfirmations() uint16 {
	return c.config.RequestConfirmations
}

func (c *Contract) NumWords() uint32 {
	return c.config.NumWords
}

func (c *Contract) RoundState() RoundState {
	current, _ := c.committed()
	return current.roundState
}

func (c *Contract) NumberOfPlayers() int {
	current, _ := c.committed()
	return len(current.players)
}

func (c *Contract) Player(index int) (common.Address, error) {
	current, _ := c.committed()
	if index < 0 || index >= len(current.players) {
		return common.Address{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(current.players))
	}

	return current.players[index], nil
}

func (c *Contract) Players() []common.Address {
	current, _ := c.committed()
	return append([]common.Address(nil), current.players...)
}

func (c *Contract) LastSettledAt() time.Time {
	current, _ := c.committed()
	return current.lastSettledAt
}

func (c *Contract) RecentWinner() common.Address {
	current, _ := c.committed()
	return current.recentWinner
}

func (c *Contract) RecentBalance() *uint256.Int {
	current, _ := c.committed()
	return current.recentBalance.Clone()
}

// PendingRequest returns the outstanding randomness request, if any.
func (c *Contract) PendingRequest() (common.Hash, bool) {
	current, _ := c.committed()
	if current.pendingRequest == nil {
		return common.Hash{}, false
	}

	return *current.pendingRequest, true
}

func (c *Contract) Balance() *uint256.Int {
	return c.ledger.BalanceOf(c.address)
}
