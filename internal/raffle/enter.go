package raffle

import (
	"fmt"

	"lottery/internal/blockchain"
	"lottery/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Enter buys one ticket for from. The whole payment stays in the pool,
// overpayment included.
func (c *Contract) Enter(from common.Address, payment *uint256.Int) (*blockchain.Receipt, error) {
	logger.Debug("raffle: entering...", zap.String("player", from.Hex()))

	receipt, err := c.ledger.Execute(blockchain.Message{From: from, To: c.address, Value: payment}, c.enter)
	if err != nil {
		logger.Debug("raffle: entering... rejected", zap.String("player", from.Hex()), zap.Error(err))
		return nil, err
	}

	logger.Debug("raffle: entering... done", zap.String("player", from.Hex()))
	return receipt, nil
}

func (c *Contract) enter(tx *blockchain.Tx) error {
	if tx.Value().Lt(c.config.EntranceFee) {
		return fmt.Errorf("%w: sent %s, entrance fee is %s", ErrNotEnoughFunds, tx.Value().Dec(), c.config.EntranceFee.Dec())
	}

	current := c.load(tx)
	if current.roundState != Open {
		return fmt.Errorf("%w: state is %s", ErrNotOpen, current.roundState)
	}

	next := current.clone()
	next.players = append(next.players, tx.Sender())
	tx.SetStorage(c.address, next)

	tx.Emit(c.address, EnteredEvent, Entered{Player: tx.Sender()})
	return nil
}
