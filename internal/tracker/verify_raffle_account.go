package tracker

import (
	"errors"
	"fmt"

	"lottery/internal/logger"

	"go.uber.org/zap"
)

var ErrRaffleNotDeployed = errors.New("raffle not deployed")

// VerifyRaffleAccount checks that the tracked contract lives on the ledger
// and that the stored cursor does not point past the ledger's log. A cursor
// ahead of the ledger comes from an index built against an earlier ledger
// and is dropped so the contract is indexed from scratch.
func (t *Tracker) VerifyRaffleAccount() error {
	logger.Debug("verify raffle account: verifying raffle address...", zap.String("raffle address", t.contract.Hex()))

	if t.ledger.View().Storage(t.contract) == nil {
		logger.Error("verify raffle account: no contract at address", zap.String("raffle address", t.contract.Hex()))
		return fmt.Errorf("%w: %s", ErrRaffleNotDeployed, t.contract.Hex())
	}

	logIndex, err := t.storage.GetActionTouch(t.contract.Hex())
	if err != nil {
		logger.Error("verify raffle account: failed to get action touch", zap.Error(err))
		return err
	}

	head := t.ledger.Head()
	if logIndex > head {
		logger.Warn("verify raffle account: index is ahead of the ledger, reindexing",
			zap.Uint64("log index", logIndex),
			zap.Uint64("head", head),
		)
		if err := t.storage.DeleteContract(t.contract.Hex()); err != nil {
			return err
		}
	}

	logger.Debug("verify raffle account: verifying raffle address... done")
	return nil
}
