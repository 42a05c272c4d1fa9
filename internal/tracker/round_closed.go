package tracker

import (
	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/raffle"
	"lottery/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (t *Tracker) processRoundClosed(tx storage.Storage, log blockchain.Log, event raffle.RoundClosed) (*storage.RaffleAction, error) {
	logger.Debug("round closed: append action", zap.String("request id", event.RequestID.Hex()))

	count, err := tx.CountRounds(t.contract.Hex())
	if err != nil {
		logger.Debug("round closed: cannot count rounds, exiting...")
		return nil, err
	}

	entrants, err := tx.SumRoundTickets(t.contract.Hex())
	if err != nil {
		logger.Debug("round closed: cannot sum round tickets, exiting...")
		return nil, err
	}

	err = tx.UpdateRound(&storage.RoundRecord{
		ID:             uuid.NewString(),
		Contract:       t.contract.Hex(),
		Number:         count + 1,
		RequestID:      event.RequestID.Hex(),
		Entrants:       entrants,
		ClosedUnixTime: log.Time.Unix(),
	})
	if err != nil {
		logger.Debug("round closed: cannot store round, exiting...")
		return nil, err
	}

	action := newAction(log, storage.RoundClosedActionType)
	action.RequestID = event.RequestID.Hex()
	return action, nil
}
