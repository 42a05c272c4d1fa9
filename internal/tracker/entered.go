package tracker

import (
	"errors"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/raffle"
	"lottery/internal/storage"

	"go.uber.org/zap"
)

func (t *Tracker) processEntered(tx storage.Storage, log blockchain.Log, event raffle.Entered) (*storage.RaffleAction, error) {
	address := event.Player.Hex()
	logger.Debug("entered: append action", zap.String("player", address), zap.Uint64("log index", log.Index))

	status, err := tx.GetEntrantStatus(t.contract.Hex(), address)
	if errors.Is(err, storage.ErrNotFound) {
		status = &storage.EntrantStatus{
			Contract: t.contract.Hex(),
			Address:  address,
			TotalWon: "0",
		}
	} else if err != nil {
		logger.Debug("entered: cannot get entrant status, exiting...")
		return nil, err
	}

	status.RoundTickets++
	status.TotalTickets++
	status.LastEnteredUnixTime = log.Time.Unix()

	err = tx.UpdateEntrantStatuses([]*storage.EntrantStatus{status})
	if err != nil {
		logger.Debug("entered: cannot update entrant status, exiting...")
		return nil, err
	}

	action := newAction(log, storage.EnteredActionType)
	action.Address = address
	return action, nil
}
