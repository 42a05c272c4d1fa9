package tracker

import (
	"errors"
	"fmt"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/raffle"
	"lottery/internal/storage"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

func (t *Tracker) processWinnerPicked(tx storage.Storage, log blockchain.Log, event raffle.WinnerPicked) (*storage.RaffleAction, error) {
	winner := event.Winner.Hex()
	amount := event.Amount.Dec()
	logger.Info("winner picked: append action", zap.String("winner", winner), zap.String("amount", amount))

	round, err := tx.GetOpenRound(t.contract.Hex())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Warn("winner picked: no closed round on record, skip round update", zap.Uint64("log index", log.Index))
	case err != nil:
		logger.Debug("winner picked: cannot get open round, exiting...")
		return nil, err
	default:
		round.Winner = winner
		round.Amount = amount
		round.SettledUnixTime = log.Time.Unix()
		if err := tx.UpdateRound(round); err != nil {
			logger.Debug("winner picked: cannot update round, exiting...")
			return nil, err
		}
	}

	status, err := tx.GetEntrantStatus(t.contract.Hex(), winner)
	if err != nil {
		logger.Debug("winner picked: cannot get winner status, exiting...")
		return nil, err
	}

	totalWon, err := addDecimal(status.TotalWon, event.Amount)
	if err != nil {
		return nil, err
	}
	status.Wins++
	status.TotalWon = totalWon

	err = tx.UpdateEntrantStatuses([]*storage.EntrantStatus{status})
	if err != nil {
		logger.Debug("winner picked: cannot update winner status, exiting...")
		return nil, err
	}

	err = tx.ResetRoundTickets(t.contract.Hex())
	if err != nil {
		logger.Debug("winner picked: cannot reset round tickets, exiting...")
		return nil, err
	}

	action := newAction(log, storage.WinnerPickedActionType)
	action.Address = winner
	action.Amount = amount
	return action, nil
}

func addDecimal(total string, amount *uint256.Int) (string, error) {
	if total == "" {
		return amount.Dec(), nil
	}

	value, err := uint256.FromDecimal(total)
	if err != nil {
		return "", fmt.Errorf("total won %q: %w", total, err)
	}

	return value.Add(value, amount).Dec(), nil
}
