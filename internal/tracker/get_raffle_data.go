package tracker

import (
	"lottery/internal/logger"
	"lottery/internal/storage"

	"go.uber.org/zap"
)

// RaffleData is the indexed history of the tracked raffle.
type RaffleData struct {
	PoolTickets uint64
	Rounds      []*storage.RoundRecord
	Entrants    []*storage.EntrantStatus
}

func (t *Tracker) GetRaffleData() (*RaffleData, error) {
	contract := t.contract.Hex()

	poolTickets, err := t.storage.SumRoundTickets(contract)
	if err != nil {
		logger.Debug("get raffle data: failed to sum round tickets", zap.Error(err))
		return nil, err
	}

	rounds, err := t.storage.GetRounds(contract)
	if err != nil {
		logger.Debug("get raffle data: failed to get rounds", zap.Error(err))
		return nil, err
	}

	entrants, err := t.storage.GetEntrantStatuses(contract)
	if err != nil {
		logger.Debug("get raffle data: failed to get entrant statuses", zap.Error(err))
		return nil, err
	}

	return &RaffleData{
		PoolTickets: poolTickets,
		Rounds:      rounds,
		Entrants:    entrants,
	}, nil
}
