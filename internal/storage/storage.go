package storage

import "errors"

var ErrNotFound = errors.New("record not found")

type Storage interface {
	// raffle action
	GetActions(contract string, actionType ActionType) ([]*RaffleAction, error)
	UpdateActions(actions []*RaffleAction) error

	// action touch
	GetActionTouch(contract string) (uint64, error)
	UpdateActionTouch(actionTouch *ActionTouch) error

	// entrant status
	GetEntrantStatus(contract string, address string) (*EntrantStatus, error)
	GetEntrantStatuses(contract string) ([]*EntrantStatus, error)
	SumRoundTickets(contract string) (uint64, error)
	UpdateEntrantStatuses(statuses []*EntrantStatus) error
	ResetRoundTickets(contract string) error

	// round record
	GetRounds(contract string) ([]*RoundRecord, error)
	GetOpenRound(contract string) (*RoundRecord, error)
	CountRounds(contract string) (uint64, error)
	UpdateRound(round *RoundRecord) error

	DeleteContract(contract string) error

	Transaction(fn func(Storage) error) error
	Close() error
}

type ActionType = string

const (
	EnteredActionType      ActionType = "EnteredActionType"
	RoundClosedActionType  ActionType = "RoundClosedActionType"
	WinnerPickedActionType ActionType = "WinnerPickedActionType"
)
