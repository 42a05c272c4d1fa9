package raffle

import (
	"errors"
	"fmt"
)

var (
	ErrNotEnoughFunds            = errors.New("not enough funds entered")
	ErrNotOpen                   = errors.New("raffle not open")
	ErrUpkeepNotNeeded           = errors.New("upkeep not needed")
	ErrUnknownRequest            = errors.New("unknown randomness request")
	ErrTransferFailed            = errors.New("transfer to winner failed")
	ErrIndexOutOfRange           = errors.New("index out of range")
	ErrOnlyCoordinatorCanFulfill = errors.New("only coordinator can fulfill")
	ErrNoRandomWords             = errors.New("no random words")
	ErrInvalidConfig             = errors.New("invalid raffle config")
)

// UpkeepNotNeededError carries the evaluated conditions so callers can tell
// why a round could not be closed.
type UpkeepNotNeededError struct {
	Status UpkeepStatus
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%s: balance=%s players=%d state=%s interval passed=%t",
		ErrUpkeepNotNeeded, e.Status.Balance.Dec(), e.Status.NumPlayers, e.Status.State, e.Status.TimePassed)
}

func (e *UpkeepNotNeededError) Unwrap() error {
	return ErrUpkeepNotNeeded
}
