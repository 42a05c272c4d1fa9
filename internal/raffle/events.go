package raffle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	EnteredEvent      = "Entered"
	RoundClosedEvent  = "RoundClosed"
	WinnerPickedEvent = "WinnerPicked"
)

type Entered struct {
	Player common.Address
}

type RoundClosed struct {
	RequestID common.Hash
}

type WinnerPicked struct {
	Winner common.Address
	Amount *uint256.Int
}
