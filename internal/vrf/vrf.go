// Package vrf defines the two-phase randomness protocol between a consumer
// contract and a coordinator, a local coordinator mock and an oracle node
// that answers the mock's requests.
package vrf

import (
	"errors"

	"lottery/internal/blockchain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const MaxNumWords = 500

const (
	SubscriptionCreatedEvent  = "SubscriptionCreated"
	SubscriptionFundedEvent   = "SubscriptionFunded"
	ConsumerAddedEvent        = "ConsumerAdded"
	ConsumerRemovedEvent      = "ConsumerRemoved"
	RandomWordsRequestedEvent = "RandomWordsRequested"
	RandomWordsFulfilledEvent = "RandomWordsFulfilled"
)

var (
	ErrInvalidSubscription = errors.New("invalid subscription")
	ErrInvalidConsumer     = errors.New("invalid consumer")
	ErrMustBeSubOwner      = errors.New("must be subscription owner")
	ErrNonexistentRequest  = errors.New("nonexistent request")
	ErrInsufficientBalance = errors.New("insufficient subscription balance")
	ErrNumWordsTooBig      = errors.New("number of words too big")
	ErrWrongNumberOfWords  = errors.New("wrong number of words")
)

// Request carries the routing parameters a consumer passes through to the
// coordinator. The consumer does not interpret them.
type Request struct {
	KeyHash              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
	Consumer             common.Address
}

// Coordinator accepts randomness requests inside the requesting call and
// returns the opaque id the later fulfillment will carry.
type Coordinator interface {
	Address() common.Address
	RequestRandomWords(tx *blockchain.Tx, request Request) (common.Hash, error)
}

// Consumer is called back by the coordinator, inside the coordinator's own
// call, with the words generated for requestID.
type Consumer interface {
	Address() common.Address
	RawFulfillRandomWords(tx *blockchain.Tx, requestID common.Hash, words []*uint256.Int) error
}

type RandomWordsRequested struct {
	RequestID            common.Hash
	KeyHash              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
	Sender               common.Address
}

type RandomWordsFulfilled struct {
	RequestID common.Hash
	Payment   *uint256.Int
	Success   bool
}

type SubscriptionCreated struct {
	SubscriptionID uint64
	Owner          common.Address
}

type SubscriptionFunded struct {
	SubscriptionID uint64
	OldBalance     *uint256.Int
	NewBalance     *uint256.Int
}

type ConsumerChanged struct {
	SubscriptionID uint64
	Consumer       common.Address
}

type Subscription struct {
	Owner     common.Address
	Balance   *uint256.Int
	Consumers []common.Address
}
