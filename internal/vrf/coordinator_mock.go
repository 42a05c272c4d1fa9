package vrf

import (
	"fmt"
	"maps"
	"slices"

	"lottery/internal/blockchain"
	"lottery/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

type pendingRequest struct {
	subscriptionID   uint64
	consumer         common.Address
	callbackGasLimit uint32
	numWords         uint32
}

type mockState struct {
	nextSubscriptionID uint64
	nonce              uint64
	subscriptions      map[uint64]Subscription
	requests           map[common.Hash]pendingRequest
}

func (s *mockState) clone() *mockState {
	return &mockState{
		nextSubscriptionID: s.nextSubscriptionID,
		nonce:              s.nonce,
		subscriptions:      maps.Clone(s.subscriptions),
		requests:           maps.Clone(s.requests),
	}
}

// CoordinatorMock is a local coordinator living on the ledger. Requests are
// answered by whoever calls FulfillRandomWords, typically a test driver or a
// Node.
type CoordinatorMock struct {
	ledger       *blockchain.Ledger
	address      common.Address
	baseFee      *uint256.Int
	gasPriceLink *uint256.Int
}

func NewCoordinatorMock(ledger *blockchain.Ledger, deployer common.Address, baseFee *uint256.Int, gasPriceLink *uint256.Int) (*CoordinatorMock, error) {
	logger.Debug("vrf coordinator mock: deploying...")

	m := &CoordinatorMock{
		ledger:       ledger,
		baseFee:      baseFee.Clone(),
		gasPriceLink: gasPriceLink.Clone(),
	}

	_, err := ledger.Execute(blockchain.Message{From: deployer}, func(tx *blockchain.Tx) error {
		m.address = tx.ContractAddress()
		tx.SetStorage(m.address, &mockState{
			nextSubscriptionID: 1,
			subscriptions:      map[uint64]Subscription{},
			requests:           map[common.Hash]pendingRequest{},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("vrf coordinator mock: deploying... done", zap.String("address", m.address.Hex()))
	return m, nil
}

func (m *CoordinatorMock) Address() common.Address {
	return m.address
}

func (m *CoordinatorMock) load(tx *blockchain.Tx) *mockState {
	return tx.Storage(m.address).(*mockState)
}

func (m *CoordinatorMock) CreateSubscription(from common.Address) (uint64, error) {
	var subscriptionID uint64
	_, err := m.ledger.Execute(blockchain.Message{From: from, To: m.address}, func(tx *blockchain.Tx) error {
		state := m.load(tx).clone()
		subscriptionID = state.nextSubscriptionID
		state.nextSubscriptionID++
		state.subscriptions[subscriptionID] = Subscription{Owner: from, Balance: new(uint256.Int)}
		tx.SetStorage(m.address, state)
		tx.Emit(m.address, SubscriptionCreatedEvent, SubscriptionCreated{SubscriptionID: subscriptionID, Owner: from})
		return nil
	})
	if err != nil {
		return 0, err
	}

	return subscriptionID, nil
}

func (m *CoordinatorMock) FundSubscription(from common.Address, subscriptionID uint64, amount *uint256.Int) error {
	_, err := m.ledger.Execute(blockchain.Message{From: from, To: m.address}, func(tx *blockchain.Tx) error {
		state := m.load(tx).clone()
		subscription, ok := state.subscriptions[subscriptionID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidSubscription, subscriptionID)
		}

		oldBalance := subscription.Balance
		subscription.Balance = new(uint256.Int).Add(oldBalance, amount)
		state.subscriptions[subscriptionID] = subscription
		tx.SetStorage(m.address, state)
		tx.Emit(m.address, SubscriptionFundedEvent, SubscriptionFunded{
			SubscriptionID: subscriptionID,
			OldBalance:     oldBalance.Clone(),
			NewBalance:     subscription.Balance.Clone(),
		})
		return nil
	})

	return err
}

func (m *CoordinatorMock) AddConsumer(from common.Address, subscriptionID uint64, consumer common.Address) error {
	return m.updateConsumers(from, subscriptionID, consumer, ConsumerAddedEvent, func(consumers []common.Address) []common.Address {
		if slices.Contains(consumers, consumer) {
			return consumers
		}
		return append(slices.Clone(consumers), consumer)
	})
}

func (m *CoordinatorMock) RemoveConsumer(from common.Address, subscriptionID uint64, consumer common.Address) error {
	return m.updateConsumers(from, subscriptionID, consumer, ConsumerRemovedEvent, func(consumers []common.Address) []common.Address {
		return slices.DeleteFunc(slices.Clone(consumers), func(address common.Address) bool {
			return address == consumer
		})
	})
}

func (m *CoordinatorMock) updateConsumers(from common.Address, subscriptionID uint64, consumer common.Address, event string, update func([]common.Address) []common.Address) error {
	_, err := m.ledger.Execute(blockchain.Message{From: from, To: m.address}, func(tx *blockchain.Tx) error {
		state := m.load(tx).clone()
		subscription, ok := state.subscriptions[subscriptionID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidSubscription, subscriptionID)
		}
		if subscription.Owner != from {
			return ErrMustBeSubOwner
		}

		subscription.Consumers = update(subscription.Consumers)
		state.subscriptions[subscriptionID] = subscription
		tx.SetStorage(m.address, state)
		tx.Emit(m.address, event, ConsumerChanged{SubscriptionID: subscriptionID, Consumer: consumer})
		return nil
	})

	return err
}

func (m *CoordinatorMock) GetSubscription(subscriptionID uint64) (Subscription, error) {
	state := m.ledger.View().Storage(m.address).(*mockState)
	subscription, ok := state.subscriptions[subscriptionID]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %d", ErrInvalidSubscription, subscriptionID)
	}

	return Subscription{
		Owner:     subscription.Owner,
		Balance:   subscription.Balance.Clone(),
		Consumers: slices.Clone(subscription.Consumers),
	}, nil
}

// Pending reports whether requestID is still waiting for fulfillment.
func (m *CoordinatorMock) Pending(requestID common.Hash) bool {
	state := m.ledger.View().Storage(m.address).(*mockState)
	_, ok := state.requests[requestID]
	return ok
}

func (m *CoordinatorMock) RequestRandomWords(tx *blockchain.Tx, request Request) (common.Hash, error) {
	state := m.load(tx).clone()

	subscription, ok := state.subscriptions[request.SubscriptionID]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrInvalidSubscription, request.SubscriptionID)
	}
	if !slices.Contains(subscription.Consumers, request.Consumer) {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrInvalidConsumer, request.Consumer.Hex())
	}
	if request.NumWords > MaxNumWords {
		return common.Hash{}, fmt.Errorf("%w: %d > %d", ErrNumWordsTooBig, request.NumWords, MaxNumWords)
	}

	state.nonce++
	requestID := crypto.Keccak256Hash(
		request.KeyHash.Bytes(),
		request.Consumer.Bytes(),
		uint256.NewInt(request.SubscriptionID).PaddedBytes(32),
		uint256.NewInt(state.nonce).PaddedBytes(32),
	)

	state.requests[requestID] = pendingRequest{
		subscriptionID:   request.SubscriptionID,
		consumer:         request.Consumer,
		callbackGasLimit: request.CallbackGasLimit,
		numWords:         request.NumWords,
	}
	tx.SetStorage(m.address, state)

	tx.Emit(m.address, RandomWordsRequestedEvent, RandomWordsRequested{
		RequestID:            requestID,
		KeyHash:              request.KeyHash,
		SubscriptionID:       request.SubscriptionID,
		RequestConfirmations: request.RequestConfirmations,
		CallbackGasLimit:     request.CallbackGasLimit,
		NumWords:             request.NumWords,
		Sender:               request.Consumer,
	})

	return requestID, nil
}

// FulfillRandomWords answers requestID with words derived from the request id.
func (m *CoordinatorMock) FulfillRandomWords(requestID common.Hash, consumer Consumer) (*blockchain.Receipt, error) {
	return m.FulfillRandomWordsWithOverride(requestID, consumer, nil)
}

// FulfillRandomWordsWithOverride answers requestID with the given words, or
// with the derived ones when words is nil. A failing consumer aborts the
// whole fulfillment and the request stays pending.
func (m *CoordinatorMock) FulfillRandomWordsWithOverride(requestID common.Hash, consumer Consumer, words []*uint256.Int) (*blockchain.Receipt, error) {
	logger.Debug("vrf coordinator mock: fulfilling request...", zap.String("request id", requestID.Hex()))

	receipt, err := m.ledger.Execute(blockchain.Message{From: m.address, To: consumer.Address()}, func(tx *blockchain.Tx) error {
		state := m.load(tx).clone()

		request, ok := state.requests[requestID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNonexistentRequest, requestID.Hex())
		}

		if words == nil {
			words = DeriveWords(requestID, request.numWords)
		}
		if len(words) != int(request.numWords) {
			return fmt.Errorf("%w: got %d, want %d", ErrWrongNumberOfWords, len(words), request.numWords)
		}

		subscription := state.subscriptions[request.subscriptionID]
		payment := new(uint256.Int).Mul(m.gasPriceLink, uint256.NewInt(uint64(request.callbackGasLimit)))
		payment.Add(payment, m.baseFee)
		if subscription.Balance.Lt(payment) {
			return fmt.Errorf("%w: subscription %d has %s, needs %s", ErrInsufficientBalance, request.subscriptionID, subscription.Balance.Dec(), payment.Dec())
		}

		subscription.Balance = new(uint256.Int).Sub(subscription.Balance, payment)
		state.subscriptions[request.subscriptionID] = subscription
		delete(state.requests, requestID)
		tx.SetStorage(m.address, state)

		if err := consumer.RawFulfillRandomWords(tx, requestID, words); err != nil {
			return fmt.Errorf("consumer %s: %w", consumer.Address().Hex(), err)
		}

		tx.Emit(m.address, RandomWordsFulfilledEvent, RandomWordsFulfilled{
			RequestID: requestID,
			Payment:   payment,
			Success:   true,
		})
		return nil
	})
	if err != nil {
		logger.Warn("vrf coordinator mock: fulfilling request... failed", zap.String("request id", requestID.Hex()), zap.Error(err))
		return nil, err
	}

	logger.Debug("vrf coordinator mock: fulfilling request... done", zap.String("request id", requestID.Hex()))
	return receipt, nil
}

// DeriveWords expands requestID into n words as keccak256(requestID, i).
func DeriveWords(requestID common.Hash, n uint32) []*uint256.Int {
	words := make([]*uint256.Int, n)
	for i := range words {
		digest := crypto.Keccak256(requestID.Bytes(), uint256.NewInt(uint64(i)).PaddedBytes(32))
		words[i] = new(uint256.Int).SetBytes(digest)
	}

	return words
}
