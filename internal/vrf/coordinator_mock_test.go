package vrf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	stranger     = common.HexToAddress("0x0000000000000000000000000000000000000b22")
	consumerAddr = common.HexToAddress("0x0000000000000000000000000000000000000c33")
	keyHash      = common.HexToHash("0x01")
	baseFee      = uint256.NewInt(100)
	gasPrice     = uint256.NewInt(2)
)

const gasLimit = 1_000

type stubConsumer struct {
	mu    sync.Mutex
	fail  error
	calls map[common.Hash][]*uint256.Int
}

func (c *stubConsumer) Address() common.Address {
	return consumerAddr
}

func (c *stubConsumer) RawFulfillRandomWords(tx *blockchain.Tx, requestID common.Hash, words []*uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail != nil {
		return c.fail
	}
	if c.calls == nil {
		c.calls = make(map[common.Hash][]*uint256.Int)
	}
	c.calls[requestID] = words
	return nil
}

func (c *stubConsumer) words(requestID common.Hash) ([]*uint256.Int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	words, ok := c.calls[requestID]
	return words, ok
}

func newMock(t *testing.T, funding uint64) (*blockchain.Ledger, *CoordinatorMock, uint64) {
	ledger := blockchain.NewLedger(blockchain.NewManualClock(time.Unix(1_700_000_000, 0)))

	mock, err := NewCoordinatorMock(ledger, owner, baseFee, gasPrice)
	require.NoError(t, err)

	subscriptionID, err := mock.CreateSubscription(owner)
	require.NoError(t, err)
	require.NoError(t, mock.FundSubscription(owner, subscriptionID, uint256.NewInt(funding)))
	require.NoError(t, mock.AddConsumer(owner, subscriptionID, consumerAddr))

	return ledger, mock, subscriptionID
}

func request(t *testing.T, ledger *blockchain.Ledger, mock *CoordinatorMock, subscriptionID uint64, numWords uint32) common.Hash {
	requestID, err := tryRequest(ledger, mock, subscriptionID, numWords)
	require.NoError(t, err)
	return requestID
}

func tryRequest(ledger *blockchain.Ledger, mock *CoordinatorMock, subscriptionID uint64, numWords uint32) (common.Hash, error) {
	var requestID common.Hash
	_, err := ledger.Execute(blockchain.Message{From: consumerAddr}, func(tx *blockchain.Tx) error {
		var err error
		requestID, err = mock.RequestRandomWords(tx, Request{
			KeyHash:              keyHash,
			SubscriptionID:       subscriptionID,
			RequestConfirmations: 3,
			CallbackGasLimit:     gasLimit,
			NumWords:             numWords,
			Consumer:             consumerAddr,
		})
		return err
	})

	return requestID, err
}

func TestSubscriptionLifecycle(t *testing.T) {
	_, mock, subscriptionID := newMock(t, 5_000)

	subscription, err := mock.GetSubscription(subscriptionID)
	require.NoError(t, err)
	require.Equal(t, owner, subscription.Owner)
	require.Equal(t, uint64(5_000), subscription.Balance.Uint64())
	require.Equal(t, []common.Address{consumerAddr}, subscription.Consumers)

	require.ErrorIs(t, mock.AddConsumer(stranger, subscriptionID, stranger), ErrMustBeSubOwner)
	require.ErrorIs(t, mock.FundSubscription(owner, 99, uint256.NewInt(1)), ErrInvalidSubscription)
	_, err = mock.GetSubscription(99)
	require.ErrorIs(t, err, ErrInvalidSubscription)

	require.NoError(t, mock.RemoveConsumer(owner, subscriptionID, consumerAddr))
	subscription, err = mock.GetSubscription(subscriptionID)
	require.NoError(t, err)
	require.Empty(t, subscription.Consumers)
}

func TestRequestRejections(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 5_000)

	_, err := tryRequest(ledger, mock, 99, 1)
	require.ErrorIs(t, err, ErrInvalidSubscription)

	_, err = tryRequest(ledger, mock, subscriptionID, MaxNumWords+1)
	require.ErrorIs(t, err, ErrNumWordsTooBig)

	require.NoError(t, mock.RemoveConsumer(owner, subscriptionID, consumerAddr))
	_, err = tryRequest(ledger, mock, subscriptionID, 1)
	require.ErrorIs(t, err, ErrInvalidConsumer)
}

func TestRequestIDsAreUnique(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 5_000)

	first := request(t, ledger, mock, subscriptionID, 1)
	second := request(t, ledger, mock, subscriptionID, 1)

	require.NotEqual(t, first, second)
	require.True(t, mock.Pending(first))
	require.True(t, mock.Pending(second))
}

func TestFulfillChargesSubscriptionOnce(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 5_000)
	consumer := &stubConsumer{}
	requestID := request(t, ledger, mock, subscriptionID, 2)

	receipt, err := mock.FulfillRandomWords(requestID, consumer)
	require.NoError(t, err)
	require.Equal(t, RandomWordsFulfilledEvent, receipt.Logs[len(receipt.Logs)-1].Name)

	words, ok := consumer.words(requestID)
	require.True(t, ok)
	require.Equal(t, DeriveWords(requestID, 2), words)
	require.False(t, mock.Pending(requestID))

	subscription, err := mock.GetSubscription(subscriptionID)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000-(100+2*gasLimit)), subscription.Balance.Uint64())

	_, err = mock.FulfillRandomWords(requestID, consumer)
	require.ErrorIs(t, err, ErrNonexistentRequest)
}

func TestFulfillRollsBackOnConsumerFailure(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 5_000)
	boom := errors.New("boom")
	consumer := &stubConsumer{fail: boom}
	requestID := request(t, ledger, mock, subscriptionID, 1)

	_, err := mock.FulfillRandomWords(requestID, consumer)
	require.ErrorIs(t, err, boom)
	require.True(t, mock.Pending(requestID))

	subscription, err := mock.GetSubscription(subscriptionID)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), subscription.Balance.Uint64())
}

func TestFulfillRejectsUnderfundedAndWrongWordCount(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 10)
	consumer := &stubConsumer{}
	requestID := request(t, ledger, mock, subscriptionID, 1)

	_, err := mock.FulfillRandomWords(requestID, consumer)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = mock.FulfillRandomWordsWithOverride(requestID, consumer, []*uint256.Int{uint256.NewInt(1), uint256.NewInt(2)})
	require.ErrorIs(t, err, ErrWrongNumberOfWords)
	require.True(t, mock.Pending(requestID))
}

func TestDeriveWordsIsDeterministic(t *testing.T) {
	requestID := common.HexToHash("0xabc")

	require.Equal(t, DeriveWords(requestID, 3), DeriveWords(requestID, 3))
	require.NotEqual(t, DeriveWords(requestID, 2)[0], DeriveWords(requestID, 2)[1])
}

func TestNodeProcessAnswersRegisteredConsumers(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 50_000)
	m := metrics.New(prometheus.NewRegistry())
	node := NewNode(ledger, mock, 0, m)
	consumer := &stubConsumer{}

	unanswered := request(t, ledger, mock, subscriptionID, 1)
	fulfilled, err := node.Process(context.Background())
	require.NoError(t, err)
	require.Zero(t, fulfilled)
	require.True(t, mock.Pending(unanswered))

	node.Register(consumer)
	requestID := request(t, ledger, mock, subscriptionID, 1)
	fulfilled, err = node.Process(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, fulfilled)
	require.False(t, mock.Pending(requestID))
	require.True(t, mock.Pending(unanswered))

	fulfilled, err = node.Process(context.Background())
	require.NoError(t, err)
	require.Zero(t, fulfilled)
	require.Equal(t, float64(1), testutil.ToFloat64(m.Fulfillments))
}

func TestNodeCountsRolledBackFulfillments(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 50_000)
	m := metrics.New(prometheus.NewRegistry())
	node := NewNode(ledger, mock, 0, m)
	node.Register(&stubConsumer{fail: errors.New("boom")})

	requestID := request(t, ledger, mock, subscriptionID, 1)
	fulfilled, err := node.Process(context.Background())
	require.NoError(t, err)
	require.Zero(t, fulfilled)
	require.True(t, mock.Pending(requestID))
	require.Equal(t, float64(1), testutil.ToFloat64(m.FulfillmentFailures))
}

func TestNodeRunFulfillsUntilCancelled(t *testing.T) {
	ledger, mock, subscriptionID := newMock(t, 50_000)
	node := NewNode(ledger, mock, time.Millisecond, metrics.New(prometheus.NewRegistry()))
	node.Register(&stubConsumer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()

	requestID := request(t, ledger, mock, subscriptionID, 1)
	require.Eventually(t, func() bool { return !mock.Pending(requestID) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("node did not stop")
	}
}
