package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/metrics"
	"lottery/internal/raffle"
	"lottery/internal/vrf"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	operator = common.HexToAddress("0x0000000000000000000000000000000000000bee")
	entrant  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	fee      = uint256.NewInt(10)
)

type stubUpkeep struct {
	needed bool
	err    error
	closed int
}

func (s *stubUpkeep) CheckEligible() (bool, raffle.UpkeepStatus) {
	return s.needed, raffle.UpkeepStatus{Balance: new(uint256.Int)}
}

func (s *stubUpkeep) CloseRound(common.Address) (common.Hash, *blockchain.Receipt, error) {
	s.closed++
	return common.Hash{}, nil, s.err
}

func deployRaffle(t *testing.T) (*blockchain.ManualClock, *raffle.Contract) {
	clock := blockchain.NewManualClock(time.Unix(1_700_000_000, 0))
	ledger := blockchain.NewLedger(clock)

	coordinator, err := vrf.NewCoordinatorMock(ledger, operator, uint256.NewInt(1), uint256.NewInt(1))
	require.NoError(t, err)
	subscriptionID, err := coordinator.CreateSubscription(operator)
	require.NoError(t, err)
	require.NoError(t, coordinator.FundSubscription(operator, subscriptionID, uint256.NewInt(1_000_000_000)))

	contract, err := raffle.Deploy(ledger, coordinator, operator, raffle.Config{
		EntranceFee:      fee,
		Interval:         time.Minute,
		SubscriptionID:   subscriptionID,
		CallbackGasLimit: 100_000,
	})
	require.NoError(t, err)
	require.NoError(t, coordinator.AddConsumer(operator, subscriptionID, contract.Address()))

	ledger.Mint(entrant, fee)
	_, err = contract.Enter(entrant, fee)
	require.NoError(t, err)

	return clock, contract
}

func TestPollClosesEligibleRound(t *testing.T) {
	clock, contract := deployRaffle(t)
	m := metrics.New(prometheus.NewRegistry())
	k := New(contract, operator, time.Second, m)

	closed, err := k.Poll(context.Background())
	require.NoError(t, err)
	require.False(t, closed)
	require.Equal(t, raffle.Open, contract.RoundState())

	clock.Advance(time.Minute + time.Second)
	closed, err = k.Poll(context.Background())
	require.NoError(t, err)
	require.True(t, closed)
	require.Equal(t, raffle.Calculating, contract.RoundState())

	closed, err = k.Poll(context.Background())
	require.NoError(t, err)
	require.False(t, closed)

	require.Equal(t, float64(3), testutil.ToFloat64(m.UpkeepChecks))
	require.Equal(t, float64(1), testutil.ToFloat64(m.UpkeepPerformed))
	require.Zero(t, testutil.ToFloat64(m.UpkeepFailures))
}

func TestPollTreatsLostRaceAsNoop(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	upkeep := &stubUpkeep{needed: true, err: &raffle.UpkeepNotNeededError{Status: raffle.UpkeepStatus{Balance: new(uint256.Int)}}}

	closed, err := New(upkeep, operator, time.Second, m).Poll(context.Background())
	require.NoError(t, err)
	require.False(t, closed)
	require.Equal(t, 1, upkeep.closed)
	require.Zero(t, testutil.ToFloat64(m.UpkeepFailures))
}

func TestPollReportsFailures(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	boom := errors.New("boom")
	upkeep := &stubUpkeep{needed: true, err: boom}

	_, err := New(upkeep, operator, time.Second, m).Poll(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, float64(1), testutil.ToFloat64(m.UpkeepFailures))
}

func TestPollStopsOnCancelledContext(t *testing.T) {
	upkeep := &stubUpkeep{needed: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(upkeep, operator, time.Second, metrics.New(prometheus.NewRegistry())).Poll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, upkeep.closed)
}

func TestRunClosesRoundAndStops(t *testing.T) {
	upkeep := &stubUpkeep{needed: true}
	k := New(upkeep, operator, 5*time.Millisecond, metrics.New(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	require.Eventually(t, func() bool { return testutil.ToFloat64(k.metrics.UpkeepPerformed) > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("keeper did not stop")
	}
}
