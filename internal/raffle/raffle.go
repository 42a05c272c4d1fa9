// Package raffle implements the raffle contract: entrants pay a fixed fee
// into a pool, an automation service closes the round once the interval has
// passed, and the randomness coordinator's answer picks the winner who
// receives the whole pool.
//
// Every state-mutating operation runs as a single ledger call, so a rejected
// operation never leaves a partial change behind.
package raffle

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"lottery/internal/blockchain"
	"lottery/internal/logger"
	"lottery/internal/vrf"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

const (
	DefaultRequestConfirmations uint16 = 3
	DefaultNumWords             uint32 = 1
)

type RoundState uint8

const (
	Open RoundState = iota
	Calculating
)

func (s RoundState) String() string {
	switch s {
	case Open:
		return "open"
	case Calculating:
		return "calculating"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Config is fixed at deployment. The oracle routing fields are handed to the
// coordinator untouched.
type Config struct {
	EntranceFee          *uint256.Int
	Interval             time.Duration
	KeyHash              common.Hash
	SubscriptionID       uint64
	CallbackGasLimit     uint32
	RequestConfirmations uint16
	NumWords             uint32
}

func (c Config) Validate() error {
	if c.EntranceFee == nil || c.EntranceFee.IsZero() {
		return fmt.Errorf("%w: entrance fee must be positive", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.NumWords == 0 || c.NumWords > vrf.MaxNumWords {
		return fmt.Errorf("%w: number of words must be within 1..%d", ErrInvalidConfig, vrf.MaxNumWords)
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.RequestConfirmations == 0 {
		c.RequestConfirmations = DefaultRequestConfirmations
	}
	if c.NumWords == 0 {
		c.NumWords = DefaultNumWords
	}
	if c.EntranceFee != nil {
		c.EntranceFee = c.EntranceFee.Clone()
	}

	return c
}

// state is what the contract keeps in ledger storage. Committed values are
// shared with readers, so every change goes through clone.
type state struct {
	roundState     RoundState
	players        []common.Address
	lastSettledAt  time.Time
	pendingRequest *common.Hash
	recentWinner   common.Address
	recentBalance  *uint256.Int
}

func (s *state) clone() *state {
	next := *s
	next.players = slices.Clone(s.players)
	return &next
}

type Contract struct {
	ledger      *blockchain.Ledger
	coordinator vrf.Coordinator
	address     common.Address
	config      Config
}

// Deploy creates the contract on ledger in the Open state with the round
// clock started at the deployment time.
func Deploy(ledger *blockchain.Ledger, coordinator vrf.Coordinator, deployer common.Address, config Config) (*Contract, error) {
	logger.Debug("raffle: deploying...")

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if coordinator == nil {
		return nil, fmt.Errorf("%w: missing coordinator", ErrInvalidConfig)
	}

	c := &Contract{
		ledger:      ledger,
		coordinator: coordinator,
		config:      config,
	}

	_, err := ledger.Execute(blockchain.Message{From: deployer}, func(tx *blockchain.Tx) error {
		c.address = tx.ContractAddress()
		tx.SetStorage(c.address, &state{
			roundState:    Open,
			lastSettledAt: tx.Now(),
			recentBalance: new(uint256.Int),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("raffle: deploying... done",
		zap.String("address", c.address.Hex()),
		zap.String("entrance fee", config.EntranceFee.Dec()),
		zap.Duration("interval", config.Interval),
		zap.Uint64("subscription id", config.SubscriptionID),
	)
	return c, nil
}

func (c *Contract) load(tx *blockchain.Tx) *state {
	return tx.Storage(c.address).(*state)
}

func (c *Contract) committed() (*state, *blockchain.View) {
	view := c.ledger.View()
	return view.Storage(c.address).(*state), view
}

// WinnerIndex maps a random word onto a pool of size players.
func WinnerIndex(word *uint256.Int, players int) int {
	if players <= 0 {
		panic("raffle: winner index of an empty pool")
	}

	return int(new(uint256.Int).Mod(word, uint256.NewInt(uint64(players))).Uint64())
}

// IsRejection reports whether err is one of the contract's own rejections.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrNotEnoughFunds,
		ErrNotOpen,
		ErrUpkeepNotNeeded,
		ErrUnknownRequest,
		ErrTransferFailed,
		ErrIndexOutOfRange,
		ErrOnlyCoordinatorCanFulfill,
		ErrNoRandomWords,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
