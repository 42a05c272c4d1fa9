package blockchain

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferRejected    = errors.New("recipient rejected transfer")
)

// Message is the envelope of a state-mutating call: who calls, which account
// is called and how much native currency is attached.
type Message struct {
	From  common.Address
	To    common.Address
	Value *uint256.Int
}

type Log struct {
	Index    uint64
	TxHash   common.Hash
	Contract common.Address
	Name     string
	Event    any
	Time     time.Time
}

type Receipt struct {
	TxHash common.Hash
	Time   time.Time
	Logs   []Log
}

// world is an immutable snapshot of everything the ledger tracks. Writers work
// on a clone and publish it with a single pointer swap.
type world struct {
	balances map[common.Address]*uint256.Int
	storage  map[common.Address]any
	nonces   map[common.Address]uint64
	rejects  map[common.Address]bool
}

func newWorld() *world {
	return &world{
		balances: make(map[common.Address]*uint256.Int),
		storage:  make(map[common.Address]any),
		nonces:   make(map[common.Address]uint64),
		rejects:  make(map[common.Address]bool),
	}
}

func (w *world) clone() *world {
	return &world{
		balances: maps.Clone(w.balances),
		storage:  maps.Clone(w.storage),
		nonces:   maps.Clone(w.nonces),
		rejects:  maps.Clone(w.rejects),
	}
}

func (w *world) balanceOf(address common.Address) *uint256.Int {
	if balance, ok := w.balances[address]; ok {
		return balance.Clone()
	}

	return new(uint256.Int)
}

// Ledger is an in-process execution environment. State-mutating calls are
// serialized and either commit completely or not at all; read-only calls see
// the latest committed snapshot and never wait for writers.
type Ledger struct {
	mu    sync.Mutex
	clock Clock
	state atomic.Pointer[world]

	logsMu      sync.RWMutex
	logs        []Log
	subscribers map[chan struct{}]struct{}
}

func NewLedger(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}

	l := &Ledger{
		clock:       clock,
		subscribers: make(map[chan struct{}]struct{}),
	}
	l.state.Store(newWorld())

	return l
}

func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Execute runs fn as one atomic call. The attached value moves from sender to
// recipient before fn runs; any error (or panic) returned by fn discards every
// balance, storage and log change made during the call.
func (l *Ledger) Execute(msg Message, fn func(tx *Tx) error) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := l.state.Load().clone()
	nonce := working.nonces[msg.From]
	working.nonces[msg.From] = nonce + 1

	tx := &Tx{
		world: working,
		msg:   msg,
		nonce: nonce,
		now:   l.clock.Now(),
		hash:  crypto.Keccak256Hash(msg.From.Bytes(), uint256.NewInt(nonce).PaddedBytes(32)),
	}

	if msg.Value != nil && !msg.Value.IsZero() {
		if err := tx.Transfer(msg.From, msg.To, msg.Value); err != nil {
			return nil, fmt.Errorf("attach value: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return nil, err
	}

	l.state.Store(working)
	return l.publish(tx), nil
}

func (l *Ledger) publish(tx *Tx) *Receipt {
	l.logsMu.Lock()
	receipt := &Receipt{TxHash: tx.hash, Time: tx.now, Logs: make([]Log, 0, len(tx.logs))}
	for _, pending := range tx.logs {
		pending.Index = uint64(len(l.logs))
		l.logs = append(l.logs, pending)
		receipt.Logs = append(receipt.Logs, pending)
	}

	subscribers := make([]chan struct{}, 0, len(l.subscribers))
	for ch := range l.subscribers {
		subscribers = append(subscribers, ch)
	}
	l.logsMu.Unlock()

	if len(receipt.Logs) > 0 {
		for _, ch := range subscribers {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}

	return receipt
}

// Mint credits amount to address outside of any call, the way a genesis
// allocation or a faucet would.
func (l *Ledger) Mint(address common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := l.state.Load().clone()
	working.balances[address] = new(uint256.Int).Add(working.balanceOf(address), amount)
	l.state.Store(working)
}

// RejectPayments marks address as unable to receive native currency.
func (l *Ledger) RejectPayments(address common.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	working := l.state.Load().clone()
	if reject {
		working.rejects[address] = true
	} else {
		delete(working.rejects, address)
	}
	l.state.Store(working)
}

func (l *Ledger) BalanceOf(address common.Address) *uint256.Int {
	return l.state.Load().balanceOf(address)
}

func (l *Ledger) Nonce(address common.Address) uint64 {
	return l.state.Load().nonces[address]
}

// View returns the latest committed snapshot.
func (l *Ledger) View() *View {
	return &View{world: l.state.Load(), now: l.clock.Now()}
}

// Logs returns every committed log with an index greater or equal to from.
func (l *Ledger) Logs(from uint64) []Log {
	l.logsMu.RLock()
	defer l.logsMu.RUnlock()

	if from >= uint64(len(l.logs)) {
		return nil
	}

	return append([]Log(nil), l.logs[from:]...)
}

// Head returns the index the next committed log will get.
func (l *Ledger) Head() uint64 {
	l.logsMu.RLock()
	defer l.logsMu.RUnlock()

	return uint64(len(l.logs))
}

// Subscribe returns a channel signalled (without blocking the ledger) after
// each call that committed logs, and a function that cancels the subscription.
func (l *Ledger) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	l.logsMu.Lock()
	l.subscribers[ch] = struct{}{}
	l.logsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.logsMu.Lock()
			delete(l.subscribers, ch)
			l.logsMu.Unlock()
		})
	}
}

type View struct {
	world *world
	now   time.Time
}

func (v *View) Now() time.Time {
	return v.now
}

func (v *View) BalanceOf(address common.Address) *uint256.Int {
	return v.world.balanceOf(address)
}

func (v *View) Storage(address common.Address) any {
	return v.world.storage[address]
}
