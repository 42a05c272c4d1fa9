package blockchain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Tx is the execution context handed to a call. It is only valid inside the
// function passed to Ledger.Execute.
type Tx struct {
	world *world
	msg   Message
	nonce uint64
	now   time.Time
	hash  common.Hash
	logs  []Log
}

func (tx *Tx) Sender() common.Address {
	return tx.msg.From
}

func (tx *Tx) Recipient() common.Address {
	return tx.msg.To
}

func (tx *Tx) Value() *uint256.Int {
	if tx.msg.Value == nil {
		return new(uint256.Int)
	}

	return tx.msg.Value.Clone()
}

func (tx *Tx) Now() time.Time {
	return tx.now
}

func (tx *Tx) Hash() common.Hash {
	return tx.hash
}

// ContractAddress is the address a contract created by this call receives.
func (tx *Tx) ContractAddress() common.Address {
	return crypto.CreateAddress(tx.msg.From, tx.nonce)
}

func (tx *Tx) BalanceOf(address common.Address) *uint256.Int {
	return tx.world.balanceOf(address)
}

func (tx *Tx) Transfer(from common.Address, to common.Address, amount *uint256.Int) error {
	if tx.world.rejects[to] {
		return fmt.Errorf("%w: %s", ErrTransferRejected, to.Hex())
	}

	balance := tx.world.balanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), amount.Dec())
	}

	tx.world.balances[from] = new(uint256.Int).Sub(balance, amount)
	tx.world.balances[to] = new(uint256.Int).Add(tx.world.balanceOf(to), amount)

	return nil
}

// Storage returns the value a contract stored at address. Stored values are
// shared with committed snapshots and must be replaced, never mutated.
func (tx *Tx) Storage(address common.Address) any {
	return tx.world.storage[address]
}

func (tx *Tx) SetStorage(address common.Address, value any) {
	tx.world.storage[address] = value
}

func (tx *Tx) Emit(contract common.Address, name string, event any) {
	tx.logs = append(tx.logs, Log{
		TxHash:   tx.hash,
		Contract: contract,
		Name:     name,
		Event:    event,
		Time:     tx.now,
	})
}
