// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package circuitinput

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

type slotKey struct {
	addr common.Address
	slot uint256.Int
}

type accountState struct {
	nonce    uint64
	balance  uint256.Int
	codeHash common.Hash
	storage  map[uint256.Int]uint256.Int
}

// StateDB is the builder's view of world state. It starts from the trace's
// pre-state and is only changed by applying reversible operations, so undoing
// a failed call is applying the reversed operations.
type StateDB struct {
	accounts map[common.Address]*accountState

	// per transaction
	committed    map[slotKey]uint256.Int
	warmAccounts mapset.Set[common.Address]
	warmSlots    mapset.Set[slotKey]
	refund       uint64
}

// NewStateDB loads the pre-state and registers every contract code in codes.
func NewStateDB(prestate map[common.Address]logger.Account, codes map[common.Hash][]byte) *StateDB {
	sdb := &StateDB{
		accounts:     make(map[common.Address]*accountState, len(prestate)),
		committed:    make(map[slotKey]uint256.Int),
		warmAccounts: mapset.NewThreadUnsafeSet[common.Address](),
		warmSlots:    mapset.NewThreadUnsafeSet[slotKey](),
	}
	for addr, acc := range prestate {
		st := &accountState{nonce: acc.Nonce, storage: make(map[uint256.Int]uint256.Int, len(acc.Storage))}
		st.balance.SetFromBig(logger.BigOrZero(acc.Balance))
		st.codeHash = crypto.Keccak256Hash(acc.Code)
		codes[st.codeHash] = common.CopyBytes(acc.Code)
		for k, v := range acc.Storage {
			var key, value uint256.Int
			key.SetBytes32(k[:])
			value.SetBytes32(v[:])
			st.storage[key] = value
		}
		sdb.accounts[addr] = st
	}
	return sdb
}

// Exists reports whether addr is known to the state.
func (s *StateDB) Exists(addr common.Address) bool {
	_, ok := s.accounts[addr]
	return ok
}

// IsEmpty reports whether addr has no nonce, no balance and no code (EIP-161).
func (s *StateDB) IsEmpty(addr common.Address) bool {
	acc, ok := s.accounts[addr]
	return !ok || (acc.nonce == 0 && acc.balance.IsZero() && (acc.codeHash == types.EmptyCodeHash || acc.codeHash == common.Hash{}))
}

func (s *StateDB) account(addr common.Address) *accountState {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = &accountState{storage: make(map[uint256.Int]uint256.Int)}
		s.accounts[addr] = acc
	}
	return acc
}

func (s *StateDB) Nonce(addr common.Address) uint64 {
	if acc, ok := s.accounts[addr]; ok {
		return acc.nonce
	}
	return 0
}

func (s *StateDB) Balance(addr common.Address) uint256.Int {
	if acc, ok := s.accounts[addr]; ok {
		return acc.balance
	}
	return uint256.Int{}
}

// CodeHash returns the code hash of addr, or the zero hash for accounts that
// do not exist.
func (s *StateDB) CodeHash(addr common.Address) common.Hash {
	if acc, ok := s.accounts[addr]; ok {
		return acc.codeHash
	}
	return common.Hash{}
}

// AccountField returns the current value of an account attribute as a word.
func (s *StateDB) AccountField(addr common.Address, field operation.AccountField) uint256.Int {
	switch field {
	case operation.AccountNonce:
		return *uint256.NewInt(s.Nonce(addr))
	case operation.AccountBalance:
		return s.Balance(addr)
	case operation.AccountCodeHash:
		h := s.CodeHash(addr)
		var w uint256.Int
		w.SetBytes32(h[:])
		return w
	}
	return uint256.Int{}
}

func (s *StateDB) State(addr common.Address, slot uint256.Int) uint256.Int {
	if acc, ok := s.accounts[addr]; ok {
		return acc.storage[slot]
	}
	return uint256.Int{}
}

// CommittedState returns the value slot held when the current transaction
// started.
func (s *StateDB) CommittedState(addr common.Address, slot uint256.Int) uint256.Int {
	k := slotKey{addr, slot}
	if v, ok := s.committed[k]; ok {
		return v
	}
	v := s.State(addr, slot)
	s.committed[k] = v
	return v
}

func (s *StateDB) Refund() uint64 { return s.refund }

func (s *StateDB) IsWarmAccount(addr common.Address) bool { return s.warmAccounts.Contains(addr) }

func (s *StateDB) IsWarmSlot(addr common.Address, slot uint256.Int) bool {
	return s.warmSlots.Contains(slotKey{addr, slot})
}

// StartTx resets the transaction scoped state.
func (s *StateDB) StartTx() {
	clear(s.committed)
	s.warmAccounts.Clear()
	s.warmSlots.Clear()
	s.refund = 0
}

// Apply makes the state reflect op. Only state changing operations are
// accepted.
func (s *StateDB) Apply(op operation.Op) error {
	switch o := op.(type) {
	case operation.StorageOp:
		s.CommittedState(o.Address, o.Slot)
		s.account(o.Address).storage[o.Slot] = o.Value
	case operation.AccountOp:
		acc := s.account(o.Address)
		switch o.Field {
		case operation.AccountNonce:
			acc.nonce = o.Value.Uint64()
		case operation.AccountBalance:
			acc.balance = o.Value
		case operation.AccountCodeHash:
			acc.codeHash = o.Value.Bytes32()
		}
	case operation.TxRefundOp:
		s.refund = o.Value
	case operation.TxAccessListAccountOp:
		if o.IsWarm {
			s.warmAccounts.Add(o.Address)
		} else {
			s.warmAccounts.Remove(o.Address)
		}
	case operation.TxAccessListAccountStorageOp:
		k := slotKey{o.Address, o.Slot}
		if o.IsWarm {
			s.warmSlots.Add(k)
		} else {
			s.warmSlots.Remove(k)
		}
	default:
		return fmt.Errorf("%w: %T does not change state", operation.ErrUnknownOp, op)
	}
	return nil
}
