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

package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RW marks an operation as a read or a write of its resource.
type RW uint8

const (
	Read RW = iota
	Write
)

func (rw RW) IsWrite() bool { return rw == Write }

func (rw RW) String() string {
	if rw == Write {
		return "WRITE"
	}
	return "READ"
}

// Target identifies the container, i.e. the kind of resource, an operation
// belongs to.
type Target uint8

const (
	Stack Target = iota + 1
	Memory
	Storage
	Account
	CallContext
	TxReceipt
	TxLog
	TxRefund
	TxAccessListAccount
	TxAccessListAccountStorage
)

// Targets lists every container kind in circuit order.
var Targets = []Target{
	Stack, Memory, Storage, Account, CallContext,
	TxReceipt, TxLog, TxRefund, TxAccessListAccount, TxAccessListAccountStorage,
}

var targetNames = map[Target]string{
	Stack:                      "Stack",
	Memory:                     "Memory",
	Storage:                    "Storage",
	Account:                    "Account",
	CallContext:                "CallContext",
	TxReceipt:                  "TxReceipt",
	TxLog:                      "TxLog",
	TxRefund:                   "TxRefund",
	TxAccessListAccount:        "TxAccessListAccount",
	TxAccessListAccountStorage: "TxAccessListAccountStorage",
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// Key is the identity of a resource inside its container. Keys are fixed
// width and big endian so that byte order is the circuit's sort order.
type Key [64]byte

type keyBuilder struct {
	key Key
	n   int
}

func (b *keyBuilder) u8(v uint8) *keyBuilder {
	b.key[b.n] = v
	b.n++
	return b
}

func (b *keyBuilder) u64(v uint64) *keyBuilder {
	binary.BigEndian.PutUint64(b.key[b.n:], v)
	b.n += 8
	return b
}

func (b *keyBuilder) address(a common.Address) *keyBuilder {
	b.n += copy(b.key[b.n:], a[:])
	return b
}

func (b *keyBuilder) word(w *uint256.Int) *keyBuilder {
	buf := w.Bytes32()
	b.n += copy(b.key[b.n:], buf[:])
	return b
}

func boolWord(b bool) uint256.Int {
	if b {
		return *uint256.NewInt(1)
	}
	return uint256.Int{}
}
