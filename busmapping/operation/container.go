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
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

var (
	ErrInconsistentRead = errors.New("inconsistent read")
	ErrRWLimitExceeded  = errors.New("rw counter limit exceeded")
	ErrUnknownOp        = errors.New("unknown operation type")
)

// Operation is one entry of a typed log: the block-wide sequence number it was
// assigned, the access direction and the payload.
type Operation[T Op] struct {
	RWC uint64
	RW  RW
	Op  T
}

func (o Operation[T]) Entry() Entry { return Entry{RWC: o.RWC, RW: o.RW, Op: o.Op} }

// Entry is the untyped view of an Operation.
type Entry struct {
	RWC uint64
	RW  RW
	Op  Op
}

func (e Entry) Target() Target { return e.Op.Target() }

func (e Entry) String() string {
	return fmt.Sprintf("#%d %s %s %v", e.RWC, e.RW, e.Op.Target(), e.Op)
}

// Ref points at an entry of a container: the typed log and the position in it.
type Ref struct {
	Target Target
	Index  int
}

func (r Ref) String() string { return fmt.Sprintf("%s[%d]", r.Target, r.Index) }

type stateKey struct {
	target Target
	key    Key
}

// Container holds the append-only typed logs of a block. Insert is the only
// place that draws rw counter values, so the entries of all logs together
// carry every value in [0, RWCounter()) exactly once.
type Container struct {
	mu     sync.Mutex
	rwc    uint64
	maxRws uint64

	stack             []Operation[StackOp]
	memory            []Operation[MemoryOp]
	storage           []Operation[StorageOp]
	account           []Operation[AccountOp]
	callContext       []Operation[CallContextOp]
	txReceipt         []Operation[TxReceiptOp]
	txLog             []Operation[TxLogOp]
	txRefund          []Operation[TxRefundOp]
	txAccessList      []Operation[TxAccessListAccountOp]
	txAccessListStore []Operation[TxAccessListAccountStorageOp]

	last map[stateKey]uint256.Int
}

// NewContainer returns an empty container. maxRws of 0 means unbounded.
func NewContainer(maxRws uint64) *Container {
	return &Container{maxRws: maxRws, last: make(map[stateKey]uint256.Int)}
}

// RWCounter returns the next sequence number to be assigned, which is also the
// total number of entries.
func (c *Container) RWCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rwc
}

// Insert appends op to the log of its target under the next rw counter value.
func (c *Container) Insert(rw RW, op Op) (Ref, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxRws > 0 && c.rwc >= c.maxRws {
		return Ref{}, fmt.Errorf("%w: max %d", ErrRWLimitExceeded, c.maxRws)
	}
	sk := stateKey{target: op.Target(), key: op.Key()}
	if err := c.checkConsistency(sk, rw, op); err != nil {
		return Ref{}, err
	}

	rwc := c.rwc
	var index int
	switch o := op.(type) {
	case StackOp:
		c.stack, index = push(c.stack, rwc, rw, o)
	case MemoryOp:
		c.memory, index = push(c.memory, rwc, rw, o)
	case StorageOp:
		c.storage, index = push(c.storage, rwc, rw, o)
	case AccountOp:
		c.account, index = push(c.account, rwc, rw, o)
	case CallContextOp:
		c.callContext, index = push(c.callContext, rwc, rw, o)
	case TxReceiptOp:
		c.txReceipt, index = push(c.txReceipt, rwc, rw, o)
	case TxLogOp:
		c.txLog, index = push(c.txLog, rwc, rw, o)
	case TxRefundOp:
		c.txRefund, index = push(c.txRefund, rwc, rw, o)
	case TxAccessListAccountOp:
		c.txAccessList, index = push(c.txAccessList, rwc, rw, o)
	case TxAccessListAccountStorageOp:
		c.txAccessListStore, index = push(c.txAccessListStore, rwc, rw, o)
	default:
		return Ref{}, fmt.Errorf("%w: %T", ErrUnknownOp, op)
	}
	c.rwc++
	c.last[sk] = op.StateValue()
	return Ref{Target: sk.target, Index: index}, nil
}

func push[T Op](log []Operation[T], rwc uint64, rw RW, op T) ([]Operation[T], int) {
	return append(log, Operation[T]{RWC: rwc, RW: rw, Op: op}), len(log)
}

// zeroInitialised targets read as zero until first written.
func zeroInitialised(t Target) bool {
	switch t {
	case Memory, TxRefund, TxAccessListAccount, TxAccessListAccountStorage:
		return true
	}
	return false
}

// strict targets can only be read after being written in the same block.
func strict(t Target) bool {
	return t == Stack || t == CallContext
}

func (c *Container) checkConsistency(sk stateKey, rw RW, op Op) error {
	last, known := c.last[sk]
	if !known && zeroInitialised(sk.target) {
		known = true
	}
	if rw == Read {
		if !known {
			if strict(sk.target) {
				return fmt.Errorf("%w: %s read of unwritten key %v", ErrInconsistentRead, sk.target, op)
			}
			return nil
		}
		if v := op.StateValue(); !v.Eq(&last) {
			return fmt.Errorf("%w: %s read %s, last value %s (%v)", ErrInconsistentRead, sk.target, v.Hex(), last.Hex(), op)
		}
		return nil
	}
	if rop, ok := op.(ReversibleOp); ok && known {
		if prev := rop.PrevValue(); !prev.Eq(&last) {
			return fmt.Errorf("%w: %s write prev %s, last value %s (%v)", ErrInconsistentRead, sk.target, prev.Hex(), last.Hex(), op)
		}
	}
	return nil
}

// Lookup resolves a back-reference.
func (c *Container) Lookup(ref Ref) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.entries(ref.Target)
	if ref.Index < 0 || ref.Index >= len(entries) {
		return Entry{}, false
	}
	return entries[ref.Index], true
}

// Entries returns the log of target in insertion order.
func (c *Container) Entries(target Target) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries(target)
}

// Len returns the number of entries logged for target.
func (c *Container) Len(target Target) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch target {
	case Stack:
		return len(c.stack)
	case Memory:
		return len(c.memory)
	case Storage:
		return len(c.storage)
	case Account:
		return len(c.account)
	case CallContext:
		return len(c.callContext)
	case TxReceipt:
		return len(c.txReceipt)
	case TxLog:
		return len(c.txLog)
	case TxRefund:
		return len(c.txRefund)
	case TxAccessListAccount:
		return len(c.txAccessList)
	case TxAccessListAccountStorage:
		return len(c.txAccessListStore)
	}
	return 0
}

func (c *Container) entries(target Target) []Entry {
	switch target {
	case Stack:
		return toEntries(c.stack)
	case Memory:
		return toEntries(c.memory)
	case Storage:
		return toEntries(c.storage)
	case Account:
		return toEntries(c.account)
	case CallContext:
		return toEntries(c.callContext)
	case TxReceipt:
		return toEntries(c.txReceipt)
	case TxLog:
		return toEntries(c.txLog)
	case TxRefund:
		return toEntries(c.txRefund)
	case TxAccessListAccount:
		return toEntries(c.txAccessList)
	case TxAccessListAccountStorage:
		return toEntries(c.txAccessListStore)
	}
	return nil
}

func toEntries[T Op](log []Operation[T]) []Entry {
	out := make([]Entry, len(log))
	for i, o := range log {
		out[i] = o.Entry()
	}
	return out
}

func clone[T Op](log []Operation[T]) []Operation[T] {
	return append([]Operation[T](nil), log...)
}

func (c *Container) StackOps() []Operation[StackOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.stack)
}

func (c *Container) MemoryOps() []Operation[MemoryOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.memory)
}

func (c *Container) StorageOps() []Operation[StorageOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.storage)
}

func (c *Container) AccountOps() []Operation[AccountOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.account)
}

func (c *Container) CallContextOps() []Operation[CallContextOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.callContext)
}

func (c *Container) TxReceiptOps() []Operation[TxReceiptOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.txReceipt)
}

func (c *Container) TxLogOps() []Operation[TxLogOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.txLog)
}

func (c *Container) TxRefundOps() []Operation[TxRefundOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.txRefund)
}

func (c *Container) TxAccessListAccountOps() []Operation[TxAccessListAccountOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.txAccessList)
}

func (c *Container) TxAccessListAccountStorageOps() []Operation[TxAccessListAccountStorageOp] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.txAccessListStore)
}

// All returns every entry of the block ordered by rw counter.
func (c *Container) All() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, c.rwc)
	for _, t := range Targets {
		for _, e := range c.entries(t) {
			out[e.RWC] = e
		}
	}
	return out
}
