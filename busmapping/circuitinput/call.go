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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

// CallKind is the instruction, or transaction type, that opened a call frame.
type CallKind uint8

const (
	CallKindCall CallKind = iota
	CallKindCallCode
	CallKindDelegateCall
	CallKindStaticCall
	CallKindCreate
	CallKindCreate2
)

// CallKindOf maps a call or create opcode to its kind.
func CallKindOf(op vm.OpCode) (CallKind, bool) {
	switch op {
	case vm.CALL:
		return CallKindCall, true
	case vm.CALLCODE:
		return CallKindCallCode, true
	case vm.DELEGATECALL:
		return CallKindDelegateCall, true
	case vm.STATICCALL:
		return CallKindStaticCall, true
	case vm.CREATE:
		return CallKindCreate, true
	case vm.CREATE2:
		return CallKindCreate2, true
	}
	return 0, false
}

func (k CallKind) IsCreate() bool { return k == CallKindCreate || k == CallKindCreate2 }

func (k CallKind) String() string {
	switch k {
	case CallKindCall:
		return "CALL"
	case CallKindCallCode:
		return "CALLCODE"
	case CallKindDelegateCall:
		return "DELEGATECALL"
	case CallKindStaticCall:
		return "STATICCALL"
	case CallKindCreate:
		return "CREATE"
	case CallKindCreate2:
		return "CREATE2"
	}
	return fmt.Sprintf("CallKind(%d)", uint8(k))
}

// CallStatus is the state of a call frame. Success and Failure are terminal.
type CallStatus uint8

const (
	CallActive CallStatus = iota
	CallSuccess
	CallFailure
)

func (s CallStatus) String() string {
	switch s {
	case CallActive:
		return "active"
	case CallSuccess:
		return "success"
	case CallFailure:
		return "failure"
	}
	return fmt.Sprintf("CallStatus(%d)", uint8(s))
}

// Call is one call frame of a transaction.
type Call struct {
	CallID      uint64
	Index       int
	ParentIndex int // -1 for the root call
	Kind        CallKind
	IsStatic    bool
	IsRoot      bool
	Depth       int

	CallerAddress common.Address
	Address       common.Address
	CodeAddress   common.Address
	CodeHash      common.Hash
	Value         uint256.Int

	CallDataOffset   uint64
	CallData         []byte
	ReturnDataOffset uint64
	ReturnDataLength uint64

	Status       CallStatus
	IsPersistent bool

	RWCounterStart uint64
	RWCounterEnd   uint64

	Steps []*ExecStep

	// ReturnData is the output of the last completed sub call, or of this call
	// once it completed.
	ReturnData []byte
	Output     []byte

	expectSuccess bool
	saved         savedContext
	journal       []operation.ReversibleOp
	executed      int
	stack         evm.Stack
	memory        evm.Memory
	nextPC        uint64
	lastOp        vm.OpCode
	lastGas       uint64
	lastGasCost   uint64
	jumpDests     evm.JumpDests
}

// savedContext is the caller state written when a sub call is entered and
// read back when it returns.
type savedContext struct {
	pc, stackPointer, gasLeft, memorySize, reversibleWrites uint64
}

func (c *Call) IsCreate() bool { return c.Kind.IsCreate() }

// IsSuccess reports the call outcome the trace announced when the call was
// entered.
func (c *Call) IsSuccess() bool { return c.expectSuccess }

// Stack returns a copy of the shadow stack of the call.
func (c *Call) Stack() evm.Stack { return c.stack.Copy() }

// Memory returns a copy of the shadow memory of the call.
func (c *Call) Memory() evm.Memory { return c.memory.Copy() }

// MemoryWords is the size of the call's memory in words.
func (c *Call) MemoryWords() uint64 { return c.memory.WordCount() }

// ReversibleWriteCounter is the number of reversible writes made in the call
// and its successful sub calls so far.
func (c *Call) ReversibleWriteCounter() int { return len(c.journal) }

func (c *Call) String() string {
	return fmt.Sprintf("call %d (%s depth %d %s)", c.CallID, c.Kind, c.Depth, c.Status)
}
