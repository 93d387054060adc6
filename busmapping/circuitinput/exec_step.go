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

	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

// ExecState is what a step executes: one of the 256 opcodes or a transaction
// boundary.
type ExecState uint16

const (
	ExecStateBeginTx ExecState = 0x100 + iota
	ExecStateEndTx
)

func ExecStateOp(op vm.OpCode) ExecState { return ExecState(op) }

func (s ExecState) IsOp() bool { return s < 0x100 }

func (s ExecState) String() string {
	switch s {
	case ExecStateBeginTx:
		return "BeginTx"
	case ExecStateEndTx:
		return "EndTx"
	}
	if s.IsOp() {
		return vm.OpCode(s).String()
	}
	return fmt.Sprintf("ExecState(%d)", uint16(s))
}

// ExecStep is the circuit view of one executed instruction, or of a
// transaction boundary, with the operations it generated.
type ExecStep struct {
	ExecState ExecState
	PC        uint64
	Op        vm.OpCode
	Gas       uint64
	GasCost   uint64
	Depth     int
	CallIndex int
	// RWCounter is the rw counter value when the step started.
	RWCounter              uint64
	ReversibleWriteCounter int
	StackSize              int
	MemorySize             uint64 // words
	LogID                  uint64
	// Error is nil or an evm.ExecError.
	Error error

	BusMappingInstance []operation.Ref
}

func (s *ExecStep) String() string {
	if s.Error != nil {
		return fmt.Sprintf("%s pc=%d gas=%d rwc=%d ops=%d err=%v", s.ExecState, s.PC, s.Gas, s.RWCounter, len(s.BusMappingInstance), s.Error)
	}
	return fmt.Sprintf("%s pc=%d gas=%d rwc=%d ops=%d", s.ExecState, s.PC, s.Gas, s.RWCounter, len(s.BusMappingInstance))
}
