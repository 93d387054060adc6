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
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// DetectExecError returns the execution error steps[0] fails with, either
// reported by the tracer or derived from the shadow state of the current call.
func (s *CircuitInputStateRef) DetectExecError(steps []logger.StructLog) (evm.ExecError, bool) {
	trace := &steps[0]
	if execErr, ok := evm.ParseTraceError(trace.Error); ok {
		return execErr, true
	}
	info := evm.Info(trace.Op)
	if !info.Valid {
		return evm.ErrInvalidOpcode, true
	}
	call, err := s.Call()
	if err != nil {
		return 0, false
	}
	n := len(call.stack)
	if n < info.MinStack {
		return evm.ErrStackUnderflow, true
	}
	if n > info.MaxStack {
		return evm.ErrStackOverflow, true
	}
	peek := func(i int) uint256.Int {
		v, _ := call.stack.NthLast(i)
		return v
	}
	if call.IsStatic {
		if info.Writes {
			return evm.ErrWriteProtection, true
		}
		if value := peek(2); trace.Op == vm.CALL && !value.IsZero() {
			return evm.ErrWriteProtection, true
		}
	}
	switch trace.Op {
	case vm.JUMP:
		if dest := peek(0); !s.IsValidJump(call, &dest) {
			return evm.ErrInvalidJump, true
		}
	case vm.JUMPI:
		if dest, cond := peek(0), peek(1); !cond.IsZero() && !s.IsValidJump(call, &dest) {
			return evm.ErrInvalidJump, true
		}
	case vm.RETURNDATACOPY:
		offset, size := peek(1), peek(2)
		var end uint256.Int
		if _, overflow := end.AddOverflow(&offset, &size); overflow || !end.IsUint64() || end.Uint64() > uint64(len(call.ReturnData)) {
			return evm.ErrReturnDataOutOfBounds, true
		}
	}
	return 0, false
}
