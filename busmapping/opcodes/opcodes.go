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

// Package opcodes holds one handler per EVM instruction. Each handler turns a
// traced step into the ordered operations the circuit needs to verify it; the
// order is documented on every handler.
package opcodes

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

type handlerFunc = circuitinput.OpcodeHandlerFunc

// Table maps every opcode id to its handler.
type Table [256]circuitinput.OpcodeHandler

var _ circuitinput.Dispatcher = (*Table)(nil)

// Handler returns the handler of op.
func (t *Table) Handler(op vm.OpCode) circuitinput.OpcodeHandler {
	return t[op]
}

// DefaultTable is the handler table for the Cancun instruction set.
var DefaultTable = NewTable()

// NewTable builds a handler table. Undefined opcodes map to a handler that
// fails with an invalid opcode error.
func NewTable() *Table {
	t := &Table{}
	for i := range t {
		op := vm.OpCode(i)
		info := evm.Info(op)
		switch {
		case !info.Valid:
			t[i] = handlerFunc(invalid)
		case op == vm.PUSH0 || evm.IsPush(op):
			t[i] = handlerFunc(push)
		case evm.IsDup(op):
			t[i] = handlerFunc(dup)
		case evm.IsSwap(op):
			t[i] = handlerFunc(swap)
		case evm.IsLog(op):
			t[i] = handlerFunc(logOp)
		default:
			t[i] = stackOnly(info.Pops, info.Pushes)
		}
	}
	for op, field := range callContextOps {
		t[op] = callContextHandler(field)
	}
	t[vm.CALLER] = handlerFunc(caller)

	t[vm.POP] = handlerFunc(pop)
	t[vm.PC] = handlerFunc(pc)
	t[vm.MLOAD] = handlerFunc(mload)
	t[vm.MSTORE] = handlerFunc(mstore)
	t[vm.MSTORE8] = handlerFunc(mstore8)
	t[vm.MSIZE] = handlerFunc(msize)
	t[vm.CALLDATALOAD] = handlerFunc(calldataload)
	t[vm.CALLDATACOPY] = handlerFunc(calldatacopy)
	t[vm.CODECOPY] = handlerFunc(codecopy)
	t[vm.EXTCODECOPY] = handlerFunc(extcodecopy)
	t[vm.RETURNDATACOPY] = handlerFunc(returndatacopy)
	t[vm.MCOPY] = handlerFunc(mcopy)
	t[vm.KECCAK256] = handlerFunc(keccak256)
	t[vm.SLOAD] = handlerFunc(sload)
	t[vm.SSTORE] = handlerFunc(sstore)
	t[vm.BALANCE] = handlerFunc(balance)
	t[vm.SELFBALANCE] = handlerFunc(selfbalance)
	t[vm.EXTCODEHASH] = handlerFunc(extcodehash)
	t[vm.EXTCODESIZE] = handlerFunc(extcodesize)
	t[vm.JUMP] = handlerFunc(jump)
	t[vm.JUMPI] = handlerFunc(jumpi)
	t[vm.JUMPDEST] = stackOnly(0, 0)
	for _, op := range []vm.OpCode{vm.CALL, vm.CALLCODE, vm.DELEGATECALL, vm.STATICCALL} {
		t[op] = handlerFunc(callOp)
	}
	t[vm.CREATE] = handlerFunc(create)
	t[vm.CREATE2] = handlerFunc(create)
	t[vm.STOP] = handlerFunc(stop)
	t[vm.RETURN] = handlerFunc(returnRevert)
	t[vm.REVERT] = handlerFunc(returnRevert)
	t[vm.SELFDESTRUCT] = handlerFunc(selfdestruct)
	return t
}

// invalid opens the step and fails it. The builder normally classifies
// undefined opcodes before any handler runs.
func invalid(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	if _, err := state.NewStep(&steps[0]); err != nil {
		return nil, err
	}
	return nil, evm.ErrInvalidOpcode
}

// nextStackTop returns the top of the stack of the next step of the current
// call, which holds the result of instructions the builder does not evaluate.
func nextStackTop(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) (uint256.Int, error) {
	next, ok := state.NextStepInCall(steps)
	if !ok {
		return uint256.Int{}, fmt.Errorf("%w: no following step for the result of %s", circuitinput.ErrInvalidTraceStep, steps[0].Op)
	}
	top, ok := next.StackTop(0)
	if !ok {
		return uint256.Int{}, fmt.Errorf("%w: empty stack after %s", circuitinput.ErrInvalidTraceStep, steps[0].Op)
	}
	return top, nil
}

func one(step *circuitinput.ExecStep) []*circuitinput.ExecStep {
	return []*circuitinput.ExecStep{step}
}

// popN pops n words in stack order, top first.
func popN(state *circuitinput.CircuitInputStateRef, step *circuitinput.ExecStep, n int) ([]uint256.Int, error) {
	out := make([]uint256.Int, n)
	for i := range out {
		v, err := state.StackPop(step)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readCallContext(state *circuitinput.CircuitInputStateRef, step *circuitinput.ExecStep, call *circuitinput.Call, fields ...operation.CallContextField) error {
	for _, f := range fields {
		if err := state.CallContextRead(step, call.CallID, f, callContextValue(call, state.Tx(), f)); err != nil {
			return err
		}
	}
	return nil
}
