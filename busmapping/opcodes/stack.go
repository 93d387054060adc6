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

package opcodes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// stackOnly handles instructions whose only effect is on the stack
// (arithmetic, comparison, bitwise and block environment values):
//   - stack READ of each operand, top first
//   - stack WRITE of the result, taken from the next traced step
func stackOnly(pops, pushes int) circuitinput.OpcodeHandler {
	return handlerFunc(func(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
		step, err := state.NewStep(&steps[0])
		if err != nil {
			return nil, err
		}
		if _, err := popN(state, step, pops); err != nil {
			return nil, err
		}
		if pushes == 0 {
			return one(step), nil
		}
		result, err := nextStackTop(state, steps)
		if err != nil {
			return nil, err
		}
		if err := state.StackPush(step, result); err != nil {
			return nil, err
		}
		return one(step), nil
	})
}

// push handles PUSH0..PUSH32: one stack WRITE of the immediate value read
// from the code, zero padded past its end.
func push(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	code := state.Code(call)
	n := uint64(evm.PushSize(step.Op))
	start := step.PC + 1
	data := make([]byte, n)
	if start < uint64(len(code)) {
		copy(data, code[start:min(start+n, uint64(len(code)))])
	}
	var value uint256.Int
	value.SetBytes(data)
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// dup handles DUP1..DUP16:
//   - stack READ of the duplicated item
//   - stack WRITE of the copy on top
func dup(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	n := int(step.Op - vm.DUP1)
	value, err := state.StackPeek(step, n)
	if err != nil {
		return nil, err
	}
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// swap handles SWAP1..SWAP16:
//   - stack READ of the top and of the n'th item
//   - stack WRITE of both items with their values exchanged, top first
func swap(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	n := int(step.Op-vm.SWAP1) + 1
	top, err := state.StackPeek(step, 0)
	if err != nil {
		return nil, err
	}
	other, err := state.StackPeek(step, n)
	if err != nil {
		return nil, err
	}
	if err := state.StackWrite(step, 0, other); err != nil {
		return nil, err
	}
	if err := state.StackWrite(step, n, top); err != nil {
		return nil, err
	}
	return one(step), nil
}

// pop handles POP: one stack READ.
func pop(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	if _, err := state.StackPop(step); err != nil {
		return nil, err
	}
	return one(step), nil
}

// pc handles PC: one stack WRITE of the program counter.
func pc(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	if err := state.StackPush(step, *uint256.NewInt(step.PC)); err != nil {
		return nil, err
	}
	return one(step), nil
}

// jump handles JUMP: one stack READ of the destination.
func jump(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	dest, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	if err := state.SetJumpTarget(dest.Uint64()); err != nil {
		return nil, err
	}
	return one(step), nil
}

// jumpi handles JUMPI: stack READs of the destination and the condition.
func jumpi(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 2)
	if err != nil {
		return nil, err
	}
	if !args[1].IsZero() {
		if err := state.SetJumpTarget(args[0].Uint64()); err != nil {
			return nil, err
		}
	}
	return one(step), nil
}

func addressOf(w *uint256.Int) common.Address {
	return common.Address(w.Bytes20())
}
