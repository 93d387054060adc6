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
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// balance handles BALANCE:
//   - stack READ of the address
//   - access list WRITE of the address
//   - account READ of the balance
//   - stack WRITE of the balance
func balance(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	w, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	addr := addressOf(&w)
	if _, err := state.TxAccessListAccountWrite(step, addr); err != nil {
		return nil, err
	}
	value, err := state.AccountRead(step, addr, operation.AccountBalance)
	if err != nil {
		return nil, err
	}
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// selfbalance handles SELFBALANCE: call context READ of CalleeAddress,
// account READ of its balance, stack WRITE.
func selfbalance(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.CalleeAddress); err != nil {
		return nil, err
	}
	value, err := state.AccountRead(step, call.Address, operation.AccountBalance)
	if err != nil {
		return nil, err
	}
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// extcodehash handles EXTCODEHASH. The pushed hash is zero for accounts that
// do not exist or are empty.
func extcodehash(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	return extcode(state, steps, func(hash uint256.Int, code []byte) uint256.Int {
		return hash
	})
}

// extcodesize handles EXTCODESIZE.
func extcodesize(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	return extcode(state, steps, func(_ uint256.Int, code []byte) uint256.Int {
		return *uint256.NewInt(uint64(len(code)))
	})
}

// extcode logs the common layout of EXTCODEHASH and EXTCODESIZE:
//   - stack READ of the address
//   - access list WRITE of the address
//   - account READ of the code hash
//   - stack WRITE of result(hash, code)
func extcode(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog, result func(uint256.Int, []byte) uint256.Int) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	w, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	addr := addressOf(&w)
	if _, err := state.TxAccessListAccountWrite(step, addr); err != nil {
		return nil, err
	}
	hash, err := state.AccountRead(step, addr, operation.AccountCodeHash)
	if err != nil {
		return nil, err
	}
	if state.StateDB().IsEmpty(addr) {
		hash.Clear()
	}
	code := state.Block().Code[hash.Bytes32()]
	if err := state.StackPush(step, result(hash, code)); err != nil {
		return nil, err
	}
	return one(step), nil
}
