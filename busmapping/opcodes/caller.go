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
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// caller handles CALLER:
//   - call context READ of CallerAddress of the current call
//   - stack WRITE of the caller address on the new top of stack
func caller(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	callerAddress := circuitinput.AddressWord(call.CallerAddress)
	if err := state.CallContextRead(step, call.CallID, operation.CallerAddress, callerAddress); err != nil {
		return nil, err
	}
	if err := state.StackPush(step, callerAddress); err != nil {
		return nil, err
	}
	return one(step), nil
}

// callContextOps push an attribute of the current call.
var callContextOps = map[vm.OpCode]operation.CallContextField{
	vm.ADDRESS:        operation.CalleeAddress,
	vm.CALLVALUE:      operation.Value,
	vm.CALLDATASIZE:   operation.CallDataLength,
	vm.RETURNDATASIZE: operation.LastCalleeReturnDataLength,
}

// callContextHandler handles the instructions of callContextOps the same way
// as CALLER: one call context READ, then one stack WRITE of the same value.
func callContextHandler(field operation.CallContextField) circuitinput.OpcodeHandler {
	return handlerFunc(func(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
		step, err := state.NewStep(&steps[0])
		if err != nil {
			return nil, err
		}
		call, err := state.Call()
		if err != nil {
			return nil, err
		}
		value := callContextValue(call, state.Tx(), field)
		if err := state.CallContextRead(step, call.CallID, field, value); err != nil {
			return nil, err
		}
		if err := state.StackPush(step, value); err != nil {
			return nil, err
		}
		return one(step), nil
	})
}

// callContextValue is the current value of a call attribute.
func callContextValue(call *circuitinput.Call, tx *circuitinput.Transaction, field operation.CallContextField) uint256.Int {
	switch field {
	case operation.TxID:
		return *uint256.NewInt(tx.ID)
	case operation.Depth:
		return *uint256.NewInt(uint64(call.Depth))
	case operation.CallerAddress:
		return circuitinput.AddressWord(call.CallerAddress)
	case operation.CalleeAddress:
		return circuitinput.AddressWord(call.Address)
	case operation.CallDataOffset:
		return *uint256.NewInt(call.CallDataOffset)
	case operation.CallDataLength:
		return *uint256.NewInt(uint64(len(call.CallData)))
	case operation.Value:
		return call.Value
	case operation.IsSuccess:
		return circuitinput.BoolWord(call.IsSuccess())
	case operation.IsPersistent:
		return circuitinput.BoolWord(call.IsPersistent)
	case operation.IsStatic:
		return circuitinput.BoolWord(call.IsStatic)
	case operation.IsRoot:
		return circuitinput.BoolWord(call.IsRoot)
	case operation.IsCreate:
		return circuitinput.BoolWord(call.IsCreate())
	case operation.CodeHash:
		return circuitinput.HashWord(call.CodeHash)
	case operation.LastCalleeReturnDataLength:
		return *uint256.NewInt(uint64(len(call.ReturnData)))
	}
	return uint256.Int{}
}
