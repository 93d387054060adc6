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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// callOp handles CALL, CALLCODE, DELEGATECALL and STATICCALL:
//   - stack READs of gas, address, value (CALL and CALLCODE only), args
//     offset and length, return offset and length
//   - call context READs of the caller: TxID, IsStatic, Depth,
//     CalleeAddress, plus CallerAddress and Value for DELEGATECALL
//   - memory READ of every call data word
//   - access list WRITE of the callee, account READ of its code hash
//   - saved context of the caller and context of the callee (PushCall)
//   - value transfer for CALL, in the callee
//
// The callee finishes in the same step when it has nothing to execute: a
// precompile, an account without code, or a call rejected for depth or
// balance.
func callOp(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	kind, _ := circuitinput.CallKindOf(step.Op)
	n := 6
	if step.Op == vm.CALL || step.Op == vm.CALLCODE {
		n = 7
	}
	args, err := popN(state, step, n)
	if err != nil {
		return nil, err
	}
	codeAddress := addressOf(&args[1])
	var value uint256.Int
	if n == 7 {
		value, args = args[2], append(args[:2:2], args[3:]...)
	}
	argsOff, argsLen, err := state.MemoryRange(&args[2], &args[3])
	if err != nil {
		return nil, err
	}
	retOff, retLen, err := state.MemoryRange(&args[4], &args[5])
	if err != nil {
		return nil, err
	}

	caller, err := state.Call()
	if err != nil {
		return nil, err
	}
	fields := []operation.CallContextField{operation.TxID, operation.IsStatic, operation.Depth, operation.CalleeAddress}
	if kind == circuitinput.CallKindDelegateCall {
		fields = append(fields, operation.CallerAddress, operation.Value)
	}
	if err := readCallContext(state, step, caller, fields...); err != nil {
		return nil, err
	}
	if err := state.ExpandMemory(retOff, retLen); err != nil {
		return nil, err
	}
	callData, err := state.MemoryReadRange(step, argsOff, argsLen)
	if err != nil {
		return nil, err
	}
	if _, err := state.TxAccessListAccountWrite(step, codeAddress); err != nil {
		return nil, err
	}
	hash, err := state.AccountRead(step, codeAddress, operation.AccountCodeHash)
	if err != nil {
		return nil, err
	}

	result, err := nextStackTop(state, steps)
	if err != nil {
		return nil, err
	}
	p := circuitinput.CallParams{
		Kind:             kind,
		CallerAddress:    caller.Address,
		Address:          codeAddress,
		CodeAddress:      codeAddress,
		CodeHash:         hash.Bytes32(),
		Value:            value,
		CallDataOffset:   argsOff,
		CallData:         callData,
		ReturnDataOffset: retOff,
		ReturnDataLength: retLen,
		IsStatic:         kind == circuitinput.CallKindStaticCall,
		ExpectSuccess:    !result.IsZero(),
	}
	switch kind {
	case circuitinput.CallKindCallCode:
		p.Address = caller.Address
	case circuitinput.CallKindDelegateCall:
		p.CallerAddress = caller.CallerAddress
		p.Address = caller.Address
		p.Value = caller.Value
	}

	rejected := caller.Depth > int(params.CallCreateDepth)
	if !rejected && (kind == circuitinput.CallKindCall || kind == circuitinput.CallKindCallCode) {
		callerBalance := state.StateDB().Balance(caller.Address)
		rejected = callerBalance.Lt(&value)
	}
	if rejected {
		if p.ExpectSuccess {
			return nil, fmt.Errorf("%w: rejected %s reported as successful", circuitinput.ErrUnexpectedCallOutcome, kind)
		}
		if _, err := state.PushCall(step, p); err != nil {
			return nil, err
		}
		if err := state.TerminateCall(step, false, nil); err != nil {
			return nil, err
		}
		return one(step), nil
	}

	callee, err := state.PushCall(step, p)
	if err != nil {
		return nil, err
	}
	if kind == circuitinput.CallKindCall {
		if err := state.TransferValue(step, caller.Address, callee.Address, value); err != nil {
			return nil, err
		}
	}

	if len(steps) > 1 && steps[1].Depth == callee.Depth {
		return one(step), nil
	}
	var output []byte
	if circuitinput.IsPrecompile(codeAddress) {
		output = precompileOutput(state, steps, retOff, retLen)
	}
	if err := state.TerminateCall(step, p.ExpectSuccess, output); err != nil {
		return nil, err
	}
	return one(step), nil
}

// precompileOutput recovers what a precompile returned from the caller's
// next step: its return data when the tracer recorded it, otherwise the
// return window of its memory.
func precompileOutput(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog, retOff, retLen uint64) []byte {
	next, ok := state.NextStepInCall(steps)
	if !ok {
		return nil
	}
	if next.ReturnData != nil {
		return common.CopyBytes(next.ReturnData)
	}
	if retOff+retLen <= uint64(len(next.Memory)) {
		return common.CopyBytes(next.Memory[retOff : retOff+retLen])
	}
	state.Logger().Warn("[busmapping] precompile output not in trace", "tx", state.Tx().ID, "pc", steps[0].Pc, "op", steps[0].Op)
	return nil
}
