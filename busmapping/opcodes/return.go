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
	"github.com/ethereum/go-ethereum/params"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// stop handles STOP and execution running past the end of the code: the
// current call succeeds with no output. A create deploys empty code.
func stop(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if call.IsCreate() && call.IsSuccess() {
		if err := deployCode(state, step, call, nil); err != nil {
			return nil, err
		}
	}
	if err := state.TerminateCall(step, true, nil); err != nil {
		return nil, err
	}
	return one(step), nil
}

// returnRevert handles RETURN and REVERT:
//   - stack READs of offset and size
//   - memory READ of every returned word
//   - for a successful create RETURN, the account code hash WRITE
//   - the call termination (TerminateCall)
//
// A create RETURN whose call is reported failed failed to deposit its code:
// the matching execution error is returned.
func returnRevert(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 2)
	if err != nil {
		return nil, err
	}
	off, size, err := state.MemoryRange(&args[0], &args[1])
	if err != nil {
		return nil, err
	}
	data, err := state.MemoryReadRange(step, off, size)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	success := step.Op == vm.RETURN
	if success && call.IsCreate() {
		if !call.IsSuccess() {
			return nil, depositError(data)
		}
		if err := deployCode(state, step, call, data); err != nil {
			return nil, err
		}
	}
	if err := state.TerminateCall(step, success, data); err != nil {
		return nil, err
	}
	return one(step), nil
}

// depositError classifies why code returned by a create could not be
// deployed.
func depositError(code []byte) evm.ExecError {
	switch {
	case len(code) > params.MaxCodeSize:
		return evm.ErrMaxCodeSizeExceeded
	case len(code) > 0 && code[0] == 0xef:
		return evm.ErrInvalidCreationCode
	}
	return evm.ErrCodeStoreOutOfGas
}

// selfdestruct handles SELFDESTRUCT. The balance of the current account moves
// to the beneficiary and the call succeeds; the account itself is kept
// (EIP-6780 outside of the creating transaction).
//   - stack READ of the beneficiary
//   - call context READs of TxID, IsStatic and CalleeAddress
//   - access list WRITE of the beneficiary
//   - account READ of the balance, then the balance transfer
//   - the call termination (TerminateCall)
func selfdestruct(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	w, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	beneficiary := addressOf(&w)
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.TxID, operation.IsStatic, operation.CalleeAddress); err != nil {
		return nil, err
	}
	if _, err := state.TxAccessListAccountWrite(step, beneficiary); err != nil {
		return nil, err
	}
	bal, err := state.AccountRead(step, call.Address, operation.AccountBalance)
	if err != nil {
		return nil, err
	}
	if beneficiary != call.Address {
		if err := state.TransferValue(step, call.Address, beneficiary, bal); err != nil {
			return nil, err
		}
	}
	if err := state.TerminateCall(step, true, nil); err != nil {
		return nil, err
	}
	return one(step), nil
}
