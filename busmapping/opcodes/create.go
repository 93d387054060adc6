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
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// create handles CREATE and CREATE2:
//   - stack READs of value, offset, size and, for CREATE2, the salt
//   - call context READs of the caller: TxID, IsStatic, Depth, CalleeAddress
//   - memory READ of every init code word
//   - caller nonce READ and WRITE
//   - access list WRITE of the new address
//   - saved context of the caller and context of the new call (PushCall)
//   - value transfer and nonce of the new account, in the new call
//
// A create rejected for depth, balance or an address collision, or one whose
// init code is empty, finishes in the same step.
func create(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	kind, _ := circuitinput.CallKindOf(step.Op)
	n := 3
	if step.Op == vm.CREATE2 {
		n = 4
	}
	args, err := popN(state, step, n)
	if err != nil {
		return nil, err
	}
	value := args[0]
	off, size, err := state.MemoryRange(&args[1], &args[2])
	if err != nil {
		return nil, err
	}
	caller, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, caller, operation.TxID, operation.IsStatic, operation.Depth, operation.CalleeAddress); err != nil {
		return nil, err
	}
	initCode, err := state.MemoryReadRange(step, off, size)
	if err != nil {
		return nil, err
	}
	result, err := nextStackTop(state, steps)
	if err != nil {
		return nil, err
	}

	sdb := state.StateDB()
	nonce, err := state.AccountRead(step, caller.Address, operation.AccountNonce)
	if err != nil {
		return nil, err
	}
	p := circuitinput.CallParams{
		Kind:          kind,
		CallerAddress: caller.Address,
		CodeHash:      crypto.Keccak256Hash(initCode),
		InitCode:      initCode,
		Value:         value,
		ExpectSuccess: !result.IsZero(),
	}
	if kind == circuitinput.CallKindCreate2 {
		p.Address = crypto.CreateAddress2(caller.Address, args[3].Bytes32(), p.CodeHash[:])
	} else {
		p.Address = crypto.CreateAddress(caller.Address, nonce.Uint64())
	}
	p.CodeAddress = p.Address

	callerBalance := sdb.Balance(caller.Address)
	rejected := caller.Depth > int(params.CallCreateDepth) || callerBalance.Lt(&value)
	if !rejected {
		if nonce.Uint64() == ^uint64(0) {
			rejected = true
		} else if err := state.AccountWrite(step, caller.Address, operation.AccountNonce, *uint256.NewInt(nonce.Uint64() + 1)); err != nil {
			return nil, err
		}
	}
	if !rejected {
		if _, err := state.TxAccessListAccountWrite(step, p.Address); err != nil {
			return nil, err
		}
		rejected = collides(sdb, p.Address)
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
	if err := state.TransferValue(step, caller.Address, callee.Address, value); err != nil {
		return nil, err
	}
	if err := state.AccountWrite(step, callee.Address, operation.AccountNonce, *uint256.NewInt(1)); err != nil {
		return nil, err
	}
	if len(steps) > 1 && steps[1].Depth == callee.Depth {
		return one(step), nil
	}
	if p.ExpectSuccess {
		if err := deployCode(state, step, callee, nil); err != nil {
			return nil, err
		}
	}
	if err := state.TerminateCall(step, p.ExpectSuccess, nil); err != nil {
		return nil, err
	}
	return one(step), nil
}

// collides reports whether a contract cannot be created at addr because it
// already has a nonce or code.
func collides(sdb *circuitinput.StateDB, addr common.Address) bool {
	hash := sdb.CodeHash(addr)
	return sdb.Nonce(addr) != 0 || (hash != common.Hash{} && hash != types.EmptyCodeHash)
}

// deployCode registers code as the runtime code of the created account and
// logs the account code hash WRITE.
func deployCode(state *circuitinput.CircuitInputStateRef, step *circuitinput.ExecStep, call *circuitinput.Call, code []byte) error {
	hash := crypto.Keccak256Hash(code)
	state.Block().Code[hash] = common.CopyBytes(code)
	return state.AccountWrite(step, call.Address, operation.AccountCodeHash, circuitinput.HashWord(hash))
}
