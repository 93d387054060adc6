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

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// sload handles SLOAD:
//   - stack READ of the key
//   - call context READs of TxID and CalleeAddress
//   - storage READ of the slot
//   - access list WRITE of the slot
//   - stack WRITE of the value
func sload(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	key, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.TxID, operation.CalleeAddress); err != nil {
		return nil, err
	}
	value, err := state.StorageRead(step, call.Address, key)
	if err != nil {
		return nil, err
	}
	if _, err := state.TxAccessListStorageWrite(step, call.Address, key); err != nil {
		return nil, err
	}
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// sstore handles SSTORE:
//   - stack READs of key and value
//   - call context READs of TxID, IsStatic and CalleeAddress
//   - storage WRITE of the slot
//   - access list WRITE of the slot
//   - refund READ, then refund WRITE adjusted by the EIP-3529 schedule
func sstore(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 2)
	if err != nil {
		return nil, err
	}
	key, value := args[0], args[1]
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.TxID, operation.IsStatic, operation.CalleeAddress); err != nil {
		return nil, err
	}
	sdb := state.StateDB()
	original := sdb.CommittedState(call.Address, key)
	current := sdb.State(call.Address, key)
	if err := state.StorageWrite(step, call.Address, key, value); err != nil {
		return nil, err
	}
	if _, err := state.TxAccessListStorageWrite(step, call.Address, key); err != nil {
		return nil, err
	}
	refund, err := state.TxRefundRead(step)
	if err != nil {
		return nil, err
	}
	delta := evm.SstoreRefundDelta(&original, &current, &value)
	if delta < 0 && uint64(-delta) > refund {
		return nil, fmt.Errorf("%w: refund counter %d below zero after sstore", circuitinput.ErrInvalidTraceStep, refund)
	}
	if err := state.TxRefundWrite(step, uint64(int64(refund)+delta)); err != nil {
		return nil, err
	}
	return one(step), nil
}

// logOp handles LOG0 to LOG4:
//   - stack READs of offset, size and the topics
//   - call context READs of TxID, CalleeAddress and IsPersistent
//   - memory READ of every data word
//   - for persistent calls only, log WRITEs of the address, each topic and
//     each data word
func logOp(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	topics := int(step.Op - vm.LOG0)
	args, err := popN(state, step, 2+topics)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.TxID, operation.CalleeAddress, operation.IsPersistent); err != nil {
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
	if !call.IsPersistent {
		return one(step), nil
	}

	tx := state.Tx()
	tx.LogCount++
	step.LogID = tx.LogCount
	if err := state.TxLogWrite(step, operation.LogAddress, 0, circuitinput.AddressWord(call.Address)); err != nil {
		return nil, err
	}
	for i, topic := range args[2:] {
		if err := state.TxLogWrite(step, operation.LogTopic, uint64(i), topic); err != nil {
			return nil, err
		}
	}
	for i := 0; i*evm.WordSize < len(data); i++ {
		var word [evm.WordSize]byte
		copy(word[:], data[i*evm.WordSize:])
		var value uint256.Int
		value.SetBytes32(word[:])
		if err := state.TxLogWrite(step, operation.LogData, uint64(i), value); err != nil {
			return nil, err
		}
	}
	return one(step), nil
}
