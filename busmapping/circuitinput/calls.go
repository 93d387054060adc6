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
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

// CallParams describes a call frame about to be entered.
type CallParams struct {
	Kind          CallKind
	CallerAddress common.Address
	Address       common.Address
	CodeAddress   common.Address
	CodeHash      common.Hash
	// InitCode is registered under CodeHash for create frames.
	InitCode         []byte
	Value            uint256.Int
	CallDataOffset   uint64
	CallData         []byte
	ReturnDataOffset uint64
	ReturnDataLength uint64
	IsStatic         bool
	// ExpectSuccess is the outcome the trace reports for the frame.
	ExpectSuccess bool
}

func (s *CircuitInputStateRef) newCall(p CallParams, parent *Call) *Call {
	call := &Call{
		CallID:           s.nextID(),
		Index:            len(s.tx.Calls),
		ParentIndex:      -1,
		Kind:             p.Kind,
		IsStatic:         p.IsStatic,
		IsRoot:           parent == nil,
		Depth:            1,
		CallerAddress:    p.CallerAddress,
		Address:          p.Address,
		CodeAddress:      p.CodeAddress,
		CodeHash:         p.CodeHash,
		Value:            p.Value,
		CallDataOffset:   p.CallDataOffset,
		CallData:         p.CallData,
		ReturnDataOffset: p.ReturnDataOffset,
		ReturnDataLength: p.ReturnDataLength,
		IsPersistent:     p.ExpectSuccess,
		RWCounterStart:   s.block.Container.RWCounter(),
		expectSuccess:    p.ExpectSuccess,
	}
	if parent != nil {
		call.ParentIndex = parent.Index
		call.Depth = parent.Depth + 1
		call.IsStatic = call.IsStatic || parent.IsStatic
		call.IsPersistent = parent.IsPersistent && p.ExpectSuccess
	}
	if p.Kind.IsCreate() {
		s.block.Code[p.CodeHash] = common.CopyBytes(p.InitCode)
	}
	s.tx.Calls = append(s.tx.Calls, call)
	return call
}

// writeCallContext logs the attributes of a freshly opened call.
func (s *CircuitInputStateRef) writeCallContext(step *ExecStep, call *Call, callerID uint64) error {
	fields := []struct {
		field operation.CallContextField
		value uint256.Int
	}{
		{operation.CallerID, *uint256.NewInt(callerID)},
		{operation.TxID, *uint256.NewInt(s.tx.ID)},
		{operation.Depth, *uint256.NewInt(uint64(call.Depth))},
		{operation.CallerAddress, AddressWord(call.CallerAddress)},
		{operation.CalleeAddress, AddressWord(call.Address)},
		{operation.CallDataOffset, *uint256.NewInt(call.CallDataOffset)},
		{operation.CallDataLength, *uint256.NewInt(uint64(len(call.CallData)))},
		{operation.ReturnDataOffset, *uint256.NewInt(call.ReturnDataOffset)},
		{operation.ReturnDataLength, *uint256.NewInt(call.ReturnDataLength)},
		{operation.Value, call.Value},
		{operation.IsSuccess, BoolWord(call.expectSuccess)},
		{operation.IsPersistent, BoolWord(call.IsPersistent)},
		{operation.IsStatic, BoolWord(call.IsStatic)},
		{operation.LastCalleeID, uint256.Int{}},
		{operation.LastCalleeReturnDataOffset, uint256.Int{}},
		{operation.LastCalleeReturnDataLength, uint256.Int{}},
		{operation.IsRoot, BoolWord(call.IsRoot)},
		{operation.IsCreate, BoolWord(call.IsCreate())},
		{operation.CodeHash, HashWord(call.CodeHash)},
	}
	for _, f := range fields {
		if err := s.CallContextWrite(step, call.CallID, f.field, f.value); err != nil {
			return err
		}
	}
	return nil
}

func (c savedContext) fields() []struct {
	field operation.CallContextField
	value uint256.Int
} {
	return []struct {
		field operation.CallContextField
		value uint256.Int
	}{
		{operation.ProgramCounter, *uint256.NewInt(c.pc)},
		{operation.StackPointer, *uint256.NewInt(c.stackPointer)},
		{operation.GasLeft, *uint256.NewInt(c.gasLeft)},
		{operation.MemorySize, *uint256.NewInt(c.memorySize)},
		{operation.ReversibleWriteCounter, *uint256.NewInt(c.reversibleWrites)},
	}
}

// PushCall saves the context of the current call and enters a sub call
// described by p. The sub call becomes the current call.
func (s *CircuitInputStateRef) PushCall(step *ExecStep, p CallParams) (*Call, error) {
	parent, err := s.Call()
	if err != nil {
		return nil, err
	}
	saved := savedContext{
		pc:               parent.nextPC,
		stackPointer:     uint64(evm.StackPointer(len(parent.stack))),
		memorySize:       parent.memory.WordCount(),
		reversibleWrites: uint64(len(parent.journal)),
	}
	if step.GasCost <= step.Gas {
		saved.gasLeft = step.Gas - step.GasCost
	}
	for _, f := range saved.fields() {
		if err := s.CallContextWrite(step, parent.CallID, f.field, f.value); err != nil {
			return nil, err
		}
	}
	call := s.newCall(p, parent)
	call.saved = saved
	if err := s.writeCallContext(step, call, parent.CallID); err != nil {
		return nil, err
	}
	s.calls = append(s.calls, call.Index)
	s.log.Trace("[busmapping] enter call", "tx", s.tx.ID, "call", call.CallID, "kind", call.Kind, "depth", call.Depth, "address", call.Address)
	return call, nil
}

// TerminateCall completes the current call. A failed call has every
// reversible write of its subtree undone, in reverse order, in step. Unless
// the call is the root call, the caller's context is then restored, the
// return data is copied into the caller's memory and the call result is
// pushed on the caller's stack.
func (s *CircuitInputStateRef) TerminateCall(step *ExecStep, success bool, output []byte) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	if call.Status != CallActive {
		return ErrCallAlreadyCompleted
	}
	if err := s.CallContextRead(step, call.CallID, operation.IsSuccess, BoolWord(call.expectSuccess)); err != nil {
		return err
	}
	if success != call.expectSuccess {
		return s.traceErr(ErrUnexpectedCallOutcome, "%s ended with success=%t", call, success)
	}
	if success {
		call.Status = CallSuccess
	} else {
		for i := len(call.journal) - 1; i >= 0; i-- {
			if err := s.stateWrite(step, call.journal[i].Reverse(), false); err != nil {
				return err
			}
		}
		call.journal = nil
		call.Status = CallFailure
	}
	call.Output = output
	parent := s.Caller()
	if parent != nil && success {
		parent.journal = append(parent.journal, call.journal...)
	}
	if call.IsRoot {
		switch {
		case step.ExecState == ExecStateBeginTx:
		case step.Error != nil || step.GasCost > step.Gas:
			s.gasLeft = 0
		default:
			s.gasLeft = step.Gas - step.GasCost
		}
		s.calls = s.calls[:len(s.calls)-1]
		call.RWCounterEnd = s.block.Container.RWCounter()
		return nil
	}

	for _, f := range call.saved.fields() {
		if err := s.CallContextRead(step, parent.CallID, f.field, f.value); err != nil {
			return err
		}
	}
	returnData := output
	if call.IsCreate() && success {
		returnData = nil
	}
	if err := s.CallContextWrite(step, parent.CallID, operation.LastCalleeID, *uint256.NewInt(call.CallID)); err != nil {
		return err
	}
	if err := s.CallContextWrite(step, parent.CallID, operation.LastCalleeReturnDataOffset, uint256.Int{}); err != nil {
		return err
	}
	if err := s.CallContextWrite(step, parent.CallID, operation.LastCalleeReturnDataLength, *uint256.NewInt(uint64(len(returnData)))); err != nil {
		return err
	}
	s.calls = s.calls[:len(s.calls)-1]
	parent.ReturnData = returnData

	if !call.IsCreate() && len(returnData) > 0 && call.ReturnDataLength > 0 {
		n := min(uint64(len(returnData)), call.ReturnDataLength)
		if err := s.MemoryWriteRange(step, call.ReturnDataOffset, returnData[:n]); err != nil {
			return err
		}
	}
	var result uint256.Int
	switch {
	case call.IsCreate() && success:
		result = AddressWord(call.Address)
	case success:
		result.SetOne()
	}
	if err := s.StackPush(step, result); err != nil {
		return err
	}
	call.RWCounterEnd = s.block.Container.RWCounter()
	s.log.Trace("[busmapping] exit call", "tx", s.tx.ID, "call", call.CallID, "status", call.Status)
	return nil
}

// FailCall records execErr on step and terminates the current call as failed.
func (s *CircuitInputStateRef) FailCall(step *ExecStep, execErr evm.ExecError) error {
	step.Error = execErr
	return s.TerminateCall(step, false, nil)
}
