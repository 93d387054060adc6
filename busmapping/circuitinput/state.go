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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// maxMemoryAccess bounds memory offsets taken from the stack. Any access past
// it runs out of gas long before, so a trace reaching it is inconsistent.
const maxMemoryAccess = 1 << 32

// CircuitInputStateRef is the context threaded through opcode handlers while
// a transaction is replayed. Every accessor appends to the block's operation
// container and to the back-references of the step it is given.
type CircuitInputStateRef struct {
	block     *Block
	tx        *Transaction
	txIndex   int
	sdb       *StateDB
	jumpDests *evm.JumpDestCache
	log       log.Logger

	// calls holds the indices in tx.Calls of the active call path, root first.
	calls      []int
	nextCallID *uint64

	stepIndex int
	trace     *logger.StructLog
	pending   *ExecStep
	gasLeft   uint64
}

func (s *CircuitInputStateRef) Block() *Block      { return s.block }
func (s *CircuitInputStateRef) Tx() *Transaction   { return s.tx }
func (s *CircuitInputStateRef) StateDB() *StateDB  { return s.sdb }
func (s *CircuitInputStateRef) Logger() log.Logger { return s.log }
func (s *CircuitInputStateRef) Pending() *ExecStep { return s.pending }
func (s *CircuitInputStateRef) Container() *operation.Container {
	return s.block.Container
}

// Call returns the call frame currently executing.
func (s *CircuitInputStateRef) Call() (*Call, error) {
	if len(s.calls) == 0 {
		return nil, ErrNoActiveCall
	}
	return s.tx.Calls[s.calls[len(s.calls)-1]], nil
}

// Caller returns the parent of the current call, nil for the root call.
func (s *CircuitInputStateRef) Caller() *Call {
	if len(s.calls) < 2 {
		return nil
	}
	return s.tx.Calls[s.calls[len(s.calls)-2]]
}

// Code returns the bytecode executed by call.
func (s *CircuitInputStateRef) Code(call *Call) []byte {
	return s.block.Code[call.CodeHash]
}

// NextStepInCall returns the first step after steps[0] executed by the same
// call frame. It never looks past the end of that frame.
func (s *CircuitInputStateRef) NextStepInCall(steps []logger.StructLog) (*logger.StructLog, bool) {
	if len(steps) == 0 {
		return nil, false
	}
	depth := steps[0].Depth
	for i := 1; i < len(steps); i++ {
		switch {
		case steps[i].Depth == depth:
			return &steps[i], true
		case steps[i].Depth < depth:
			return nil, false
		}
	}
	return nil, false
}

func (s *CircuitInputStateRef) traceErr(err error, format string, args ...any) error {
	e := &TraceError{TxIndex: s.txIndex, StepIndex: s.stepIndex, Reason: fmt.Sprintf(format, args...), Err: err}
	if call, cerr := s.Call(); cerr == nil {
		e.CallID = call.CallID
	}
	if s.trace != nil {
		e.PC, e.Op = s.trace.Pc, s.trace.Op
	}
	return e
}

func (s *CircuitInputStateRef) nextID() uint64 {
	*s.nextCallID++
	return *s.nextCallID
}

// NewStep validates the transition into trace against the current call and
// returns the step record of the instruction.
func (s *CircuitInputStateRef) NewStep(trace *logger.StructLog) (*ExecStep, error) {
	s.trace = trace
	call, err := s.Call()
	if err != nil {
		return nil, s.traceErr(err, "step outside any call")
	}
	if trace.Depth != call.Depth {
		return nil, s.traceErr(ErrInvalidTraceStep, "depth %d, current call depth %d", trace.Depth, call.Depth)
	}
	first := call.executed == 0
	if first && trace.Pc != 0 {
		return nil, s.traceErr(ErrInvalidTraceStep, "call starts at pc %d", trace.Pc)
	}
	if !first && trace.Pc != call.nextPC {
		return nil, s.traceErr(ErrInvalidTraceStep, "pc %d after %s, want %d", trace.Pc, call.lastOp, call.nextPC)
	}
	code := s.Code(call)
	if trace.Pc < uint64(len(code)) {
		if op := vm.OpCode(code[trace.Pc]); op != trace.Op {
			return nil, s.traceErr(ErrInvalidTraceStep, "code has %s at pc %d", op, trace.Pc)
		}
	} else if trace.Op != vm.STOP {
		return nil, s.traceErr(ErrInvalidTraceStep, "%s past the end of code", trace.Op)
	}
	switch {
	case !first:
		info := evm.Info(call.lastOp)
		if !info.Call && !info.Create && (call.lastGasCost > call.lastGas || trace.Gas != call.lastGas-call.lastGasCost) {
			return nil, s.traceErr(ErrInvalidTraceStep, "gas %d after %s with gas %d cost %d", trace.Gas, call.lastOp, call.lastGas, call.lastGasCost)
		}
	case call.IsRoot:
		intrinsic := evm.IntrinsicGas(s.tx.Input, s.tx.AccessList, s.tx.IsCreate())
		if intrinsic > s.tx.Gas || trace.Gas != s.tx.Gas-intrinsic {
			return nil, s.traceErr(ErrInvalidTraceStep, "first step gas %d, tx gas %d intrinsic %d", trace.Gas, s.tx.Gas, intrinsic)
		}
	}

	step := &ExecStep{
		ExecState:              ExecStateOp(trace.Op),
		PC:                     trace.Pc,
		Op:                     trace.Op,
		Gas:                    trace.Gas,
		GasCost:                trace.GasCost,
		Depth:                  trace.Depth,
		CallIndex:              call.Index,
		RWCounter:              s.block.Container.RWCounter(),
		ReversibleWriteCounter: len(call.journal),
		StackSize:              len(call.stack),
		MemorySize:             call.memory.WordCount(),
		LogID:                  s.tx.LogCount,
	}
	call.executed++
	call.nextPC = evm.NextPC(trace.Op, trace.Pc)
	call.lastOp, call.lastGas, call.lastGasCost = trace.Op, trace.Gas, trace.GasCost
	s.pending = step
	return step, nil
}

// newTxStep opens a BeginTx or EndTx step on the root call.
func (s *CircuitInputStateRef) newTxStep(state ExecState, gas uint64) *ExecStep {
	step := &ExecStep{
		ExecState: state,
		Gas:       gas,
		Depth:     1,
		RWCounter: s.block.Container.RWCounter(),
		LogID:     s.tx.LogCount,
	}
	s.pending = step
	return step
}

// SetJumpTarget overrides the pc the current call continues at.
func (s *CircuitInputStateRef) SetJumpTarget(pc uint64) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	call.nextPC = pc
	return nil
}

// IsValidJump reports whether dest is a JUMPDEST of the code run by call.
func (s *CircuitInputStateRef) IsValidJump(call *Call, dest *uint256.Int) bool {
	if !dest.IsUint64() {
		return false
	}
	if call.jumpDests == nil {
		code := s.Code(call)
		if s.jumpDests != nil {
			call.jumpDests = s.jumpDests.Get(call.CodeHash, code)
		} else {
			call.jumpDests = evm.AnalyzeJumpDests(code)
		}
	}
	return call.jumpDests.Has(dest.Uint64())
}

func (s *CircuitInputStateRef) insert(step *ExecStep, rw operation.RW, op operation.Op) error {
	if step == nil {
		return fmt.Errorf("%w: %s %s outside a step", ErrRWCounterMisuse, rw, op.Target())
	}
	ref, err := s.block.Container.Insert(rw, op)
	if err != nil {
		return err
	}
	step.BusMappingInstance = append(step.BusMappingInstance, ref)
	return nil
}

// stateWrite logs a reversible write and applies it to the state. Journaled
// writes are undone if the current call fails.
func (s *CircuitInputStateRef) stateWrite(step *ExecStep, op operation.ReversibleOp, journaled bool) error {
	if err := s.insert(step, operation.Write, op); err != nil {
		return err
	}
	if err := s.sdb.Apply(op); err != nil {
		return err
	}
	if journaled {
		call, err := s.Call()
		if err != nil {
			return err
		}
		call.journal = append(call.journal, op)
	}
	return nil
}

// CallContextRead logs a read of a call attribute.
func (s *CircuitInputStateRef) CallContextRead(step *ExecStep, callID uint64, field operation.CallContextField, value uint256.Int) error {
	return s.insert(step, operation.Read, operation.CallContextOp{CallID: callID, Field: field, Value: value})
}

// CallContextWrite logs a write of a call attribute.
func (s *CircuitInputStateRef) CallContextWrite(step *ExecStep, callID uint64, field operation.CallContextField, value uint256.Int) error {
	return s.insert(step, operation.Write, operation.CallContextOp{CallID: callID, Field: field, Value: value})
}

// StackPush pushes value on the stack of the current call.
func (s *CircuitInputStateRef) StackPush(step *ExecStep, value uint256.Int) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	addr, err := call.stack.Push(value)
	if err != nil {
		return err
	}
	return s.insert(step, operation.Write, operation.NewStackOp(call.CallID, addr, value))
}

// StackPop pops the top of the stack of the current call.
func (s *CircuitInputStateRef) StackPop(step *ExecStep) (uint256.Int, error) {
	call, err := s.Call()
	if err != nil {
		return uint256.Int{}, err
	}
	value, addr, err := call.stack.Pop()
	if err != nil {
		return uint256.Int{}, err
	}
	return value, s.insert(step, operation.Read, operation.NewStackOp(call.CallID, addr, value))
}

// StackPeek reads the n'th item from the top without removing it.
func (s *CircuitInputStateRef) StackPeek(step *ExecStep, n int) (uint256.Int, error) {
	call, err := s.Call()
	if err != nil {
		return uint256.Int{}, err
	}
	value, err := call.stack.NthLast(n)
	if err != nil {
		return uint256.Int{}, err
	}
	return value, s.insert(step, operation.Read, operation.NewStackOp(call.CallID, call.stack.NthLastFilled(n), value))
}

// StackWrite overwrites the n'th item from the top.
func (s *CircuitInputStateRef) StackWrite(step *ExecStep, n int, value uint256.Int) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	addr, err := call.stack.Set(n, value)
	if err != nil {
		return err
	}
	return s.insert(step, operation.Write, operation.NewStackOp(call.CallID, addr, value))
}

// MemoryRange converts stack operands into a memory range, rejecting ranges
// no execution could have paid for. Empty ranges ignore the offset.
func (s *CircuitInputStateRef) MemoryRange(offset, length *uint256.Int) (uint64, uint64, error) {
	if length.IsZero() {
		return 0, 0, nil
	}
	if !offset.IsUint64() || !length.IsUint64() || offset.Uint64() > maxMemoryAccess || length.Uint64() > maxMemoryAccess-offset.Uint64() {
		return 0, 0, s.traceErr(ErrInvalidTraceStep, "memory range %s+%s out of reach", offset.Hex(), length.Hex())
	}
	return offset.Uint64(), length.Uint64(), nil
}

// ExpandMemory grows the memory of the current call to cover the range.
func (s *CircuitInputStateRef) ExpandMemory(offset, length uint64) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	call.memory.Resize(evm.ExpandedWords(call.memory.WordCount(), offset, length))
	return nil
}

// MemoryReadWord reads the word-aligned word at addr.
func (s *CircuitInputStateRef) MemoryReadWord(step *ExecStep, addr evm.MemoryAddress) (uint256.Int, error) {
	call, err := s.Call()
	if err != nil {
		return uint256.Int{}, err
	}
	addr = addr.AlignDown()
	call.memory.Resize(evm.ExpandedWords(call.memory.WordCount(), uint64(addr), evm.WordSize))
	value := call.memory.ReadWord(addr)
	return value, s.insert(step, operation.Read, operation.NewMemoryOp(call.CallID, addr, value))
}

// MemoryWriteWord writes the word-aligned word at addr.
func (s *CircuitInputStateRef) MemoryWriteWord(step *ExecStep, addr evm.MemoryAddress, value uint256.Int) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	addr = addr.AlignDown()
	b := value.Bytes32()
	call.memory.Write(uint64(addr), b[:])
	return s.insert(step, operation.Write, operation.NewMemoryOp(call.CallID, addr, value))
}

// MemoryReadRange reads length bytes at offset, logging one read per word
// touched.
func (s *CircuitInputStateRef) MemoryReadRange(step *ExecStep, offset, length uint64) ([]byte, error) {
	call, err := s.Call()
	if err != nil {
		return nil, err
	}
	call.memory.Resize(evm.ExpandedWords(call.memory.WordCount(), offset, length))
	for _, addr := range evm.WordRange(offset, length) {
		if err := s.insert(step, operation.Read, operation.NewMemoryOp(call.CallID, addr, call.memory.ReadWord(addr))); err != nil {
			return nil, err
		}
	}
	return call.memory.Read(offset, length), nil
}

// MemoryWriteRange copies data to offset, logging one write per word touched
// with the word's value after the copy.
func (s *CircuitInputStateRef) MemoryWriteRange(step *ExecStep, offset uint64, data []byte) error {
	call, err := s.Call()
	if err != nil {
		return err
	}
	call.memory.Write(offset, data)
	for _, addr := range evm.WordRange(offset, uint64(len(data))) {
		if err := s.insert(step, operation.Write, operation.NewMemoryOp(call.CallID, addr, call.memory.ReadWord(addr))); err != nil {
			return err
		}
	}
	return nil
}

// StorageRead reads a storage slot of addr.
func (s *CircuitInputStateRef) StorageRead(step *ExecStep, addr common.Address, slot uint256.Int) (uint256.Int, error) {
	value := s.sdb.State(addr, slot)
	committed := s.sdb.CommittedState(addr, slot)
	op := operation.StorageOp{
		Address: addr, Slot: slot, Value: value, ValuePrev: value,
		TxID: s.tx.ID, CommittedValue: committed,
	}
	return value, s.insert(step, operation.Read, op)
}

// StorageWrite writes a storage slot of addr in the current call.
func (s *CircuitInputStateRef) StorageWrite(step *ExecStep, addr common.Address, slot, value uint256.Int) error {
	op := operation.StorageOp{
		Address: addr, Slot: slot, Value: value, ValuePrev: s.sdb.State(addr, slot),
		TxID: s.tx.ID, CommittedValue: s.sdb.CommittedState(addr, slot),
	}
	return s.stateWrite(step, op, true)
}

// AccountRead reads an account attribute.
func (s *CircuitInputStateRef) AccountRead(step *ExecStep, addr common.Address, field operation.AccountField) (uint256.Int, error) {
	value := s.sdb.AccountField(addr, field)
	op := operation.AccountOp{Address: addr, Field: field, Value: value, ValuePrev: value}
	return value, s.insert(step, operation.Read, op)
}

// AccountWrite writes an account attribute in the current call.
func (s *CircuitInputStateRef) AccountWrite(step *ExecStep, addr common.Address, field operation.AccountField, value uint256.Int) error {
	return s.accountWrite(step, addr, field, value, true)
}

func (s *CircuitInputStateRef) accountWrite(step *ExecStep, addr common.Address, field operation.AccountField, value uint256.Int, journaled bool) error {
	op := operation.AccountOp{Address: addr, Field: field, Value: value, ValuePrev: s.sdb.AccountField(addr, field)}
	return s.stateWrite(step, op, journaled)
}

// TransferValue moves value from sender to receiver in the current call:
// the sender balance write comes first. A zero value transfer logs nothing.
func (s *CircuitInputStateRef) TransferValue(step *ExecStep, sender, receiver common.Address, value uint256.Int) error {
	if value.IsZero() {
		return nil
	}
	senderBalance := s.sdb.Balance(sender)
	if senderBalance.Lt(&value) {
		return evm.ErrInsufficientBalance
	}
	var newSender uint256.Int
	newSender.Sub(&senderBalance, &value)
	if err := s.AccountWrite(step, sender, operation.AccountBalance, newSender); err != nil {
		return err
	}
	if err := s.touchAccount(step, receiver, true); err != nil {
		return err
	}
	receiverBalance := s.sdb.Balance(receiver)
	var newReceiver uint256.Int
	if _, overflow := newReceiver.AddOverflow(&receiverBalance, &value); overflow {
		return s.traceErr(ErrInvalidTraceStep, "balance of %s overflows", receiver)
	}
	return s.AccountWrite(step, receiver, operation.AccountBalance, newReceiver)
}

// touchAccount gives an account without code hash the empty code hash, the
// way an account comes into existence.
func (s *CircuitInputStateRef) touchAccount(step *ExecStep, addr common.Address, journaled bool) error {
	if s.sdb.CodeHash(addr) != (common.Hash{}) {
		return nil
	}
	return s.accountWrite(step, addr, operation.AccountCodeHash, HashWord(types.EmptyCodeHash), journaled)
}

// TxAccessListAccountWrite marks addr warm and reports whether it already was.
func (s *CircuitInputStateRef) TxAccessListAccountWrite(step *ExecStep, addr common.Address) (bool, error) {
	return s.txAccessListAccountWrite(step, addr, true)
}

func (s *CircuitInputStateRef) txAccessListAccountWrite(step *ExecStep, addr common.Address, journaled bool) (bool, error) {
	warm := s.sdb.IsWarmAccount(addr)
	op := operation.TxAccessListAccountOp{TxID: s.tx.ID, Address: addr, IsWarm: true, IsWarmPrev: warm}
	return warm, s.stateWrite(step, op, journaled)
}

// TxAccessListStorageWrite marks a storage slot warm and reports whether it
// already was.
func (s *CircuitInputStateRef) TxAccessListStorageWrite(step *ExecStep, addr common.Address, slot uint256.Int) (bool, error) {
	return s.txAccessListStorageWrite(step, addr, slot, true)
}

func (s *CircuitInputStateRef) txAccessListStorageWrite(step *ExecStep, addr common.Address, slot uint256.Int, journaled bool) (bool, error) {
	warm := s.sdb.IsWarmSlot(addr, slot)
	op := operation.TxAccessListAccountStorageOp{TxID: s.tx.ID, Address: addr, Slot: slot, IsWarm: true, IsWarmPrev: warm}
	return warm, s.stateWrite(step, op, journaled)
}

// TxRefundRead reads the refund counter of the transaction.
func (s *CircuitInputStateRef) TxRefundRead(step *ExecStep) (uint64, error) {
	refund := s.sdb.Refund()
	return refund, s.insert(step, operation.Read, operation.TxRefundOp{TxID: s.tx.ID, Value: refund, ValuePrev: refund})
}

// TxRefundWrite sets the refund counter in the current call.
func (s *CircuitInputStateRef) TxRefundWrite(step *ExecStep, value uint64) error {
	return s.stateWrite(step, operation.TxRefundOp{TxID: s.tx.ID, Value: value, ValuePrev: s.sdb.Refund()}, true)
}

// TxLogWrite records a field of the log the step emits.
func (s *CircuitInputStateRef) TxLogWrite(step *ExecStep, field operation.TxLogField, index uint64, value uint256.Int) error {
	op := operation.TxLogOp{TxID: s.tx.ID, LogID: step.LogID, Field: field, Index: index, Value: value}
	return s.insert(step, operation.Write, op)
}

// TxReceiptWrite records a receipt field of the transaction.
func (s *CircuitInputStateRef) TxReceiptWrite(step *ExecStep, field operation.TxReceiptField, value uint256.Int) error {
	return s.insert(step, operation.Write, operation.TxReceiptOp{TxID: s.tx.ID, Field: field, Value: value})
}

// AddressWord converts an address to a word.
func AddressWord(addr common.Address) uint256.Int {
	var w uint256.Int
	w.SetBytes20(addr[:])
	return w
}

// HashWord converts a hash to a word.
func HashWord(h common.Hash) uint256.Int {
	var w uint256.Int
	w.SetBytes32(h[:])
	return w
}

// BoolWord converts a flag to 0 or 1.
func BoolWord(b bool) uint256.Int {
	if b {
		return *uint256.NewInt(1)
	}
	return uint256.Int{}
}
