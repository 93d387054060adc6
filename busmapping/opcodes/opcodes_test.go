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

package opcodes_test

import (
	"slices"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/google/go-cmp/cmp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/mock"
	"github.com/Merlot21/zkevm-circuits/busmapping/opcodes"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

const richBalance = 1_000_000_000_000

var (
	contractA = mock.Addr[0]
	sender    = mock.Addr[1]
	contractB = mock.Addr[2]
	nobody    = mock.Addr[3]
)

func build(t *testing.T, ctx *mock.TestContext) *circuitinput.Block {
	t.Helper()
	trace, err := ctx.BlockTrace()
	require.NoError(t, err)
	b, err := circuitinput.NewCircuitInputBuilder(circuitinput.DefaultConfig(), opcodes.DefaultTable, nil)
	require.NoError(t, err)
	block, err := b.HandleBlock(trace)
	require.NoError(t, err)
	return block
}

// callA runs code as contractA, called by sender.
func callA(code []byte) *mock.TestContext {
	return mock.NewTestContext().
		AddAccount(sender, richBalance, nil).
		AddAccount(contractA, 0, code).
		Call(sender, contractA, nil)
}

func stepsOf(tx *circuitinput.Transaction, op vm.OpCode) []*circuitinput.ExecStep {
	var out []*circuitinput.ExecStep
	for _, s := range tx.Steps() {
		if s.ExecState == circuitinput.ExecStateOp(op) {
			out = append(out, s)
		}
	}
	return out
}

func stepOf(t *testing.T, tx *circuitinput.Transaction, op vm.OpCode) *circuitinput.ExecStep {
	t.Helper()
	steps := stepsOf(tx, op)
	require.NotEmpty(t, steps, "no %s step", op)
	return steps[0]
}

func entriesOf(t *testing.T, block *circuitinput.Block, step *circuitinput.ExecStep, target operation.Target) []operation.Entry {
	t.Helper()
	var out []operation.Entry
	for _, ref := range step.BusMappingInstance {
		e, ok := block.Container.Lookup(ref)
		require.True(t, ok, ref.String())
		if e.Target() == target {
			out = append(out, e)
		}
	}
	return out
}

func word(v uint64) uint256.Int { return *uint256.NewInt(v) }

func TestCallerOpcode(t *testing.T) {
	block := build(t, callA(mock.NewBytecode().Op(vm.CALLER, vm.STOP).Bytes()))
	tx := block.Txs[0]
	step := stepOf(t, tx, vm.CALLER)
	require.Len(t, step.BusMappingInstance, 2)

	callID := tx.Calls[0].CallID
	callerWord := circuitinput.AddressWord(sender)
	first, ok := block.Container.Lookup(step.BusMappingInstance[0])
	require.True(t, ok)
	require.Equal(t, operation.Read, first.RW)
	require.Equal(t, operation.CallContextOp{CallID: callID, Field: operation.CallerAddress, Value: callerWord}, first.Op)

	second, ok := block.Container.Lookup(step.BusMappingInstance[1])
	require.True(t, ok)
	require.Equal(t, operation.Write, second.RW)
	require.Equal(t, operation.NewStackOp(callID, 1023, callerWord), second.Op)
	require.Equal(t, first.RWC+1, second.RWC)
	require.NoError(t, step.Error)
}

func TestStackOpcodes(t *testing.T) {
	code := mock.NewBytecode().Push(1).Push(2).Op(vm.DUP2, vm.SWAP1, vm.POP, vm.ADD, vm.STOP).Bytes()
	block := build(t, callA(code))
	tx := block.Txs[0]
	callID := tx.Calls[0].CallID

	dup := entriesOf(t, block, stepOf(t, tx, vm.DUP2), operation.Stack)
	require.Len(t, dup, 2)
	require.Equal(t, operation.NewStackOp(callID, 1023, word(1)), dup[0].Op)
	require.Equal(t, operation.Write, dup[1].RW)
	require.Equal(t, operation.NewStackOp(callID, 1021, word(1)), dup[1].Op)

	swap := entriesOf(t, block, stepOf(t, tx, vm.SWAP1), operation.Stack)
	require.Len(t, swap, 4)
	require.Equal(t, operation.NewStackOp(callID, 1021, word(2)), swap[2].Op)
	require.Equal(t, operation.NewStackOp(callID, 1022, word(1)), swap[3].Op)

	add := entriesOf(t, block, stepOf(t, tx, vm.ADD), operation.Stack)
	require.Len(t, add, 3)
	require.Equal(t, operation.NewStackOp(callID, 1023, word(2)), add[2].Op)
}

func TestMemoryOpcodes(t *testing.T) {
	code := mock.NewBytecode().
		Push(0xff).Push(1).Op(vm.MSTORE).
		Push(1).Op(vm.MLOAD, vm.MSIZE, vm.STOP).Bytes()
	block := build(t, callA(code))
	tx := block.Txs[0]
	callID := tx.Calls[0].CallID

	writes := entriesOf(t, block, stepOf(t, tx, vm.MSTORE), operation.Memory)
	require.Len(t, writes, 2)
	var high uint256.Int
	high.Lsh(uint256.NewInt(0xff), 248)
	require.Equal(t, operation.NewMemoryOp(callID, 0, uint256.Int{}), writes[0].Op)
	require.Equal(t, operation.NewMemoryOp(callID, 32, high), writes[1].Op)

	reads := entriesOf(t, block, stepOf(t, tx, vm.MLOAD), operation.Memory)
	require.Len(t, reads, 2)
	require.Equal(t, operation.Read, reads[1].RW)

	msize := entriesOf(t, block, stepOf(t, tx, vm.MSIZE), operation.Stack)
	require.Equal(t, word(64), msize[0].Op.StateValue())
}

func TestStorageAndRefund(t *testing.T) {
	code := mock.NewBytecode().
		Push(1).Op(vm.SLOAD, vm.POP).
		Push(0).Push(1).Op(vm.SSTORE, vm.STOP).Bytes()
	ctx := callA(code).SetStorage(contractA, 1, 5)
	block := build(t, ctx)
	tx := block.Txs[0]

	sload := stepOf(t, tx, vm.SLOAD)
	reads := entriesOf(t, block, sload, operation.Storage)
	require.Len(t, reads, 1)
	require.Equal(t, word(5), reads[0].Op.StateValue())
	warm := entriesOf(t, block, sload, operation.TxAccessListAccountStorage)
	require.Len(t, warm, 1)
	require.False(t, warm[0].Op.(operation.TxAccessListAccountStorageOp).IsWarmPrev)

	sstore := stepOf(t, tx, vm.SSTORE)
	writes := entriesOf(t, block, sstore, operation.Storage)
	require.Len(t, writes, 1)
	require.Equal(t, operation.StorageOp{
		Address: contractA, Slot: word(1), Value: word(0), ValuePrev: word(5),
		TxID: tx.ID, CommittedValue: word(5),
	}, writes[0].Op)

	refunds := entriesOf(t, block, sstore, operation.TxRefund)
	require.Len(t, refunds, 2)
	require.Equal(t, operation.Read, refunds[0].RW)
	require.Equal(t, operation.TxRefundOp{TxID: tx.ID, Value: params.SstoreClearsScheduleRefundEIP3529, ValuePrev: 0}, refunds[1].Op)
}

func TestJumpLoop(t *testing.T) {
	b := mock.NewBytecode().Push(3)
	loop := b.Len()
	b.Op(vm.JUMPDEST).Push(1).Op(vm.SWAP1, vm.SUB, vm.DUP1).Push(uint64(loop)).Op(vm.JUMPI, vm.STOP)
	block := build(t, callA(b.Bytes()))
	tx := block.Txs[0]
	require.Len(t, stepsOf(tx, vm.JUMPDEST), 3)
	require.Len(t, stepsOf(tx, vm.JUMPI), 3)
	require.False(t, tx.Failed)
}

func nestedCallBlock(t *testing.T) *circuitinput.Block {
	callee := mock.NewBytecode().Push(7).Push(1).Op(vm.SSTORE).Push(0x2a).ReturnWord().Bytes()
	caller := mock.NewBytecode().
		Call(vm.CALL, 0xffff, contractB, 0, 0, 0, 0, 32).
		Op(vm.RETURNDATASIZE, vm.POP).
		Push(0).Op(vm.MLOAD, vm.POP, vm.STOP).Bytes()
	ctx := callA(caller).AddAccount(contractB, 0, callee)
	return build(t, ctx)
}

func TestNestedCall(t *testing.T) {
	block := nestedCallBlock(t)
	tx := block.Txs[0]
	require.Len(t, tx.Calls, 2)
	root, callee := tx.Calls[0], tx.Calls[1]
	require.Equal(t, circuitinput.CallKindCall, callee.Kind)
	require.Equal(t, 2, callee.Depth)
	require.Equal(t, contractA, callee.CallerAddress)
	require.Equal(t, contractB, callee.Address)
	require.Equal(t, circuitinput.CallSuccess, callee.Status)
	require.True(t, callee.IsPersistent)
	require.Len(t, root.ReturnData, 32)
	require.Less(t, root.RWCounterStart, callee.RWCounterStart)
	require.LessOrEqual(t, callee.RWCounterEnd, root.RWCounterEnd)

	// The callee's RETURN restores the caller and reports the call result.
	ret := stepOf(t, tx, vm.RETURN)
	var lastCallee bool
	for _, e := range entriesOf(t, block, ret, operation.CallContext) {
		op := e.Op.(operation.CallContextOp)
		if op.CallID == root.CallID && op.Field == operation.LastCalleeID {
			require.Equal(t, word(callee.CallID), op.Value)
			lastCallee = true
		}
	}
	require.True(t, lastCallee)
	stack := entriesOf(t, block, ret, operation.Stack)
	require.Equal(t, word(1), stack[len(stack)-1].Op.StateValue())

	size := entriesOf(t, block, stepOf(t, tx, vm.RETURNDATASIZE), operation.Stack)
	require.Equal(t, word(32), size[0].Op.StateValue())
	loaded := entriesOf(t, block, stepOf(t, tx, vm.MLOAD), operation.Stack)
	require.Equal(t, word(0x2a), loaded[1].Op.StateValue())
}

func TestRevertedCallUndoesWrites(t *testing.T) {
	callee := mock.NewBytecode().Push(7).Push(1).Op(vm.SSTORE).Push(0).Push(0).Op(vm.REVERT).Bytes()
	caller := mock.NewBytecode().Call(vm.CALL, 0xffff, contractB, 0, 0, 0, 0, 0).Op(vm.STOP).Bytes()
	block := build(t, callA(caller).AddAccount(contractB, 0, callee))
	tx := block.Txs[0]
	require.False(t, tx.Failed)
	require.Len(t, tx.Calls, 2)
	require.Equal(t, circuitinput.CallFailure, tx.Calls[1].Status)
	require.False(t, tx.Calls[1].IsPersistent)

	written := entriesOf(t, block, stepOf(t, tx, vm.SSTORE), operation.Storage)
	require.Len(t, written, 1)
	undone := entriesOf(t, block, stepOf(t, tx, vm.REVERT), operation.Storage)
	require.Len(t, undone, 1)
	require.Equal(t, operation.Write, undone[0].RW)
	require.Equal(t, written[0].Op.(operation.StorageOp).Reverse(), undone[0].Op)

	warm := entriesOf(t, block, stepOf(t, tx, vm.REVERT), operation.TxAccessListAccountStorage)
	require.Len(t, warm, 1)
	require.False(t, warm[0].Op.(operation.TxAccessListAccountStorageOp).IsWarm)

	stack := entriesOf(t, block, stepOf(t, tx, vm.REVERT), operation.Stack)
	require.Equal(t, word(0), stack[len(stack)-1].Op.StateValue())
}

func TestStackUnderflowFailsOnlyCallee(t *testing.T) {
	callee := mock.NewBytecode().Op(vm.ADD).Bytes()
	caller := mock.NewBytecode().Call(vm.CALL, 0xffff, contractB, 0, 0, 0, 0, 0).Op(vm.POP, vm.STOP).Bytes()
	block := build(t, callA(caller).AddAccount(contractB, 0, callee))
	tx := block.Txs[0]
	require.False(t, tx.Failed)
	add := stepOf(t, tx, vm.ADD)
	require.ErrorIs(t, add.Error, evm.ErrStackUnderflow)
	require.Equal(t, 1, add.CallIndex)
	require.Equal(t, circuitinput.CallFailure, tx.Calls[1].Status)

	// The caller resumes right after the failing step.
	steps := tx.Steps()
	i := slices.Index(steps, add)
	require.Less(t, i+1, len(steps))
	pop := steps[i+1]
	require.Equal(t, vm.POP, pop.Op)
	require.Equal(t, 0, pop.CallIndex)
	parentID, failedID := tx.Calls[0].CallID, tx.Calls[1].CallID
	for _, e := range entriesOf(t, block, pop, operation.Stack) {
		require.Equal(t, parentID, e.Op.(operation.StackOp).CallID)
	}
	require.Equal(t, circuitinput.CallSuccess, tx.Calls[0].Status)

	// Nothing touches the failed call's stack or memory after its last step.
	own := make(map[uint64]bool, len(add.BusMappingInstance))
	for _, ref := range add.BusMappingInstance {
		e, ok := block.Container.Lookup(ref)
		require.True(t, ok)
		own[e.RWC] = true
	}
	for _, op := range block.Container.StackOps() {
		if op.Op.CallID == failedID && op.RWC >= add.RWCounter {
			require.True(t, own[op.RWC], "stack op %s at rwc %d after failure", op.Op, op.RWC)
		}
	}
	for _, op := range block.Container.MemoryOps() {
		if op.Op.CallID == failedID && op.RWC >= add.RWCounter {
			require.True(t, own[op.RWC], "memory op at rwc %d after failure", op.RWC)
		}
	}
}

func TestOutOfGasFailsTx(t *testing.T) {
	code := mock.NewBytecode().Push(1).Push(2).Push(3).Op(vm.STOP).Bytes()
	ctx := mock.NewTestContext().
		AddAccount(sender, richBalance, nil).
		AddAccount(contractA, 0, code).
		AddTx(mock.Tx{From: sender, To: &contractA, Gas: params.TxGas + 5})
	block := build(t, ctx)
	tx := block.Txs[0]
	require.True(t, tx.Failed)
	require.Equal(t, uint64(params.TxGas+5), tx.GasUsed)
	steps := stepsOf(tx, vm.PUSH1)
	require.Len(t, steps, 2)
	require.ErrorIs(t, steps[1].Error, evm.ErrOutOfGas)
}

func TestCallEOAWithValue(t *testing.T) {
	caller := mock.NewBytecode().Call(vm.CALL, 0xffff, nobody, 5, 0, 0, 0, 0).Op(vm.STOP).Bytes()
	ctx := mock.NewTestContext().
		AddAccount(sender, richBalance, nil).
		AddAccount(contractA, 100, caller).
		Call(sender, contractA, nil)
	block := build(t, ctx)
	tx := block.Txs[0]
	require.Len(t, tx.Calls, 2)
	require.Equal(t, circuitinput.CallSuccess, tx.Calls[1].Status)
	require.Empty(t, tx.Calls[1].Steps)

	accounts := entriesOf(t, block, stepOf(t, tx, vm.CALL), operation.Account)
	var credited, created bool
	for _, e := range accounts {
		op := e.Op.(operation.AccountOp)
		if op.Address != nobody || e.RW != operation.Write {
			continue
		}
		switch op.Field {
		case operation.AccountBalance:
			require.Equal(t, word(5), op.Value)
			credited = true
		case operation.AccountCodeHash:
			require.Equal(t, circuitinput.HashWord(types.EmptyCodeHash), op.Value)
			created = true
		}
	}
	require.True(t, credited)
	require.True(t, created)
}

func TestIdentityPrecompile(t *testing.T) {
	identity := common.BytesToAddress([]byte{4})
	code := mock.NewBytecode().
		Push(0x2a).Push(0).Op(vm.MSTORE).
		Call(vm.STATICCALL, 0xffff, identity, 0, 0, 32, 32, 32).
		Op(vm.POP).Push(32).Op(vm.MLOAD, vm.STOP).Bytes()
	block := build(t, callA(code))
	tx := block.Txs[0]
	require.Len(t, tx.Calls, 2)
	require.True(t, tx.Calls[1].IsStatic)
	require.Len(t, tx.Calls[1].Output, 32)
	loaded := entriesOf(t, block, stepOf(t, tx, vm.MLOAD), operation.Stack)
	require.Equal(t, word(0x2a), loaded[1].Op.StateValue())
}

func TestCreateOpcode(t *testing.T) {
	runtime := mock.NewBytecode().Push(0x2a).ReturnWord().Bytes()
	initCode := mock.DeployCode(runtime)
	require.LessOrEqual(t, len(initCode), 32)
	code := mock.NewBytecode().
		PushBytes(initCode).Push(0).Op(vm.MSTORE).
		Push(uint64(len(initCode))).Push(uint64(32-len(initCode))).Push(0).Op(vm.CREATE, vm.STOP).Bytes()
	block := build(t, callA(code))
	tx := block.Txs[0]
	require.Len(t, tx.Calls, 2)
	created := tx.Calls[1]
	require.Equal(t, circuitinput.CallKindCreate, created.Kind)
	require.Equal(t, crypto.CreateAddress(contractA, 0), created.Address)
	require.Equal(t, circuitinput.CallSuccess, created.Status)

	hash := crypto.Keccak256Hash(runtime)
	require.Equal(t, runtime, block.Code[hash])
	var deployed bool
	for _, op := range block.Container.AccountOps() {
		if op.Op.Address == created.Address && op.Op.Field == operation.AccountCodeHash && op.Op.Value == circuitinput.HashWord(hash) {
			deployed = true
		}
	}
	require.True(t, deployed)
	stack := entriesOf(t, block, stepOf(t, tx, vm.RETURN), operation.Stack)
	require.Equal(t, circuitinput.AddressWord(created.Address), stack[len(stack)-1].Op.StateValue())
}

func TestCreateTx(t *testing.T) {
	runtime := mock.NewBytecode().Op(vm.CALLER, vm.STOP).Bytes()
	ctx := mock.NewTestContext().
		AddAccount(sender, richBalance, nil).
		AddTx(mock.Tx{From: sender, Input: mock.DeployCode(runtime)})
	block := build(t, ctx)
	tx := block.Txs[0]
	require.True(t, tx.IsCreate())
	root := tx.RootCall()
	require.True(t, root.IsCreate())
	require.Equal(t, crypto.CreateAddress(sender, 0), root.Address)
	require.Equal(t, runtime, block.Code[crypto.Keccak256Hash(runtime)])
}

func TestLogs(t *testing.T) {
	logCode := func(tail vm.OpCode) []byte {
		b := mock.NewBytecode().Push(0x2a).Push(0).Op(vm.MSTORE).
			Push(0x11).Push(32).Push(0).Op(vm.LOG1)
		if tail == vm.REVERT {
			b.Push(0).Push(0)
		}
		return b.Op(tail).Bytes()
	}

	t.Run("persistent", func(t *testing.T) {
		block := build(t, callA(logCode(vm.STOP)))
		tx := block.Txs[0]
		step := stepOf(t, tx, vm.LOG1)
		logs := entriesOf(t, block, step, operation.TxLog)
		require.Len(t, logs, 3)
		require.Equal(t, uint64(1), step.LogID)
		require.Equal(t, operation.TxLogOp{TxID: tx.ID, LogID: 1, Field: operation.LogTopic, Value: word(0x11)}, logs[1].Op)
		require.Equal(t, word(0x2a), logs[2].Op.StateValue())
		require.Equal(t, uint64(1), tx.LogCount)
	})
	t.Run("reverted", func(t *testing.T) {
		block := build(t, callA(logCode(vm.REVERT)))
		tx := block.Txs[0]
		require.True(t, tx.Failed)
		require.Empty(t, entriesOf(t, block, stepOf(t, tx, vm.LOG1), operation.TxLog))
		require.Zero(t, tx.LogCount)
	})
}

func TestSelfdestruct(t *testing.T) {
	code := mock.NewBytecode().PushAddress(nobody).Op(vm.SELFDESTRUCT).Bytes()
	ctx := mock.NewTestContext().
		AddAccount(sender, richBalance, nil).
		AddAccount(contractA, 50, code).
		Call(sender, contractA, nil)
	block := build(t, ctx)
	tx := block.Txs[0]
	require.False(t, tx.Failed)
	var paid bool
	for _, e := range entriesOf(t, block, stepOf(t, tx, vm.SELFDESTRUCT), operation.Account) {
		op := e.Op.(operation.AccountOp)
		if op.Address == nobody && op.Field == operation.AccountBalance {
			require.Equal(t, word(50), op.Value)
			paid = true
		}
	}
	require.True(t, paid)
}

func TestReplayIsDeterministic(t *testing.T) {
	first := nestedCallBlock(t)
	second := nestedCallBlock(t)
	require.Empty(t, cmp.Diff(first.Container.All(), second.Container.All()))
	require.Equal(t, first.Container.RWCounter(), second.Container.RWCounter())
}
