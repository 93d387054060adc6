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

package circuitinput_test

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/mock"
	"github.com/Merlot21/zkevm-circuits/busmapping/opcodes"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

var (
	contract = mock.Addr[0]
	sender   = mock.Addr[1]
	callee   = mock.Addr[2]
)

// storeTwice runs two transactions through the same contract. Each stores
// its call value in slot 1 and then calls a contract that writes the same
// slot of its own storage and reverts.
func storeTwice(t *testing.T) *logger.BlockTrace {
	t.Helper()
	writer := mock.NewBytecode().Op(vm.CALLVALUE).Push(1).Op(vm.SSTORE).
		Call(vm.CALL, 0xffff, callee, 0, 0, 0, 0, 0).Op(vm.STOP).Bytes()
	reverter := mock.NewBytecode().Push(9).Push(1).Op(vm.SSTORE).Push(0).Push(0).Op(vm.REVERT).Bytes()
	trace, err := mock.NewTestContext().
		AddAccount(sender, 1_000_000_000_000, nil).
		AddAccount(contract, 0, writer).
		AddAccount(callee, 0, reverter).
		AddTx(mock.Tx{From: sender, To: &contract, Value: *uint256.NewInt(3)}).
		Call(sender, contract, nil).
		BlockTrace()
	require.NoError(t, err)
	return trace
}

func handle(t *testing.T, cfg circuitinput.Config, trace *logger.BlockTrace) (*circuitinput.Block, error) {
	t.Helper()
	b, err := circuitinput.NewCircuitInputBuilder(cfg, opcodes.DefaultTable, nil)
	require.NoError(t, err)
	return b.HandleBlock(trace)
}

func TestBlockAcrossTransactions(t *testing.T) {
	block, err := handle(t, circuitinput.DefaultConfig(), storeTwice(t))
	require.NoError(t, err)
	require.Len(t, block.Txs, 2)
	require.Equal(t, uint64(1), block.Txs[0].ID)
	require.Equal(t, uint64(2), block.Txs[1].ID)
	require.Equal(t, block.Txs[0].GasUsed+block.Txs[1].GasUsed, block.Txs[1].CumulativeGasUsed)
	require.Equal(t, uint64(mock.DefaultChainID), block.ChainID)
	require.Equal(t, mock.Coinbase, block.Coinbase)

	// The second transaction clears the value the first one stored.
	var cleared bool
	for _, op := range block.Container.StorageOps() {
		if op.Op.TxID == 2 && op.Op.Address == contract && op.RW == operation.Write {
			require.Equal(t, *uint256.NewInt(3), op.Op.ValuePrev)
			require.Equal(t, *uint256.NewInt(3), op.Op.CommittedValue)
			require.True(t, op.Op.Value.IsZero())
			cleared = true
		}
	}
	require.True(t, cleared)

	// Call ids are unique across the block.
	seen := map[uint64]bool{}
	for _, tx := range block.Txs {
		for _, call := range tx.Calls {
			require.False(t, seen[call.CallID])
			seen[call.CallID] = true
		}
	}
	require.Len(t, seen, 4)
}

func TestRWCountersAreContiguous(t *testing.T) {
	block, err := handle(t, circuitinput.DefaultConfig(), storeTwice(t))
	require.NoError(t, err)

	next := uint64(0)
	for _, tx := range block.Txs {
		for _, step := range tx.Steps() {
			require.Equal(t, next, step.RWCounter, "step %s", step)
			for _, ref := range step.BusMappingInstance {
				e, ok := block.Container.Lookup(ref)
				require.True(t, ok)
				require.Equal(t, next, e.RWC)
				next++
			}
		}
	}
	require.Equal(t, block.Container.RWCounter(), next)
	require.Len(t, block.Container.All(), int(next))
}

func TestCallsAreBracketed(t *testing.T) {
	block, err := handle(t, circuitinput.DefaultConfig(), storeTwice(t))
	require.NoError(t, err)
	for _, tx := range block.Txs {
		for _, call := range tx.Calls {
			require.NotEqual(t, circuitinput.CallActive, call.Status)
			require.LessOrEqual(t, call.RWCounterStart, call.RWCounterEnd)
			for _, step := range call.Steps {
				require.GreaterOrEqual(t, step.RWCounter, call.RWCounterStart)
				require.LessOrEqual(t, step.RWCounter, call.RWCounterEnd)
			}
			if call.ParentIndex >= 0 {
				parent := tx.Calls[call.ParentIndex]
				require.Equal(t, parent.Depth+1, call.Depth)
				require.GreaterOrEqual(t, call.RWCounterStart, parent.RWCounterStart)
				require.LessOrEqual(t, call.RWCounterEnd, parent.RWCounterEnd)
			}
		}
	}
	reverted := block.Txs[0].Calls[1]
	require.Equal(t, circuitinput.CallFailure, reverted.Status)
}

func TestSortedViewReadsAreConsistent(t *testing.T) {
	block, err := handle(t, circuitinput.DefaultConfig(), storeTwice(t))
	require.NoError(t, err)
	for _, target := range operation.Targets {
		sorted := block.Container.Sorted(target)
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if prev.Op.Key() != cur.Op.Key() {
				continue
			}
			require.Less(t, prev.RWC, cur.RWC)
			if cur.RW == operation.Read {
				require.Equal(t, prev.Op.StateValue(), cur.Op.StateValue(), "%s read at rwc %d", target, cur.RWC)
			}
		}
	}
}

func TestRWLimit(t *testing.T) {
	cfg := circuitinput.DefaultConfig()
	cfg.MaxRws = 20
	_, err := handle(t, cfg, storeTwice(t))
	require.ErrorIs(t, err, circuitinput.ErrRWLimitExceeded)
}

func TestTamperedTraces(t *testing.T) {
	t.Run("gas used", func(t *testing.T) {
		trace := storeTwice(t)
		trace.ExecutionResults[1].Gas++
		_, err := handle(t, circuitinput.DefaultConfig(), trace)
		require.ErrorIs(t, err, circuitinput.ErrInvalidTraceStep)
	})
	t.Run("stack", func(t *testing.T) {
		trace := storeTwice(t)
		// the step after CALLVALUE carries the call value
		trace.ExecutionResults[1].StructLogs[1].Stack[0] = *uint256.NewInt(2)
		_, err := handle(t, circuitinput.DefaultConfig(), trace)
		require.ErrorIs(t, err, circuitinput.ErrVerificationFailed)
	})
	t.Run("pc", func(t *testing.T) {
		trace := storeTwice(t)
		trace.ExecutionResults[1].StructLogs[1].Pc++
		_, err := handle(t, circuitinput.DefaultConfig(), trace)
		require.ErrorIs(t, err, circuitinput.ErrInvalidTraceStep)
	})
	t.Run("call outcome", func(t *testing.T) {
		trace := storeTwice(t)
		logs := trace.ExecutionResults[0].StructLogs
		// the caller's step after the reverted call reports success
		for i := range logs {
			if logs[i].Op == vm.STOP && logs[i].Depth == 1 {
				top := len(logs[i].Stack) - 1
				logs[i].Stack[top] = *uint256.NewInt(1)
			}
		}
		_, err := handle(t, circuitinput.DefaultConfig(), trace)
		require.ErrorIs(t, err, circuitinput.ErrUnexpectedCallOutcome)
	})
	t.Run("nonce", func(t *testing.T) {
		trace := storeTwice(t)
		trace.Transactions[1].Nonce = 7
		_, err := handle(t, circuitinput.DefaultConfig(), trace)
		require.ErrorIs(t, err, circuitinput.ErrInvalidTraceStep)
	})
	t.Run("memory offset", func(t *testing.T) {
		var offset uint256.Int
		offset.SetUint64(math.MaxUint64)
		code := mock.NewBytecode().Push(1).PushWord(offset).Op(vm.MSTORE).Op(vm.STOP).Bytes()
		trace, err := mock.NewTestContext().
			AddAccount(sender, 1_000_000_000_000, nil).
			AddAccount(contract, 0, code).
			Call(sender, contract, nil).
			BlockTrace()
		require.NoError(t, err)
		logs := trace.ExecutionResults[0].StructLogs
		require.Len(t, logs, 3)
		require.Equal(t, vm.MSTORE, logs[2].Op)
		require.NotEmpty(t, logs[2].Error)
		// an offset whose end wraps around 2^64 must not look like a small range
		logs[2].Error = ""
		_, err = handle(t, circuitinput.DefaultConfig(), trace)
		require.ErrorIs(t, err, circuitinput.ErrInvalidTraceStep)
	})
}
