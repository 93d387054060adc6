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

package mock_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Merlot21/zkevm-circuits/busmapping/mock"
)

func TestBytecode(t *testing.T) {
	code := mock.NewBytecode().Push(0).Push(0x1234).Op(vm.ADD).Bytes()
	assert.Equal(t, []byte{byte(vm.PUSH0), byte(vm.PUSH2), 0x12, 0x34, byte(vm.ADD)}, code)

	b := mock.NewBytecode()
	patch := b.PushLabel()
	b.Op(vm.JUMP).Label(patch)
	assert.Equal(t, []byte{byte(vm.PUSH2), 0, 4, byte(vm.JUMP), byte(vm.JUMPDEST)}, b.Bytes())

	runtime := []byte{byte(vm.STOP), 0xaa}
	deploy := mock.DeployCode(runtime)
	require.Len(t, deploy, 10+len(runtime))
	assert.Equal(t, runtime, deploy[10:])
	assert.Equal(t, byte(vm.RETURN), deploy[9])
}

func TestTraceGasAccounting(t *testing.T) {
	code := mock.NewBytecode().Push(1).Push(2).Op(vm.ADD).Op(vm.STOP).Bytes()
	trace, err := mock.NewTestContext().
		AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
		AddAccount(mock.Addr[0], 0, code).
		Call(mock.Addr[1], mock.Addr[0], nil).
		BlockTrace()
	require.NoError(t, err)
	require.Len(t, trace.ExecutionResults, 1)

	result := trace.ExecutionResults[0]
	assert.False(t, result.Failed)
	logs := result.StructLogs
	require.Len(t, logs, 4)
	assert.Equal(t, uint64(mock.DefaultTxGas-params.TxGas), logs[0].Gas)
	for i := 1; i < len(logs); i++ {
		assert.Equal(t, logs[i-1].Gas-logs[i-1].GasCost, logs[i].Gas, "step %d", i)
		assert.Equal(t, 1, logs[i].Depth)
	}
	assert.Equal(t, []uint256.Int{*uint256.NewInt(3)}, logs[3].Stack)
	assert.Equal(t, params.TxGas+logs[0].GasCost+logs[1].GasCost+logs[2].GasCost, result.Gas)
}

func TestRevertRestoresState(t *testing.T) {
	code := mock.NewBytecode().Push(1).Op(vm.SLOAD).
		Push(9).Push(1).Op(vm.SSTORE).
		Push(0).Push(0).Op(vm.REVERT).Bytes()
	trace, err := mock.NewTestContext().
		AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
		AddAccount(mock.Addr[0], 0, code).
		SetStorage(mock.Addr[0], 1, 5).
		Call(mock.Addr[1], mock.Addr[0], nil).
		Call(mock.Addr[1], mock.Addr[0], nil).
		BlockTrace()
	require.NoError(t, err)
	require.Len(t, trace.ExecutionResults, 2)
	assert.Equal(t, uint64(0), uint64(trace.Transactions[0].Nonce))
	assert.Equal(t, uint64(1), uint64(trace.Transactions[1].Nonce))

	for i, result := range trace.ExecutionResults {
		assert.True(t, result.Failed, "tx %d", i)
		// the step after SLOAD sees the pre-state value in both transactions
		assert.Equal(t, []uint256.Int{*uint256.NewInt(5)}, result.StructLogs[2].Stack, "tx %d", i)
	}
	assert.Equal(t, uint64(5), trace.Prestate[mock.Addr[0]].Storage[uint256.NewInt(1).Bytes32()].Big().Uint64())
}

func TestIntrinsicGasAboveTxGas(t *testing.T) {
	_, err := mock.NewTestContext().
		AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
		AddTx(mock.Tx{From: mock.Addr[1], To: &mock.Addr[0], Gas: params.TxGas - 1}).
		BlockTrace()
	require.Error(t, err)
}

func TestNestedCallDepth(t *testing.T) {
	inner := mock.NewBytecode().Op(vm.CALLER).Op(vm.STOP).Bytes()
	outer := mock.NewBytecode().Call(vm.CALL, 0xffff, mock.Addr[2], 0, 0, 0, 0, 0).Op(vm.STOP).Bytes()
	trace, err := mock.NewTestContext().
		AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
		AddAccount(mock.Addr[0], 0, outer).
		AddAccount(mock.Addr[2], 0, inner).
		Call(mock.Addr[1], mock.Addr[0], nil).
		BlockTrace()
	require.NoError(t, err)

	var depths []int
	for _, l := range trace.ExecutionResults[0].StructLogs {
		depths = append(depths, l.Depth)
	}
	// 7 pushes and CALL, the callee's CALLER and STOP, then the caller's STOP
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 1}, depths)
	last := trace.ExecutionResults[0].StructLogs[10]
	assert.Equal(t, []uint256.Int{*uint256.NewInt(1)}, last.Stack)
}
