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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func testStateDB(t *testing.T) (*StateDB, map[common.Hash][]byte) {
	t.Helper()
	codes := make(map[common.Hash][]byte)
	pre := map[common.Address]logger.Account{
		alice: {Nonce: 1, Balance: (*hexutil.Big)(uint256.NewInt(10).ToBig())},
		bob: {
			Balance: (*hexutil.Big)(uint256.NewInt(0).ToBig()),
			Code:    []byte{byte(vm.STOP)},
			Storage: map[common.Hash]common.Hash{{31: 1}: {31: 5}},
		},
	}
	return NewStateDB(pre, codes), codes
}

func TestStateDBPrestate(t *testing.T) {
	sdb, codes := testStateDB(t)
	require.Equal(t, uint64(1), sdb.Nonce(alice))
	require.Equal(t, *uint256.NewInt(10), sdb.Balance(alice))
	require.Equal(t, types.EmptyCodeHash, sdb.CodeHash(alice))
	codeHash := crypto.Keccak256Hash([]byte{byte(vm.STOP)})
	require.Equal(t, codeHash, sdb.CodeHash(bob))
	require.Equal(t, []byte{byte(vm.STOP)}, codes[codeHash])
	require.Equal(t, *uint256.NewInt(5), sdb.State(bob, *uint256.NewInt(1)))

	unknown := common.HexToAddress("0xdead")
	require.False(t, sdb.Exists(unknown))
	require.True(t, sdb.IsEmpty(unknown))
	require.Equal(t, common.Hash{}, sdb.CodeHash(unknown))
	require.False(t, sdb.IsEmpty(alice))
}

func TestStateDBApplyReverse(t *testing.T) {
	sdb, _ := testStateDB(t)
	ops := []operation.ReversibleOp{
		operation.AccountOp{Address: alice, Field: operation.AccountBalance, Value: *uint256.NewInt(3), ValuePrev: *uint256.NewInt(10)},
		operation.AccountOp{Address: alice, Field: operation.AccountNonce, Value: *uint256.NewInt(2), ValuePrev: *uint256.NewInt(1)},
		operation.StorageOp{Address: bob, Slot: *uint256.NewInt(1), Value: *uint256.NewInt(9), ValuePrev: *uint256.NewInt(5), TxID: 1, CommittedValue: *uint256.NewInt(5)},
		operation.TxRefundOp{TxID: 1, Value: 4800},
		operation.TxAccessListAccountOp{TxID: 1, Address: bob, IsWarm: true},
		operation.TxAccessListAccountStorageOp{TxID: 1, Address: bob, Slot: *uint256.NewInt(1), IsWarm: true},
	}
	for _, op := range ops {
		require.NoError(t, sdb.Apply(op))
	}
	require.Equal(t, *uint256.NewInt(3), sdb.Balance(alice))
	require.Equal(t, uint64(2), sdb.Nonce(alice))
	require.Equal(t, *uint256.NewInt(9), sdb.State(bob, *uint256.NewInt(1)))
	require.Equal(t, *uint256.NewInt(5), sdb.CommittedState(bob, *uint256.NewInt(1)))
	require.Equal(t, uint64(4800), sdb.Refund())
	require.True(t, sdb.IsWarmAccount(bob))
	require.True(t, sdb.IsWarmSlot(bob, *uint256.NewInt(1)))

	for i := len(ops) - 1; i >= 0; i-- {
		require.NoError(t, sdb.Apply(ops[i].Reverse()))
	}
	require.Equal(t, *uint256.NewInt(10), sdb.Balance(alice))
	require.Equal(t, uint64(1), sdb.Nonce(alice))
	require.Equal(t, *uint256.NewInt(5), sdb.State(bob, *uint256.NewInt(1)))
	require.Zero(t, sdb.Refund())
	require.False(t, sdb.IsWarmAccount(bob))
	require.False(t, sdb.IsWarmSlot(bob, *uint256.NewInt(1)))
}

func TestStateDBStartTx(t *testing.T) {
	sdb, _ := testStateDB(t)
	slot := *uint256.NewInt(1)
	require.NoError(t, sdb.Apply(operation.StorageOp{Address: bob, Slot: slot, Value: *uint256.NewInt(7), ValuePrev: *uint256.NewInt(5)}))
	require.NoError(t, sdb.Apply(operation.TxRefundOp{TxID: 1, Value: 10}))
	require.NoError(t, sdb.Apply(operation.TxAccessListAccountOp{TxID: 1, Address: alice, IsWarm: true}))

	sdb.StartTx()
	require.Zero(t, sdb.Refund())
	require.False(t, sdb.IsWarmAccount(alice))
	// the next transaction commits the value left by the previous one
	require.Equal(t, *uint256.NewInt(7), sdb.CommittedState(bob, slot))
}

func TestStateDBRejectsNonStateOps(t *testing.T) {
	sdb, _ := testStateDB(t)
	err := sdb.Apply(operation.NewStackOp(1, 1023, uint256.Int{}))
	require.ErrorIs(t, err, operation.ErrUnknownOp)
}

func TestCallKindOf(t *testing.T) {
	tests := []struct {
		op     vm.OpCode
		kind   CallKind
		ok     bool
		create bool
	}{
		{vm.CALL, CallKindCall, true, false},
		{vm.CALLCODE, CallKindCallCode, true, false},
		{vm.DELEGATECALL, CallKindDelegateCall, true, false},
		{vm.STATICCALL, CallKindStaticCall, true, false},
		{vm.CREATE, CallKindCreate, true, true},
		{vm.CREATE2, CallKindCreate2, true, true},
		{vm.ADD, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			kind, ok := CallKindOf(tt.op)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, tt.kind, kind)
				require.Equal(t, tt.create, kind.IsCreate())
			}
		})
	}
}

func TestIsPrecompile(t *testing.T) {
	require.True(t, IsPrecompile(common.BytesToAddress([]byte{1})))
	require.True(t, IsPrecompile(common.BytesToAddress([]byte{0x0a})))
	require.False(t, IsPrecompile(common.BytesToAddress([]byte{0x0b})))
	require.False(t, IsPrecompile(common.Address{}))
}
