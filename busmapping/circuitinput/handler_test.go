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
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/mock"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

func pushStopTrace(t *testing.T) *logger.BlockTrace {
	t.Helper()
	code := mock.NewBytecode().Push(1).Op(vm.STOP).Bytes()
	trace, err := mock.NewTestContext().
		AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
		AddAccount(mock.Addr[0], 0, code).
		Call(mock.Addr[1], mock.Addr[0], nil).
		BlockTrace()
	require.NoError(t, err)
	return trace
}

func TestHandlerSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := NewMockDispatcher(ctrl)
	push := NewMockOpcodeHandler(ctrl)
	stop := NewMockOpcodeHandler(ctrl)

	gomock.InOrder(
		dispatcher.EXPECT().Handler(vm.PUSH1).Return(push),
		push.EXPECT().GenAssociatedOps(gomock.Any(), gomock.Any()).DoAndReturn(
			func(state *CircuitInputStateRef, steps []logger.StructLog) ([]*ExecStep, error) {
				require.Len(t, steps, 2)
				step, err := state.NewStep(&steps[0])
				if err != nil {
					return nil, err
				}
				return []*ExecStep{step}, state.StackPush(step, *uint256.NewInt(1))
			}),
		dispatcher.EXPECT().Handler(vm.STOP).Return(stop),
		stop.EXPECT().GenAssociatedOps(gomock.Any(), gomock.Any()).DoAndReturn(
			func(state *CircuitInputStateRef, steps []logger.StructLog) ([]*ExecStep, error) {
				step, err := state.NewStep(&steps[0])
				if err != nil {
					return nil, err
				}
				return []*ExecStep{step}, state.TerminateCall(step, true, nil)
			}),
	)

	b, err := NewCircuitInputBuilder(DefaultConfig(), dispatcher, nil)
	require.NoError(t, err)
	block, err := b.HandleBlock(pushStopTrace(t))
	require.NoError(t, err)

	tx := block.Txs[0]
	require.Len(t, tx.Steps(), 4)
	require.Equal(t, ExecStateBeginTx, tx.Steps()[0].ExecState)
	require.Equal(t, ExecStateEndTx, tx.Steps()[3].ExecState)
	require.Equal(t, CallSuccess, tx.RootCall().Status)
	require.Equal(t, 1, block.Container.Len(operation.Stack))
}

func TestHandlerErrorIsReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := NewMockDispatcher(ctrl)
	handler := NewMockOpcodeHandler(ctrl)
	boom := errors.New("boom")
	dispatcher.EXPECT().Handler(vm.PUSH1).Return(handler)
	handler.EXPECT().GenAssociatedOps(gomock.Any(), gomock.Any()).Return(nil, boom)

	b, err := NewCircuitInputBuilder(DefaultConfig(), dispatcher, nil)
	require.NoError(t, err)
	_, err = b.HandleBlock(pushStopTrace(t))
	require.ErrorIs(t, err, boom)

	_, err = b.HandleBlock(pushStopTrace(t))
	require.ErrorIs(t, err, ErrBuilderUsed)
}

func TestHandlerExecErrorContradictsTrace(t *testing.T) {
	ctrl := gomock.NewController(t)
	dispatcher := NewMockDispatcher(ctrl)
	handler := NewMockOpcodeHandler(ctrl)
	dispatcher.EXPECT().Handler(vm.PUSH1).Return(handler)
	handler.EXPECT().GenAssociatedOps(gomock.Any(), gomock.Any()).DoAndReturn(
		func(state *CircuitInputStateRef, steps []logger.StructLog) ([]*ExecStep, error) {
			if _, err := state.NewStep(&steps[0]); err != nil {
				return nil, err
			}
			return nil, evm.ErrOutOfGas
		})

	b, err := NewCircuitInputBuilder(DefaultConfig(), dispatcher, nil)
	require.NoError(t, err)
	_, err = b.HandleBlock(pushStopTrace(t))
	require.ErrorIs(t, err, ErrUnexpectedCallOutcome)
	var traceErr *TraceError
	require.ErrorAs(t, err, &traceErr)
	require.Equal(t, vm.PUSH1, traceErr.Op)
}
