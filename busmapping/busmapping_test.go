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

package busmapping_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Merlot21/zkevm-circuits/busmapping"
	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/mock"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

func blockTraces(t *testing.T, n int) []*logger.BlockTrace {
	t.Helper()
	code := mock.NewBytecode().Op(vm.CALLER).Push(1).Op(vm.SSTORE).Op(vm.STOP).Bytes()
	traces := make([]*logger.BlockTrace, n)
	for i := range traces {
		ctx := mock.NewTestContext().
			AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
			AddAccount(mock.Addr[0], 0, code)
		ctx.Number = uint64(100 + i)
		for j := 0; j <= i; j++ {
			ctx.Call(mock.Addr[1], mock.Addr[0], nil)
		}
		trace, err := ctx.BlockTrace()
		require.NoError(t, err)
		traces[i] = trace
	}
	return traces
}

func TestBuildBlocks(t *testing.T) {
	traces := blockTraces(t, 6)
	blocks, err := busmapping.BuildBlocks(context.Background(), circuitinput.DefaultConfig(), traces, 3)
	require.NoError(t, err)
	require.Len(t, blocks, len(traces))

	for i, block := range blocks {
		require.Equal(t, uint64(100+i), block.Number)
		require.Len(t, block.Txs, i+1)

		single, err := busmapping.BuildBlock(circuitinput.DefaultConfig(), traces[i])
		require.NoError(t, err)
		if diff := cmp.Diff(single.Container.All(), block.Container.All()); diff != "" {
			t.Fatalf("block %d differs from a sequential build (-want +got):\n%s", i, diff)
		}
	}
}

func TestBuildBlocksError(t *testing.T) {
	traces := blockTraces(t, 3)
	traces[1].ExecutionResults[0].Gas++
	_, err := busmapping.BuildBlocks(context.Background(), circuitinput.DefaultConfig(), traces, 2)
	require.ErrorIs(t, err, circuitinput.ErrInvalidTraceStep)
	require.ErrorContains(t, err, "block 101")
}

func TestBuildBlocksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := busmapping.BuildBlocks(ctx, circuitinput.DefaultConfig(), blockTraces(t, 2), 1)
	require.ErrorIs(t, err, context.Canceled)
}
