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

// Package busmapping turns geth struct-log block traces into the ordered
// rw operations consumed by the zkEVM circuits.
package busmapping

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/opcodes"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// BuildBlock replays a single block trace with the default handler table.
func BuildBlock(cfg circuitinput.Config, trace *logger.BlockTrace) (*circuitinput.Block, error) {
	b, err := circuitinput.NewCircuitInputBuilder(cfg, opcodes.DefaultTable, nil)
	if err != nil {
		return nil, err
	}
	return b.HandleBlock(trace)
}

// BuildBlocks replays independent block traces concurrently, each with its
// own builder. Results are returned in input order. workers <= 0 means one
// worker per CPU. ctx is only checked before a block starts.
func BuildBlocks(ctx context.Context, cfg circuitinput.Config, traces []*logger.BlockTrace, workers int) ([]*circuitinput.Block, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	size := cfg.JumpDestCacheSize
	if size <= 0 {
		size = circuitinput.DefaultJumpDestCacheSize
	}
	jumpDests, err := evm.NewJumpDestCache(size)
	if err != nil {
		return nil, err
	}

	blocks := make([]*circuitinput.Block, len(traces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, trace := range traces {
		i, trace := i, trace
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := circuitinput.NewCircuitInputBuilder(cfg, opcodes.DefaultTable, jumpDests)
			if err != nil {
				return err
			}
			block, err := b.HandleBlock(trace)
			if err != nil {
				return fmt.Errorf("block %d: %w", uint64(trace.Header.Number), err)
			}
			blocks[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}
