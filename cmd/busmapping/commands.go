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

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ledgerwatch/log/v3"

	"github.com/Merlot21/zkevm-circuits/busmapping"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

// replay builds every block of src and prints the operation count of each
// target per block.
func replay(ctx context.Context, src TraceSource, cfg Config, out io.Writer, logger log.Logger) error {
	traces, err := src.Load(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	cfg.Builder.Logger = logger
	blocks, err := busmapping.BuildBlocks(ctx, cfg.Builder, traces, cfg.Workers)
	if err != nil {
		return err
	}
	logger.Info("[busmapping] replay done", "blocks", len(blocks), "elapsed", time.Since(start))

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprint(w, "block\ttxs\tsteps\trws")
	for _, t := range operation.Targets {
		fmt.Fprintf(w, "\t%s", t)
	}
	fmt.Fprintln(w)
	for _, b := range blocks {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d", b.Number, len(b.Txs), b.Steps(), b.Container.RWCounter())
		for _, t := range operation.Targets {
			fmt.Fprintf(w, "\t%d", b.Container.Len(t))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// inspect builds one block and dumps a single step with the operations it
// generated. All positions are 0-based; step 0 is the BeginTx step.
func inspect(ctx context.Context, src TraceSource, cfg Config, blockIdx, txIdx, stepIdx int, out io.Writer, logger log.Logger) error {
	traces, err := src.Load(ctx)
	if err != nil {
		return err
	}
	if blockIdx < 0 || blockIdx >= len(traces) {
		return fmt.Errorf("block %d out of range, %d blocks", blockIdx, len(traces))
	}
	cfg.Builder.Logger = logger
	block, err := busmapping.BuildBlock(cfg.Builder, traces[blockIdx])
	if err != nil {
		return err
	}
	if txIdx < 0 || txIdx >= len(block.Txs) {
		return fmt.Errorf("tx %d out of range, %d txs", txIdx, len(block.Txs))
	}
	tx := block.Txs[txIdx]
	steps := tx.Steps()
	if stepIdx < 0 || stepIdx >= len(steps) {
		return fmt.Errorf("step %d out of range, %d steps", stepIdx, len(steps))
	}
	step := steps[stepIdx]

	ops := make([]operation.Entry, 0, len(step.BusMappingInstance))
	for _, ref := range step.BusMappingInstance {
		e, ok := block.Container.Lookup(ref)
		if !ok {
			return fmt.Errorf("dangling reference %s", ref)
		}
		ops = append(ops, e)
	}

	fmt.Fprintf(out, "block %d tx %d call %s\n%s\n", block.Number, tx.ID, tx.Calls[step.CallIndex], step)
	dump := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
	dump.Fdump(out, ops)
	return nil
}
