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
	"fmt"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
	"github.com/Merlot21/zkevm-circuits/metrics"
)

var (
	blocksCounter      = metrics.GetOrCreateCounter("busmapping_blocks_total")
	txsCounter         = metrics.GetOrCreateCounter("busmapping_txs_total")
	stepsCounter       = metrics.GetOrCreateCounter("busmapping_steps_total")
	failedCallsCounter = metrics.GetOrCreateCounter("busmapping_failed_calls_total")
	operationsCounter  = metrics.GetOrCreateCounterVec("busmapping_operations_total", []string{"target"}, "operations logged per target")
)

// CircuitInputBuilder replays the trace of one block and derives its circuit
// input. A builder is single use.
type CircuitInputBuilder struct {
	cfg        Config
	dispatcher Dispatcher
	jumpDests  *evm.JumpDestCache
	log        log.Logger

	used       bool
	block      *Block
	sdb        *StateDB
	nextCallID uint64
}

// NewCircuitInputBuilder returns a builder using dispatcher to select opcode
// handlers. jumpDests may be shared between builders; nil gets a private
// cache.
func NewCircuitInputBuilder(cfg Config, dispatcher Dispatcher, jumpDests *evm.JumpDestCache) (*CircuitInputBuilder, error) {
	if jumpDests == nil {
		size := cfg.JumpDestCacheSize
		if size <= 0 {
			size = DefaultJumpDestCacheSize
		}
		var err error
		if jumpDests, err = evm.NewJumpDestCache(size); err != nil {
			return nil, err
		}
	}
	return &CircuitInputBuilder{cfg: cfg, dispatcher: dispatcher, jumpDests: jumpDests, log: cfg.logger()}, nil
}

// HandleBlock replays every transaction of trace in order.
func (b *CircuitInputBuilder) HandleBlock(trace *logger.BlockTrace) (*Block, error) {
	if b.used {
		return nil, ErrBuilderUsed
	}
	b.used = true
	if err := trace.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	chainID := trace.ChainID
	if b.cfg.ChainID != 0 {
		chainID = b.cfg.ChainID
	}
	b.block = newBlock(chainID, &trace.Header, operation.NewContainer(b.cfg.MaxRws))
	b.sdb = NewStateDB(trace.Prestate, b.block.Code)
	b.log.Debug("[busmapping] building block", "number", b.block.Number, "txs", len(trace.Transactions))

	var cumulativeGasUsed uint64
	for i := range trace.Transactions {
		gasUsed, err := b.handleTx(i, cumulativeGasUsed, &trace.Transactions[i], &trace.ExecutionResults[i])
		if err != nil {
			return nil, fmt.Errorf("block %d tx %d: %w", b.block.Number, i, err)
		}
		cumulativeGasUsed += gasUsed
	}

	blocksCounter.Inc()
	for _, t := range operation.Targets {
		operationsCounter.WithLabelValues(t.String()).Add(float64(b.block.Container.Len(t)))
	}
	b.log.Info("[busmapping] block built", "number", b.block.Number, "txs", len(b.block.Txs),
		"steps", b.block.Steps(), "rws", b.block.Container.RWCounter(), "elapsed", time.Since(start))
	return b.block, nil
}

func (b *CircuitInputBuilder) handleTx(index int, cumulativeGasUsed uint64, ltx *logger.Transaction, result *logger.ExecutionResult) (uint64, error) {
	tx, err := newTransaction(uint64(index+1), ltx)
	if err != nil {
		return 0, err
	}
	state := &CircuitInputStateRef{
		block:      b.block,
		tx:         tx,
		txIndex:    index,
		sdb:        b.sdb,
		jumpDests:  b.jumpDests,
		log:        b.log,
		nextCallID: &b.nextCallID,
		stepIndex:  -1,
	}
	b.sdb.StartTx()
	if err := state.beginTx(!result.Failed); err != nil {
		return 0, err
	}
	tx.steps = append(tx.steps, tx.BeginStep)

	logs := result.StructLogs
	for i := range logs {
		state.stepIndex = i
		if err := b.handleStep(state, logs[i:]); err != nil {
			return 0, err
		}
	}
	state.stepIndex = len(logs)
	state.trace = nil
	if len(state.calls) != 0 {
		return 0, state.traceErr(ErrInvalidTraceStep, "trace ended with %d active calls", len(state.calls))
	}

	gasUsed, err := state.endTx(cumulativeGasUsed)
	if err != nil {
		return 0, err
	}
	if gasUsed != result.Gas {
		return 0, state.traceErr(ErrInvalidTraceStep, "gas used %d, trace reports %d", gasUsed, result.Gas)
	}
	tx.steps = append(tx.steps, tx.EndStep)
	tx.GasUsed = gasUsed
	tx.CumulativeGasUsed = cumulativeGasUsed + gasUsed
	tx.Failed = tx.RootCall().Status != CallSuccess
	b.block.Txs = append(b.block.Txs, tx)

	txsCounter.Inc()
	stepsCounter.AddInt(len(tx.steps))
	for _, call := range tx.Calls {
		if call.Status == CallFailure {
			failedCallsCounter.Inc()
		}
	}
	b.log.Debug("[busmapping] tx replayed", "tx", tx.ID, "calls", len(tx.Calls), "steps", len(tx.steps), "gasUsed", gasUsed, "failed", tx.Failed)
	return gasUsed, nil
}

func (b *CircuitInputBuilder) handleStep(state *CircuitInputStateRef, steps []logger.StructLog) error {
	trace := &steps[0]
	state.trace = trace
	state.pending = nil
	before, err := state.Call()
	if err != nil {
		return state.traceErr(err, "%s after the root call completed", trace.Op)
	}

	if execErr, ok := state.DetectExecError(steps); ok {
		step, err := state.NewStep(trace)
		if err != nil {
			return err
		}
		if err := state.FailCall(step, execErr); err != nil {
			return state.wrap(err)
		}
		state.appendStep(step)
		b.log.Trace("[busmapping] error step", "tx", state.tx.ID, "call", before.CallID, "pc", trace.Pc, "op", trace.Op, "err", execErr)
		return nil
	}

	execSteps, err := b.dispatcher.Handler(trace.Op).GenAssociatedOps(state, steps)
	if err != nil {
		var execErr evm.ExecError
		if !errors.As(err, &execErr) || state.pending == nil {
			return state.wrap(err)
		}
		if err := state.FailCall(state.pending, execErr); err != nil {
			return state.wrap(err)
		}
		execSteps = []*ExecStep{state.pending}
	}
	for _, step := range execSteps {
		state.appendStep(step)
	}
	if b.cfg.Verify.Any() {
		return state.verify(b.cfg.Verify, before, steps)
	}
	return nil
}

func (s *CircuitInputStateRef) appendStep(step *ExecStep) {
	call := s.tx.Calls[step.CallIndex]
	call.Steps = append(call.Steps, step)
	s.tx.steps = append(s.tx.steps, step)
}

// wrap locates err in the trace unless it already carries a location.
func (s *CircuitInputStateRef) wrap(err error) error {
	var traceErr *TraceError
	if errors.As(err, &traceErr) {
		return err
	}
	if s.trace != nil {
		return fmt.Errorf("tx %d step %d (pc %d %s): %w", s.txIndex, s.stepIndex, s.trace.Pc, s.trace.Op, err)
	}
	return fmt.Errorf("tx %d: %w", s.txIndex, err)
}
