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

package logger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrResultCountMismatch = errors.New("execution results do not match transactions")

// ExecutionResult groups all structured logs emitted by the EVM while
// replaying a transaction in debug mode, as returned by debug_traceTransaction.
type ExecutionResult struct {
	Gas         uint64      `json:"gas"`
	Failed      bool        `json:"failed"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}

// ReturnData decodes ReturnValue, which geth emits as hex without prefix.
func (r *ExecutionResult) ReturnData() ([]byte, error) {
	if r.ReturnValue == "" {
		return nil, nil
	}
	return decodeHex(r.ReturnValue)
}

// Header carries the block fields visible to the EVM.
type Header struct {
	Number     hexutil.Uint64 `json:"number"`
	Hash       common.Hash    `json:"hash"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
	Coinbase   common.Address `json:"miner"`
	GasLimit   hexutil.Uint64 `json:"gasLimit"`
	Difficulty *hexutil.Big   `json:"difficulty"`
	BaseFee    *hexutil.Big   `json:"baseFeePerGas"`
}

// Transaction is the subset of a transaction the builder replays.
type Transaction struct {
	From       common.Address   `json:"from"`
	To         *common.Address  `json:"to"`
	Nonce      hexutil.Uint64   `json:"nonce"`
	Value      *hexutil.Big     `json:"value"`
	Gas        hexutil.Uint64   `json:"gas"`
	GasPrice   *hexutil.Big     `json:"gasPrice"`
	Input      hexutil.Bytes    `json:"input"`
	AccessList types.AccessList `json:"accessList,omitempty"`
}

func (tx *Transaction) IsCreate() bool { return tx.To == nil }

// Account is the pre-state of one account, as returned by the prestate tracer.
type Account struct {
	Nonce   uint64                      `json:"nonce"`
	Balance *hexutil.Big                `json:"balance"`
	Code    hexutil.Bytes               `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

// BlockTrace bundles everything needed to rebuild the operations of a block:
// the header, the transactions, the pre-state of every touched account and one
// execution result per transaction.
type BlockTrace struct {
	ChainID          uint64                     `json:"chainID"`
	Header           Header                     `json:"header"`
	Transactions     []Transaction              `json:"transactions"`
	Prestate         map[common.Address]Account `json:"prestate"`
	ExecutionResults []ExecutionResult          `json:"executionResults"`
}

// Validate checks the structural consistency of the trace.
func (b *BlockTrace) Validate() error {
	if len(b.Transactions) != len(b.ExecutionResults) {
		return fmt.Errorf("%w: %d transactions, %d results", ErrResultCountMismatch, len(b.Transactions), len(b.ExecutionResults))
	}
	return nil
}

// BigOrZero returns the value of a hex big, treating nil as zero.
func BigOrZero(b *hexutil.Big) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return (*big.Int)(b)
}

// DecodeBlockTraces reads either a single block trace object or an array of
// them.
func DecodeBlockTraces(r io.Reader) ([]*BlockTrace, error) {
	br := bufio.NewReader(r)
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var traces []*BlockTrace
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &traces); err != nil {
			return nil, fmt.Errorf("decode block traces: %w", err)
		}
	} else {
		var trace BlockTrace
		if err := json.Unmarshal(data, &trace); err != nil {
			return nil, fmt.Errorf("decode block trace: %w", err)
		}
		traces = append(traces, &trace)
	}
	for i, t := range traces {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("block trace %d: %w", i, err)
		}
	}
	return traces, nil
}
