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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// Transaction is a transaction of the block together with its call frames
// and execution steps.
type Transaction struct {
	ID         uint64 // 1-based position in the block
	From       common.Address
	To         *common.Address
	Nonce      uint64
	Value      uint256.Int
	Gas        uint64
	GasPrice   uint256.Int
	Input      []byte
	AccessList types.AccessList

	Calls     []*Call
	BeginStep *ExecStep
	EndStep   *ExecStep

	GasUsed           uint64
	CumulativeGasUsed uint64
	Failed            bool
	LogCount          uint64

	steps []*ExecStep
}

func newTransaction(id uint64, tx *logger.Transaction) (*Transaction, error) {
	t := &Transaction{
		ID:         id,
		From:       tx.From,
		To:         tx.To,
		Nonce:      uint64(tx.Nonce),
		Gas:        uint64(tx.Gas),
		Input:      common.CopyBytes(tx.Input),
		AccessList: tx.AccessList,
	}
	if overflow := t.Value.SetFromBig(logger.BigOrZero(tx.Value)); overflow {
		return nil, fmt.Errorf("tx %d: value overflows 256 bits", id)
	}
	if overflow := t.GasPrice.SetFromBig(logger.BigOrZero(tx.GasPrice)); overflow {
		return nil, fmt.Errorf("tx %d: gas price overflows 256 bits", id)
	}
	return t, nil
}

func (t *Transaction) IsCreate() bool { return t.To == nil }

// Steps returns every step of the transaction in program order, BeginTx and
// EndTx included.
func (t *Transaction) Steps() []*ExecStep { return t.steps }

// RootCall returns the call opened by the transaction itself.
func (t *Transaction) RootCall() *Call {
	if len(t.Calls) == 0 {
		return nil
	}
	return t.Calls[0]
}
