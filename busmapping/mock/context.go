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

package mock

import (
	"errors"
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

var (
	// Coinbase is the block beneficiary of every test block.
	Coinbase = common.HexToAddress("0x00000000000000000000000000000000c014ba5e")
	// Addr lists well known test accounts.
	Addr = [4]common.Address{
		common.HexToAddress("0x000000000000000000000000000000000000cafe"),
		common.HexToAddress("0x00000000000000000000000000000000000000fe"),
		common.HexToAddress("0x0000000000000000000000000000000000001234"),
		common.HexToAddress("0x0000000000000000000000000000000000005678"),
	}
)

const (
	DefaultChainID  = 1337
	DefaultGasLimit = 30_000_000
	DefaultTxGas    = 1_000_000
	DefaultGasPrice = 10
)

var ErrUnsupportedOpcode = errors.New("mock: unsupported opcode")

// Account is the pre-state of a test account.
type Account struct {
	Address common.Address
	Nonce   uint64
	Balance uint256.Int
	Code    []byte
	Storage map[uint256.Int]uint256.Int
}

// Tx is a test transaction. Zero Gas and GasPrice take the defaults; the
// nonce is the sender's at the time the transaction runs.
type Tx struct {
	From       common.Address
	To         *common.Address
	Value      uint256.Int
	Gas        uint64
	GasPrice   uint256.Int
	Input      []byte
	AccessList types.AccessList
}

// TestContext is a block under construction: a pre-state and the
// transactions to run on it.
type TestContext struct {
	ChainID  uint64
	Number   uint64
	BaseFee  uint256.Int
	accounts map[common.Address]*Account
	order    []common.Address
	txs      []Tx
}

func NewTestContext() *TestContext {
	return &TestContext{
		ChainID:  DefaultChainID,
		Number:   0xcafe,
		accounts: make(map[common.Address]*Account),
	}
}

// AddAccount adds an account with balance and code to the pre-state.
func (c *TestContext) AddAccount(addr common.Address, balance uint64, code []byte) *TestContext {
	return c.AddAccountFull(Account{Address: addr, Balance: *uint256.NewInt(balance), Code: code})
}

// AddAccountFull adds acc to the pre-state, replacing any account at the same
// address.
func (c *TestContext) AddAccountFull(acc Account) *TestContext {
	if _, ok := c.accounts[acc.Address]; !ok {
		c.order = append(c.order, acc.Address)
	}
	acc.Storage = maps.Clone(acc.Storage)
	c.accounts[acc.Address] = &acc
	return c
}

// SetStorage sets a storage slot of an account added before.
func (c *TestContext) SetStorage(addr common.Address, slot, value uint64) *TestContext {
	acc := c.accounts[addr]
	if acc.Storage == nil {
		acc.Storage = make(map[uint256.Int]uint256.Int)
	}
	acc.Storage[*uint256.NewInt(slot)] = *uint256.NewInt(value)
	return c
}

// AddTx appends a transaction to the block.
func (c *TestContext) AddTx(tx Tx) *TestContext {
	if tx.Gas == 0 {
		tx.Gas = DefaultTxGas
	}
	if tx.GasPrice.IsZero() {
		tx.GasPrice.SetUint64(DefaultGasPrice)
	}
	c.txs = append(c.txs, tx)
	return c
}

// Call is a shorthand for AddTx of a plain call.
func (c *TestContext) Call(from, to common.Address, input []byte) *TestContext {
	return c.AddTx(Tx{From: from, To: &to, Input: input})
}

// BlockTrace runs every transaction and returns the block trace a node would
// have produced for it.
func (c *TestContext) BlockTrace() (*logger.BlockTrace, error) {
	w := newWorld()
	bt := &logger.BlockTrace{
		ChainID: c.ChainID,
		Header: logger.Header{
			Number:     hexutil.Uint64(c.Number),
			Hash:       crypto.Keccak256Hash(uint256.NewInt(c.Number).Bytes()),
			Timestamp:  hexutil.Uint64(1_700_000_000),
			Coinbase:   Coinbase,
			GasLimit:   DefaultGasLimit,
			Difficulty: (*hexutil.Big)(common.Big0),
			BaseFee:    (*hexutil.Big)(c.BaseFee.ToBig()),
		},
		Prestate: make(map[common.Address]logger.Account, len(c.accounts)),
	}
	for _, addr := range c.order {
		acc := c.accounts[addr]
		pre := logger.Account{
			Nonce:   acc.Nonce,
			Balance: (*hexutil.Big)(acc.Balance.ToBig()),
			Code:    common.CopyBytes(acc.Code),
		}
		st := w.account(addr)
		st.nonce, st.balance, st.code = acc.Nonce, acc.Balance, common.CopyBytes(acc.Code)
		if len(acc.Storage) > 0 {
			pre.Storage = make(map[common.Hash]common.Hash, len(acc.Storage))
			for k, v := range acc.Storage {
				pre.Storage[k.Bytes32()] = v.Bytes32()
				st.storage[k] = v
			}
		}
		bt.Prestate[addr] = pre
	}

	for i, tx := range c.txs {
		tx := tx
		ltx := logger.Transaction{
			From:       tx.From,
			To:         tx.To,
			Nonce:      hexutil.Uint64(w.account(tx.From).nonce),
			Value:      (*hexutil.Big)(tx.Value.ToBig()),
			Gas:        hexutil.Uint64(tx.Gas),
			GasPrice:   (*hexutil.Big)(tx.GasPrice.ToBig()),
			Input:      common.CopyBytes(tx.Input),
			AccessList: tx.AccessList,
		}
		result, err := runTx(c, w, &tx)
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		bt.Transactions = append(bt.Transactions, ltx)
		bt.ExecutionResults = append(bt.ExecutionResults, *result)
	}
	return bt, nil
}

// runTx applies the transaction envelope around the root frame the way the
// builder expects it: nonce and fee up front, refund and tip at the end.
func runTx(c *TestContext, w *world, tx *Tx) (*logger.ExecutionResult, error) {
	sender := w.account(tx.From)
	intrinsic := evm.IntrinsicGas(tx.Input, tx.AccessList, tx.To == nil)
	if intrinsic > tx.Gas {
		return nil, fmt.Errorf("intrinsic gas %d above tx gas %d", intrinsic, tx.Gas)
	}
	var fee uint256.Int
	fee.Mul(uint256.NewInt(tx.Gas), &tx.GasPrice)
	if sender.balance.Lt(&fee) {
		return nil, fmt.Errorf("sender %s cannot pay fee %s", tx.From, fee.Dec())
	}
	if sender.balance.Lt(new(uint256.Int).Add(&fee, &tx.Value)) {
		return nil, fmt.Errorf("sender %s cannot pay value %s", tx.From, tx.Value.Dec())
	}
	nonce := sender.nonce
	sender.nonce++
	sender.balance.Sub(&sender.balance, &fee)

	t := &tracer{ctx: c, w: w, origin: w.copy(), tx: tx, storage: make(map[common.Address]logger.Storage)}
	f := &frame{
		caller: tx.From,
		value:  tx.Value,
		input:  tx.Input,
		gas:    tx.Gas - intrinsic,
		depth:  1,
	}
	var (
		ret []byte
		err error
	)
	if tx.To == nil {
		f.address = crypto.CreateAddress(tx.From, nonce)
		f.code = tx.Input
		f.input = nil
		f.create = true
		ret, err = t.enter(f, func() { w.account(f.address).nonce = 1 })
	} else {
		f.address = *tx.To
		f.code = w.account(*tx.To).code
		ret, err = t.enter(f, nil)
	}

	if t.fatal != nil {
		return nil, t.fatal
	}
	sender = w.account(tx.From)
	gasLeft := f.gas
	if err != nil && !errors.Is(err, errReverted) {
		gasLeft = 0
	}
	gasUsed := tx.Gas - gasLeft
	refund := evm.MaxRefund(t.refund, gasUsed)
	gasLeft += refund
	gasUsed -= refund

	var back uint256.Int
	back.Mul(uint256.NewInt(gasLeft), &tx.GasPrice)
	sender.balance.Add(&sender.balance, &back)
	var tip uint256.Int
	if tx.GasPrice.Gt(&c.BaseFee) {
		tip.Sub(&tx.GasPrice, &c.BaseFee)
	}
	tip.Mul(&tip, uint256.NewInt(gasUsed))
	cb := w.account(Coinbase)
	cb.balance.Add(&cb.balance, &tip)

	return &logger.ExecutionResult{
		Gas:         gasUsed,
		Failed:      err != nil,
		ReturnValue: fmt.Sprintf("%x", ret),
		StructLogs:  t.logs,
	}, nil
}
