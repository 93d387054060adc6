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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

// precompiles are warm from the start of every transaction.
var precompiles = func() []common.Address {
	addrs := make([]common.Address, 10)
	for i := range addrs {
		addrs[i] = common.BytesToAddress([]byte{byte(i + 1)})
	}
	return addrs
}()

// IsPrecompile reports whether addr is one of the precompiled contracts.
func IsPrecompile(addr common.Address) bool {
	for _, p := range precompiles {
		if p == addr {
			return true
		}
	}
	return false
}

// beginTx opens the root call and logs the BeginTx step:
//   - root call context writes
//   - sender nonce increment
//   - access list warm up of sender, receiver, coinbase, precompiles and the
//     transaction access list
//   - gas fee debit
//   - value transfer (and created account nonce) in the root call
func (s *CircuitInputStateRef) beginTx(expectSuccess bool) error {
	tx := s.tx
	step := s.newTxStep(ExecStateBeginTx, tx.Gas)
	tx.BeginStep = step

	p := CallParams{
		Kind:          CallKindCall,
		CallerAddress: tx.From,
		Value:         tx.Value,
		ExpectSuccess: expectSuccess,
	}
	if tx.IsCreate() {
		p.Kind = CallKindCreate
		p.Address = crypto.CreateAddress(tx.From, tx.Nonce)
		p.InitCode = tx.Input
		p.CodeHash = crypto.Keccak256Hash(tx.Input)
	} else {
		p.Address = *tx.To
		p.CallData = tx.Input
		p.CodeHash = s.sdb.CodeHash(*tx.To)
	}
	p.CodeAddress = p.Address
	call := s.newCall(p, nil)
	if err := s.writeCallContext(step, call, 0); err != nil {
		return err
	}
	s.calls = append(s.calls, call.Index)

	if nonce := s.sdb.Nonce(tx.From); nonce != tx.Nonce {
		return s.traceErr(ErrInvalidTraceStep, "tx nonce %d, sender nonce %d", tx.Nonce, nonce)
	}
	if err := s.accountWrite(step, tx.From, operation.AccountNonce, *uint256.NewInt(tx.Nonce + 1), false); err != nil {
		return err
	}

	warm := []common.Address{tx.From, call.Address, s.block.Coinbase}
	warm = append(warm, precompiles...)
	for _, tuple := range tx.AccessList {
		warm = append(warm, tuple.Address)
	}
	for _, addr := range warm {
		if _, err := s.txAccessListAccountWrite(step, addr, false); err != nil {
			return err
		}
	}
	for _, tuple := range tx.AccessList {
		for _, key := range tuple.StorageKeys {
			if _, err := s.txAccessListStorageWrite(step, tuple.Address, HashWord(key), false); err != nil {
				return err
			}
		}
	}

	var fee uint256.Int
	if _, overflow := fee.MulOverflow(uint256.NewInt(tx.Gas), &tx.GasPrice); overflow {
		return s.traceErr(ErrInvalidTraceStep, "gas fee overflows")
	}
	balance := s.sdb.Balance(tx.From)
	if balance.Lt(&fee) {
		return s.traceErr(ErrInvalidTraceStep, "sender balance %s below gas fee %s", balance.Dec(), fee.Dec())
	}
	balance.Sub(&balance, &fee)
	if err := s.accountWrite(step, tx.From, operation.AccountBalance, balance, false); err != nil {
		return err
	}

	if err := s.TransferValue(step, tx.From, call.Address, tx.Value); err != nil {
		return s.traceErr(ErrInvalidTraceStep, "value transfer: %v", err)
	}
	if call.IsCreate() {
		if err := s.AccountWrite(step, call.Address, operation.AccountNonce, *uint256.NewInt(1)); err != nil {
			return err
		}
	}

	intrinsic := evm.IntrinsicGas(tx.Input, tx.AccessList, tx.IsCreate())
	if intrinsic > tx.Gas {
		return s.traceErr(ErrInvalidTraceStep, "intrinsic gas %d exceeds tx gas %d", intrinsic, tx.Gas)
	}
	s.gasLeft = tx.Gas - intrinsic
	if len(s.Code(call)) == 0 {
		if call.IsCreate() && expectSuccess {
			if err := s.AccountWrite(step, call.Address, operation.AccountCodeHash, HashWord(crypto.Keccak256Hash(nil))); err != nil {
				return err
			}
		}
		if err := s.TerminateCall(step, true, nil); err != nil {
			return err
		}
	}
	return nil
}

// endTx logs the EndTx step: refund read, gas refund to the sender, fee tip
// to the coinbase and the receipt fields. It returns the gas used.
func (s *CircuitInputStateRef) endTx(cumulativeGasUsed uint64) (uint64, error) {
	tx := s.tx
	root := tx.RootCall()
	step := s.newTxStep(ExecStateEndTx, s.gasLeft)
	tx.EndStep = step

	if err := s.CallContextRead(step, root.CallID, operation.TxID, *uint256.NewInt(tx.ID)); err != nil {
		return 0, err
	}
	if err := s.CallContextRead(step, root.CallID, operation.IsPersistent, BoolWord(root.IsPersistent)); err != nil {
		return 0, err
	}
	refund, err := s.TxRefundRead(step)
	if err != nil {
		return 0, err
	}
	gasUsed := tx.Gas - s.gasLeft
	effectiveRefund := evm.MaxRefund(refund, gasUsed)
	gasLeft := s.gasLeft + effectiveRefund
	gasUsed -= effectiveRefund

	var refundValue uint256.Int
	refundValue.Mul(uint256.NewInt(gasLeft), &tx.GasPrice)
	balance := s.sdb.Balance(tx.From)
	balance.Add(&balance, &refundValue)
	if err := s.accountWrite(step, tx.From, operation.AccountBalance, balance, false); err != nil {
		return 0, err
	}

	var tip uint256.Int
	if tx.GasPrice.Gt(&s.block.BaseFee) {
		tip.Sub(&tx.GasPrice, &s.block.BaseFee)
	}
	tip.Mul(&tip, uint256.NewInt(gasUsed))
	if !tip.IsZero() {
		if err := s.touchAccount(step, s.block.Coinbase, false); err != nil {
			return 0, err
		}
	}
	coinbase := s.sdb.Balance(s.block.Coinbase)
	coinbase.Add(&coinbase, &tip)
	if err := s.accountWrite(step, s.block.Coinbase, operation.AccountBalance, coinbase, false); err != nil {
		return 0, err
	}

	receipt := []struct {
		field operation.TxReceiptField
		value uint256.Int
	}{
		{operation.PostStateOrStatus, BoolWord(root.Status == CallSuccess)},
		{operation.CumulativeGasUsed, *uint256.NewInt(cumulativeGasUsed + gasUsed)},
		{operation.LogLength, *uint256.NewInt(tx.LogCount)},
	}
	for _, r := range receipt {
		if err := s.TxReceiptWrite(step, r.field, r.value); err != nil {
			return 0, err
		}
	}
	return gasUsed, nil
}
