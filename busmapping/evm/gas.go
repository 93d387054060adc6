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

package evm

import (
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// IntrinsicGas is the gas charged before the first instruction of a
// transaction runs (Shanghai rules: EIP-2028 calldata, EIP-2930 access lists,
// EIP-3860 initcode words).
func IntrinsicGas(data []byte, accessList types.AccessList, isCreate bool) uint64 {
	gas := params.TxGas
	if isCreate {
		gas = params.TxGasContractCreation
	}
	var zeros uint64
	for _, b := range data {
		if b == 0 {
			zeros++
		}
	}
	nonZeros := uint64(len(data)) - zeros
	gas += zeros*params.TxDataZeroGas + nonZeros*params.TxDataNonZeroGasEIP2028
	if isCreate {
		gas += WordsFor(uint64(len(data))) * params.InitCodeWordGas
	}
	for _, tuple := range accessList {
		gas += params.TxAccessListAddressGas
		gas += uint64(len(tuple.StorageKeys)) * params.TxAccessListStorageKeyGas
	}
	return gas
}

// SstoreRefundDelta is the change of the refund counter caused by an SSTORE
// of value into a slot holding current, whose value at the start of the
// transaction was original (EIP-2200 with EIP-2929 and EIP-3529 constants).
func SstoreRefundDelta(original, current, value *uint256.Int) int64 {
	const clearingRefund = int64(params.SstoreClearsScheduleRefundEIP3529)
	if current.Eq(value) {
		return 0
	}
	var delta int64
	if original.Eq(current) {
		if !original.IsZero() && value.IsZero() {
			delta += clearingRefund
		}
		return delta
	}
	if !original.IsZero() {
		if current.IsZero() {
			delta -= clearingRefund
		} else if value.IsZero() {
			delta += clearingRefund
		}
	}
	if original.Eq(value) {
		if original.IsZero() {
			delta += int64(params.SstoreSetGasEIP2200 - params.WarmStorageReadCostEIP2929)
		} else {
			delta += int64((params.SstoreResetGasEIP2200 - params.ColdSloadCostEIP2929) - params.WarmStorageReadCostEIP2929)
		}
	}
	return delta
}

// MaxRefund caps the refund counter at gasUsed / RefundQuotientEIP3529.
func MaxRefund(refund, gasUsed uint64) uint64 {
	if limit := gasUsed / params.RefundQuotientEIP3529; refund > limit {
		return limit
	}
	return refund
}
