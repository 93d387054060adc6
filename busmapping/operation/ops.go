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

package operation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
)

// Op is the payload of an operation: a resource key and the value observed or
// established by the access.
type Op interface {
	Target() Target
	Key() Key
	StateValue() uint256.Int
}

// ReversibleOp is an Op whose write can be undone when the call frame that
// performed it fails. Reverse swaps the current and previous value.
type ReversibleOp interface {
	Op
	PrevValue() uint256.Int
	Reverse() ReversibleOp
}

// StackOp is an access to a stack slot of a call.
type StackOp struct {
	CallID  uint64
	Address evm.StackAddress
	Value   uint256.Int
}

func NewStackOp(callID uint64, address evm.StackAddress, value uint256.Int) StackOp {
	return StackOp{CallID: callID, Address: address, Value: value}
}

func (op StackOp) Target() Target { return Stack }
func (op StackOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.CallID).u64(uint64(op.Address)).key
}
func (op StackOp) StateValue() uint256.Int { return op.Value }
func (op StackOp) String() string {
	return fmt.Sprintf("StackOp{call: %d, %s, value: %s}", op.CallID, op.Address, op.Value.Hex())
}

// MemoryOp is an access to a word-aligned memory word of a call.
type MemoryOp struct {
	CallID  uint64
	Address evm.MemoryAddress
	Value   uint256.Int
}

func NewMemoryOp(callID uint64, address evm.MemoryAddress, value uint256.Int) MemoryOp {
	return MemoryOp{CallID: callID, Address: address, Value: value}
}

func (op MemoryOp) Target() Target { return Memory }
func (op MemoryOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.CallID).u64(uint64(op.Address)).key
}
func (op MemoryOp) StateValue() uint256.Int { return op.Value }

// StorageOp is an access to a contract storage slot. CommittedValue is the
// slot value at the start of the transaction, needed for refund accounting.
type StorageOp struct {
	Address        common.Address
	Slot           uint256.Int
	Value          uint256.Int
	ValuePrev      uint256.Int
	TxID           uint64
	CommittedValue uint256.Int
}

func (op StorageOp) Target() Target { return Storage }
func (op StorageOp) Key() Key {
	b := keyBuilder{}
	return b.address(op.Address).word(&op.Slot).key
}
func (op StorageOp) StateValue() uint256.Int { return op.Value }
func (op StorageOp) PrevValue() uint256.Int  { return op.ValuePrev }
func (op StorageOp) Reverse() ReversibleOp {
	op.Value, op.ValuePrev = op.ValuePrev, op.Value
	return op
}

// AccountField selects the account attribute an AccountOp touches.
type AccountField uint8

const (
	AccountNonce AccountField = iota + 1
	AccountBalance
	AccountCodeHash
)

func (f AccountField) String() string {
	switch f {
	case AccountNonce:
		return "Nonce"
	case AccountBalance:
		return "Balance"
	case AccountCodeHash:
		return "CodeHash"
	}
	return fmt.Sprintf("AccountField(%d)", uint8(f))
}

// AccountOp is an access to an account attribute.
type AccountOp struct {
	Address   common.Address
	Field     AccountField
	Value     uint256.Int
	ValuePrev uint256.Int
}

func (op AccountOp) Target() Target { return Account }
func (op AccountOp) Key() Key {
	b := keyBuilder{}
	return b.address(op.Address).u8(uint8(op.Field)).key
}
func (op AccountOp) StateValue() uint256.Int { return op.Value }
func (op AccountOp) PrevValue() uint256.Int  { return op.ValuePrev }
func (op AccountOp) Reverse() ReversibleOp {
	op.Value, op.ValuePrev = op.ValuePrev, op.Value
	return op
}

// CallContextField selects the call attribute a CallContextOp touches.
type CallContextField uint8

const (
	CallerID CallContextField = iota + 1
	TxID
	Depth
	CallerAddress
	CalleeAddress
	CallDataOffset
	CallDataLength
	ReturnDataOffset
	ReturnDataLength
	Value
	IsSuccess
	IsPersistent
	IsStatic
	LastCalleeID
	LastCalleeReturnDataOffset
	LastCalleeReturnDataLength
	IsRoot
	IsCreate
	CodeHash
	ProgramCounter
	StackPointer
	GasLeft
	MemorySize
	ReversibleWriteCounter
)

var callContextFieldNames = [...]string{
	CallerID:                   "CallerID",
	TxID:                       "TxID",
	Depth:                      "Depth",
	CallerAddress:              "CallerAddress",
	CalleeAddress:              "CalleeAddress",
	CallDataOffset:             "CallDataOffset",
	CallDataLength:             "CallDataLength",
	ReturnDataOffset:           "ReturnDataOffset",
	ReturnDataLength:           "ReturnDataLength",
	Value:                      "Value",
	IsSuccess:                  "IsSuccess",
	IsPersistent:               "IsPersistent",
	IsStatic:                   "IsStatic",
	LastCalleeID:               "LastCalleeID",
	LastCalleeReturnDataOffset: "LastCalleeReturnDataOffset",
	LastCalleeReturnDataLength: "LastCalleeReturnDataLength",
	IsRoot:                     "IsRoot",
	IsCreate:                   "IsCreate",
	CodeHash:                   "CodeHash",
	ProgramCounter:             "ProgramCounter",
	StackPointer:               "StackPointer",
	GasLeft:                    "GasLeft",
	MemorySize:                 "MemorySize",
	ReversibleWriteCounter:     "ReversibleWriteCounter",
}

func (f CallContextField) String() string {
	if int(f) < len(callContextFieldNames) && callContextFieldNames[f] != "" {
		return callContextFieldNames[f]
	}
	return fmt.Sprintf("CallContextField(%d)", uint8(f))
}

// CallContextOp is an access to an attribute of a call frame.
type CallContextOp struct {
	CallID uint64
	Field  CallContextField
	Value  uint256.Int
}

func (op CallContextOp) Target() Target { return CallContext }
func (op CallContextOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.CallID).u8(uint8(op.Field)).key
}
func (op CallContextOp) StateValue() uint256.Int { return op.Value }
func (op CallContextOp) String() string {
	return fmt.Sprintf("CallContextOp{call: %d, %s, value: %s}", op.CallID, op.Field, op.Value.Hex())
}

// TxReceiptField selects the receipt attribute a TxReceiptOp touches.
type TxReceiptField uint8

const (
	PostStateOrStatus TxReceiptField = iota + 1
	CumulativeGasUsed
	LogLength
)

// TxReceiptOp records a field of a transaction's receipt.
type TxReceiptOp struct {
	TxID  uint64
	Field TxReceiptField
	Value uint256.Int
}

func (op TxReceiptOp) Target() Target { return TxReceipt }
func (op TxReceiptOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.TxID).u8(uint8(op.Field)).key
}
func (op TxReceiptOp) StateValue() uint256.Int { return op.Value }

// TxLogField selects the part of a log entry a TxLogOp records.
type TxLogField uint8

const (
	LogAddress TxLogField = iota + 1
	LogTopic
	LogData
)

// TxLogOp records one field of a log emitted by a persistent call. For topics
// Index is the topic number, for data it is the word index.
type TxLogOp struct {
	TxID  uint64
	LogID uint64
	Field TxLogField
	Index uint64
	Value uint256.Int
}

func (op TxLogOp) Target() Target { return TxLog }
func (op TxLogOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.TxID).u64(op.LogID).u8(uint8(op.Field)).u64(op.Index).key
}
func (op TxLogOp) StateValue() uint256.Int { return op.Value }

// TxRefundOp is an access to the refund counter of a transaction.
type TxRefundOp struct {
	TxID      uint64
	Value     uint64
	ValuePrev uint64
}

func (op TxRefundOp) Target() Target { return TxRefund }
func (op TxRefundOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.TxID).key
}
func (op TxRefundOp) StateValue() uint256.Int { return *uint256.NewInt(op.Value) }
func (op TxRefundOp) PrevValue() uint256.Int  { return *uint256.NewInt(op.ValuePrev) }
func (op TxRefundOp) Reverse() ReversibleOp {
	op.Value, op.ValuePrev = op.ValuePrev, op.Value
	return op
}

// TxAccessListAccountOp marks an address warm for the rest of a transaction.
type TxAccessListAccountOp struct {
	TxID       uint64
	Address    common.Address
	IsWarm     bool
	IsWarmPrev bool
}

func (op TxAccessListAccountOp) Target() Target { return TxAccessListAccount }
func (op TxAccessListAccountOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.TxID).address(op.Address).key
}
func (op TxAccessListAccountOp) StateValue() uint256.Int { return boolWord(op.IsWarm) }
func (op TxAccessListAccountOp) PrevValue() uint256.Int  { return boolWord(op.IsWarmPrev) }
func (op TxAccessListAccountOp) Reverse() ReversibleOp {
	op.IsWarm, op.IsWarmPrev = op.IsWarmPrev, op.IsWarm
	return op
}

// TxAccessListAccountStorageOp marks a storage slot warm for the rest of a
// transaction.
type TxAccessListAccountStorageOp struct {
	TxID       uint64
	Address    common.Address
	Slot       uint256.Int
	IsWarm     bool
	IsWarmPrev bool
}

func (op TxAccessListAccountStorageOp) Target() Target { return TxAccessListAccountStorage }
func (op TxAccessListAccountStorageOp) Key() Key {
	b := keyBuilder{}
	return b.u64(op.TxID).address(op.Address).word(&op.Slot).key
}
func (op TxAccessListAccountStorageOp) StateValue() uint256.Int { return boolWord(op.IsWarm) }
func (op TxAccessListAccountStorageOp) PrevValue() uint256.Int  { return boolWord(op.IsWarmPrev) }
func (op TxAccessListAccountStorageOp) Reverse() ReversibleOp {
	op.IsWarm, op.IsWarmPrev = op.IsWarmPrev, op.IsWarm
	return op
}
