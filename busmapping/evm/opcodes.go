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
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
)

// StackLimit is the maximum number of words on the operand stack.
const StackLimit = int(params.StackLimit)

// OpcodeInfo is the static metadata the builder needs about an instruction:
// how many stack items it consumes and produces, how wide it is and how it
// affects control flow.
type OpcodeInfo struct {
	Valid    bool
	Pops     int
	Pushes   int
	MinStack int // stack items required before execution
	MaxStack int // largest stack size that does not overflow after execution
	Width    uint64

	Jumps  bool // may transfer control to a JUMPDEST
	Halts  bool // terminates the current call frame
	Writes bool // modifies state, forbidden inside a static call
	Call   bool // enters a new call frame (CALL family)
	Create bool // enters a new create frame (CREATE family)
}

var opcodeTable [256]OpcodeInfo

func def(op vm.OpCode, pops, pushes int) *OpcodeInfo {
	opcodeTable[op] = OpcodeInfo{
		Valid:    true,
		Pops:     pops,
		Pushes:   pushes,
		MinStack: pops,
		MaxStack: StackLimit + pops - pushes,
		Width:    1,
	}
	return &opcodeTable[op]
}

func init() {
	def(vm.STOP, 0, 0).Halts = true
	for _, op := range []vm.OpCode{
		vm.ADD, vm.MUL, vm.SUB, vm.DIV, vm.SDIV, vm.MOD, vm.SMOD, vm.EXP, vm.SIGNEXTEND,
		vm.LT, vm.GT, vm.SLT, vm.SGT, vm.EQ, vm.AND, vm.OR, vm.XOR, vm.BYTE, vm.SHL, vm.SHR, vm.SAR,
		vm.KECCAK256,
	} {
		def(op, 2, 1)
	}
	def(vm.ADDMOD, 3, 1)
	def(vm.MULMOD, 3, 1)
	def(vm.ISZERO, 1, 1)
	def(vm.NOT, 1, 1)

	for _, op := range []vm.OpCode{
		vm.ADDRESS, vm.ORIGIN, vm.CALLER, vm.CALLVALUE, vm.CALLDATASIZE, vm.CODESIZE, vm.GASPRICE,
		vm.RETURNDATASIZE, vm.COINBASE, vm.TIMESTAMP, vm.NUMBER, vm.DIFFICULTY, vm.GASLIMIT,
		vm.CHAINID, vm.SELFBALANCE, vm.BASEFEE, vm.BLOBBASEFEE, vm.PC, vm.MSIZE, vm.GAS,
	} {
		def(op, 0, 1)
	}
	for _, op := range []vm.OpCode{
		vm.BALANCE, vm.CALLDATALOAD, vm.EXTCODESIZE, vm.EXTCODEHASH, vm.BLOCKHASH, vm.BLOBHASH,
		vm.MLOAD, vm.SLOAD, vm.TLOAD,
	} {
		def(op, 1, 1)
	}
	def(vm.CALLDATACOPY, 3, 0)
	def(vm.CODECOPY, 3, 0)
	def(vm.RETURNDATACOPY, 3, 0)
	def(vm.MCOPY, 3, 0)
	def(vm.EXTCODECOPY, 4, 0)

	def(vm.POP, 1, 0)
	def(vm.MSTORE, 2, 0)
	def(vm.MSTORE8, 2, 0)
	def(vm.SSTORE, 2, 0).Writes = true
	def(vm.TSTORE, 2, 0).Writes = true
	def(vm.JUMP, 1, 0).Jumps = true
	def(vm.JUMPI, 2, 0).Jumps = true
	def(vm.JUMPDEST, 0, 0)

	def(vm.PUSH0, 0, 1)
	for i := 1; i <= 32; i++ {
		def(vm.PUSH1+vm.OpCode(i-1), 0, 1).Width = uint64(i + 1)
	}
	for i := 1; i <= 16; i++ {
		def(vm.DUP1+vm.OpCode(i-1), i, i+1)
		def(vm.SWAP1+vm.OpCode(i-1), i+1, i+1)
	}
	for i := 0; i <= 4; i++ {
		def(vm.LOG0+vm.OpCode(i), 2+i, 0).Writes = true
	}

	create := def(vm.CREATE, 3, 1)
	create.Writes, create.Create = true, true
	create2 := def(vm.CREATE2, 4, 1)
	create2.Writes, create2.Create = true, true

	// CALL only writes when it transfers value; the builder checks that case itself.
	def(vm.CALL, 7, 1).Call = true
	def(vm.CALLCODE, 7, 1).Call = true
	def(vm.DELEGATECALL, 6, 1).Call = true
	def(vm.STATICCALL, 6, 1).Call = true

	def(vm.RETURN, 2, 0).Halts = true
	def(vm.REVERT, 2, 0).Halts = true
	selfdestruct := def(vm.SELFDESTRUCT, 1, 0)
	selfdestruct.Halts, selfdestruct.Writes = true, true
}

// Info returns the metadata of op. Undefined opcodes report Valid == false.
func Info(op vm.OpCode) OpcodeInfo {
	return opcodeTable[op]
}

// NextPC is the program counter of the instruction that follows op at pc when
// no jump is taken.
func NextPC(op vm.OpCode, pc uint64) uint64 {
	if w := opcodeTable[op].Width; w > 0 {
		return pc + w
	}
	return pc + 1
}

// IsPush reports whether op carries immediate data (PUSH1..PUSH32).
func IsPush(op vm.OpCode) bool {
	return op >= vm.PUSH1 && op <= vm.PUSH32
}

// PushSize is the number of immediate bytes of a PUSH instruction.
func PushSize(op vm.OpCode) int {
	if !IsPush(op) {
		return 0
	}
	return int(op-vm.PUSH1) + 1
}

func IsDup(op vm.OpCode) bool  { return op >= vm.DUP1 && op <= vm.DUP16 }
func IsSwap(op vm.OpCode) bool { return op >= vm.SWAP1 && op <= vm.SWAP16 }
func IsLog(op vm.OpCode) bool  { return op >= vm.LOG0 && op <= vm.LOG4 }
