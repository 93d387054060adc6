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

// Package mock runs small EVM programs and records geth style struct-log
// traces of them, so builder tests can start from bytecode instead of traces
// captured from a node.
package mock

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// Bytecode assembles EVM code.
type Bytecode struct {
	code []byte
}

func NewBytecode() *Bytecode { return &Bytecode{} }

// Op appends instructions without immediate data.
func (b *Bytecode) Op(ops ...vm.OpCode) *Bytecode {
	for _, op := range ops {
		b.code = append(b.code, byte(op))
	}
	return b
}

// Push appends the shortest PUSH of v (PUSH0 for zero).
func (b *Bytecode) Push(v uint64) *Bytecode {
	return b.PushWord(*uint256.NewInt(v))
}

// PushWord appends the shortest PUSH of w.
func (b *Bytecode) PushWord(w uint256.Int) *Bytecode {
	if w.IsZero() {
		return b.Op(vm.PUSH0)
	}
	return b.PushBytes(w.Bytes())
}

// PushBytes appends a PUSH of exactly len(data) bytes, at most 32.
func (b *Bytecode) PushBytes(data []byte) *Bytecode {
	b.code = append(b.code, byte(vm.PUSH1)+byte(len(data)-1))
	b.code = append(b.code, data...)
	return b
}

// PushLabel appends a PUSH2 of a jump target that is patched by Label.
func (b *Bytecode) PushLabel() (patch int) {
	b.code = append(b.code, byte(vm.PUSH2), 0, 0)
	return len(b.code) - 2
}

// Label appends a JUMPDEST and points the PUSH2 at patch to it.
func (b *Bytecode) Label(patch int) *Bytecode {
	pc := len(b.code)
	b.code[patch], b.code[patch+1] = byte(pc>>8), byte(pc)
	return b.Op(vm.JUMPDEST)
}

// PushAddress appends a PUSH20 of addr.
func (b *Bytecode) PushAddress(addr common.Address) *Bytecode {
	return b.PushBytes(addr[:])
}

// Call appends a call of the CALL family with its arguments. value is
// ignored for DELEGATECALL and STATICCALL.
func (b *Bytecode) Call(op vm.OpCode, gas uint64, addr common.Address, value, argsOff, argsLen, retOff, retLen uint64) *Bytecode {
	b.Push(retLen).Push(retOff).Push(argsLen).Push(argsOff)
	if op == vm.CALL || op == vm.CALLCODE {
		b.Push(value)
	}
	return b.PushAddress(addr).Push(gas).Op(op)
}

// Raw appends bytes verbatim.
func (b *Bytecode) Raw(data ...byte) *Bytecode {
	b.code = append(b.code, data...)
	return b
}

// Len is the size of the code assembled so far.
func (b *Bytecode) Len() int { return len(b.code) }

// Bytes returns a copy of the code.
func (b *Bytecode) Bytes() []byte {
	return append([]byte(nil), b.code...)
}

// ReturnWord appends code returning the 32-byte word on top of the stack.
func (b *Bytecode) ReturnWord() *Bytecode {
	return b.Push(0).Op(vm.MSTORE).Push(32).Push(0).Op(vm.RETURN)
}

// DeployCode returns init code that deploys runtime.
func DeployCode(runtime []byte) []byte {
	b := NewBytecode()
	// PUSH size, PUSH offset (patched), PUSH 0, CODECOPY, PUSH size, PUSH 0, RETURN
	b.Push(uint64(len(runtime)))
	b.code = append(b.code, byte(vm.PUSH1), 0)
	off := len(b.code) - 1
	b.Push(0).Op(vm.CODECOPY).Push(uint64(len(runtime))).Push(0).Op(vm.RETURN)
	b.code[off] = byte(len(b.code))
	return append(b.code, runtime...)
}
