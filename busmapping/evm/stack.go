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
	"fmt"

	"github.com/holiman/uint256"
)

// StackAddress is the position of a stack slot. The bottom of the stack lives
// at StackLimit-1 and the stack grows towards 0, so an empty stack points at
// StackLimit and the first push lands on StackLimit-1.
type StackAddress uint64

func (a StackAddress) String() string {
	return fmt.Sprintf("stack[%d]", uint64(a))
}

// StackPointer returns the address the next push writes to for a stack
// holding size items.
func StackPointer(size int) StackAddress {
	return StackAddress(StackLimit - size)
}

// Stack is an operand stack snapshot, bottom first, as reported by the tracer.
type Stack []uint256.Int

// Last returns the top of the stack.
func (s Stack) Last() (uint256.Int, error) {
	return s.NthLast(0)
}

// NthLast returns the n'th item counted from the top, 0 being the top.
func (s Stack) NthLast(n int) (uint256.Int, error) {
	if n < 0 || n >= len(s) {
		return uint256.Int{}, ErrStackUnderflow
	}
	return s[len(s)-1-n], nil
}

// LastFilled returns the address of the top of the stack.
func (s Stack) LastFilled() StackAddress {
	return StackAddress(StackLimit - len(s))
}

// NthLastFilled returns the address of the n'th item counted from the top.
func (s Stack) NthLastFilled(n int) StackAddress {
	return StackAddress(StackLimit - len(s) + n)
}

// Push appends v, failing once the stack would exceed StackLimit.
func (s *Stack) Push(v uint256.Int) (StackAddress, error) {
	if len(*s) >= StackLimit {
		return 0, ErrStackOverflow
	}
	*s = append(*s, v)
	return s.LastFilled(), nil
}

// Pop removes the top of the stack and returns it with its address.
func (s *Stack) Pop() (uint256.Int, StackAddress, error) {
	if len(*s) == 0 {
		return uint256.Int{}, 0, ErrStackUnderflow
	}
	addr := s.LastFilled()
	v := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return v, addr, nil
}

// Set overwrites the n'th item counted from the top.
func (s Stack) Set(n int, v uint256.Int) (StackAddress, error) {
	if n < 0 || n >= len(s) {
		return 0, ErrStackUnderflow
	}
	s[len(s)-1-n] = v
	return s.NthLastFilled(n), nil
}

// Copy returns an independent copy of the stack.
func (s Stack) Copy() Stack {
	cpy := make(Stack, len(s))
	copy(cpy, s)
	return cpy
}

// Equal reports whether both snapshots hold the same words.
func (s Stack) Equal(other Stack) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Eq(&other[i]) {
			return false
		}
	}
	return true
}

func (s Stack) String() string {
	var str string
	for _, v := range s {
		str += v.Hex() + ", "
	}
	return str
}
