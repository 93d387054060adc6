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

// WordSize is the width in bytes of a memory word.
const WordSize = 32

// MemoryAddress is a byte offset into call memory.
type MemoryAddress uint64

func (a MemoryAddress) String() string {
	return fmt.Sprintf("memory[0x%x]", uint64(a))
}

// AlignDown returns the address of the word containing a.
func (a MemoryAddress) AlignDown() MemoryAddress {
	return a - a%WordSize
}

// WordsFor returns the number of words needed to hold size bytes.
func WordsFor(size uint64) uint64 {
	return (size + WordSize - 1) / WordSize
}

// ExpandedWords returns the memory size in words after an access of length
// bytes at offset, given the current size in words. Zero-length accesses never
// expand memory.
func ExpandedWords(current, offset, length uint64) uint64 {
	if length == 0 {
		return current
	}
	if end := WordsFor(offset + length); end > current {
		return end
	}
	return current
}

// WordRange lists the word-aligned addresses covering [offset, offset+length).
func WordRange(offset, length uint64) []MemoryAddress {
	if length == 0 {
		return nil
	}
	first := MemoryAddress(offset).AlignDown()
	last := MemoryAddress(offset + length - 1).AlignDown()
	words := make([]MemoryAddress, 0, (last-first)/WordSize+1)
	for a := first; a <= last; a += WordSize {
		words = append(words, a)
	}
	return words
}

// Memory is the byte content of a call's memory. Its length is always a
// multiple of WordSize once expanded through Resize.
type Memory []byte

// WordCount returns the memory size in words.
func (m Memory) WordCount() uint64 {
	return WordsFor(uint64(len(m)))
}

// Resize grows the memory to hold words words. It never shrinks.
func (m *Memory) Resize(words uint64) {
	if size := words * WordSize; uint64(len(*m)) < size {
		*m = append(*m, make([]byte, size-uint64(len(*m)))...)
	}
}

// Read returns length bytes at offset, zero padded past the end of memory.
func (m Memory) Read(offset, length uint64) []byte {
	out := make([]byte, length)
	if offset < uint64(len(m)) {
		copy(out, m[offset:])
	}
	return out
}

// ReadWord returns the 32 byte word starting at addr.
func (m Memory) ReadWord(addr MemoryAddress) uint256.Int {
	var w uint256.Int
	w.SetBytes32(m.Read(uint64(addr), WordSize))
	return w
}

// Write copies data to offset, growing the memory to a whole word boundary.
func (m *Memory) Write(offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	m.Resize(WordsFor(offset + uint64(len(data))))
	copy((*m)[offset:], data)
}

// Copy returns an independent copy of the memory.
func (m Memory) Copy() Memory {
	cpy := make(Memory, len(m))
	copy(cpy, m)
	return cpy
}
