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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

// JumpDests is the set of valid jump destinations of a piece of code, one bit
// per byte offset.
type JumpDests []uint64

// AnalyzeJumpDests scans code for JUMPDEST instructions, skipping PUSH data.
func AnalyzeJumpDests(code []byte) JumpDests {
	dests := make(JumpDests, (len(code)+63)/64)
	for pc := 0; pc < len(code); pc++ {
		op := vm.OpCode(code[pc])
		if op == vm.JUMPDEST {
			dests[pc/64] |= 1 << (uint(pc) % 64)
			continue
		}
		pc += PushSize(op)
	}
	return dests
}

// Has reports whether dest is a JUMPDEST outside of PUSH data.
func (d JumpDests) Has(dest uint64) bool {
	if dest/64 >= uint64(len(d)) {
		return false
	}
	return d[dest/64]&(1<<(dest%64)) != 0
}

// JumpDestCache memoizes jumpdest analysis by code hash. It is safe for
// concurrent use, so builders of different blocks can share one.
type JumpDestCache struct {
	cache *lru.Cache[common.Hash, JumpDests]
}

func NewJumpDestCache(size int) (*JumpDestCache, error) {
	c, err := lru.New[common.Hash, JumpDests](size)
	if err != nil {
		return nil, err
	}
	return &JumpDestCache{cache: c}, nil
}

// Get returns the analysis of code, computing and caching it on a miss.
func (c *JumpDestCache) Get(codeHash common.Hash, code []byte) JumpDests {
	if dests, ok := c.cache.Get(codeHash); ok {
		return dests
	}
	dests := AnalyzeJumpDests(code)
	c.cache.Add(codeHash, dests)
	return dests
}

// Len returns the number of cached analyses.
func (c *JumpDestCache) Len() int {
	return c.cache.Len()
}
