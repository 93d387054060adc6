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
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// Block is the circuit input of one block: its header fields, the
// transactions with their steps and the single operation container every step
// refers into.
type Block struct {
	ChainID    uint64
	Number     uint64
	Hash       common.Hash
	Timestamp  uint64
	Coinbase   common.Address
	GasLimit   uint64
	BaseFee    uint256.Int
	Difficulty uint256.Int

	Txs       []*Transaction
	Container *operation.Container
	// Code holds every contract code seen in the block by code hash.
	Code map[common.Hash][]byte
}

func newBlock(chainID uint64, header *logger.Header, container *operation.Container) *Block {
	b := &Block{
		ChainID:   chainID,
		Number:    uint64(header.Number),
		Hash:      header.Hash,
		Timestamp: uint64(header.Timestamp),
		Coinbase:  header.Coinbase,
		GasLimit:  uint64(header.GasLimit),
		Container: container,
		Code:      make(map[common.Hash][]byte),
	}
	b.BaseFee.SetFromBig(logger.BigOrZero(header.BaseFee))
	b.Difficulty.SetFromBig(logger.BigOrZero(header.Difficulty))
	return b
}

// Steps returns the number of execution steps of the block.
func (b *Block) Steps() int {
	n := 0
	for _, tx := range b.Txs {
		n += len(tx.steps)
	}
	return n
}
