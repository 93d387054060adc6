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

package opcodes

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// paddedSlice returns length bytes of data starting at offset, zero padded
// past the end of data.
func paddedSlice(data []byte, offset *uint256.Int, length uint64) []byte {
	out := make([]byte, length)
	if offset.IsUint64() && offset.Uint64() < uint64(len(data)) {
		copy(out, data[offset.Uint64():])
	}
	return out
}

// mload handles MLOAD:
//   - stack READ of the offset
//   - memory READ of every word the 32 loaded bytes touch
//   - stack WRITE of the loaded value
func mload(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	offset, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	off, _, err := state.MemoryRange(&offset, uint256.NewInt(evm.WordSize))
	if err != nil {
		return nil, err
	}
	data, err := state.MemoryReadRange(step, off, evm.WordSize)
	if err != nil {
		return nil, err
	}
	var value uint256.Int
	value.SetBytes32(data)
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// mstore handles MSTORE:
//   - stack READs of the offset and the value
//   - memory WRITE of every word the 32 stored bytes touch
func mstore(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 2)
	if err != nil {
		return nil, err
	}
	off, _, err := state.MemoryRange(&args[0], uint256.NewInt(evm.WordSize))
	if err != nil {
		return nil, err
	}
	b := args[1].Bytes32()
	if err := state.MemoryWriteRange(step, off, b[:]); err != nil {
		return nil, err
	}
	return one(step), nil
}

// mstore8 handles MSTORE8:
//   - stack READs of the offset and the value
//   - memory WRITE of the word holding the stored byte
func mstore8(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 2)
	if err != nil {
		return nil, err
	}
	off, _, err := state.MemoryRange(&args[0], uint256.NewInt(1))
	if err != nil {
		return nil, err
	}
	if err := state.MemoryWriteRange(step, off, []byte{byte(args[1].Uint64())}); err != nil {
		return nil, err
	}
	return one(step), nil
}

// msize handles MSIZE: one stack WRITE of the memory size in bytes.
func msize(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	size := call.MemoryWords() * evm.WordSize
	if err := state.StackPush(step, *uint256.NewInt(size)); err != nil {
		return nil, err
	}
	return one(step), nil
}

// calldataload handles CALLDATALOAD:
//   - stack READ of the offset
//   - call context READ of CallDataLength
//   - stack WRITE of the 32 bytes of call data at the offset
func calldataload(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	offset, err := state.StackPop(step)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.CallDataLength); err != nil {
		return nil, err
	}
	var value uint256.Int
	value.SetBytes32(paddedSlice(call.CallData, &offset, evm.WordSize))
	if err := state.StackPush(step, value); err != nil {
		return nil, err
	}
	return one(step), nil
}

// copyToMemory writes length bytes of src at offset into memory, one memory
// WRITE per word touched.
func copyToMemory(state *circuitinput.CircuitInputStateRef, step *circuitinput.ExecStep, memOffset, srcOffset, length *uint256.Int, src []byte) error {
	off, size, err := state.MemoryRange(memOffset, length)
	if err != nil {
		return err
	}
	return state.MemoryWriteRange(step, off, paddedSlice(src, srcOffset, size))
}

// calldatacopy handles CALLDATACOPY:
//   - stack READs of memory offset, data offset and length
//   - call context READ of CallDataLength
//   - memory WRITE of every word touched
func calldatacopy(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 3)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.CallDataLength); err != nil {
		return nil, err
	}
	if err := copyToMemory(state, step, &args[0], &args[1], &args[2], call.CallData); err != nil {
		return nil, err
	}
	return one(step), nil
}

// codecopy handles CODECOPY:
//   - stack READs of memory offset, code offset and length
//   - memory WRITE of every word touched
func codecopy(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 3)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	code := state.Code(call)
	if err := copyToMemory(state, step, &args[0], &args[1], &args[2], code); err != nil {
		return nil, err
	}
	return one(step), nil
}

// extcodecopy handles EXTCODECOPY:
//   - stack READs of address, memory offset, code offset and length
//   - access list WRITE of the address
//   - account READ of the code hash
//   - memory WRITE of every word touched
func extcodecopy(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 4)
	if err != nil {
		return nil, err
	}
	addr := addressOf(&args[0])
	if _, err := state.TxAccessListAccountWrite(step, addr); err != nil {
		return nil, err
	}
	hash, err := state.AccountRead(step, addr, operation.AccountCodeHash)
	if err != nil {
		return nil, err
	}
	code := state.Block().Code[hash.Bytes32()]
	if err := copyToMemory(state, step, &args[1], &args[2], &args[3], code); err != nil {
		return nil, err
	}
	return one(step), nil
}

// returndatacopy handles RETURNDATACOPY:
//   - stack READs of memory offset, data offset and length
//   - call context READ of LastCalleeReturnDataLength
//   - memory WRITE of every word touched
func returndatacopy(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 3)
	if err != nil {
		return nil, err
	}
	call, err := state.Call()
	if err != nil {
		return nil, err
	}
	if err := readCallContext(state, step, call, operation.LastCalleeReturnDataLength); err != nil {
		return nil, err
	}
	if err := copyToMemory(state, step, &args[0], &args[1], &args[2], call.ReturnData); err != nil {
		return nil, err
	}
	return one(step), nil
}

// mcopy handles MCOPY:
//   - stack READs of destination, source and length
//   - memory READ of every source word
//   - memory WRITE of every destination word
func mcopy(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 3)
	if err != nil {
		return nil, err
	}
	src, size, err := state.MemoryRange(&args[1], &args[2])
	if err != nil {
		return nil, err
	}
	dst, _, err := state.MemoryRange(&args[0], &args[2])
	if err != nil {
		return nil, err
	}
	if err := state.ExpandMemory(dst, size); err != nil {
		return nil, err
	}
	data, err := state.MemoryReadRange(step, src, size)
	if err != nil {
		return nil, err
	}
	if err := state.MemoryWriteRange(step, dst, data); err != nil {
		return nil, err
	}
	return one(step), nil
}

// keccak256 handles KECCAK256:
//   - stack READs of offset and size
//   - memory READ of every word hashed
//   - stack WRITE of the hash
func keccak256(state *circuitinput.CircuitInputStateRef, steps []logger.StructLog) ([]*circuitinput.ExecStep, error) {
	step, err := state.NewStep(&steps[0])
	if err != nil {
		return nil, err
	}
	args, err := popN(state, step, 2)
	if err != nil {
		return nil, err
	}
	off, size, err := state.MemoryRange(&args[0], &args[1])
	if err != nil {
		return nil, err
	}
	data, err := state.MemoryReadRange(step, off, size)
	if err != nil {
		return nil, err
	}
	if err := state.StackPush(step, circuitinput.HashWord(crypto.Keccak256Hash(data))); err != nil {
		return nil, err
	}
	return one(step), nil
}
