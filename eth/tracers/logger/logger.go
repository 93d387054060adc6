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

package logger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode name")
	ErrBadHex        = errors.New("malformed hex value")
)

// Storage represents a contract's storage.
type Storage map[common.Hash]common.Hash

// Copy duplicates the current storage.
func (s Storage) Copy() Storage {
	return maps.Clone(s)
}

// StructLog is one step of a geth struct-log trace: the machine state prior to
// the execution of the instruction at Pc.
type StructLog struct {
	Pc            uint64
	Op            vm.OpCode
	Gas           uint64
	GasCost       uint64
	Depth         int
	RefundCounter uint64
	Error         string
	Stack         []uint256.Int // bottom first
	Memory        []byte
	MemorySize    int
	Storage       Storage
	ReturnData    []byte
}

// OpName formats the operand name in a human-readable format.
func (s *StructLog) OpName() string {
	return s.Op.String()
}

// ErrorString returns the tracer's error for this step, if any.
func (s *StructLog) ErrorString() string {
	return s.Error
}

// StackTop returns the n-th element from the top of the traced stack.
func (s *StructLog) StackTop(n int) (uint256.Int, bool) {
	if n < 0 || n >= len(s.Stack) {
		return uint256.Int{}, false
	}
	return s.Stack[len(s.Stack)-1-n], true
}

// structLogJSON is the wire form produced by debug_traceTransaction.
type structLogJSON struct {
	Pc         uint64            `json:"pc"`
	Op         string            `json:"op"`
	Gas        uint64            `json:"gas"`
	GasCost    uint64            `json:"gasCost"`
	Depth      int               `json:"depth"`
	Refund     uint64            `json:"refund,omitempty"`
	Error      string            `json:"error,omitempty"`
	Stack      []string          `json:"stack,omitempty"`
	Memory     []string          `json:"memory,omitempty"`
	Storage    map[string]string `json:"storage,omitempty"`
	ReturnData string            `json:"returnData,omitempty"`
}

func (s *StructLog) UnmarshalJSON(input []byte) error {
	var dec structLogJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	op, err := ParseOpName(dec.Op)
	if err != nil {
		return fmt.Errorf("pc %d: %w", dec.Pc, err)
	}
	*s = StructLog{
		Pc:            dec.Pc,
		Op:            op,
		Gas:           dec.Gas,
		GasCost:       dec.GasCost,
		Depth:         dec.Depth,
		RefundCounter: dec.Refund,
		Error:         dec.Error,
	}
	if len(dec.Stack) > 0 {
		s.Stack = make([]uint256.Int, len(dec.Stack))
		for i, item := range dec.Stack {
			if err := parseWord(item, &s.Stack[i]); err != nil {
				return fmt.Errorf("pc %d: stack[%d]: %w", dec.Pc, i, err)
			}
		}
	}
	if len(dec.Memory) > 0 {
		s.Memory = make([]byte, 0, 32*len(dec.Memory))
		for i, chunk := range dec.Memory {
			b, err := decodeHex(chunk)
			if err != nil || len(b) != 32 {
				return fmt.Errorf("pc %d: memory[%d]: %w", dec.Pc, i, ErrBadHex)
			}
			s.Memory = append(s.Memory, b...)
		}
	}
	s.MemorySize = len(s.Memory)
	if len(dec.Storage) > 0 {
		s.Storage = make(Storage, len(dec.Storage))
		for k, v := range dec.Storage {
			kb, err := decodeHex(k)
			if err != nil {
				return fmt.Errorf("pc %d: storage key %q: %w", dec.Pc, k, err)
			}
			vb, err := decodeHex(v)
			if err != nil {
				return fmt.Errorf("pc %d: storage value %q: %w", dec.Pc, v, err)
			}
			s.Storage[common.BytesToHash(kb)] = common.BytesToHash(vb)
		}
	}
	if dec.ReturnData != "" {
		if s.ReturnData, err = decodeHex(dec.ReturnData); err != nil {
			return fmt.Errorf("pc %d: return data: %w", dec.Pc, err)
		}
	}
	return nil
}

// ParseOpName maps a tracer opcode name back to its id. Undefined opcodes
// appear as "opcode 0x.. not defined" in geth traces.
func ParseOpName(name string) (vm.OpCode, error) {
	switch name {
	case "STOP":
		return vm.STOP, nil
	case "SHA3":
		return vm.KECCAK256, nil
	}
	if rest, ok := strings.CutPrefix(name, "opcode "); ok {
		var id uint8
		if _, err := fmt.Sscanf(rest, "0x%x not defined", &id); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, name)
		}
		return vm.OpCode(id), nil
	}
	if op := vm.StringToOp(name); op != vm.STOP {
		return op, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, name)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHex, err)
	}
	return b, nil
}

func parseWord(s string, out *uint256.Int) error {
	b, err := decodeHex(s)
	if err != nil {
		return err
	}
	if len(b) > 32 {
		return fmt.Errorf("%w: %d bytes", ErrBadHex, len(b))
	}
	out.SetBytes(b)
	return nil
}

// WriteTrace writes a formatted trace to the given writer
func WriteTrace(writer io.Writer, logs []StructLog) {
	for _, log := range logs {
		fmt.Fprintf(writer, "%-16spc=%08d gas=%v cost=%v depth=%d", log.Op, log.Pc, log.Gas, log.GasCost, log.Depth)
		if log.Error != "" {
			fmt.Fprintf(writer, " ERROR: %v", log.Error)
		}
		fmt.Fprintln(writer)

		if len(log.Stack) > 0 {
			fmt.Fprintln(writer, "Stack:")
			for i := len(log.Stack) - 1; i >= 0; i-- {
				b := log.Stack[i].Bytes32()
				fmt.Fprintf(writer, "%08d  %x\n", len(log.Stack)-i-1, b)
			}
		}
		if len(log.Memory) > 0 {
			fmt.Fprintln(writer, "Memory:")
			fmt.Fprint(writer, hex.Dump(log.Memory))
		}
		if len(log.Storage) > 0 {
			fmt.Fprintln(writer, "Storage:")
			for h, item := range log.Storage {
				fmt.Fprintf(writer, "%x: %x\n", h, item)
			}
		}
		if len(log.ReturnData) > 0 {
			fmt.Fprintln(writer, "ReturnData:")
			fmt.Fprint(writer, hex.Dump(log.ReturnData))
		}
		fmt.Fprintln(writer)
	}
}
