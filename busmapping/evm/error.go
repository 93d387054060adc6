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
	"strings"
)

// ExecError is an execution-level failure of a single instruction. It ends
// the current call frame as failed without aborting the block build.
type ExecError uint8

const (
	ErrInvalidOpcode ExecError = iota + 1
	ErrStackOverflow
	ErrStackUnderflow
	ErrOutOfGas
	ErrInvalidJump
	ErrWriteProtection
	ErrDepth
	ErrInsufficientBalance
	ErrContractAddressCollision
	ErrInvalidCreationCode
	ErrMaxCodeSizeExceeded
	ErrReturnDataOutOfBounds
	ErrCodeStoreOutOfGas
	ErrGasUintOverflow
	ErrNonceUintOverflow
	ErrPrecompileFailed
	// ErrUnclassified covers tracer errors with no dedicated variant.
	ErrUnclassified
)

var execErrorNames = map[ExecError]string{
	ErrInvalidOpcode:            "invalid opcode",
	ErrStackOverflow:            "stack overflow",
	ErrStackUnderflow:           "stack underflow",
	ErrOutOfGas:                 "out of gas",
	ErrInvalidJump:              "invalid jump destination",
	ErrWriteProtection:          "write protection",
	ErrDepth:                    "max call depth exceeded",
	ErrInsufficientBalance:      "insufficient balance for transfer",
	ErrContractAddressCollision: "contract address collision",
	ErrInvalidCreationCode:      "invalid code: must not begin with 0xef",
	ErrMaxCodeSizeExceeded:      "max code size exceeded",
	ErrReturnDataOutOfBounds:    "return data out of bounds",
	ErrCodeStoreOutOfGas:        "contract creation code storage out of gas",
	ErrGasUintOverflow:          "gas uint64 overflow",
	ErrNonceUintOverflow:        "nonce uint64 overflow",
	ErrPrecompileFailed:         "precompile failed",
	ErrUnclassified:             "unclassified execution error",
}

func (e ExecError) Error() string {
	if name, ok := execErrorNames[e]; ok {
		return name
	}
	return "unknown execution error"
}

// tracer error prefixes, most specific first.
var traceErrorPrefixes = []struct {
	prefix string
	err    ExecError
}{
	{"contract creation code storage out of gas", ErrCodeStoreOutOfGas},
	{"out of gas", ErrOutOfGas},
	{"stack underflow", ErrStackUnderflow},
	{"stack limit reached", ErrStackOverflow},
	{"stack overflow", ErrStackOverflow},
	{"invalid jump destination", ErrInvalidJump},
	{"write protection", ErrWriteProtection},
	{"max call depth exceeded", ErrDepth},
	{"insufficient balance for transfer", ErrInsufficientBalance},
	{"contract address collision", ErrContractAddressCollision},
	{"invalid code: must not begin with 0xef", ErrInvalidCreationCode},
	{"max code size exceeded", ErrMaxCodeSizeExceeded},
	{"return data out of bounds", ErrReturnDataOutOfBounds},
	{"gas uint64 overflow", ErrGasUintOverflow},
	{"nonce uint64 overflow", ErrNonceUintOverflow},
	{"invalid opcode", ErrInvalidOpcode},
	{"precompile", ErrPrecompileFailed},
}

// ParseTraceError maps the error string a geth-style tracer attaches to a
// struct log onto an ExecError. Empty strings and "execution reverted", which
// is the normal outcome of REVERT, report ok == false.
func ParseTraceError(s string) (ExecError, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || strings.HasPrefix(s, "execution reverted") {
		return 0, false
	}
	for _, p := range traceErrorPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p.err, true
		}
	}
	return ErrUnclassified, true
}
