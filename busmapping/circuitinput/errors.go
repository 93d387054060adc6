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
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/Merlot21/zkevm-circuits/busmapping/operation"
)

var (
	ErrNoActiveCall          = errors.New("no active call")
	ErrRWCounterMisuse       = errors.New("rw counter misuse")
	ErrInconsistentRead      = operation.ErrInconsistentRead
	ErrRWLimitExceeded       = operation.ErrRWLimitExceeded
	ErrCallAlreadyCompleted  = errors.New("call already completed")
	ErrUnexpectedCallOutcome = errors.New("call outcome differs from trace")
	ErrInvalidTraceStep      = errors.New("invalid trace step")
	ErrVerificationFailed    = errors.New("verification against trace failed")
	ErrBuilderUsed           = errors.New("builder already used")
)

// TraceError locates a problem in the input trace. It wraps ErrInvalidTraceStep,
// ErrVerificationFailed or ErrUnexpectedCallOutcome.
type TraceError struct {
	TxIndex   int
	CallID    uint64
	StepIndex int
	PC        uint64
	Op        vm.OpCode
	Reason    string
	Err       error
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("tx %d call %d step %d (pc %d %s): %v: %s", e.TxIndex, e.CallID, e.StepIndex, e.PC, e.Op, e.Err, e.Reason)
}

func (e *TraceError) Unwrap() error { return e.Err }
