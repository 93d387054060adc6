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
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

//go:generate mockgen -destination=./handler_mock.go -package=circuitinput . OpcodeHandler,Dispatcher

// OpcodeHandler generates the operations of one traced instruction.
// steps[0] is the instruction to handle; the rest of the slice is the
// remaining trace and may only be inspected through
// CircuitInputStateRef.NextStepInCall. A handler opens its step with
// NewStep, emits the operations through the state accessors and returns
// the steps it produced.
type OpcodeHandler interface {
	GenAssociatedOps(state *CircuitInputStateRef, steps []logger.StructLog) ([]*ExecStep, error)
}

// OpcodeHandlerFunc adapts a function to OpcodeHandler.
type OpcodeHandlerFunc func(state *CircuitInputStateRef, steps []logger.StructLog) ([]*ExecStep, error)

func (f OpcodeHandlerFunc) GenAssociatedOps(state *CircuitInputStateRef, steps []logger.StructLog) ([]*ExecStep, error) {
	return f(state, steps)
}

// Dispatcher selects the handler of an opcode.
type Dispatcher interface {
	Handler(op vm.OpCode) OpcodeHandler
}
