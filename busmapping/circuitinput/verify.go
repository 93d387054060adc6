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
	"bytes"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/Merlot21/zkevm-circuits/busmapping/evm"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

// verify compares the state derived for steps[0] with the traced state of the
// next step of the same call. Steps that leave the call are not compared.
func (s *CircuitInputStateRef) verify(cfg VerifyConfig, before *Call, steps []logger.StructLog) error {
	call, err := s.Call()
	if err != nil || call != before || len(steps) < 2 || steps[1].Depth != call.Depth {
		return nil
	}
	trace, next := &steps[0], &steps[1]

	if cfg.Stack && !call.stack.Equal(evm.Stack(next.Stack)) {
		return s.traceErr(ErrVerificationFailed, "stack [%s], trace [%s]", call.stack, evm.Stack(next.Stack))
	}
	if cfg.Memory && (len(next.Memory) > 0 || len(call.memory) > 0) && !bytes.Equal(call.memory, next.Memory) {
		return s.traceErr(ErrVerificationFailed, "memory of %d bytes differs from traced %d bytes", len(call.memory), len(next.Memory))
	}
	if cfg.Storage && (trace.Op == vm.SLOAD || trace.Op == vm.SSTORE) && len(trace.Stack) > 0 {
		key := trace.Stack[len(trace.Stack)-1]
		if want, ok := trace.Storage[key.Bytes32()]; ok {
			var traced uint256.Int
			traced.SetBytes32(want[:])
			if got := s.sdb.State(call.Address, key); !got.Eq(&traced) {
				return s.traceErr(ErrVerificationFailed, "storage %s of %s is %s, trace %s", key.Hex(), call.Address, got.Hex(), traced.Hex())
			}
		}
	}
	if cfg.Refund && next.RefundCounter != s.sdb.Refund() {
		return s.traceErr(ErrVerificationFailed, "refund %d, trace %d", s.sdb.Refund(), next.RefundCounter)
	}
	return nil
}
