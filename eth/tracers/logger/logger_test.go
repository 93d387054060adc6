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
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const blockTraceJSON = `{
  "chainID": 1337,
  "header": {"number": "0x10", "timestamp": "0x5", "miner": "0x00000000000000000000000000000000000000cc",
             "gasLimit": "0x1c9c380", "difficulty": "0x0", "baseFeePerGas": "0x7"},
  "transactions": [{"from": "0x00000000000000000000000000000000000000aa",
                    "to": "0x00000000000000000000000000000000000000bb",
                    "nonce": "0x0", "value": "0x0", "gas": "0xf4240", "gasPrice": "0xa", "input": "0x"}],
  "prestate": {
    "0x00000000000000000000000000000000000000aa": {"nonce": 0, "balance": "0xde0b6b3a7640000"},
    "0x00000000000000000000000000000000000000bb": {"nonce": 1, "balance": "0x0", "code": "0x3300",
      "storage": {"0x0000000000000000000000000000000000000000000000000000000000000001": "0x0000000000000000000000000000000000000000000000000000000000000002"}}
  },
  "executionResults": [{"gas": 21004, "failed": false, "returnValue": "", "structLogs": [
    {"pc": 0, "op": "CALLER", "gas": 979000, "gasCost": 2, "depth": 1, "stack": []},
    {"pc": 1, "op": "STOP", "gas": 978998, "gasCost": 0, "depth": 1,
     "stack": ["0xaa"],
     "memory": ["0000000000000000000000000000000000000000000000000000000000000001"],
     "storage": {"0000000000000000000000000000000000000000000000000000000000000001": "0000000000000000000000000000000000000000000000000000000000000002"}}
  ]}]
}`

func TestDecodeBlockTrace(t *testing.T) {
	traces, err := DecodeBlockTraces(strings.NewReader(blockTraceJSON))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	trace := traces[0]

	require.Equal(t, uint64(1337), trace.ChainID)
	require.Equal(t, uint64(0x10), uint64(trace.Header.Number))
	require.Equal(t, common.HexToAddress("0xcc"), trace.Header.Coinbase)
	require.Equal(t, int64(7), BigOrZero(trace.Header.BaseFee).Int64())

	require.Len(t, trace.Transactions, 1)
	tx := trace.Transactions[0]
	require.False(t, tx.IsCreate())
	require.Equal(t, common.HexToAddress("0xbb"), *tx.To)

	callee := trace.Prestate[common.HexToAddress("0xbb")]
	require.Equal(t, []byte{byte(vm.CALLER), byte(vm.STOP)}, []byte(callee.Code))
	require.Equal(t, common.HexToHash("0x2"), callee.Storage[common.HexToHash("0x1")])

	logs := trace.ExecutionResults[0].StructLogs
	require.Len(t, logs, 2)
	require.Equal(t, vm.CALLER, logs[0].Op)
	require.Empty(t, logs[0].Stack)
	require.Equal(t, vm.STOP, logs[1].Op)
	top, ok := logs[1].StackTop(0)
	require.True(t, ok)
	require.Equal(t, *uint256.NewInt(0xaa), top)
	require.Equal(t, 32, logs[1].MemorySize)
	require.Equal(t, byte(1), logs[1].Memory[31])
	require.Equal(t, common.HexToHash("0x2"), logs[1].Storage[common.HexToHash("0x1")])
}

func TestDecodeResultCountMismatch(t *testing.T) {
	_, err := DecodeBlockTraces(strings.NewReader(`[{"chainID": 1, "transactions": [{}], "executionResults": []}]`))
	require.ErrorIs(t, err, ErrResultCountMismatch)
}

func TestParseOpName(t *testing.T) {
	tests := map[string]struct {
		name    string
		want    vm.OpCode
		wantErr bool
	}{
		"stop":      {name: "STOP", want: vm.STOP},
		"push":      {name: "PUSH32", want: vm.PUSH32},
		"sha3":      {name: "SHA3", want: vm.KECCAK256},
		"undefined": {name: "opcode 0xfe not defined", want: vm.OpCode(0xfe)},
		"garbage":   {name: "FOO", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			op, err := ParseOpName(tc.name)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnknownOpcode)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, op)
		})
	}
}

func TestJsonStreamLoggerDecodes(t *testing.T) {
	result := &ExecutionResult{
		Gas:         53000,
		Failed:      true,
		ReturnValue: "08c379a0",
		StructLogs: []StructLog{
			{Pc: 0, Op: vm.PUSH1, Gas: 100, GasCost: 3, Depth: 1},
			{
				Pc: 2, Op: vm.SSTORE, Gas: 97, GasCost: 20000, Depth: 1, RefundCounter: 4800,
				Error:      "out of gas",
				Stack:      []uint256.Int{*uint256.NewInt(5), *uint256.NewInt(1)},
				Memory:     bytes.Repeat([]byte{0xab}, 64),
				Storage:    Storage{common.HexToHash("0x1"): common.HexToHash("0x5")},
				ReturnData: bytes.Repeat([]byte{1}, 100),
			},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, NewJsonStreamLogger(&buf).WriteResult(result))

	var decoded ExecutionResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, result.Gas, decoded.Gas)
	require.True(t, decoded.Failed)
	data, err := decoded.ReturnData()
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0xc3, 0x79, 0xa0}, data)

	got := decoded.StructLogs[1]
	want := result.StructLogs[1]
	want.MemorySize = len(want.Memory)
	require.Equal(t, want, got)
}

func TestWriteTrace(t *testing.T) {
	var buf bytes.Buffer
	WriteTrace(&buf, []StructLog{{Pc: 3, Op: vm.CALLER, Gas: 10, GasCost: 2, Depth: 1, Error: "stack underflow (0 <=> 1)"}})
	require.Contains(t, buf.String(), "CALLER")
	require.Contains(t, buf.String(), "ERROR: stack underflow")
}
