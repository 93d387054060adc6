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
	"io"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
)

// JsonStreamLogger writes execution results in the debug_traceTransaction
// wire form without materialising intermediate maps.
type JsonStreamLogger struct {
	stream       *jsoniter.Stream
	hexEncodeBuf [128]byte
	locations    []common.Hash
}

func NewJsonStreamLogger(out io.Writer) *JsonStreamLogger {
	return &JsonStreamLogger{stream: jsoniter.NewStream(json, out, 4096)}
}

// WriteResult encodes one execution result and flushes it.
func (l *JsonStreamLogger) WriteResult(r *ExecutionResult) error {
	l.stream.WriteObjectStart()
	l.stream.WriteObjectField("gas")
	l.stream.WriteUint64(r.Gas)
	l.stream.WriteMore()
	l.stream.WriteObjectField("failed")
	l.stream.WriteBool(r.Failed)
	l.stream.WriteMore()
	l.stream.WriteObjectField("returnValue")
	l.stream.WriteString(r.ReturnValue)
	l.stream.WriteMore()
	l.stream.WriteObjectField("structLogs")
	l.stream.WriteArrayStart()
	for i := range r.StructLogs {
		if i > 0 {
			l.stream.WriteMore()
		}
		l.writeLog(&r.StructLogs[i])
	}
	l.stream.WriteArrayEnd()
	l.stream.WriteObjectEnd()
	l.stream.WriteRaw("\n")
	if l.stream.Error != nil {
		return l.stream.Error
	}
	return l.stream.Flush()
}

func (l *JsonStreamLogger) encodeHex(b []byte) string {
	return string(l.hexEncodeBuf[0:hex.Encode(l.hexEncodeBuf[:], b)])
}

func (l *JsonStreamLogger) writeLog(log *StructLog) {
	l.stream.WriteObjectStart()
	l.stream.WriteObjectField("pc")
	l.stream.WriteUint64(log.Pc)
	l.stream.WriteMore()
	l.stream.WriteObjectField("op")
	l.stream.WriteString(log.Op.String())
	l.stream.WriteMore()
	l.stream.WriteObjectField("gas")
	l.stream.WriteUint64(log.Gas)
	l.stream.WriteMore()
	l.stream.WriteObjectField("gasCost")
	l.stream.WriteUint64(log.GasCost)
	l.stream.WriteMore()
	l.stream.WriteObjectField("depth")
	l.stream.WriteInt(log.Depth)
	if log.RefundCounter != 0 {
		l.stream.WriteMore()
		l.stream.WriteObjectField("refund")
		l.stream.WriteUint64(log.RefundCounter)
	}
	if log.Error != "" {
		l.stream.WriteMore()
		l.stream.WriteObjectField("error")
		l.stream.WriteString(log.Error)
	}
	l.stream.WriteMore()
	l.stream.WriteObjectField("stack")
	l.stream.WriteArrayStart()
	for i := range log.Stack {
		if i > 0 {
			l.stream.WriteMore()
		}
		l.stream.WriteString(log.Stack[i].Hex())
	}
	l.stream.WriteArrayEnd()
	if len(log.Memory) > 0 {
		l.stream.WriteMore()
		l.stream.WriteObjectField("memory")
		l.stream.WriteArrayStart()
		for i := 0; i+32 <= len(log.Memory); i += 32 {
			if i > 0 {
				l.stream.WriteMore()
			}
			l.stream.WriteString(l.encodeHex(log.Memory[i : i+32]))
		}
		l.stream.WriteArrayEnd()
	}
	if len(log.Storage) > 0 {
		l.stream.WriteMore()
		l.stream.WriteObjectField("storage")
		l.stream.WriteObjectStart()
		// Sort storage by locations for easier comparison with geth
		l.locations = l.locations[:0]
		for loc := range log.Storage {
			l.locations = append(l.locations, loc)
		}
		slices.SortFunc(l.locations, func(a, b common.Hash) int { return a.Cmp(b) })
		for i, loc := range l.locations {
			if i > 0 {
				l.stream.WriteMore()
			}
			value := log.Storage[loc]
			l.stream.WriteObjectField(l.encodeHex(loc[:]))
			l.stream.WriteString(l.encodeHex(value[:]))
		}
		l.stream.WriteObjectEnd()
	}
	if len(log.ReturnData) > 0 {
		l.stream.WriteMore()
		l.stream.WriteObjectField("returnData")
		l.stream.WriteString(hex.EncodeToString(log.ReturnData))
	}
	l.stream.WriteObjectEnd()
}
