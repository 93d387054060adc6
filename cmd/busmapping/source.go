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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"

	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

//go:generate mockgen -destination=./source_mock.go -package=main . TraceSource

var ErrTraceTooLarge = errors.New("trace file too large")

// TraceSource yields the block traces to replay.
type TraceSource interface {
	Load(ctx context.Context) ([]*logger.BlockTrace, error)
}

// fileSource reads a JSON block trace, or an array of them, from disk.
type fileSource struct {
	path    string
	maxSize datasize.ByteSize
}

func (s *fileSource) Load(ctx context.Context) ([]*logger.BlockTrace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := os.Stat(s.path)
	if err != nil {
		return nil, err
	}
	if s.maxSize > 0 && datasize.ByteSize(fi.Size()) > s.maxSize {
		return nil, fmt.Errorf("%w: %s is %s, limit %s", ErrTraceTooLarge, s.path, datasize.ByteSize(fi.Size()).HR(), s.maxSize.HR())
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	traces, err := logger.DecodeBlockTraces(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return traces, nil
}
