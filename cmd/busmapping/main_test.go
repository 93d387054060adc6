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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Merlot21/zkevm-circuits/busmapping/mock"
	"github.com/Merlot21/zkevm-circuits/eth/tracers/logger"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func callerTraces(t *testing.T) []*logger.BlockTrace {
	t.Helper()
	code := mock.NewBytecode().Op(vm.CALLER).Op(vm.STOP).Bytes()
	trace, err := mock.NewTestContext().
		AddAccount(mock.Addr[1], 1_000_000_000_000, nil).
		AddAccount(mock.Addr[0], 0, code).
		Call(mock.Addr[1], mock.Addr[0], nil).
		BlockTrace()
	require.NoError(t, err)
	return []*logger.BlockTrace{trace}
}

func TestLoadConfig(t *testing.T) {
	for _, tc := range []struct {
		name, content string
	}{
		{"cfg.toml", `
workers = 3
max_trace_size = "1MB"

[builder]
max_rws = 4096

[builder.verify]
stack = true
memory = false
`},
		{"cfg.yaml", `
workers: 3
max_trace_size: 1MB
builder:
  max_rws: 4096
  verify:
    stack: true
    memory: false
`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := loadConfig(writeFile(t, tc.name, tc.content))
			require.NoError(t, err)
			require.Equal(t, 3, cfg.Workers)
			require.Equal(t, datasize.MB, cfg.MaxTraceSize)
			require.Equal(t, uint64(4096), cfg.Builder.MaxRws)
			require.True(t, cfg.Builder.Verify.Stack)
			require.False(t, cfg.Builder.Verify.Memory)
			require.NotNil(t, cfg.Builder.Logger)
		})
	}

	_, err := loadConfig(writeFile(t, "cfg.ini", "workers=1"))
	require.ErrorIs(t, err, ErrUnknownConfigFormat)

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig().MaxTraceSize, cfg.MaxTraceSize)
}

func TestFileSource(t *testing.T) {
	blob := writeFile(t, "big.json", "["+strings.Repeat(" ", 2048)+"]")
	_, err := (&fileSource{path: blob, maxSize: datasize.KB}).Load(context.Background())
	require.ErrorIs(t, err, ErrTraceTooLarge)

	traces, err := (&fileSource{path: blob, maxSize: datasize.MB}).Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, traces)

	_, err = (&fileSource{path: filepath.Join(t.TempDir(), "missing.json")}).Load(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReplay(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockTraceSource(ctrl)
	src.EXPECT().Load(gomock.Any()).Return(callerTraces(t), nil)

	var out bytes.Buffer
	require.NoError(t, replay(context.Background(), src, defaultConfig(), &out, log.Root()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "block"))
	require.True(t, strings.HasPrefix(lines[1], "51966 "), lines[1])
}

func TestReplaySourceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockTraceSource(ctrl)
	boom := errors.New("boom")
	src.EXPECT().Load(gomock.Any()).Return(nil, boom)

	err := replay(context.Background(), src, defaultConfig(), &bytes.Buffer{}, log.Root())
	require.ErrorIs(t, err, boom)
}

func TestInspect(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockTraceSource(ctrl)
	src.EXPECT().Load(gomock.Any()).Return(callerTraces(t), nil).Times(2)

	var out bytes.Buffer
	require.NoError(t, inspect(context.Background(), src, defaultConfig(), 0, 0, 1, &out, log.Root()))
	require.Contains(t, out.String(), "CALLER")
	require.Contains(t, out.String(), "CallerAddress")

	err := inspect(context.Background(), src, defaultConfig(), 0, 0, 99, &bytes.Buffer{}, log.Root())
	require.ErrorContains(t, err, "out of range")
}

func TestAppOverridesConfig(t *testing.T) {
	cfgPath := writeFile(t, "cfg.yaml", "builder:\n  max_rws: 10\n")
	app := newApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"busmapping", "replay", "--config", cfgPath, "--max-rws", "5", "--trace", filepath.Join(t.TempDir(), "none.json")})
	require.ErrorIs(t, err, os.ErrNotExist)
}
