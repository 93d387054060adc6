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

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
)

func TestTryGetLogLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want log.Lvl
		err  bool
	}{
		{in: "info", want: log.LvlInfo},
		{in: "dbug", want: log.LvlDebug},
		{in: "trace", want: log.LvlTrace},
		{in: "5", want: log.LvlTrace},
		{in: "loud", err: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			lvl, err := tryGetLogLevel(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, lvl)
		})
	}
}

func TestSeparatedLogging(t *testing.T) {
	handler := log.Root().GetHandler()
	defer log.Root().SetHandler(handler)

	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	initSeparatedLogging(&console, "busmapping", dir, log.LvlWarn, log.LvlDebug, false, true)

	log.Debug("[busmapping] hidden from console", "n", 1)
	log.Warn("[busmapping] shown everywhere", "n", 2)

	require.NotContains(t, console.String(), "hidden from console")
	require.Contains(t, console.String(), "shown everywhere")

	data, err := os.ReadFile(filepath.Join(dir, "busmapping.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"[busmapping] hidden from console"`)
	require.Contains(t, string(data), "shown everywhere")
}
