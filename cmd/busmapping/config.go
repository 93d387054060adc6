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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Merlot21/zkevm-circuits/busmapping/circuitinput"
)

var ErrUnknownConfigFormat = errors.New("unknown config file format")

// Config is the content of a --config file.
type Config struct {
	Builder circuitinput.Config `toml:"builder" yaml:"builder"`
	// Workers bounds the number of blocks built at once, 0 means one per CPU.
	Workers      int               `toml:"workers" yaml:"workers"`
	MaxTraceSize datasize.ByteSize `toml:"max_trace_size" yaml:"max_trace_size"`
}

func defaultConfig() Config {
	return Config{
		Builder:      circuitinput.DefaultConfig(),
		MaxTraceSize: 512 * datasize.MB,
	}
}

// loadConfig reads a TOML or YAML file, picked by extension, over the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnknownConfigFormat, ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
