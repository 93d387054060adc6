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
	"github.com/ledgerwatch/log/v3"
)

// VerifyConfig selects which parts of the derived machine state are compared
// against the traced state of the following step.
type VerifyConfig struct {
	Stack   bool `toml:"stack" yaml:"stack"`
	Memory  bool `toml:"memory" yaml:"memory"`
	Storage bool `toml:"storage" yaml:"storage"`
	Refund  bool `toml:"refund" yaml:"refund"`
}

func (v VerifyConfig) Any() bool { return v.Stack || v.Memory || v.Storage || v.Refund }

// VerifyAll enables every cross-check.
var VerifyAll = VerifyConfig{Stack: true, Memory: true, Storage: true, Refund: true}

const DefaultJumpDestCacheSize = 1024

// Config holds the builder settings.
type Config struct {
	// ChainID overrides the chain id of the trace when non-zero.
	ChainID uint64 `toml:"chain_id" yaml:"chain_id"`
	// MaxRws bounds the number of operations of a block, 0 disables the limit.
	MaxRws uint64       `toml:"max_rws" yaml:"max_rws"`
	Verify VerifyConfig `toml:"verify" yaml:"verify"`
	// JumpDestCacheSize is the number of analysed code hashes kept in memory.
	JumpDestCacheSize int `toml:"jumpdest_cache_size" yaml:"jumpdest_cache_size"`

	Logger log.Logger `toml:"-" yaml:"-"`
}

// DefaultConfig returns a config with every verification enabled.
func DefaultConfig() Config {
	return Config{
		Verify:            VerifyAll,
		JumpDestCacheSize: DefaultJumpDestCacheSize,
		Logger:            log.Root(),
	}
}

func (c *Config) logger() log.Logger {
	if c.Logger == nil {
		return log.Root()
	}
	return c.Logger
}
