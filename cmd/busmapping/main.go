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
	"fmt"
	"os"

	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/Merlot21/zkevm-circuits/turbo/logging"
)

var (
	TraceFlag = cli.StringFlag{
		Name:     "trace",
		Usage:    "JSON file holding a block trace or an array of block traces",
		Required: true,
	}
	ConfigFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML or YAML config file",
	}
	WorkersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "Blocks built at once, 0 for one per CPU",
	}
	MaxRwsFlag = cli.Uint64Flag{
		Name:  "max-rws",
		Usage: "Maximum operations per block, 0 for no limit",
	}
	MaxTraceSizeFlag = cli.StringFlag{
		Name:  "max-trace-size",
		Usage: "Largest trace file accepted, e.g. 256MB",
	}
	VerifyStackFlag = cli.BoolFlag{
		Name:  "verify.stack",
		Usage: "Cross-check the stack against the trace after every step",
	}
	VerifyMemoryFlag = cli.BoolFlag{
		Name:  "verify.memory",
		Usage: "Cross-check the memory against the trace after every step",
	}
	VerifyStorageFlag = cli.BoolFlag{
		Name:  "verify.storage",
		Usage: "Cross-check storage values reported by the trace",
	}
	VerifyRefundFlag = cli.BoolFlag{
		Name:  "verify.refund",
		Usage: "Cross-check the refund counter against the trace",
	}
	BlockFlag = cli.IntFlag{
		Name:  "block",
		Usage: "Index of the block in the trace file",
	}
	TxFlag = cli.IntFlag{
		Name:  "tx",
		Usage: "Index of the transaction in the block",
	}
	StepFlag = cli.IntFlag{
		Name:  "step",
		Usage: "Index of the step in the transaction, 0 is BeginTx",
	}
)

var builderFlags = []cli.Flag{
	&TraceFlag,
	&ConfigFlag,
	&MaxRwsFlag,
	&MaxTraceSizeFlag,
	&VerifyStackFlag,
	&VerifyMemoryFlag,
	&VerifyStorageFlag,
	&VerifyRefundFlag,
}

var replayCommand = cli.Command{
	Action: func(ctx *cli.Context) error {
		cfg, src, err := setup(ctx)
		if err != nil {
			return err
		}
		return replay(ctx.Context, src, cfg, ctx.App.Writer, log.Root())
	},
	Name:  "replay",
	Usage: "Build the rw operations of every block in a trace file",
	Flags: append([]cli.Flag{&WorkersFlag}, builderFlags...),
}

var inspectCommand = cli.Command{
	Action: func(ctx *cli.Context) error {
		cfg, src, err := setup(ctx)
		if err != nil {
			return err
		}
		return inspect(ctx.Context, src, cfg, ctx.Int(BlockFlag.Name), ctx.Int(TxFlag.Name), ctx.Int(StepFlag.Name), ctx.App.Writer, log.Root())
	},
	Name:  "inspect",
	Usage: "Dump one execution step with its rw operations",
	Flags: append([]cli.Flag{&BlockFlag, &TxFlag, &StepFlag}, builderFlags...),
}

// setup loads the config file and applies the flags set on the command
// line over it.
func setup(ctx *cli.Context) (Config, TraceSource, error) {
	cfg, err := loadConfig(ctx.String(ConfigFlag.Name))
	if err != nil {
		return cfg, nil, err
	}
	if ctx.IsSet(WorkersFlag.Name) {
		cfg.Workers = ctx.Int(WorkersFlag.Name)
	}
	if ctx.IsSet(MaxRwsFlag.Name) {
		cfg.Builder.MaxRws = ctx.Uint64(MaxRwsFlag.Name)
	}
	if ctx.IsSet(MaxTraceSizeFlag.Name) {
		if err := cfg.MaxTraceSize.UnmarshalText([]byte(ctx.String(MaxTraceSizeFlag.Name))); err != nil {
			return cfg, nil, fmt.Errorf("--%s: %w", MaxTraceSizeFlag.Name, err)
		}
	}
	for name, field := range map[string]*bool{
		VerifyStackFlag.Name:   &cfg.Builder.Verify.Stack,
		VerifyMemoryFlag.Name:  &cfg.Builder.Verify.Memory,
		VerifyStorageFlag.Name: &cfg.Builder.Verify.Storage,
		VerifyRefundFlag.Name:  &cfg.Builder.Verify.Refund,
	} {
		if ctx.IsSet(name) {
			*field = ctx.Bool(name)
		}
	}
	return cfg, &fileSource{path: ctx.String(TraceFlag.Name), maxSize: cfg.MaxTraceSize}, nil
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "busmapping"
	app.Usage = "Replay geth struct-log traces into zkEVM rw operations"
	app.UsageText = app.Name + ` [command] [flags]`
	app.Commands = []*cli.Command{
		&replayCommand,
		&inspectCommand,
	}
	app.Flags = logging.Flags
	app.Before = func(ctx *cli.Context) error {
		logging.SetupLoggerCtx("busmapping", ctx)
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
