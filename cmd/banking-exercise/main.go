package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/jnicholls/banking-exercise/core/pipeline"
	"github.com/jnicholls/banking-exercise/internal/config"
	"github.com/jnicholls/banking-exercise/internal/logging"
)

var (
	numWorkersFlag = &cli.IntFlag{
		Name:    "num-workers",
		Aliases: []string{"w"},
		Usage:   "Number of account-shard worker goroutines",
		Value:   4,
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to an optional YAML/TOML/JSON config file",
	}
	metricsOutFlag = &cli.StringFlag{
		Name:  "metrics.out",
		Usage: "Dump a Prometheus text-format metrics snapshot to this file on exit",
	}
)

func main() {
	app := &cli.App{
		Name:      "banking-exercise",
		Usage:     "Replay a CSV ledger of deposits, withdrawals, disputes, resolves, and chargebacks into per-account balances",
		ArgsUsage: "<input.csv>",
		Flags:     append([]cli.Flag{numWorkersFlag, configFlag, metricsOutFlag}, logging.Flags...),
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bindPFlags mirrors the urfave/cli flags this command reads into settings
// onto a pflag.FlagSet for viper.BindPFlags, marking a flag Changed only
// when the user actually typed it (ctx.IsSet) — the same idiom the
// teacher's internal/debug/flags.go uses (ctx.IsSet before trusting a
// flag's value over an env var or default). Without this, every flag would
// always report a value (its default when untyped), which would make
// config.Load's flag precedence always win over a config file or env var.
func bindPFlags(ctx *cli.Context) *pflag.FlagSet {
	fs := pflag.NewFlagSet("banking-exercise", pflag.ContinueOnError)
	fs.Int("num-workers", ctx.Int(numWorkersFlag.Name), numWorkersFlag.Usage)
	fs.Int("verbosity", ctx.Int(logging.VerbosityFlag.Name), logging.VerbosityFlag.Usage)
	fs.Bool("log.json", ctx.Bool(logging.LogJSONFlag.Name), logging.LogJSONFlag.Usage)
	fs.String("log.file", ctx.String(logging.LogFileFlag.Name), logging.LogFileFlag.Usage)
	fs.String("metrics.out", ctx.String(metricsOutFlag.Name), metricsOutFlag.Usage)

	for _, name := range []string{"num-workers", "verbosity", "log.json", "log.file", "metrics.out"} {
		if ctx.IsSet(name) {
			_ = fs.Set(name, fs.Lookup(name).Value.String())
		}
	}
	return fs
}

func run(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return cli.Exit("exactly one input file argument is required", 2)
	}
	inputPath := ctx.Args().First()

	fs := bindPFlags(ctx)
	settings, err := config.Load(ctx.String(configFlag.Name), inputPath, fs)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.Setup(settings.Verbosity, settings.LogJSON, settings.LogFile)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	in, err := os.Open(settings.InputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	src, err := pipeline.NewCSVSource(in)
	if err != nil {
		return fmt.Errorf("reading input header: %w", err)
	}

	sink := pipeline.NewCSVSink(os.Stdout)
	metrics := pipeline.NewMetrics()

	p := pipeline.New(pipeline.Config{
		Source:     src,
		Sink:       sink,
		NumWorkers: settings.NumWorkers,
		Log:        log,
		Metrics:    metrics,
	})

	runErr := p.Run(context.Background())

	if settings.MetricsOut != "" {
		if dumpErr := dumpMetrics(settings.MetricsOut, metrics); dumpErr != nil {
			log.Warn("failed to dump metrics snapshot", zap.Error(dumpErr))
		}
	}

	if runErr != nil {
		return fmt.Errorf("pipeline run: %w", runErr)
	}
	return nil
}
