// Package logging declares the CLI flags that control logging and builds
// the process-wide zap logger from their resolved values. It is
// the banking-pipeline equivalent of internal/debug's log setup in the
// teacher repo, rebuilt on zap instead of go-ethereum's log package: the
// flag names and the terminal/JSON/file-handler decision tree are kept, the
// handler construction underneath them is not.
package logging

import (
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const category = "LOGGING"

// levelNames maps the LOG_LEVEL environment variable's accepted spellings
// onto the 0-4 verbosity scale.
var levelNames = map[string]int{
	"silent":  0,
	"error":   1,
	"warn":    2,
	"warning": 2,
	"info":    3,
	"debug":   4,
}

// DefaultVerbosity resolves the --verbosity flag's default value: the
// LOG_LEVEL environment variable, if it names a known level, falling back
// to "info" (SPEC_FULL.md §6).
func DefaultVerbosity() int {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if v, ok := levelNames[name]; ok {
		return v
	}
	return 3
}

var (
	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug (default from $LOG_LEVEL, else info)",
		Value:    DefaultVerbosity(),
		Category: category,
	}
	LogJSONFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format logs as JSON instead of a human-readable console encoding",
		Category: category,
	}
	LogFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to this file (rotated via lumberjack) instead of stderr",
		Category: category,
	}
)

// Flags are the CLI flags this package contributes to the banking-exercise
// command; cmd/banking-exercise appends them to its app's flag list.
var Flags = []cli.Flag{VerbosityFlag, LogJSONFlag, LogFileFlag}

// verbosityToLevel maps the teacher's 0-4 verbosity scale onto zap levels.
// 0 (silent) has no direct zapcore.Level; it is handled by Setup directly.
func verbosityToLevel(v int) zapcore.Level {
	switch {
	case v <= 1:
		return zapcore.ErrorLevel
	case v == 2:
		return zapcore.WarnLevel
	case v == 3:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Setup builds the process logger from the already-resolved settings
// (internal/config.Settings, which folds together defaults, an optional
// config file, BANKEX_-prefixed env vars, and explicit flags) rather than
// reading flags straight off the CLI context, so that a config file or env
// var can actually affect logging. It should be called as early as
// possible, matching the teacher's debug.Setup convention.
func Setup(verbosity int, logJSON bool, logFile string) (*zap.Logger, error) {
	if verbosity <= 0 {
		return zap.NewNop(), nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	var encoder zapcore.Encoder
	if logJSON {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer
	if logFile != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
		// A rotated file is never a terminal, so fall back to the plain
		// (non-colored) level encoder regardless of what was chosen above.
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if !logJSON {
			encoder = zapcore.NewConsoleEncoder(encCfg)
		}
	} else if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		sink = zapcore.AddSync(colorable.NewColorableStderr())
	} else {
		sink = zapcore.AddSync(os.Stderr)
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if !logJSON {
			encoder = zapcore.NewConsoleEncoder(encCfg)
		}
	}

	level := verbosityToLevel(verbosity)
	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core), nil
}

// MustNop is a convenience for code paths (tests, early flag parsing
// failures) that need a logger before Setup can run.
func MustNop() *zap.Logger {
	return zap.NewNop()
}
