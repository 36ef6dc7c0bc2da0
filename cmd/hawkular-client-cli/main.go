package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// errVersion stops the run after the version was printed.
var errVersion = errors.New("version requested")

// run parses args, executes the selected actions and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	opts := &options{}
	cmd := newRootCommand(opts, time.Now(), func(cmd *cobra.Command, opts *options) error {
		if opts.version {
			fmt.Fprintf(cmd.OutOrStdout(), "hawkular-client-cli v%s\n", version)
			return errVersion
		}
		logger := newLogger(opts.verbose, stderr)
		defer logger.Sync() //nolint:errcheck

		d := &dispatcher{opts: opts, stdout: cmd.OutOrStdout(), getenv: getenv, logger: logger}
		return d.execute(cmd.Context())
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usageErr *usageError
	switch {
	case errors.Is(err, errVersion):
	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "Error: %v\n\n", usageErr)
		fmt.Fprint(stderr, cmd.UsageString())
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return 1
}

// newLogger writes human readable logs to w. Debug output is shown only when
// verbose is set.
func newLogger(verbose bool, w io.Writer) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}
