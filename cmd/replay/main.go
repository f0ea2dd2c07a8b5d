// Command replay generates synthetic telemetry and replays it against a
// running pitwall service, verifying every answer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/pitwall/internal/replay"
	"github.com/okian/pitwall/pkg/logger"
)

const (
	defaultRecords    = 10000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &replay.Config{}
	var (
		logLevel   string
		runTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:           "replay",
		Short:         "Replay synthetic tyre telemetry against a pitwall service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if err := logger.SetLevelString(logLevel); err != nil {
				return err
			}
			if cfg.Records < 0 || cfg.Workers < 1 {
				return fmt.Errorf("records must be >= 0 and workers >= 1")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			if _, err := replay.Run(ctx, cfg); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "replay failed:", err)
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.Records, "records", defaultRecords, "number of records to generate and submit")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "number of concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "upper bound for the whole run")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "generator seed")
	f.Float64Var(&cfg.BlankRate, "blank-rate", 0.2, "share of records with sensor readings dropped")
	f.BoolVar(&cfg.EdgeCases, "edge-cases", true, "also replay the named edge cases")
	f.StringVar(&cfg.OutputFile, "output", "", "write the generated records to this JSON file")
	f.BoolVar(&cfg.Verbose, "verbose", false, "log every failed record")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
