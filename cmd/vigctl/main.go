// vigctl is the operator CLI for the vigilance tracker: it seeds users and
// inspector mappings, validates configuration and prints SLA buckets.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/pkg/config"
	"github.com/noah-isme/vigilance-tracker-api/pkg/logger"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string, out io.Writer) error
}

var commands = []command{
	{name: "seed", summary: "upsert users and inspector mappings from a YAML file", run: runSeed},
	{name: "check-config", summary: "load and validate configuration", run: runCheckConfig},
	{name: "sla", summary: "print the SLA bucket of a petition", run: runSLA},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out)
		return nil
	}
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync() //nolint:errcheck
		return cmd.run(ctx, cfg, logger.Component(log, "vigctl"), args[1:], out)
	}
	printUsage(out)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: vigctl <command> [flags]")
	fmt.Fprintln(out)
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-14s %s\n", cmd.name, cmd.summary)
	}
}

// parseFlags parses args and turns --help into a clean exit.
func parseFlags(fs *pflag.FlagSet, args []string, out io.Writer) (bool, error) {
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func runCheckConfig(_ context.Context, cfg *config.Config, _ *zap.Logger, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("check-config", pflag.ContinueOnError)
	if ok, err := parseFlags(fs, args, out); !ok {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(out, "config ok: env=%s port=%d prefix=%s db=%s@%s:%d/%s\n",
		cfg.Env, cfg.Port, cfg.APIPrefix, cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	fmt.Fprintf(out, "workflow: serial_program=%s auto_route=%t close_after_rejection=%t\n",
		cfg.Workflow.SerialProgram, cfg.Workflow.AutoRoute, cfg.Workflow.CloseAfterRejection)
	fmt.Fprintf(out, "reports=%t outbox=%t metrics=%t dashboard=%t\n",
		cfg.Reports.Enabled, cfg.Outbox.Enabled, cfg.Metrics.Enabled, cfg.Dashboard.Enabled)
	return nil
}
