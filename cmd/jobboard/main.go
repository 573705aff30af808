// Command jobboard reads the on-chain job board and builds unsigned
// transaction descriptions. `jobboard serve` runs the HTTP gateway.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

const usage = `usage: jobboard [-config file] [-env file] <command> [flags]

commands:
  jobs          list jobs (-status all|active|open, -employer addr)
  job           show one job: job <id>
  applications  list applications (-job id | -candidate addr)
  profile       show a profile (-user addr | -employer addr)
  caps          list an employer's capabilities: caps <addr>
  stats         show board statistics
  build-tx      build an unsigned call: build-tx <kind> -input file [-owner addr]
                kinds: user-profile employer-profile post-job apply hire close
  serve         run the HTTP gateway
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "jobboard: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("jobboard", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config (default config/jobboard.yaml when present)")
	envFile := fs.String("env", "", "Optional .env file loaded before the environment is read")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("load env (%s): %w", *envFile, err)
		}
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "jobs":
		return a.jobs(ctx, rest, stdout)
	case "job":
		return a.job(ctx, rest, stdout)
	case "applications":
		return a.applications(ctx, rest, stdout)
	case "profile":
		return a.profile(ctx, rest, stdout)
	case "caps":
		return a.caps(ctx, rest, stdout)
	case "stats":
		return a.stats(ctx, stdout)
	case "build-tx":
		return a.buildTx(ctx, rest, stdout)
	case "serve":
		return a.serve(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
