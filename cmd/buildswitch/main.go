package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gcubed-code/buildswitch/internal/config"
	"github.com/gcubed-code/buildswitch/internal/console"
	"github.com/gcubed-code/buildswitch/internal/doctor"
	"github.com/gcubed-code/buildswitch/internal/envs"
	"github.com/gcubed-code/buildswitch/internal/journal"
	"github.com/gcubed-code/buildswitch/internal/log"
	"github.com/gcubed-code/buildswitch/internal/notify"
	"github.com/gcubed-code/buildswitch/internal/provision"
	"github.com/gcubed-code/buildswitch/internal/runner"
	"github.com/gcubed-code/buildswitch/internal/switcher"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "switch":
		os.Exit(runSwitch(args))
	case "doctor":
		os.Exit(runDoctor(args))
	case "history":
		os.Exit(runHistory(args))
	case "version":
		fmt.Printf("buildswitch version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	default:
		if strings.HasPrefix(cmd, "-") {
			fmt.Fprintf(os.Stderr, "Unknown flag: %s\n\n", cmd)
			printUsage()
			os.Exit(1)
		}
		// Bare build tag: the original single-argument contract.
		os.Exit(runSwitch(os.Args[1:]))
	}
}

func printUsage() {
	fmt.Print(`buildswitch - activate or provision the G-Cubed virtual environment for a build tag

Usage:
  buildswitch <build-tag>            Activate (provisioning if needed) and notify VS Code
  buildswitch switch <build-tag>     Same, explicit form
  buildswitch doctor                 Preflight checks (tools, config, socket)
  buildswitch history                Show recent provisioning attempts
  buildswitch version                Show version information
  buildswitch help                   Show this help message

Flags (switch, doctor, history):
  --config PATH       Config file (default: discovered; env vars always win)
  --log-level LEVEL   DEBUG, INFO, WARN or ERROR
`)
}

func loadConfig(configPath, logLevel string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log.Setup(cfg.LogLevel)
	return cfg, nil
}

func runSwitch(args []string) int {
	fs := flag.NewFlagSet("switch", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	logLevel := fs.String("log-level", "", "override log level")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: buildswitch <build-tag>")
		return 1
	}
	buildTag := fs.Arg(0)

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Warning(err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := runner.New(cfg.CommandTimeout)

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		if jnl, err = journal.Open(ctx, cfg.JournalPath); err != nil {
			log.Warn("provisioning journal unavailable", "error", err)
			jnl = nil
		} else {
			defer jnl.Close()
		}
	}

	sw := switcher.New(cfg,
		envs.NewVerifier(cfg, run),
		provision.New(cfg, run, jnl),
		notify.New(cfg))

	ok, err := sw.ActivateOrProvision(ctx, buildTag)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Warning(err.Error()))
		return 1
	}
	if !ok {
		fmt.Fprintln(os.Stderr, console.Warning(
			"Failed to activate virtual environment required for this simulation.",
			"Please contact G-Cubed support."))
		return 1
	}

	// A disabled run succeeds without touching any environment, so there is
	// no interpreter path worth announcing.
	if config.IsFeatureDisabled(config.FeatureAutoBuildSwitcher) {
		return 0
	}

	fmt.Println()
	fmt.Println(console.Success("Success. Virtual environment activated."))
	fmt.Printf("  Python interpreter: %s\n", sw.InterpreterPath(buildTag))
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	logLevel := fs.String("log-level", "", "override log level")
	asJSON := fs.Bool("json", false, "machine-readable output")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Warning(err.Error()))
		return 1
	}

	result := doctor.New(cfg).Validate(context.Background())

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		for _, issue := range result.Errors {
			fmt.Printf("ERROR   [%s] %s\n", issue.Category, issue.Message)
		}
		for _, issue := range result.Warnings {
			fmt.Printf("WARNING [%s] %s\n", issue.Category, issue.Message)
		}
		if result.Valid {
			fmt.Println("ok")
		}
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	logLevel := fs.String("log-level", "", "override log level")
	limit := fs.Int("n", 20, "number of attempts to show")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.Warning(err.Error()))
		return 1
	}
	if cfg.JournalPath == "" {
		fmt.Fprintln(os.Stderr, "provisioning journal is disabled (journal_path is empty)")
		return 1
	}

	ctx := context.Background()
	jnl, err := journal.Open(ctx, cfg.JournalPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open journal: %v\n", err)
		return 1
	}
	defer jnl.Close()

	attempts, err := jnl.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read journal: %v\n", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tBUILD TAG\tSTATUS\tDURATION\tERROR")
	for _, a := range attempts {
		duration := ""
		if !a.CompletedAt.IsZero() {
			duration = a.CompletedAt.Sub(a.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.StartedAt.Format("2006-01-02 15:04:05"), a.BuildTag, a.Status, duration, a.Error)
	}
	_ = w.Flush()
	return 0
}
