// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// transient-run launches a command as a transient service unit under
// the local service manager, like systemd-run but built on the
// transient library.
//
// Usage:
//
//	transient-run [flags] -- /usr/bin/command args...
//
// With --wait the command's exit status becomes the process exit
// status. With --pty the caller's terminal is bridged to the unit so
// interactive programs work.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/transient/lib/config"
	"github.com/bureau-foundation/transient/lib/version"
	"github.com/bureau-foundation/transient/run"
)

func main() {
	if err := runMain(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runMain() error {
	var (
		unitName     string
		serviceType  string
		user         string
		nice         int
		runtimeMax   uint64
		workDir      string
		slice        string
		setenv       []string
		machine      string
		busAddress   string
		system       bool
		session      bool
		wait         bool
		pty          bool
		collect      bool
		remain       bool
		pollInterval time.Duration
		configPath   string
		quiet        bool
	)

	flagSet := pflag.NewFlagSet("transient-run", pflag.ContinueOnError)
	flagSet.StringVar(&unitName, "unit", "", "unit name (default: generated)")
	flagSet.StringVar(&serviceType, "service-type", "", "unit Type, e.g. oneshot or notify")
	flagSet.StringVar(&user, "uid", "", "run the command as this user")
	flagSet.IntVar(&nice, "nice", 0, "scheduling priority")
	flagSet.Uint64Var(&runtimeMax, "runtime-max-sec", 0, "seconds before the manager terminates the unit")
	flagSet.StringVar(&workDir, "working-directory", "", "working directory for the command")
	flagSet.StringVar(&slice, "slice", "", "resource-control slice for the unit")
	flagSet.StringArrayVarP(&setenv, "setenv", "E", nil, "environment entry NAME=VALUE (repeatable)")
	flagSet.StringVarP(&machine, "machine", "M", "", "run in this local container or VM")
	flagSet.StringVar(&busAddress, "bus-address", "", "explicit D-Bus socket address")
	flagSet.BoolVar(&system, "system", false, "talk to the system service manager")
	flagSet.BoolVar(&session, "user", false, "talk to the per-user service manager")
	flagSet.BoolVar(&wait, "wait", false, "block until the command finishes and propagate its exit status")
	flagSet.BoolVarP(&pty, "pty", "t", false, "bridge the caller's terminal to the unit")
	flagSet.BoolVarP(&collect, "collect", "G", false, "unload the unit after it ran, even when failed")
	flagSet.BoolVar(&remain, "remain-after-exit", false, "keep the unit loaded after the command finishes")
	flagSet.DurationVar(&pollInterval, "poll-interval", 0, "completion poll interval (default: 500ms on the user bus)")
	flagSet.StringVar(&configPath, "config", "", "defaults file (also: "+config.EnvVar+")")
	flagSet.BoolVarP(&quiet, "quiet", "q", false, "suppress the unit announcement")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("transient-run")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cmd := flagSet.Args()
	if len(cmd) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("no command given")
	}
	if system && session {
		return fmt.Errorf("--system and --user are mutually exclusive")
	}

	defaults, err := loadDefaults(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(quiet)

	opts := run.Options{
		Cmd:              cmd,
		Name:             unitName,
		ServiceType:      firstNonEmpty(serviceType, defaults.ServiceType),
		User:             user,
		RuntimeMaxSec:    runtimeMax,
		WorkingDirectory: workDir,
		Slice:            firstNonEmpty(slice, defaults.Slice),
		Machine:          machine,
		Address:          busAddress,
		Wait:             wait,
		RaiseOnFail:      wait,
		RemainAfterExit:  remain,
		Collect:          collect,
		WaitPollInterval: pollInterval,
		Logger:           logger,
	}
	if opts.WaitPollInterval == 0 {
		opts.WaitPollInterval = defaults.PollInterval.Std()
	}
	if flagSet.Changed("nice") {
		opts.Nice = &nice
	}
	switch {
	case system:
		opts.UserMode = boolPtr(false)
	case session:
		opts.UserMode = boolPtr(true)
	default:
		opts.UserMode = defaults.UserMode
	}

	env := make(map[string]string, len(defaults.Environment)+len(setenv))
	for k, v := range defaults.Environment {
		env[k] = v
	}
	for _, entry := range setenv {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("invalid --setenv entry %q, expected NAME=VALUE", entry)
		}
		env[name] = value
	}
	opts.Env = env

	if pty {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			logger.Warn("stdin is not a terminal; pty bridging will be one-way")
		}
		opts.Pty = true
		opts.Stdin = os.Stdin
		opts.Stdout = os.Stdout
		opts.Stderr = os.Stderr
	}

	unit, err := run.Run(context.Background(), opts)
	if err != nil {
		return err
	}
	if !quiet {
		logger.Info("running as unit", "unit", unit.Name(), "state", unit.ActiveState())
	}
	return nil
}

// newLogger mirrors the daemon log conventions: human-readable text on
// a terminal, JSON when redirected.
func newLogger(quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

func loadDefaults(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolPtr(b bool) *bool { return &b }

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Print(`transient-run - run a command as a transient service unit

USAGE
    transient-run [flags] -- COMMAND [ARGS...]

FLAGS
`)
	fmt.Print(flagSet.FlagUsages())
}
