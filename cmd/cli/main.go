package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"ojcore/internal/cli/command"
	"ojcore/internal/cli/config"
	httpclient "ojcore/internal/cli/http"
	"ojcore/internal/cli/repl"
	"ojcore/internal/cli/state"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	statePath := flag.String("state", "", "Override session state path")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	sessionState, err := state.Load(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load session state failed: %v\n", err)
		os.Exit(1)
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	session := repl.New(client, command.Registry(), &sessionState, repl.Options{
		StatePath:     cfg.StatePath,
		PrettyJSON:    cfg.PrettyJSON != nil && *cfg.PrettyJSON,
		WatchInterval: cfg.WatchInterval,
		WatchTimeout:  cfg.WatchTimeout,
	}, os.Stdin, os.Stdout)

	// One-shot mode: remaining arguments form a single command.
	if args := flag.Args(); len(args) > 0 {
		if err := session.Exec(context.Background(), strings.Join(quoteArgs(args), " ")); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	session.Run(context.Background())
}

func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		out[i] = arg
	}
	return out
}
