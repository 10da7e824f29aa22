package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/caffeineduck/webinterp/internal/config"
	"github.com/caffeineduck/webinterp/interpreter/wasm"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errProgramFailed signals a program that reported errors. The errors have
// already been printed.
var errProgramFailed = errors.New("program reported errors")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "webinterp",
		Short: "Interpret programs delivered as base64url payloads",
		Long: `webinterp - run programs through a parse/execute interpreter bridge.

Programs arrive as URL-safe base64 on GET /interpret?code=... and come back as
three streams: Standard (printed output), Error (structured diagnostics) and
Meta (interpreter notes). The same bridge is available locally through the
run and repl commands.

Backends: starlark (embedded) or wasm (a WASI interpreter module).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to YAML config file")
	pf.StringSlice("env-file", nil, "Load variables from .env file (repeatable, default .env)")
	pf.String("log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringP("backend", "b", "", "Interpreter backend: starlark, wasm")
	pf.String("wasm-module", "", "Path to the WASM interpreter module")
	pf.Duration("timeout", 0, "Execution timeout (0 keeps the configured value)")
	pf.Uint64("max-steps", 0, "Starlark execution step limit (0 keeps the configured value)")
	pf.String("memory", "", "WASM memory limit: 16mb, 64mb, 256mb")
	pf.Bool("no-kv", false, "Disable the per-request key-value store")
	pf.Bool("no-cache", false, "Disable the WASM compilation cache")

	root.AddCommand(
		newRunCmd(),
		newEncodeCmd(),
		newReplCmd(),
		newServeCmd(),
	)
	return root
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errProgramFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads .env files, the config file and the environment, then
// applies command line overrides and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	envFiles, _ := flags.GetStringSlice("env-file")
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	path, _ := flags.GetString("config")
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(flags, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("backend") {
		cfg.Interpreter.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("wasm-module") {
		cfg.Interpreter.Wasm.ModulePath, _ = flags.GetString("wasm-module")
	}
	if flags.Changed("timeout") {
		cfg.Interpreter.ExecutionTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-steps") {
		cfg.Interpreter.MaxSteps, _ = flags.GetUint64("max-steps")
	}
	if flags.Changed("memory") {
		s, _ := flags.GetString("memory")
		pages, err := parseMemoryLimit(s)
		if err != nil {
			return err
		}
		cfg.Interpreter.Wasm.MemoryLimitPages = pages
	}
	if noKV, _ := flags.GetBool("no-kv"); noKV {
		cfg.Interpreter.Host.KV = false
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Interpreter.Wasm.DiskCache = false
	}
	return nil
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(s) {
	case "16mb":
		return wasm.MemoryLimit16MB, nil
	case "64mb":
		return wasm.MemoryLimit64MB, nil
	case "256mb":
		return wasm.MemoryLimit256MB, nil
	default:
		return 0, fmt.Errorf("invalid memory limit %q (expected 16mb, 64mb or 256mb)", s)
	}
}
