package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/internal/logging"
)

const (
	primaryPrompt      = ">>> "
	continuationPrompt = "... "
)

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive prompt; each submission is a separate program",
		Long: `Start an interactive prompt backed by the interpretation bridge.

Every submission runs as an independent program in a fresh interpreter, as
it would over HTTP: nothing carries over between submissions.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
		Args: cobra.NoArgs,
		RunE: runRepl,
	}
	cmd.Flags().String("history", "", "History file path (default: ~/.webinterp_history)")
	cmd.Flags().Bool("meta", false, "Print Meta lines after each submission")
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	showMeta, _ := cmd.Flags().GetBool("meta")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".webinterp_history")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.New(logging.Config{Level: cfg.Log.Level, Pretty: true, Output: cmd.ErrOrStderr()})

	be, err := newBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer be.Close()
	b := be.bridge(cfg)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            primaryPrompt,
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stderr(), "webinterp %s REPL (type 'exit' to quit, Ctrl+D to exit)\n", b.Backend())

	var buf submission
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				buf.reset()
				rl.SetPrompt(primaryPrompt)
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(rl.Stdout())
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		source, complete := buf.add(line)
		if !complete {
			rl.SetPrompt(continuationPrompt)
			continue
		}
		rl.SetPrompt(primaryPrompt)

		switch strings.TrimSpace(source) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		evaluate(cmd.Context(), b, source, rl.Stdout(), rl.Stderr(), showMeta)
	}
}

// submission accumulates lines ending in a backslash into one program.
type submission struct {
	lines []string
}

// add appends line and reports whether the submission is complete.
func (s *submission) add(line string) (string, bool) {
	if rest, ok := strings.CutSuffix(line, `\`); ok {
		s.lines = append(s.lines, rest)
		return "", false
	}
	s.lines = append(s.lines, line)
	source := strings.Join(s.lines, "\n")
	s.reset()
	return source, true
}

func (s *submission) reset() {
	s.lines = s.lines[:0]
}

func evaluate(ctx context.Context, b *bridge.Bridge, source string, stdout, stderr io.Writer, showMeta bool) {
	res, err := b.Run(ctx, source)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return
	}
	printText(stdout, stderr, res.Response, showMeta)
}
