package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/webinterp/bridge"
	"github.com/caffeineduck/webinterp/internal/logging"
	"github.com/caffeineduck/webinterp/interpreter"
)

const (
	formatJSON = "json"
	formatText = "text"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Interpret a program locally",
		Long: `Run a program through the same bridge the HTTP service uses and print the
response.

Source can be provided via:
  - File argument: webinterp run script.star
  - Inline flag:   webinterp run -c 'print(1+1)'
  - Stdin:         echo 'print(1+1)' | webinterp run

With --format json (the default) the output is the JSON document served by
GET /interpret. With --format text, Standard lines go to stdout and Error
records to stderr; Meta lines are shown with --meta.

The command exits non-zero when the program reports errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringP("code", "c", "", "Program source to run")
	cmd.Flags().StringP("format", "f", formatJSON, "Output format: json, text")
	cmd.Flags().Bool("meta", false, "Print Meta lines in text format")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	showMeta, _ := cmd.Flags().GetBool("meta")
	if format != formatJSON && format != formatText {
		return fmt.Errorf("unknown format %q: use json or text", format)
	}

	source, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	if source == "" {
		return cmd.Help()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})

	be, err := newBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	res, err := be.bridge(cfg).Run(cmd.Context(), source)
	if err != nil {
		return err
	}

	if format == formatJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Response); err != nil {
			return err
		}
	} else {
		printText(cmd.OutOrStdout(), cmd.ErrOrStderr(), res.Response, showMeta)
	}

	if len(res.Response.Error) > 0 {
		return errProgramFailed
	}
	return nil
}

// readSource takes the program from -c, a file argument or piped stdin, in
// that order. An interactive stdin yields an empty source.
func readSource(cmd *cobra.Command, args []string) (string, error) {
	if code, _ := cmd.Flags().GetString("code"); code != "" {
		return code, nil
	}
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func printText(stdout, stderr io.Writer, resp bridge.Response, showMeta bool) {
	for _, line := range resp.Standard {
		fmt.Fprintln(stdout, line)
	}
	for _, rec := range resp.Error {
		fmt.Fprintln(stderr, formatRecord(rec))
	}
	if showMeta {
		for _, line := range resp.Meta {
			fmt.Fprintf(stderr, "# %s\n", line)
		}
	}
}

func formatRecord(rec interpreter.ErrorRecord) string {
	s := "error"
	if rec.Phase != "" {
		s = fmt.Sprintf("%s error", rec.Phase)
	}
	if rec.Line > 0 {
		s += fmt.Sprintf(" at line %d", rec.Line)
		if rec.Column > 0 {
			s += fmt.Sprintf(", column %d", rec.Column)
		}
	}
	s += ": " + rec.Message
	if rec.Trace != "" {
		s += "\n" + rec.Trace
	}
	return s
}
