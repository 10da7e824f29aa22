package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/webinterp/bridge"
)

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Print the base64url payload for a program",
		Long: `Encode a program as the URL-safe, unpadded base64 payload accepted by
GET /interpret?code=...

With --url the full request URL for the given server is printed instead:

  webinterp encode -c 'print("hi")' --url http://localhost:8080`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEncode,
	}
	cmd.Flags().StringP("code", "c", "", "Program source to encode")
	cmd.Flags().String("url", "", "Server base URL; print the full /interpret URL")
	return cmd
}

func runEncode(cmd *cobra.Command, args []string) error {
	source, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	if source == "" {
		return cmd.Help()
	}

	payload := bridge.Encode(source)

	base, _ := cmd.Flags().GetString("url")
	if base == "" {
		fmt.Fprintln(cmd.OutOrStdout(), payload)
		return nil
	}

	u, err := url.Parse(strings.TrimRight(base, "/") + "/interpret")
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	u.RawQuery = url.Values{"code": {payload}}.Encode()
	fmt.Fprintln(cmd.OutOrStdout(), u.String())
	return nil
}
