// Package cli implements portalctl, an operator tool for inspecting access
// views and tenant guard decisions.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/app"
	"github.com/milpatel11/sk-ui-sub001/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// SourceOpener opens the snapshot source and returns its release func.
type SourceOpener func(ctx context.Context) (access.Source, func() error, error)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(os.Stdout, openConfiguredSource)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out io.Writer, open SourceOpener) *cobra.Command {
	var output string

	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Inspect portal access views and tenant decisions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if output != "json" && output != "text" {
				return fmt.Errorf("unsupported output %q (want json or text)", output)
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(
		newResolveCmd(open),
		newDecideCmd(),
		newWatchCmd(open),
		newHealthCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func openConfiguredSource(context.Context) (access.Source, func() error, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateSource(); err != nil {
		return nil, nil, err
	}
	deps, err := app.OpenSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	return deps.Source, deps.Close, nil
}

func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("output")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": version, "commit": commit})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "portalctl version %s (commit: %s)\n", version, commit)
			return err
		},
	}
}
