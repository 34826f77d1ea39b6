package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/milpatel11/sk-ui-sub001/internal/config"
	"github.com/milpatel11/sk-ui-sub001/internal/tenancy"
)

type decideOutput struct {
	tenancy.Decision
	Target  tenancy.Target `json:"target"`
	Allowed bool           `json:"allowed"`
}

func newDecideCmd() *cobra.Command {
	var (
		path      string
		locked    string
		anonymous bool
		lobby     []string
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate the tenant guard for a navigation without side effects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(path) == "" {
				return errors.New("--path is required")
			}
			routes := tenancy.LobbyRoutes(lobby)
			if len(routes) == 0 {
				if cfg, err := config.Read(); err == nil {
					routes = cfg.LobbyRoutes
				}
			}
			guard := tenancy.NewGuard(tenancy.WithLobby(routes))
			d := guard.Evaluate(!anonymous, strings.TrimSpace(locked), path)
			out := decideOutput{
				Decision: d,
				Target:   tenancy.ParseTarget(path, guard.Lobby()),
				Allowed:  d.Allows(),
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			line := string(d.Kind)
			if d.TenantID != "" {
				line += " tenant=" + d.TenantID
			}
			if d.Location != "" {
				line += " location=" + d.Location
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), line)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "requested path")
	cmd.Flags().StringVar(&locked, "locked", "", "tenant the session is locked to")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "evaluate as an unauthenticated session")
	cmd.Flags().StringSliceVar(&lobby, "lobby", nil, "lobby routes (defaults to configuration)")
	return cmd
}
