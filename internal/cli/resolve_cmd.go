package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
)

func newResolveCmd(open SourceOpener) *cobra.Command {
	var userID, tenantID string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the effective access of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user is required")
			}
			src, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = release() }()

			snap, err := src.Snapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			view := access.Resolve(userID, snap.ForTenant(tenantID))
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), view)
			}
			return printView(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "limit group access to this tenant")
	return cmd
}

func printView(w io.Writer, v access.AccessView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "USER\t%s\n", v.UserID)
	fmt.Fprintf(tw, "GROUPS\t%s\n", joinOrDash(v.MemberGroupIDs))
	fmt.Fprintf(tw, "ROLES\t%s\n", joinOrDash(v.EffectiveRoleIDs))
	fmt.Fprintf(tw, "PERMISSIONS\t%s\n", joinOrDash(v.PermissionNames()))
	apps := make([]string, 0, len(v.AccessibleApplications))
	for _, a := range v.AccessibleApplications {
		entry := a.ApplicationID
		if roles := v.ApplicationRoles[a.ApplicationID]; len(roles) > 0 {
			entry += "(" + strings.Join(roles, ",") + ")"
		}
		apps = append(apps, entry)
	}
	fmt.Fprintf(tw, "APPLICATIONS\t%s\n", joinOrDash(apps))
	return tw.Flush()
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
