package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/refresh"
)

func newWatchCmd(open SourceOpener) *cobra.Command {
	var (
		userID   string
		tenantID string
		interval time.Duration
		count    int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-resolve a user's access on an interval",
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

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var (
				seen     int
				printErr error
			)
			out := cmd.OutOrStdout()
			p := &refresh.Poller{
				Source:   src,
				Interval: interval,
				UserID:   userID,
				Tenant:   tenantID,
				Name:     "cli",
				OnView: func(v access.AccessView) {
					if getOutputFormat(cmd) == "json" {
						printErr = printJSON(out, v)
					} else {
						_, printErr = fmt.Fprintf(out, "%s roles=%s permissions=%s\n",
							time.Now().UTC().Format(time.RFC3339), joinOrDash(v.EffectiveRoleIDs), joinOrDash(v.PermissionNames()))
					}
					seen++
					if printErr != nil || (count > 0 && seen >= count) {
						cancel()
					}
				},
				OnError: func(err error) {
					fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err)
				},
			}

			err = p.Run(ctx)
			if printErr != nil {
				return printErr
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "limit group access to this tenant")
	cmd.Flags().DurationVar(&interval, "interval", refresh.DefaultInterval, "refresh interval")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many views (0 runs until interrupted)")
	return cmd
}
