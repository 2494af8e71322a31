package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ndomog/internal/model"
)

// pendingView shows the payload as embedded JSON rather than base64.
type pendingView struct {
	ID        int64            `json:"id"`
	Type      model.ActionType `json:"type"`
	EntityID  string           `json:"entity_id"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewPendingCommand lists the outbox in delivery order.
func NewPendingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List changes waiting to be synced, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			actions, err := a.outbox.ListPending(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list pending actions", err)
			}
			views := make([]pendingView, len(actions))
			for i, p := range actions {
				views[i] = pendingView{ID: p.ID, Type: p.Type, EntityID: p.EntityID, Payload: p.Payload, CreatedAt: p.CreatedAt}
			}
			return a.out.Render(views, func(w io.Writer) error {
				if len(actions) == 0 {
					_, err := fmt.Fprintln(w, "Nothing to sync.")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tENTITY\tCREATED")
				for _, p := range actions {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Type, p.EntityID, p.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}

// NewLogCommand shows the newest activity log entries.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent activity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Activity.RecentLimit
			}
			entries, err := a.activity.Recent(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read activity log", err)
			}
			return a.out.Render(entries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tUSER\tACTION\tENTITY\tDETAILS")
				for _, e := range entries {
					details := ""
					if e.Details != nil {
						details = *e.Details
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
						e.Timestamp.Format(time.RFC3339), e.Username, e.Action, e.EntityType, e.EntityName, details)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of entries (default from config)")
	return cmd
}
