package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show inventory totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.svc.Stats(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to compute stats", err)
			}
			return a.out.Render(st, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "items:\t%d (%d units)\n", st.Items, st.Units)
				fmt.Fprintf(tw, "categories:\t%d\n", st.Categories)
				fmt.Fprintf(tw, "buying value:\t%.2f\n", st.BuyingValue)
				fmt.Fprintf(tw, "selling value:\t%.2f\n", st.SellingValue)
				fmt.Fprintf(tw, "potential profit:\t%.2f\n", st.PotentialProfit())
				fmt.Fprintf(tw, "low stock:\t%d\n", st.LowStock)
				fmt.Fprintf(tw, "out of stock:\t%d\n", st.OutOfStock)
				fmt.Fprintf(tw, "pending sync:\t%d\n", st.PendingCount)
				return tw.Flush()
			})
		},
	}
}
