package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewCategoryCommand creates the category command group.
func NewCategoryCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage item categories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := a.svc.AddCategory(cmd.Context(), args[0])
			if err != nil {
				return gestureError("failed to add category", err)
			}
			return a.out.Render(cat, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Added category %s (%s)\n", cat.Name, cat.ID)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			cats, err := a.cache.ListCategories(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list categories", err)
			}
			return a.out.Render(cats, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME")
				for _, c := range cats {
					fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
				}
				return tw.Flush()
			})
		},
	})
	return cmd
}
