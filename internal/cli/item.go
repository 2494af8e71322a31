package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ndomog/internal/inventory"
	"github.com/roach88/ndomog/internal/model"
)

// NewItemCommand creates the item command group.
func NewItemCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Add, inspect and change inventory items",
	}
	cmd.AddCommand(newItemAddCommand(opts))
	cmd.AddCommand(newItemListCommand(opts))
	cmd.AddCommand(newItemShowCommand(opts))
	cmd.AddCommand(newItemQtyCommand(opts))
	cmd.AddCommand(newItemAdjustCommand(opts))
	cmd.AddCommand(newItemDeleteCommand(opts))
	cmd.AddCommand(newItemLowStockCommand(opts))
	return cmd
}

type itemAddOptions struct {
	name      string
	category  string
	quantity  int
	buy       float64
	sell      float64
	threshold int
	details   string
}

func newItemAddCommand(opts *RootOptions) *cobra.Command {
	o := &itemAddOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item",
		Example: `  ndomog item add --name "Claw hammer" --category Tools --qty 4 --buy 6.5 --sell 12
  ndomog item add --name Nails --category Hardware --threshold 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			in := inventory.NewItem{
				Name:         o.name,
				Category:     o.category,
				Details:      model.StringPtr(o.details),
				BuyingPrice:  o.buy,
				SellingPrice: o.sell,
				Quantity:     o.quantity,
			}
			if cmd.Flags().Changed("threshold") {
				in.LowStockThreshold = &o.threshold
			}

			item, err := a.svc.AddItem(cmd.Context(), in)
			if err != nil {
				return gestureError("failed to add item", err)
			}
			return a.out.Render(item, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Added %s (%s) qty=%d\n", item.Name, item.ID, item.Quantity)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&o.name, "name", "", "item name (required)")
	cmd.Flags().StringVar(&o.category, "category", "", "category name (required)")
	cmd.Flags().IntVar(&o.quantity, "qty", 0, "initial quantity")
	cmd.Flags().Float64Var(&o.buy, "buy", 0, "buying price")
	cmd.Flags().Float64Var(&o.sell, "sell", 0, "selling price")
	cmd.Flags().IntVar(&o.threshold, "threshold", model.DefaultLowStockThreshold, "low-stock threshold")
	cmd.Flags().StringVar(&o.details, "details", "", "free-form notes")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newItemListCommand(opts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			list := a.cache.ListActiveItems
			if all {
				list = a.cache.ListAllItems
			}
			items, err := list(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list items", err)
			}
			return a.out.Render(items, func(w io.Writer) error {
				return writeItems(w, items)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include deleted items")
	return cmd
}

func newItemShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			item, err := a.cache.GetItem(cmd.Context(), args[0])
			if err != nil {
				return gestureError("failed to show item", err)
			}
			return a.out.Render(item, func(w io.Writer) error {
				return writeItem(w, item)
			})
		},
	}
}

func newItemQtyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "qty <id> <quantity>",
		Short: "Set an item's quantity (negative values clamp to zero)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "quantity must be an integer", err)
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			item, err := a.svc.UpdateQuantity(cmd.Context(), args[0], quantity)
			if err != nil {
				return gestureError("failed to set quantity", err)
			}
			return a.out.Render(item, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s qty=%d\n", item.Name, item.Quantity)
				return err
			})
		},
	}
}

func newItemAdjustCommand(opts *RootOptions) *cobra.Command {
	var by int
	cmd := &cobra.Command{
		Use:     "adjust <id> --by <delta>",
		Short:   "Add to or remove from an item's quantity",
		Example: "  ndomog item adjust 0190f3c2-... --by=-2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if by == 0 {
				return NewExitError(ExitCommandError, "--by must be non-zero")
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			item, err := a.svc.AdjustQuantityBy(cmd.Context(), args[0], by)
			if err != nil {
				return gestureError("failed to adjust quantity", err)
			}
			return a.out.Render(item, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s qty=%d\n", item.Name, item.Quantity)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&by, "by", 0, "quantity delta, may be negative")
	return cmd
}

func newItemDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item (kept as a tombstone)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.DeleteItem(cmd.Context(), args[0]); err != nil {
				return gestureError("failed to delete item", err)
			}
			return a.out.Render(map[string]string{"deleted": args[0]}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted %s\n", args[0])
				return err
			})
		},
	}
}

func newItemLowStockCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "low-stock",
		Short: "List items at or below their low-stock threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			items, err := a.svc.LowStock(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list low-stock items", err)
			}
			return a.out.Render(items, func(w io.Writer) error {
				if len(items) == 0 {
					_, err := fmt.Fprintln(w, "Nothing to restock.")
					return err
				}
				return writeItems(w, items)
			})
		},
	}
}

// gestureError maps service failures to exit codes: bad input is a command
// error, everything else (missing entity, storage) a failure.
func gestureError(message string, err error) error {
	if errors.Is(err, inventory.ErrInvalid) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func writeItems(w io.Writer, items []model.Item) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tQTY\tBUY\tSELL\tSTATUS")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%s\n",
			item.ID, item.Name, item.Category, item.Quantity,
			item.BuyingPrice, item.SellingPrice, itemStatus(item))
	}
	return tw.Flush()
}

func writeItem(w io.Writer, item model.Item) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", item.ID)
	fmt.Fprintf(tw, "name:\t%s\n", item.Name)
	fmt.Fprintf(tw, "category:\t%s\n", item.Category)
	fmt.Fprintf(tw, "quantity:\t%d (low at %d)\n", item.Quantity, item.LowStockThreshold)
	fmt.Fprintf(tw, "prices:\tbuy %.2f, sell %.2f\n", item.BuyingPrice, item.SellingPrice)
	if item.Details != nil {
		fmt.Fprintf(tw, "details:\t%s\n", *item.Details)
	}
	fmt.Fprintf(tw, "status:\t%s\n", itemStatus(item))
	return tw.Flush()
}

func itemStatus(item model.Item) string {
	switch {
	case item.IsDeleted:
		return "deleted"
	case item.Quantity == 0:
		return "out"
	case item.LowStock():
		return "low"
	}
	return "ok"
}
