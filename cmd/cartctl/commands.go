package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

func newCartCmd(env *cliEnv) *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart of --email",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sync, _, cleanup, err := env.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return renderCart(cmd.OutOrStdout(), sync.Snapshot())
		},
	}

	add := &cobra.Command{
		Use:   "add PRODUCT_ID",
		Short: "Add a product or bump its quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, products, cleanup, err := env.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			product, err := products.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := sync.AddLine(cmd.Context(), product.ID, product.Snapshot()); err != nil {
				return err
			}
			return renderCart(cmd.OutOrStdout(), sync.Snapshot())
		},
	}

	qty := &cobra.Command{
		Use:     "qty LINE_ID DELTA",
		Short:   "Change line quantity by DELTA (never below 1)",
		Example: "  cartctl cart qty --email buyer@example.com -- LINE_ID -1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("delta must be an integer: %w", err)
			}

			sync, _, cleanup, err := env.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sync.UpdateQuantity(cmd.Context(), args[0], delta); err != nil {
				return err
			}
			return renderCart(cmd.OutOrStdout(), sync.Snapshot())
		},
	}

	rm := &cobra.Command{
		Use:     "rm LINE_ID",
		Aliases: []string{"remove"},
		Short:   "Remove a line from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sync, _, cleanup, err := env.session(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := sync.RemoveLine(cmd.Context(), args[0]); err != nil {
				return err
			}
			return renderCart(cmd.OutOrStdout(), sync.Snapshot())
		},
	}

	cartCmd.AddCommand(show, add, qty, rm)
	return cartCmd
}

func newProductsCmd(env *cliEnv) *cobra.Command {
	productsCmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
	}

	var filter catalog.Filter
	list := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally filtered by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, err := env.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer stores.Close()

			products, err := catalog.NewService(stores.Catalog).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return renderProducts(cmd.OutOrStdout(), products)
		},
	}
	list.Flags().StringVar(&filter.Category, "category", "", "category to show")
	list.Flags().StringVar(&filter.Subcategory, "subcategory", "", "subcategory to show (All = any)")

	productsCmd.AddCommand(list)
	return productsCmd
}

func renderCart(out io.Writer, snap cart.Snapshot) error {
	if len(snap.Lines) == 0 {
		_, err := fmt.Fprintf(out, "cart of %s is empty\n", snap.Identity.Key())
		return err
	}

	t := table.New().
		Headers("LINE", "PRODUCT", "NAME", "QTY", "PRICE", "TOTAL").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})
	for _, line := range snap.Lines {
		t.Row(line.ID, line.ProductRef, line.Name, strconv.Itoa(line.Quantity),
			line.Price.StringFixed(2), line.LineTotal().StringFixed(2))
	}

	_, err := fmt.Fprintf(out, "%s\nitems: %d  subtotal: %s\n", t.Render(), snap.Totals.Count, snap.Totals.Price.StringFixed(2))
	return err
}

func renderProducts(out io.Writer, products []domain.Product) error {
	if len(products) == 0 {
		_, err := fmt.Fprintln(out, "no products")
		return err
	}

	t := table.New().Headers("ID", "NAME", "CATEGORY", "SUBCATEGORY", "PRICE")
	for _, p := range products {
		t.Row(p.ID, p.Name, p.Category, p.Subcategory, p.Price.StringFixed(2))
	}
	_, err := fmt.Fprintln(out, t.Render())
	return err
}
