package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"storefront-go/internal/cart"
	"storefront-go/internal/orders"
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

func printCart(w io.Writer, ct *cart.Cart) {
	fmt.Fprintln(w, "ITEM\tPRODUCT\tVARIANT\tQTY")
	for _, item := range ct.Items {
		variant := "-"
		if item.Variant != nil {
			variant = item.Variant.SKU
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", item.ID, item.Product.Name, variant, item.Quantity)
	}
	fmt.Fprintf(w, "Total:\t%s\t\t%d\n", ct.Total, cart.Count(*ct))
}

func cartCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				ct, err := c.app.Orders.Cart(ctx)
				if err != nil {
					return err
				}
				c.app.Counter.Set(cart.Count(*ct))
				return c.render(ct, func(w io.Writer) { printCart(w, ct) })
			})
		},
	}
	cmd.AddCommand(cartAddCmd(c), cartUpdateCmd(c), cartRemoveCmd(c))
	return cmd
}

func cartAddCmd(c *cli) *cobra.Command {
	var (
		variant  int64
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			req := orders.AddItemRequest{ProductID: productID, Quantity: quantity}
			if variant > 0 {
				req.VariantID = &variant
			}
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				item, err := c.app.Orders.AddItem(ctx, req)
				if err != nil {
					return err
				}
				return c.render(item, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s (item %d, quantity %d)\n", item.Product.Name, item.ID, item.Quantity)
					fmt.Fprintf(w, "Cart items:\t%d\n", c.app.Counter.Value())
				})
			})
		},
	}
	cmd.Flags().Int64Var(&variant, "variant", 0, "Variant id")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "Quantity")
	return cmd
}

func cartUpdateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Change the quantity of a cart item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				item, err := c.app.Orders.UpdateItem(ctx, itemID, quantity)
				if err != nil {
					return err
				}
				return c.render(item, func(w io.Writer) {
					fmt.Fprintf(w, "Item %d now has quantity %d\n", item.ID, item.Quantity)
					fmt.Fprintf(w, "Cart items:\t%d\n", c.app.Counter.Value())
				})
			})
		},
	}
}

func cartRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				if err := c.app.Orders.RemoveItem(ctx, itemID); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Removed item %d, %d items left\n", itemID, c.app.Counter.Value())
				return nil
			})
		},
	}
}

func checkoutCmd(c *cli) *cobra.Command {
	var req orders.CreateOrderRequest
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.BillingAddressID == 0 {
				req.BillingAddressID = req.ShippingAddressID
			}
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				order, err := c.app.Orders.CreateOrder(ctx, req)
				if err != nil {
					return err
				}
				return c.render(order, func(w io.Writer) { printOrder(w, order) })
			})
		},
	}
	cmd.Flags().Int64Var(&req.ShippingAddressID, "shipping", 0, "Shipping address id")
	cmd.Flags().Int64Var(&req.BillingAddressID, "billing", 0, "Billing address id (defaults to the shipping address)")
	cmd.Flags().StringVar(&req.PaymentMethod, "payment", orders.PaymentCOD, "Payment method (credit_card, debit_card, upi, wallet, cod)")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Order notes")
	_ = cmd.MarkFlagRequired("shipping")
	return cmd
}

func printOrder(w io.Writer, o *orders.Order) {
	fmt.Fprintf(w, "Order:\t%s\n", o.OrderNumber)
	fmt.Fprintf(w, "Status:\t%s (payment %s)\n", o.Status, o.PaymentStatus)
	for _, item := range o.Items {
		fmt.Fprintf(w, "  %s\t%s\tx%d\t%s\n", item.ProductName, item.SKU, item.Quantity, item.TotalPrice)
	}
	fmt.Fprintf(w, "Subtotal:\t%s\n", o.Subtotal)
	fmt.Fprintf(w, "Shipping:\t%s\n", o.ShippingCost)
	fmt.Fprintf(w, "Tax:\t%s\n", o.Tax)
	fmt.Fprintf(w, "Total:\t%s\n", o.Total)
}

func ordersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				list, err := c.app.Orders.Orders(ctx)
				if err != nil {
					return err
				}
				return c.render(list, func(w io.Writer) {
					fmt.Fprintln(w, "NUMBER\tSTATUS\tTOTAL\tCREATED")
					for _, o := range list {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.OrderNumber, o.Status, o.Total, o.CreatedAt)
					}
				})
			})
		},
	}
}

func orderCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "order <number>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				order, err := c.app.Orders.Order(ctx, args[0])
				if err != nil {
					return err
				}
				return c.render(order, func(w io.Writer) { printOrder(w, order) })
			})
		},
	}
}
