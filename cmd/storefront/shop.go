package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"storefront-go/internal/catalog"
)

func categoriesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := c.app.Catalog.Categories(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(list, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tSLUG\tNAME\tPARENT")
				for _, cat := range list {
					parent := "-"
					if cat.Parent != nil {
						parent = fmt.Sprint(*cat.Parent)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cat.ID, cat.Slug, cat.Name, parent)
				}
			})
		},
	}
}

func printProducts(w io.Writer, products []catalog.Product) {
	fmt.Fprintln(w, "ID\tSLUG\tNAME\tPRICE\tBRAND")
	for _, p := range products {
		brand := "-"
		if p.Brand != nil {
			brand = p.Brand.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Slug, p.Name, p.BasePrice, brand)
	}
}

func productsCmd(c *cli) *cobra.Command {
	var q catalog.ProductQuery
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := c.app.Catalog.Products(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.render(page, func(w io.Writer) {
				printProducts(w, page.Results)
				if page.HasNext() {
					next := q.Page + 1
					if q.Page == 0 {
						next = 2
					}
					fmt.Fprintf(w, "\n%d products, more with --page %d\n", page.Count, next)
				}
			})
		},
	}
	cmd.Flags().Int64Var(&q.Category, "category", 0, "Category id")
	cmd.Flags().Int64Var(&q.Brand, "brand", 0, "Brand id")
	cmd.Flags().StringVar(&q.Ordering, "ordering", "", "Ordering (name, base_price, created_at; prefix - for descending)")
	cmd.Flags().IntVar(&q.Page, "page", 0, "Page number")
	return cmd
}

func productCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "product <slug>...",
		Short: "Show one or more products with their variants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := c.app.Catalog.ProductsBySlug(cmd.Context(), args...)
			if err != nil {
				return err
			}
			return c.render(products, func(w io.Writer) {
				for i, p := range products {
					if i > 0 {
						fmt.Fprintln(w)
					}
					fmt.Fprintf(w, "%s (%s)\t%s\n", p.Name, p.Slug, p.BasePrice)
					if p.Description != "" {
						fmt.Fprintf(w, "%s\n", p.Description)
					}
					for _, v := range p.Variants {
						fmt.Fprintf(w, "  variant %d\t%s\t%s\tstock %d\n", v.ID, v.SKU, v.EffectivePrice, v.StockQuantity)
					}
				}
			})
		},
	}
}

func searchCmd(c *cli) *cobra.Command {
	var (
		q       catalog.SearchQuery
		inStock bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Query = args[0]
			if cmd.Flags().Changed("in-stock") {
				q.InStock = &inStock
			}
			result, err := c.app.Catalog.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.render(result, func(w io.Writer) {
				printProducts(w, result.Results)
				if result.Fallback {
					fmt.Fprintln(w, "\n(results from basic search)")
				}
			})
		},
	}
	cmd.Flags().StringVar(&q.Category, "category", "", "Category slug")
	cmd.Flags().StringVar(&q.Brand, "brand", "", "Brand slug")
	cmd.Flags().Float64Var(&q.MinPrice, "min-price", 0, "Minimum price")
	cmd.Flags().Float64Var(&q.MaxPrice, "max-price", 0, "Maximum price")
	cmd.Flags().BoolVar(&inStock, "in-stock", false, "Only products in stock")
	cmd.Flags().StringVar(&q.Sort, "sort", "", "Sort (_score, price_asc, price_desc, rating, newest)")
	cmd.Flags().IntVar(&q.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 0, "Results per page")
	return cmd
}
