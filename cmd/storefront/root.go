package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"storefront-go/internal/api"
	"storefront-go/internal/app"
	"storefront-go/internal/config"
	"storefront-go/internal/session"
)

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	jsonOut    bool

	app *app.Application
	out io.Writer
}

func rootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Storefront API client",
		Long: `storefront talks to a storefront commerce API: browse the catalog,
manage the cart, check out and review orders.

The login session is kept in a local SQLite file (or Redis) and access
tokens are refreshed automatically when they expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file path (JSON or YAML)")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(
		versionCmd(),
		loginCmd(c),
		logoutCmd(c),
		registerCmd(c),
		whoamiCmd(c),
		statusCmd(c),
		addressesCmd(c),
		categoriesCmd(c),
		productsCmd(c),
		productCmd(c),
		searchCmd(c),
		cartCmd(c),
		checkoutCmd(c),
		ordersCmd(c),
		orderCmd(c),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// no application needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			banner := figure.NewFigure(appName, "cybermedium", true)
			fmt.Fprintln(out, banner.String())
			fmt.Fprintf(out, "%s version %s\n", appName, Version)
		},
	}
}

// open loads the configuration and starts the application.
func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.LoadFromFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	application, err := app.New(cmd.Context(), cfg, app.WithLogger(app.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())))
	if err != nil {
		return err
	}
	if err := application.Start(cmd.Context()); err != nil {
		application.Stop(cmd.Context())
		return err
	}
	c.app = application
	c.out = cmd.OutOrStdout()
	return nil
}

// close stops the application and writes the metrics file when configured.
func (c *cli) close(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	var errs []error
	if path := c.app.Config.MetricsFile; path != "" {
		if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := c.app.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	c.app = nil
	return errors.Join(errs...)
}

// describe turns the errors a user can act on into short messages.
func describe(err error) string {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, app.ErrLoginRequired):
		return "not logged in: run 'storefront login'"
	case errors.Is(err, api.ErrSessionExpired):
		return "session expired: run 'storefront login'"
	case errors.Is(err, session.ErrNotInitialized):
		return "session storage is not ready"
	case errors.As(err, &apiErr) && len(apiErr.FieldErrors()) > 0:
		return fmt.Sprintf("%v %v", err, apiErr.FieldErrors())
	}
	return err.Error()
}

// render prints v as JSON with --json, otherwise through text.
func (c *cli) render(v any, text func(w io.Writer)) error {
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}
