package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront-go/internal/users"
)

// readPassword returns flagValue or, when empty, the first line of in.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func loginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			user, err := c.app.SignIn(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			return c.render(user, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s (%s)\n", user.Username, user.Email)
				fmt.Fprintf(w, "Cart items:\t%d\n", c.app.Counter.Value())
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
}

func registerCmd(c *cli) *cobra.Command {
	var req users.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, req.Password)
			if err != nil {
				return err
			}
			req.Password = pw
			req.Password2 = pw

			if _, err := c.app.Users.Register(cmd.Context(), req); err != nil {
				return err
			}
			user, err := c.app.SignIn(cmd.Context(), req.Email, pw)
			if err != nil {
				return err
			}
			return c.render(user, func(w io.Writer) {
				fmt.Fprintf(w, "Registered and logged in as %s\n", user.Username)
			})
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (read from stdin when omitted)")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func whoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user with cart and address summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overview, err := c.app.Overview(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(overview, func(w io.Writer) {
				u := overview.User
				fmt.Fprintf(w, "User:\t%s (id %d)\n", u.Username, u.ID)
				fmt.Fprintf(w, "Email:\t%s\n", u.Email)
				fmt.Fprintf(w, "Name:\t%s %s\n", u.FirstName, u.LastName)
				fmt.Fprintf(w, "Cart items:\t%d\n", c.app.Counter.Value())
				fmt.Fprintf(w, "Addresses:\t%d\n", len(overview.Addresses))
			})
		},
	}
}

func addressesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "addresses",
		Short: "List saved addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.WithSession(cmd.Context(), func(ctx context.Context) error {
				list, err := c.app.Users.Addresses(ctx)
				if err != nil {
					return err
				}
				return c.render(list, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tTYPE\tNAME\tADDRESS\tDEFAULT")
					for _, a := range list {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s, %s %s, %s\t%t\n",
							a.ID, a.AddressType, a.FullName, a.AddressLine1, a.City, a.PostalCode, a.Country, a.IsDefault)
					}
				})
			})
		},
	}
}

func statusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session and storage state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.app.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(st, func(w io.Writer) {
				fmt.Fprintf(w, "Session:\t%s\n", st.State)
				if st.User != nil {
					fmt.Fprintf(w, "User:\t%s (%s)\n", st.User.Username, st.User.Email)
				}
				if st.AccessExpiry != nil {
					fmt.Fprintf(w, "Token expires:\t%s\n", st.AccessExpiry.Local().Format(time.RFC3339))
				}
				fmt.Fprintf(w, "Storage:\t%s (encrypted: %t)\n", st.StorageDriver, st.Encrypted)
				if st.Schema != nil {
					fmt.Fprintf(w, "Schema version:\t%d (dirty: %t)\n", st.Schema.Version, st.Schema.Dirty)
				}
				fmt.Fprintf(w, "Workers:\t%d (completed %d, failed %d, queued %d)\n",
					st.Pool.Workers, st.Pool.Completed, st.Pool.Failed, st.Pool.QueueLength)
			})
		},
	}
}
