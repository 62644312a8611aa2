package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/appstate"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with e-mail and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				email = c.app.RememberedEmail()
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				email = prompt(cmd.OutOrStdout(), in, "E-mail: ")
			}
			password := prompt(cmd.OutOrStdout(), in, "Password: ")
			if err := c.app.SignIn(ctx, email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", email)
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password := prompt(cmd.OutOrStdout(), bufio.NewReader(cmd.InOrStdin()), "Password: ")
			if err := c.app.Register(ctx, email, password, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\n", email)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			if c.app.Snapshot().DemoMode {
				c.app.ExitDemo()
			}
			return c.app.SignOut(ctx)
		})
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Send a password reset e-mail",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				email = c.app.RememberedEmail()
			}
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			if err := c.app.ResetPassword(ctx, email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset link is on its way.\n", email)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session and a summary of the synced data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client) error {
			printStatus(cmd.OutOrStdout(), c.app.Snapshot())
			return nil
		})
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Try the app without an account; nothing leaves this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd, true)
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd, false)
	},
}

func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := openClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func runShell(cmd *cobra.Command, demo bool) error {
	return withClient(cmd, func(ctx context.Context, c *client) error {
		if demo {
			c.app.EnterDemo(ctx)
		}
		return newShell(ctx, c, cmd.OutOrStdout()).run(cmd.InOrStdin())
	})
}

func prompt(out io.Writer, in *bufio.Reader, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func printStatus(w io.Writer, st appstate.State) {
	switch {
	case st.DemoMode:
		fmt.Fprintln(w, "Demo mode (local only)")
	case st.Session != nil:
		fmt.Fprintf(w, "Signed in as %s (%s)\n", st.Session.Email, st.Session.UID)
	default:
		fmt.Fprintln(w, "Signed out")
	}
	fmt.Fprintf(w, "Screen: %s\n", st.Route)
	fmt.Fprintf(w, "Members: %d  Favorites: %d  History: %d  Shopping: %d  Pantry: %d\n",
		len(st.Members), len(st.Favorites), len(st.History), len(st.Shopping), len(st.Pantry))
	if st.NeedsProfileCompletion {
		fmt.Fprintln(w, "Profile incomplete: run complete-profile <tax-id> in the shell.")
	}
}
