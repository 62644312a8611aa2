// Command fridgechef is the terminal client: it signs in against the
// backend, keeps the family's data in sync and offers a small shell over it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/logging"
)

var (
	cfg    Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fridgechef",
	Short: "FridgeChef - family recipes from what is in the fridge",
	Long: `FridgeChef keeps the family's members, favorites, cooking history,
shopping list and pantry in sync with the backend.

Run without arguments to start the interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = loadConfig(cmd); err != nil {
			return err
		}
		logger = logging.New(os.Stderr, cfg.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd, false)
	},
}

func init() {
	addConfigFlags(rootCmd)

	loginCmd.Flags().String("email", "", "account e-mail (default: the last one used)")
	registerCmd.Flags().String("email", "", "account e-mail")
	registerCmd.Flags().String("name", "", "display name")
	resetPasswordCmd.Flags().String("email", "", "account e-mail")
	_ = registerCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, resetPasswordCmd, statusCmd, demoCmd, shellCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
