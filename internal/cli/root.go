// Package cli wires the devsetup commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	profileFlag string
	dryRun      bool
	autoApprove bool
	outputJSON  bool
	noProgress  bool
	verbose     bool
)

// Execute runs the root cobra command. An interrupt cancels the run after
// the current blocking step returns.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devsetup",
		Short:         "Provision a Debian development workstation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to the configuration file")
	flags.StringVar(&profileFlag, "profile", "", "Component profile (minimal, developer, full)")
	flags.BoolVarP(&dryRun, "dry-run", "n", false, "Report what would change without changing anything")
	flags.BoolVarP(&autoApprove, "yes", "y", false, "Do not ask for confirmation")
	flags.BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable the interactive progress display")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Echo informational log lines to stderr")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newRollbackCmd())
	cmd.AddCommand(newSelfTestCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}
