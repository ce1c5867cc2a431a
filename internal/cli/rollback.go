package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Show how to undo the recorded changes by hand",
		Args:  cobra.NoArgs,
		RunE:  runRollback,
	}
}

func runRollback(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := readOnlySession(cmd)
	if err != nil {
		return err
	}
	sess.cfg.DryRun = true

	orch, err := newReadOnlyOrchestrator(ctx, sess)
	if err != nil {
		return err
	}
	return orch.RollbackGuide(cmd.OutOrStdout())
}
