package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"devsetup/internal/logx"
	"devsetup/internal/provision"
)

func newSelfTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-test",
		Short: "Exercise checksum, cache, state and resolver in a scratch directory",
		Args:  cobra.NoArgs,
		RunE:  runSelfTest,
	}
}

func runSelfTest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logx.Discard()
	if verbose {
		logger.WithConsole(cmd.ErrOrStderr(), logx.LevelInfo)
	}
	results, err := provision.SelfTest(ctx, logger)
	if err != nil {
		return err
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	}

	var failed int
	for _, r := range results {
		if !r.OK() {
			failed++
		}
		if outputJSON {
			continue
		}
		if r.OK() {
			fmt.Fprintf(cmd.OutOrStdout(), "  ok    %s\n", r.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "  FAIL  %s: %s\n", r.Name, r.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("self-test: %d of %d step(s) failed", failed, len(results))
	}
	if !outputJSON {
		fmt.Fprintln(cmd.OutOrStdout(), "self-test passed")
	}
	return nil
}
