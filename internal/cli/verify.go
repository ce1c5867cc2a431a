package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"devsetup/internal/catalog"
	"devsetup/internal/provision"
	"devsetup/internal/tui"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-check recorded components and check configured minimum versions",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
}

func runVerify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sess, err := readOnlySession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.cfg.DryRun = true

	orch, err := newReadOnlyOrchestrator(ctx, sess)
	if err != nil {
		return err
	}

	var spinner *tui.Spinner
	if !outputJSON && !noProgress && tui.IsTerminal(cmd.ErrOrStderr()) {
		spinner = tui.StartSpinner(cmd.ErrOrStderr(), "Checking recorded components...")
	}
	checks, err := orch.Verify(ctx)
	if spinner != nil {
		spinner.Close()
	}
	if err != nil {
		return err
	}

	if outputJSON {
		if err := writeJSON(cmd.OutOrStdout(), checks); err != nil {
			return err
		}
	} else {
		writeVerifyTable(cmd, checks)
	}

	var bad int
	for _, c := range checks {
		if c.Status == provision.CheckMissing || c.Status == provision.CheckOutdated {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d component(s) missing or below their minimum version", bad)
	}
	return nil
}

func writeVerifyTable(cmd *cobra.Command, checks []provision.Check) {
	if len(checks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(nothing recorded as installed)")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATUS\tRECORDED\tDETECTED\tMINIMUM\tDETAIL")
	for _, c := range checks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Component,
			c.Status,
			tui.NonEmptyOrDash(c.Recorded),
			tui.NonEmptyOrDash(c.Detected),
			tui.NonEmptyOrDash(c.Minimum),
			c.Detail,
		)
	}
	w.Flush()
}

// newReadOnlyOrchestrator builds an orchestrator for commands that only
// inspect state. The session config must have DryRun set.
func newReadOnlyOrchestrator(ctx context.Context, sess *session) (*provision.Orchestrator, error) {
	registry, err := catalog.Build(sess.cfg)
	if err != nil {
		return nil, err
	}
	return provision.New(ctx, provision.Options{
		Config:       sess.cfg,
		Layout:       sess.layout,
		Registry:     registry,
		Deps:         catalog.Dependencies(),
		Logger:       sess.logger,
		RemovalHints: removalHints(),
		Detectors:    detectors(),
	})
}
