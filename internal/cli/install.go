package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"devsetup/internal/catalog"
	"devsetup/internal/installer"
	"devsetup/internal/provision"
	"devsetup/internal/tui"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install [component...]",
		Short: "Install the configured profile or the named components",
		Long: "Install every component of the configured profile plus the configured extras.\n" +
			"Naming components on the command line installs only those and their prerequisites.",
		RunE: runInstall,
	}
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	outWriter := cmd.OutOrStdout()
	mode := tui.DetectMode(outWriter, noProgress, outputJSON)

	// Dry-run lines and warnings are the point of a dry run; the table
	// would redraw over them.
	var console io.Writer = cmd.ErrOrStderr()
	if mode == tui.ModeTUI && !dryRun {
		console = nil
	}
	if mode == tui.ModeTUI && dryRun {
		mode = tui.ModePlain
	}

	sess, err := openSession(cmd, console)
	if err != nil {
		return err
	}
	defer sess.Close()

	components, err := selectComponents(sess, args)
	if err != nil {
		return err
	}
	if len(components) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "nothing to install: the selection is empty")
		return nil
	}

	registry, err := catalog.Build(sess.cfg)
	if err != nil {
		return err
	}
	opts := provision.Options{
		Config:       sess.cfg,
		Layout:       sess.layout,
		Registry:     registry,
		Deps:         catalog.Dependencies(),
		Logger:       sess.logger,
		RemovalHints: removalHints(),
		Detectors:    detectors(),
		Confirm:      confirmPrompt(cmd.InOrStdin(), cmd.ErrOrStderr()),
	}
	if mode == tui.ModePlain {
		opts.Progress = cmd.ErrOrStderr()
	}

	var (
		summary provision.Summary
		runErr  error
	)
	if mode != tui.ModeTUI {
		orch, err := provision.New(ctx, opts)
		if err != nil {
			return err
		}
		summary, runErr = orch.Run(ctx, components)
	} else {
		summary, runErr = runInstallTUI(ctx, cmd, opts, components)
	}
	if runErr != nil && summary.Total == 0 {
		return runErr
	}

	if mode == tui.ModeJSON {
		if err := writeJSON(outWriter, summary); err != nil {
			return err
		}
	} else {
		if mode == tui.ModePlain {
			writeSummaryTable(outWriter, summary.Results)
		}
		printSummary(outWriter, summary)
		if summary.Failed() {
			writeFailures(outWriter, summary.Results)
		}
	}

	if runErr != nil {
		return runErr
	}
	if n := summary.Count(installer.StatusFailed); n > 0 {
		return fmt.Errorf("%d component(s) failed; see %s", n, sess.layout.LogsDir)
	}
	return nil
}

// runInstallTUI asks for confirmation before the table takes over the
// terminal, then runs with auto-approve set.
func runInstallTUI(ctx context.Context, cmd *cobra.Command, opts provision.Options, components []string) (provision.Summary, error) {
	if !opts.Config.AutoApprove && !opts.Config.DryRun {
		ok, err := opts.Confirm(components)
		if err != nil {
			return provision.Summary{}, err
		}
		if !ok {
			return provision.Summary{}, provision.ErrAborted
		}
		opts.Config.AutoApprove = true
	}

	model := tui.NewProgressModel("devsetup install", tui.ComponentColumns)
	for _, name := range components {
		model.AddRow(name, tui.PendingRow(name))
	}

	var (
		summary provision.Summary
		runErr  error
	)
	err := tui.RunWithWork(cmd.OutOrStdout(), model, func(send func(tea.Msg)) {
		opts.Reporter = tui.NewReporter(send, components)
		orch, err := provision.New(ctx, opts)
		if err != nil {
			runErr = err
			send(tui.ErrorMsg{Err: err})
			return
		}
		summary, runErr = orch.Run(ctx, components)
		if runErr != nil && summary.Total == 0 {
			send(tui.ErrorMsg{Err: runErr})
		}
	})
	if err != nil && runErr == nil {
		runErr = err
	}
	return summary, runErr
}

// selectComponents returns the named components, or the configured
// selection when none are named.
func selectComponents(sess *session, args []string) ([]string, error) {
	if len(args) == 0 {
		return catalog.Select(sess.cfg)
	}
	var out []string
	seen := map[string]bool{}
	for _, arg := range args {
		name := strings.ToLower(strings.TrimSpace(arg))
		if _, ok := catalog.Lookup(name); !ok {
			return nil, fmt.Errorf("unknown component %q (see devsetup list)", arg)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

func removalHints() map[string]string {
	hints := map[string]string{}
	for _, def := range catalog.All() {
		if def.Removal != "" {
			hints[def.Name] = def.Removal
		}
	}
	return hints
}

func detectors() map[string]installer.Detector {
	out := map[string]installer.Detector{}
	for _, def := range catalog.All() {
		out[def.Name] = def.Detector
	}
	return out
}

// confirmPrompt asks once on w and reads the answer from r. Anything but
// y or yes declines.
func confirmPrompt(r io.Reader, w io.Writer) func([]string) (bool, error) {
	return func(components []string) (bool, error) {
		fmt.Fprintf(w, "The following %d component(s) will be installed:\n  %s\n", len(components), strings.Join(components, ", "))
		fmt.Fprint(w, "Proceed? [y/N] ")
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
