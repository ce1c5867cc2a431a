package provision

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"devsetup/internal/state"
)

// RollbackGuide prints manual undo instructions. Nothing is removed
// automatically.
func (o *Orchestrator) RollbackGuide(w io.Writer) error {
	if err := o.state.Load(); err != nil && !errors.Is(err, state.ErrStateCorrupt) {
		return err
	}

	fmt.Fprintln(w, "Automatic rollback is not supported. To undo changes manually:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Transaction log: %s\n", o.layout.TransactionLog)
	fmt.Fprintf(w, "  Backups:         %s\n", o.layout.BackupsDir)

	backups, err := os.ReadDir(o.layout.BackupsDir)
	if err == nil && len(backups) > 0 {
		names := make([]string, 0, len(backups))
		for _, b := range backups {
			names = append(names, b.Name())
		}
		sort.Strings(names)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Backed up files (copy back over the original to restore):")
		for _, name := range names {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}

	installed := o.state.Installed()
	if len(installed) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No components are recorded as installed.")
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recorded components:")
	for _, comp := range installed {
		hint := o.opts.RemovalHints[comp.Name]
		if hint == "" {
			hint = "no removal hint"
		}
		fmt.Fprintf(w, "  %-16s %-12s %s\n", comp.Name, comp.Version, hint)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "After removing a component, delete its entry from %s.\n", o.layout.StateFile)
	return nil
}
