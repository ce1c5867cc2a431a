package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"devsetup/internal/catalog"
	"devsetup/internal/state"
	"devsetup/internal/tui"
)

type listRow struct {
	Name        string   `json:"name"`
	Profiles    []string `json:"profiles"`
	Requires    string   `json:"requires,omitempty"`
	Selected    bool     `json:"selected"`
	Installed   string   `json:"installed,omitempty"`
	Description string   `json:"description"`
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known components, their profiles and what is recorded as installed",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	sess, err := readOnlySession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	store, err := loadState(sess)
	if err != nil && !errors.Is(err, state.ErrStateCorrupt) {
		return err
	} else if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}

	selected := map[string]bool{}
	names, err := catalog.Select(sess.cfg)
	if err != nil {
		return err
	}
	for _, name := range names {
		selected[name] = true
	}

	var rows []listRow
	for _, def := range catalog.All() {
		row := listRow{
			Name:        def.Name,
			Profiles:    profilesFor(def.Name),
			Requires:    def.Requires,
			Selected:    selected[def.Name],
			Description: def.Description,
		}
		if v, ok := store.Version(def.Name); ok {
			row.Installed = v
		}
		rows = append(rows, row)
	}

	if outputJSON {
		return writeJSON(cmd.OutOrStdout(), rows)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile: %s\n", tui.NonEmptyOrDash(sess.cfg.Profile))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSELECTED\tPROFILES\tREQUIRES\tINSTALLED\tDESCRIPTION")
	for _, row := range rows {
		mark := "-"
		if row.Selected {
			mark = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Name,
			mark,
			strings.Join(row.Profiles, ","),
			tui.NonEmptyOrDash(row.Requires),
			tui.NonEmptyOrDash(row.Installed),
			row.Description,
		)
	}
	w.Flush()
	return nil
}

// profilesFor lists the profiles that include name.
func profilesFor(name string) []string {
	var out []string
	for _, profile := range catalog.Profiles() {
		members, err := catalog.ProfileMembers(profile)
		if err != nil {
			continue
		}
		for _, m := range members {
			if m == name {
				out = append(out, profile)
				break
			}
		}
	}
	return out
}
