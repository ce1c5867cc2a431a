package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"devsetup/internal/cache"
	"devsetup/internal/tui"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the download cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached artifacts with their size and source URL",
		Args:  cobra.NoArgs,
		RunE:  runCacheList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove every cached artifact",
		Args:  cobra.NoArgs,
		RunE:  runCacheClean,
	})
	return cmd
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	sess, err := readOnlySession(cmd)
	if err != nil {
		return err
	}
	c := cache.New(sess.layout.CacheDir, nil, sess.logger)
	entries, err := c.List()
	if err != nil {
		return err
	}

	if outputJSON {
		if entries == nil {
			entries = []cache.Entry{}
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cache: %s\n", sess.layout.CacheDir)
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(empty)")
		return nil
	}
	var total int64
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIFACT\tSIZE\tSTORED\tURL")
	for _, e := range entries {
		stored := "-"
		if !e.StoredAt.IsZero() {
			stored = e.StoredAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key, humanBytes(e.Size), stored, tui.NonEmptyOrDash(e.URL))
		total += e.Size
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "%d artifact(s), %s\n", len(entries), humanBytes(total))
	return nil
}

func runCacheClean(cmd *cobra.Command, _ []string) error {
	sess, err := openSession(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.Close()

	c := cache.New(sess.layout.CacheDir, nil, sess.logger)
	c.DryRun = sess.cfg.DryRun
	removed, freed, err := c.Clean()

	verb := "Removed"
	if c.DryRun {
		verb = "[dry-run] Would remove"
	}
	if outputJSON {
		payload := map[string]any{"removed": removed, "freed_bytes": freed, "dry_run": c.DryRun}
		if jerr := writeJSON(cmd.OutOrStdout(), payload); jerr != nil {
			return jerr
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d artifact(s), %s\n", verb, removed, humanBytes(freed))
	}
	return err
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
