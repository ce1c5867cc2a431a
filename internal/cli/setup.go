package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"devsetup/internal/catalog"
	"devsetup/internal/config"
	"devsetup/internal/logx"
	"devsetup/internal/paths"
	"devsetup/internal/state"
)

// session is the resolved environment shared by the commands.
type session struct {
	layout paths.Layout
	cfg    config.Config
	logger *logx.Logger
	closer io.Closer
}

func (s *session) Close() {
	if s.closer != nil {
		s.closer.Close()
	}
}

// loadConfig resolves the layout, reads the configuration and applies the
// command-line overrides. Validation errors abort; warnings go to stderr.
func loadConfig(cmd *cobra.Command) (paths.Layout, config.Config, error) {
	layout, err := paths.Resolve(configPath)
	if err != nil {
		return paths.Layout{}, config.Config{}, err
	}
	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return paths.Layout{}, config.Config{}, err
	}

	if p := strings.TrimSpace(profileFlag); p != "" {
		cfg.Profile = strings.ToLower(p)
	}
	if dryRun {
		cfg.DryRun = true
	}
	if autoApprove {
		cfg.AutoApprove = true
	}

	results := cfg.Validate(catalog.Names(), catalog.Profiles())
	for _, r := range results {
		if r.Level != "error" {
			fmt.Fprintf(cmd.ErrOrStderr(), "config warning: %s\n", r.Message)
		}
	}
	if config.HasErrors(results) {
		var msgs []string
		for _, r := range results {
			if r.Level == "error" {
				msgs = append(msgs, r.Message)
			}
		}
		return paths.Layout{}, config.Config{}, fmt.Errorf("invalid configuration %s:\n  %s", layout.ConfigFile, strings.Join(msgs, "\n  "))
	}
	return layout.WithPrefix(cfg.InstallPrefix), cfg, nil
}

// openSession loads the configuration and opens the run log. A dry run keeps
// nothing on disk, so its log only goes to the console. console is where
// warnings are echoed; nil silences the console.
func openSession(cmd *cobra.Command, console io.Writer) (*session, error) {
	layout, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s := &session{layout: layout, cfg: cfg}

	level := logx.LevelWarn
	if verbose || cfg.DryRun {
		level = logx.LevelInfo
	}
	if cfg.DryRun {
		s.logger = logx.Discard()
	} else {
		logger, closer, err := logx.New(layout.LogsDir)
		if err != nil {
			return nil, err
		}
		s.logger, s.closer = logger, closer
	}
	if console != nil {
		s.logger.WithConsole(console, level)
	}
	return s, nil
}

// loadState reads the state file without starting a run.
func loadState(s *session) (*state.Store, error) {
	store := state.New(state.Options{
		Path:   s.layout.StateFile,
		DryRun: true,
		Logger: s.logger,
	})
	if err := store.Load(); err != nil {
		return store, err
	}
	return store, nil
}

// readOnlySession is for commands that change nothing and keep no log.
func readOnlySession(cmd *cobra.Command) (*session, error) {
	layout, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logx.Discard()
	if verbose {
		logger.WithConsole(cmd.ErrOrStderr(), logx.LevelInfo)
	}
	return &session{layout: layout, cfg: cfg, logger: logger}, nil
}
