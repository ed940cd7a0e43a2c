package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forPelevin/linecut/internal/config"
	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/pipeline"
	"github.com/forPelevin/linecut/internal/sessionfile"
	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

type commandContext struct {
	configPath     string
	clipsDir       string
	transcriptsDir string
	store          string
	logLevel       string
	logFormat      string

	cfg *config.Config
	log *slog.Logger
}

// setup loads configuration, applies flag overrides and builds the logger.
func (cc *commandContext) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	if cc.cfg != nil {
		return cc.cfg, cc.log, nil
	}
	cfg, _, err := config.Load(strings.TrimSpace(cc.configPath))
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	changed := false
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
			changed = true
		}
	}
	set(&cfg.Paths.ClipsDir, cc.clipsDir)
	set(&cfg.Paths.TranscriptsDir, cc.transcriptsDir)
	set(&cfg.Store.Backend, cc.store)
	set(&cfg.Logging.Level, cc.logLevel)
	set(&cfg.Logging.Format, cc.logFormat)
	if changed {
		if err := cfg.Normalize(); err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}
	cc.cfg, cc.log = cfg, log
	return cfg, log, nil
}

func (cc *commandContext) stack(cmd *cobra.Command) (*pipeline.Stack, error) {
	cfg, log, err := cc.setup(cmd)
	if err != nil {
		return nil, err
	}
	return pipeline.Build(cmd.Context(), cfg, log)
}

type sessionOptions struct {
	script  string
	session string
	// resume restores the session file when present.
	resume bool
	// requireSession fails when the session file is missing.
	requireSession bool
	events         usecase.EventSink
}

type session struct {
	ctrl   *usecase.Controller
	lines  []types.ScriptLine
	script string
	path   string
}

// openSession loads the script, opens a controller over it and restores saved
// selections when asked to.
func openSession(ctx context.Context, st *pipeline.Stack, opts sessionOptions) (*session, error) {
	script := opts.script
	if script == "" {
		script = st.Config.Paths.Script
	}
	if script != "" {
		if abs, err := filepath.Abs(script); err == nil {
			script = abs
		}
	}
	lines, err := st.Script(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	ctrl := st.Controller(opts.events)
	if _, err := ctrl.Open(ctx, lines); err != nil {
		return nil, err
	}

	s := &session{ctrl: ctrl, lines: lines, script: script, path: opts.session}
	if s.path == "" {
		s.path = st.Config.Paths.SessionFile
	}
	if !opts.resume && !opts.requireSession {
		return s, nil
	}
	f, err := sessionfile.Load(ctx, s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !opts.requireSession:
		return s, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("no saved session at %s: select clips with `linecut serve` first", s.path)
	case err != nil:
		return nil, err
	}
	if f.Script != "" && f.Script != script {
		st.Log.Warn("session was saved for a different script", "saved", f.Script, "script", script)
	}
	if err := ctrl.Restore(ctx, f.SessionID, f.Snapshot()); err != nil {
		return nil, fmt.Errorf("restore session %s: %w", s.path, err)
	}
	st.Log.Info("session restored", "path", s.path, "selections", len(f.Selections))
	return s, nil
}
