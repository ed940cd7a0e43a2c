// Package pipeline wires configured adapters into a session controller and
// hosts the non-interactive flows: automatic line matching and batch
// transcription of a clips folder.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/linecut/internal/config"
	"github.com/forPelevin/linecut/internal/domain/matching"
	"github.com/forPelevin/linecut/internal/logging"
	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/ports/adapters/clipdir"
	"github.com/forPelevin/linecut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/linecut/internal/ports/adapters/fsstore"
	"github.com/forPelevin/linecut/internal/ports/adapters/s3store"
	"github.com/forPelevin/linecut/internal/ports/adapters/scriptfile"
	"github.com/forPelevin/linecut/internal/ports/adapters/sqlitestore"
	"github.com/forPelevin/linecut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/linecut/internal/transcripts"
	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

// Stack is the set of adapters built from a Config.
type Stack struct {
	Config  *config.Config
	Log     *slog.Logger
	Clips   *clipdir.Dir
	Store   *transcripts.Cache
	Writer  ports.TranscriptWriter
	FFmpeg  *ffmpeg.Adapter
	Matcher *matching.Matcher

	closers []func() error
}

// writableStore is what every transcript backend provides.
type writableStore interface {
	ports.TranscriptStore
	ports.TranscriptWriter
}

// Build opens the transcript backend named by cfg.Store.Backend and the media
// adapters. Close releases the backend.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if log == nil {
		log = logging.NewNop()
	}
	matchCfg := cfg.MatcherConfig()
	if err := matchCfg.Validate(); err != nil {
		return nil, fmt.Errorf("matching config: %w", err)
	}

	s := &Stack{
		Config:  cfg,
		Log:     log,
		Clips:   clipdir.New(cfg.Paths.ClipsDir),
		Matcher: matching.New(matchCfg),
	}
	backend, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}
	s.Store = transcripts.NewCache(backend)
	s.Writer = backend

	s.FFmpeg = ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, ffmpeg.Options{
		Loudnorm:  cfg.Assembly.Loudnorm,
		FrameRate: cfg.Assembly.FrameRate,
		TempDir:   cfg.Paths.WorkDir,
		Logger:    logging.NewComponentLogger(log, "ffmpeg"),
	})
	log.Debug("stack ready", "backend", cfg.Store.Backend, "clips", cfg.Paths.ClipsDir)
	return s, nil
}

func (s *Stack) openStore(ctx context.Context) (writableStore, error) {
	cfg := s.Config
	switch cfg.Store.Backend {
	case config.StoreFS, "":
		return fsstore.New(cfg.Paths.TranscriptsDir, s.Clips), nil
	case config.StoreSQLite:
		st, err := sqlitestore.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, st.Close)
		return st, nil
	case config.StoreS3:
		return s3store.Open(ctx, cfg.Store.S3URL, cfg.Store.S3Region)
	default:
		return nil, fmt.Errorf("unknown transcript store backend %q", cfg.Store.Backend)
	}
}

func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Controller builds a session controller over the stack.
func (s *Stack) Controller(events usecase.EventSink) *usecase.Controller {
	return usecase.New(usecase.Deps{
		Store:       s.Store,
		Renderer:    s.FFmpeg,
		Sources:     s.Clips,
		Matcher:     s.Matcher,
		Logger:      s.Log,
		Events:      events,
		TrimPadding: types.Seconds(s.Config.Assembly.TrimPaddingSec),
	})
}

// Script loads the configured script, or path when it is non-empty.
func (s *Stack) Script(ctx context.Context, path string) ([]types.ScriptLine, error) {
	if path == "" {
		path = s.Config.Paths.Script
	}
	if path == "" {
		return nil, errors.New("no script given: pass --script or set paths.script")
	}
	return scriptfile.New(path).Load(ctx)
}

func (s *Stack) Whisper() *whispercpp.Adapter {
	return whispercpp.New(s.Config.Tools.WhisperBin, s.Config.Tools.WhisperModel)
}

// OutputPath names a fresh output file under outRoot derived from the script
// name, e.g. out/my-script-20260212-103045Z-1a2b3c.mp4.
func OutputPath(outRoot, script string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
	name = normalizePathSegment(name)
	if name == "" {
		name = "linecut"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", script, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s.mp4", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// ensure adapters implement ports
var (
	_ ports.VideoTool       = (*ffmpeg.Adapter)(nil)
	_ ports.Renderer        = (*ffmpeg.Adapter)(nil)
	_ ports.ASR             = (*whispercpp.Adapter)(nil)
	_ ports.SourceLocator   = (*clipdir.Dir)(nil)
	_ ports.ScriptLoader    = (*scriptfile.Loader)(nil)
	_ writableStore         = (*fsstore.Store)(nil)
	_ writableStore         = (*sqlitestore.Store)(nil)
	_ writableStore         = (*s3store.Store)(nil)
	_ ports.TranscriptStore = (*transcripts.Cache)(nil)
)
