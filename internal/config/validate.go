package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Normalize expands paths and fills derived defaults.
func (c *Config) Normalize() error {
	var err error
	for name, p := range map[string]*string{
		"paths.clips_dir":       &c.Paths.ClipsDir,
		"paths.transcripts_dir": &c.Paths.TranscriptsDir,
		"paths.script":          &c.Paths.Script,
		"paths.output_dir":      &c.Paths.OutputDir,
		"paths.session_file":    &c.Paths.SessionFile,
		"paths.work_dir":        &c.Paths.WorkDir,
		"store.sqlite_path":     &c.Store.SQLitePath,
		"assembly.music.file":   &c.Assembly.Music.File,
	} {
		if *p, err = ExpandPath(strings.TrimSpace(*p)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Paths.TranscriptsDir == "" {
		c.Paths.TranscriptsDir = filepath.Join(c.Paths.WorkDir, "transcripts")
	}
	if c.Paths.SessionFile == "" {
		c.Paths.SessionFile = filepath.Join(c.Paths.OutputDir, "session.toml")
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.WorkDir, "transcripts.db")
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreFS
	}
	if c.Assembly.FrameRate <= 0 {
		c.Assembly.FrameRate = defaultFrameRate
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Paths.ClipsDir == "" {
		errs = append(errs, errors.New("paths.clips_dir is required"))
	}
	switch c.Store.Backend {
	case StoreFS, StoreSQLite:
	case StoreS3:
		if !strings.HasPrefix(c.Store.S3URL, "s3://") {
			errs = append(errs, fmt.Errorf("store.s3_url must look like s3://bucket/prefix, got %q", c.Store.S3URL))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unsupported value %q", c.Store.Backend))
	}
	if err := c.MatcherConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matching: %w", err))
	}
	if c.Assembly.TrimPaddingSec < 0 {
		errs = append(errs, errors.New("assembly.trim_padding_sec must be >= 0"))
	}
	if m := c.Assembly.Music; m.File != "" {
		if m.Volume <= 0 || m.Volume > 1 {
			errs = append(errs, fmt.Errorf("assembly.music.volume must be in (0,1], got %v", m.Volume))
		}
		if m.DialogueVolume <= 0 || m.DialogueVolume > 2 {
			errs = append(errs, fmt.Errorf("assembly.music.dialogue_volume must be in (0,2], got %v", m.DialogueVolume))
		}
		if m.FadeInSec < 0 || m.FadeOutSec < 0 {
			errs = append(errs, errors.New("assembly.music fades must be >= 0"))
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}
