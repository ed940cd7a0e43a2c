// Package config loads linecut settings from a TOML file, applies LINECUT_*
// environment overrides, and normalizes paths.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	StoreFS     = "fs"
	StoreSQLite = "sqlite"
	StoreS3     = "s3"
)

type Paths struct {
	ClipsDir       string `toml:"clips_dir"`
	TranscriptsDir string `toml:"transcripts_dir"`
	Script         string `toml:"script"`
	OutputDir      string `toml:"output_dir"`
	SessionFile    string `toml:"session_file"`
	WorkDir        string `toml:"work_dir"`
}

type Store struct {
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
	S3URL      string `toml:"s3_url"`
	S3Region   string `toml:"s3_region"`
}

type Matching struct {
	ExcellentMin    float64 `toml:"excellent_min"`
	GoodMin         float64 `toml:"good_min"`
	FairMin         float64 `toml:"fair_min"`
	LengthTolerance float64 `toml:"length_tolerance"`
	Workers         int     `toml:"workers"`
}

type Assembly struct {
	Loudnorm       bool    `toml:"loudnorm"`
	FrameRate      int     `toml:"frame_rate"`
	Captions       bool    `toml:"captions"`
	TrimPaddingSec float64 `toml:"trim_padding_sec"`
	Music          Music   `toml:"music"`
}

// Music is the optional background track. An empty File disables it.
type Music struct {
	File           string  `toml:"file"`
	Volume         float64 `toml:"volume"`
	DialogueVolume float64 `toml:"dialogue_volume"`
	FadeInSec      float64 `toml:"fade_in_sec"`
	FadeOutSec     float64 `toml:"fade_out_sec"`
	Loop           bool    `toml:"loop"`
}

type Tools struct {
	FFmpeg       string `toml:"ffmpeg"`
	FFprobe      string `toml:"ffprobe"`
	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`
}

type Server struct {
	Bind string `toml:"bind"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Paths    Paths    `toml:"paths"`
	Store    Store    `toml:"store"`
	Matching Matching `toml:"matching"`
	Assembly Assembly `toml:"assembly"`
	Tools    Tools    `toml:"tools"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
}

// Load reads path when it exists (an empty path tries ./linecut.toml), then
// applies environment overrides, normalizes and validates. The bool reports
// whether a file was read.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, false, err
	}
	if exists {
		b, err := os.ReadFile(resolved)
		if err != nil {
			return nil, false, fmt.Errorf("open config: %w", err)
		}
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return nil, false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Normalize(); err != nil {
		return nil, false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return &cfg, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	explicit := path != ""
	if !explicit {
		path = "linecut.toml"
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	switch {
	case err == nil && !info.IsDir():
		return expanded, true, nil
	case err == nil:
		return "", false, fmt.Errorf("config %s is a directory", expanded)
	case errors.Is(err, fs.ErrNotExist):
		if explicit {
			return "", false, fmt.Errorf("config %s: %w", expanded, err)
		}
		return expanded, false, nil
	default:
		return "", false, fmt.Errorf("stat config: %w", err)
	}
}

// ExpandPath resolves "~" and makes p absolute. Empty stays empty.
func ExpandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}
