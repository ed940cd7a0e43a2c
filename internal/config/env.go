package config

import (
	"strconv"
	"strings"
)

const envPrefix = "LINECUT_"

// applyEnv overrides file values with LINECUT_* variables. Unparseable
// numeric or boolean values are ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := lookup(envPrefix + name); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = f
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(envPrefix + name); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	str("CLIPS_DIR", &c.Paths.ClipsDir)
	str("TRANSCRIPTS_DIR", &c.Paths.TranscriptsDir)
	str("SCRIPT", &c.Paths.Script)
	str("OUTPUT_DIR", &c.Paths.OutputDir)
	str("SESSION_FILE", &c.Paths.SessionFile)
	str("WORK_DIR", &c.Paths.WorkDir)

	str("STORE", &c.Store.Backend)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("S3_URL", &c.Store.S3URL)
	str("S3_REGION", &c.Store.S3Region)

	float("FAIR_MIN", &c.Matching.FairMin)
	float("GOOD_MIN", &c.Matching.GoodMin)
	float("EXCELLENT_MIN", &c.Matching.ExcellentMin)
	float("LENGTH_TOLERANCE", &c.Matching.LengthTolerance)

	boolean("LOUDNORM", &c.Assembly.Loudnorm)
	boolean("CAPTIONS", &c.Assembly.Captions)
	str("MUSIC", &c.Assembly.Music.File)
	float("MUSIC_VOLUME", &c.Assembly.Music.Volume)

	str("FFMPEG", &c.Tools.FFmpeg)
	str("FFPROBE", &c.Tools.FFprobe)
	str("WHISPER_BIN", &c.Tools.WhisperBin)
	str("WHISPER_MODEL", &c.Tools.WhisperModel)

	str("BIND", &c.Server.Bind)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
}
