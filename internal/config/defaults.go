package config

import (
	"github.com/forPelevin/linecut/internal/domain/matching"
	"github.com/forPelevin/linecut/internal/types"
)

const (
	defaultBind        = "127.0.0.1:8765"
	defaultFrameRate   = 24
	defaultTrimPadding = 0.1
	defaultWorkDir     = ".cache/linecut"

	defaultMusicVolume    = 0.15
	defaultDialogueVolume = 1.0
	defaultMusicFadeIn    = 2.0
	defaultMusicFadeOut   = 3.0
)

func Default() Config {
	return Config{
		Paths: Paths{
			ClipsDir:  "clips",
			OutputDir: "out",
			WorkDir:   defaultWorkDir,
		},
		Store: Store{Backend: StoreFS},
		Matching: Matching{
			ExcellentMin:    matching.DefaultExcellentMin,
			GoodMin:         matching.DefaultGoodMin,
			FairMin:         matching.DefaultFairMin,
			LengthTolerance: matching.DefaultLengthTolerance,
		},
		Assembly: Assembly{
			Loudnorm:       true,
			FrameRate:      defaultFrameRate,
			TrimPaddingSec: defaultTrimPadding,
			Music: Music{
				Volume:         defaultMusicVolume,
				DialogueVolume: defaultDialogueVolume,
				FadeInSec:      defaultMusicFadeIn,
				FadeOutSec:     defaultMusicFadeOut,
				Loop:           true,
			},
		},
		Tools: Tools{
			FFmpeg:       "ffmpeg",
			FFprobe:      "ffprobe",
			WhisperBin:   ".cache/bin/whisper.cpp",
			WhisperModel: ".cache/models/ggml-base.bin",
		},
		Server:  Server{Bind: defaultBind},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// MatcherConfig converts the matching section.
func (c *Config) MatcherConfig() matching.Config {
	return matching.Config{
		ExcellentMin:    c.Matching.ExcellentMin,
		GoodMin:         c.Matching.GoodMin,
		FairMin:         c.Matching.FairMin,
		LengthTolerance: c.Matching.LengthTolerance,
		Workers:         c.Matching.Workers,
	}
}

// MusicBed converts the music section, or returns nil when no file is set.
func (c *Config) MusicBed() *types.MusicBed {
	m := c.Assembly.Music
	if m.File == "" {
		return nil
	}
	return &types.MusicBed{
		Path:           m.File,
		Volume:         m.Volume,
		DialogueVolume: m.DialogueVolume,
		FadeIn:         types.Seconds(m.FadeInSec),
		FadeOut:        types.Seconds(m.FadeOutSec),
		Loop:           m.Loop,
	}
}
