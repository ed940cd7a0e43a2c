package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/types"
)

// ClipLister enumerates the source clips to transcribe.
type ClipLister interface {
	Clips() ([]string, error)
}

type TranscribeDeps struct {
	Clips   ClipLister
	Sources ports.SourceLocator
	Video   ports.VideoTool
	ASR     ports.ASR
	Store   ports.TranscriptStore
	Writer  ports.TranscriptWriter
	Logger  *slog.Logger
}

type TranscribeOptions struct {
	// WorkDir holds extracted audio and raw ASR output.
	WorkDir string
	// Force re-transcribes clips the store already has.
	Force   bool
	Workers int
}

type TranscribeReport struct {
	Transcribed []string
	Skipped     []string
	Failed      map[string]error
}

// Transcribe fills the transcript store for every clip in the clips folder.
// Clips already present are skipped unless Force is set. A failing clip is
// recorded in the report and does not stop the others.
func Transcribe(ctx context.Context, d TranscribeDeps, opts TranscribeOptions) (TranscribeReport, error) {
	log := d.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if d.Clips == nil || d.Sources == nil || d.Video == nil || d.ASR == nil || d.Writer == nil {
		return TranscribeReport{}, errors.New("transcribe: missing dependency")
	}
	clips, err := d.Clips.Clips()
	if err != nil {
		return TranscribeReport{}, fmt.Errorf("list clips: %w", err)
	}

	existing := map[string]bool{}
	if d.Store != nil && !opts.Force {
		ids, err := d.Store.List(ctx)
		if err != nil {
			return TranscribeReport{}, fmt.Errorf("list transcripts: %w", err)
		}
		for _, id := range ids {
			existing[id] = true
		}
	}

	rep := TranscribeReport{Failed: map[string]error{}}
	var todo []string
	for _, clip := range clips {
		if existing[clip] {
			rep.Skipped = append(rep.Skipped, clip)
			continue
		}
		todo = append(todo, clip)
	}
	log.Info("transcribing clips", "todo", len(todo), "skipped", len(rep.Skipped))

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, clip := range todo {
		g.Go(func() error {
			err := transcribeOne(gctx, d, opts.WorkDir, clip)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Transcribed = append(rep.Transcribed, clip)
				log.Info("clip transcribed", "clip", clip)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				rep.Failed[clip] = err
				log.Error("clip transcription failed", "clip", clip, "error", err)
			}
			return nil
		})
	}
	err = g.Wait()
	sort.Strings(rep.Transcribed)
	return rep, err
}

func transcribeOne(ctx context.Context, d TranscribeDeps, workDir, clip string) error {
	src, err := d.Sources.Locate(clip)
	if err != nil {
		return err
	}
	dir := filepath.Join(workDir, "transcribe", hash(clip))
	if err := ensureDir(dir); err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "audio.wav")
	if err := d.Video.ExtractAudioMono16k(ctx, src, wav); err != nil {
		return &types.ExternalServiceError{Op: "extract audio", Err: err}
	}
	tr, err := d.ASR.Transcribe(ctx, wav, dir)
	if err != nil {
		return &types.ExternalServiceError{Op: "transcribe", Err: err}
	}
	tr.ClipID = clip
	if dur, err := d.Video.MediaDuration(ctx, src); err == nil {
		tr.Duration = dur.Seconds()
	}
	return d.Writer.Put(ctx, tr)
}
