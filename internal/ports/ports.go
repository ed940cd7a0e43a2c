package ports

import (
	"context"
	"time"

	"github.com/forPelevin/linecut/internal/types"
)

// TranscriptStore serves per-clip transcripts. Get returns an error matching
// types.ErrClipNotFound for unknown clips. Refresh rescans the backing store
// for clips added or removed since the last call.
type TranscriptStore interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, clipID string) (types.Transcript, error)
	Refresh(ctx context.Context) error
}

type ScriptLoader interface {
	Load(ctx context.Context) ([]types.ScriptLine, error)
}

// SourceLocator maps a clip ID to the media file the renderer should cut.
type SourceLocator interface {
	Locate(clipID string) (string, error)
}

// Renderer cuts and concatenates the job's clips into job.Output and returns
// the path of the produced file.
type Renderer interface {
	Render(ctx context.Context, job types.RenderJob) (string, error)
}

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error
	MediaDuration(ctx context.Context, inMedia string) (time.Duration, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

// TranscriptWriter is implemented by stores that can persist new transcripts.
type TranscriptWriter interface {
	Put(ctx context.Context, tr types.Transcript) error
}
