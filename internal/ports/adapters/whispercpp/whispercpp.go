package whispercpp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/forPelevin/linecut/internal/transcripts"
	"github.com/forPelevin/linecut/internal/types"
)

type Adapter struct {
	bin   string
	model string
	run   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func New(binPath, modelPath string) *Adapter {
	return &Adapter{bin: binPath, model: modelPath, run: combinedOutput}
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Transcribe runs whisper.cpp on a 16 kHz mono wav and decodes its JSON
// output, which lands in cacheDir. The returned transcript has no ClipID.
func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	if a.model == "" {
		return types.Transcript{}, fmt.Errorf("whisper.cpp model path is not configured")
	}
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-oj",
		"-ojf",
		"-of", outPrefix,
	}
	b, err := a.run(ctx, a.bin, args...)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return transcripts.Decode(jb, "")
}
