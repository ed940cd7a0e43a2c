//go:build integration

package itest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			break
		}
		wd = parent
	}
	return "", errors.New("could not locate go.mod")
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}

// workspace is a throwaway project: clips/, transcripts/, a script and a
// linecut.toml pointing at them.
type workspace struct {
	dir         string
	clips       string
	transcripts string
	script      string
	config      string
}

func newWorkspace(t *testing.T, scriptLines ...string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:         dir,
		clips:       filepath.Join(dir, "clips"),
		transcripts: filepath.Join(dir, "transcripts"),
		script:      filepath.Join(dir, "script.txt"),
		config:      filepath.Join(dir, "linecut.toml"),
	}
	for _, d := range []string{ws.clips, ws.transcripts} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	mustWrite(t, ws.script, strings.Join(scriptLines, "\n")+"\n")
	ws.writeConfig(t, "")
	return ws
}

// writeConfig rewrites linecut.toml; extra is appended verbatim.
func (ws workspace) writeConfig(t *testing.T, extra string) {
	t.Helper()
	mustWrite(t, ws.config, fmt.Sprintf(`[paths]
clips_dir = %q
transcripts_dir = %q
script = %q
output_dir = %q
work_dir = %q

[logging]
level = "warn"
%s`, ws.clips, ws.transcripts, ws.script, filepath.Join(ws.dir, "out"), filepath.Join(ws.dir, "work"), extra))
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not on PATH", tool)
		}
	}
}

func mediaDurationSeconds(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return sec, nil
}
