// Package clipdir locates source clips in a flat directory of video files.
package clipdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forPelevin/linecut/internal/types"
)

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true,
}

// IsVideo reports whether name has a supported video extension.
func IsVideo(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

type Dir struct {
	root string
}

func New(root string) *Dir { return &Dir{root: root} }

func (d *Dir) Root() string { return d.root }

// Clips lists video file names in the directory, sorted.
func (d *Dir) Clips() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read clips dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsVideo(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Locate resolves clipID to a file path. A clip ID is the file name; a bare
// stem also resolves when exactly one video carries it.
func (d *Dir) Locate(clipID string) (string, error) {
	if clipID == "" || clipID != filepath.Base(clipID) || clipID == "." || clipID == ".." {
		return "", &types.ClipNotFoundError{ClipID: clipID}
	}
	p := filepath.Join(d.root, clipID)
	if st, err := os.Stat(p); err == nil && !st.IsDir() && IsVideo(clipID) {
		return p, nil
	}

	clips, err := d.Clips()
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(clipID, filepath.Ext(clipID))
	for _, c := range clips {
		if strings.TrimSuffix(c, filepath.Ext(c)) == stem {
			return filepath.Join(d.root, c), nil
		}
	}
	return "", &types.ClipNotFoundError{ClipID: clipID}
}
