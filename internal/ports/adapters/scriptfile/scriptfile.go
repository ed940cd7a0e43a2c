// Package scriptfile loads a plain-text script, one spoken line per line.
package scriptfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/forPelevin/linecut/internal/types"
)

type Loader struct {
	path string
}

func New(path string) *Loader { return &Loader{path: path} }

func (l *Loader) Load(_ context.Context) ([]types.ScriptLine, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse returns the non-blank lines of r, trimmed, indexed from 0 in order.
func Parse(r io.Reader) ([]types.ScriptLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var out []types.ScriptLine
	for sc.Scan() {
		text := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if text == "" {
			continue
		}
		out = append(out, types.ScriptLine{Index: len(out), Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return out, nil
}
