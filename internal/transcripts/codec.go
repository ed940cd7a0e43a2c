// Package transcripts decodes transcript documents and caches them in front
// of a store.
package transcripts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/linecut/internal/types"
)

// Decode parses a transcript document. Accepted layouts:
//
//   - {"segments":[{"start","end","text","words"}], "text", "duration"}
//   - a bare array of segments
//   - whisper.cpp -oj output ({"transcription":[{"offsets":{"from","to"},"text","tokens"}]})
//   - {"text"} only, treated as one segment spanning "duration" when known
//
// Texts are trimmed and clipID is stamped onto the result.
func Decode(data []byte, clipID string) (types.Transcript, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return types.Transcript{}, errors.New("empty transcript document")
	}

	var tr types.Transcript
	if data[0] == '[' {
		if err := json.Unmarshal(data, &tr.Segments); err != nil {
			return types.Transcript{}, fmt.Errorf("decode segments: %w", err)
		}
	} else {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return types.Transcript{}, fmt.Errorf("decode transcript: %w", err)
		}
		tr = doc.transcript()
	}
	tr.ClipID = clipID
	clean(&tr)
	return tr, nil
}

// Encode writes tr in the segments layout.
func Encode(tr types.Transcript) ([]byte, error) {
	return json.MarshalIndent(tr, "", "  ")
}

type document struct {
	Duration      float64         `json:"duration"`
	Text          string          `json:"text"`
	Segments      []types.Segment `json:"segments"`
	Transcription []whisperEntry  `json:"transcription"`
}

type whisperOffsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type whisperToken struct {
	Text    string         `json:"text"`
	Offsets whisperOffsets `json:"offsets"`
}

type whisperEntry struct {
	Offsets whisperOffsets `json:"offsets"`
	Text    string         `json:"text"`
	Tokens  []whisperToken `json:"tokens"`
}

func (d document) transcript() types.Transcript {
	tr := types.Transcript{Duration: d.Duration, Text: d.Text, Segments: d.Segments}
	if len(tr.Segments) == 0 && len(d.Transcription) > 0 {
		tr.Segments = make([]types.Segment, 0, len(d.Transcription))
		for _, e := range d.Transcription {
			s := types.Segment{Start: ms(e.Offsets.From), End: ms(e.Offsets.To), Text: e.Text}
			for _, tok := range e.Tokens {
				// special tokens such as [_BEG_] carry no speech
				if strings.HasPrefix(tok.Text, "[_") {
					continue
				}
				s.Words = append(s.Words, types.Word{Start: ms(tok.Offsets.From), End: ms(tok.Offsets.To), Word: tok.Text})
			}
			tr.Segments = append(tr.Segments, s)
		}
	}
	if len(tr.Segments) == 0 && strings.TrimSpace(tr.Text) != "" && tr.Duration > 0 {
		tr.Segments = []types.Segment{{Start: 0, End: tr.Duration, Text: tr.Text}}
	}
	return tr
}

func ms(v int64) float64 { return float64(v) / 1000 }

func clean(tr *types.Transcript) {
	tr.Text = strings.TrimSpace(tr.Text)
	for i := range tr.Segments {
		tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		words := tr.Segments[i].Words[:0]
		for _, w := range tr.Segments[i].Words {
			w.Word = strings.TrimSpace(w.Word)
			if w.Word != "" {
				words = append(words, w)
			}
		}
		if len(words) == 0 {
			words = nil
		}
		tr.Segments[i].Words = words
	}
}
