// Package subtitles renders per-cut caption tracks in ASS format for the
// ffmpeg subtitles filter.
package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/linecut/internal/types"
)

const (
	styleName      = "Caption"
	maxLineChars   = 42
	maxLineWords   = 9
	minKaraokeCent = 1
)

// RenderCaptionsASS builds captions for the [start,end) range of a clip.
// Event times are relative to start since each cut is rendered on its own.
// Word timings produce karaoke events; transcripts without words fall back
// to one event with the overlapping segment text. An empty range or a range
// with no speech yields a header-only document.
func RenderCaptionsASS(tr types.Transcript, start, end time.Duration) string {
	var b strings.Builder
	writeHeader(&b)
	if end <= start {
		return b.String()
	}

	words := wordsInRange(tr, start, end)
	if len(words) == 0 {
		if text := segmentTextInRange(tr, start, end); text != "" {
			writeEvent(&b, 0, end-start, escape(text))
		}
		return b.String()
	}
	for _, ln := range groupWords(words) {
		var body strings.Builder
		for i, w := range ln.words {
			if i > 0 {
				body.WriteByte(' ')
			}
			cs := int((w.end - w.start) / (10 * time.Millisecond))
			if cs < minKaraokeCent {
				cs = minKaraokeCent
			}
			fmt.Fprintf(&body, "{\\k%d}%s", cs, w.text)
		}
		writeEvent(&b, ln.start, ln.end, body.String())
	}
	return b.String()
}

type timedWord struct {
	start, end time.Duration
	text       string
}

type captionLine struct {
	start, end time.Duration
	words      []timedWord
}

func wordsInRange(tr types.Transcript, start, end time.Duration) []timedWord {
	var out []timedWord
	for _, s := range tr.Segments {
		for _, w := range s.Words {
			ws, we := types.Seconds(w.Start), types.Seconds(w.End)
			if we <= start || ws >= end {
				continue
			}
			text := escape(w.Word)
			if text == "" {
				continue
			}
			ws, we = max(ws, start), min(we, end)
			out = append(out, timedWord{start: ws - start, end: we - start, text: text})
		}
	}
	return out
}

func segmentTextInRange(tr types.Transcript, start, end time.Duration) string {
	var parts []string
	for _, s := range tr.Segments {
		if types.Seconds(s.End) <= start || types.Seconds(s.Start) >= end {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// groupWords packs words into caption lines bounded by maxLineChars and
// maxLineWords.
func groupWords(words []timedWord) []captionLine {
	var out []captionLine
	var cur captionLine
	size := 0
	for _, w := range words {
		n := len([]rune(w.text))
		if len(cur.words) > 0 && (len(cur.words) >= maxLineWords || size+1+n > maxLineChars) {
			out = append(out, cur)
			cur, size = captionLine{}, 0
		}
		if len(cur.words) == 0 {
			cur.start = w.start
		} else {
			size++
		}
		cur.words = append(cur.words, w)
		cur.end = w.end
		size += n
	}
	if len(cur.words) > 0 {
		out = append(out, cur)
	}
	return out
}

func writeHeader(b *strings.Builder) {
	b.WriteString(`[Script Info]
ScriptType: v4.00+
PlayResX: 1920
PlayResY: 1080
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, Inter, 64, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,4,1,2, 80,80,60,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`)
}

func writeEvent(b *strings.Builder, start, end time.Duration, text string) {
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n", assTime(start), assTime(end), styleName, text)
}

// assTime formats d as H:MM:SS.cc.
func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := int64(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", cs/360000, cs/6000%60, cs/100%60, cs%100)
}

func escape(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
