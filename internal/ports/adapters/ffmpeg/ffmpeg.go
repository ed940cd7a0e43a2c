package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/linecut/internal/types"
)

const loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"

type Options struct {
	// Loudnorm normalizes every cut and the final output to -16 LUFS.
	Loudnorm bool
	// FrameRate is forced on the concatenated output. Zero means 24.
	FrameRate int
	// TempDir holds intermediate cuts; empty uses os.TempDir.
	TempDir string
	Logger  *slog.Logger
}

type Adapter struct {
	ffmpeg  string
	ffprobe string
	opts    Options
	log     *slog.Logger
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func New(ffmpegPath, ffprobePath string, opts Options) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 24
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, opts: opts, log: log, run: combinedOutput}
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error {
	b, err := a.run(ctx, a.ffmpeg,
		"-y",
		"-i", inMedia,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) MediaDuration(ctx context.Context, inMedia string) (time.Duration, error) {
	b, err := a.run(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inMedia,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return types.Seconds(sec), nil
}

// Render re-encodes every cut to a uniform intermediate and joins them with
// the concat demuxer. With a music bed the joined video is mixed with it in
// one more pass. Intermediates are removed whatever the outcome.
func (a *Adapter) Render(ctx context.Context, job types.RenderJob) (string, error) {
	if len(job.Cuts) == 0 {
		return "", fmt.Errorf("render: empty cut list")
	}
	if job.Output == "" {
		return "", fmt.Errorf("render: output path required")
	}
	if job.Music != nil {
		if _, err := os.Stat(job.Music.Path); err != nil {
			return "", fmt.Errorf("render: music bed: %w", err)
		}
	}
	cuts := append([]types.RenderCut(nil), job.Cuts...)
	sort.SliceStable(cuts, func(i, j int) bool { return cuts[i].OutputPosition < cuts[j].OutputPosition })

	work, err := os.MkdirTemp(a.opts.TempDir, "linecut-render-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(work)

	parts := make([]string, 0, len(cuts))
	for i, c := range cuts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out := filepath.Join(work, fmt.Sprintf("cut_%03d.mp4", i))
		ass := ""
		if c.CaptionsASS != "" {
			ass = filepath.Join(work, fmt.Sprintf("cut_%03d.ass", i))
			if err := os.WriteFile(ass, []byte(c.CaptionsASS), 0o644); err != nil {
				return "", err
			}
		}
		a.log.Debug("cutting clip", "position", c.OutputPosition, "clip", c.ClipID, "start", c.Start, "end", c.End)
		if b, err := a.run(ctx, a.ffmpeg, a.cutArgs(c, ass, out)...); err != nil {
			return "", fmt.Errorf("ffmpeg cut %d (%s): %w\n%s", c.OutputPosition, c.ClipID, err, string(b))
		}
		parts = append(parts, out)
	}

	list := filepath.Join(work, "concat.txt")
	if err := os.WriteFile(list, []byte(concatList(parts)), 0o644); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return "", err
	}
	joined := job.Output
	if job.Music != nil {
		joined = filepath.Join(work, "dialogue.mp4")
	}
	a.log.Info("concatenating cuts", "count", len(parts), "output", joined)
	if b, err := a.run(ctx, a.ffmpeg, a.concatArgs(list, joined)...); err != nil {
		return "", fmt.Errorf("ffmpeg concat: %w\n%s", err, string(b))
	}
	if job.Music == nil {
		return job.Output, nil
	}

	dur, err := a.MediaDuration(ctx, joined)
	if err != nil {
		return "", err
	}
	a.log.Info("mixing music bed", "music", job.Music.Path, "volume", job.Music.Volume, "duration", dur)
	if b, err := a.run(ctx, a.ffmpeg, mixArgs(joined, *job.Music, dur, job.Output)...); err != nil {
		return "", fmt.Errorf("ffmpeg music mix: %w\n%s", err, string(b))
	}
	return job.Output, nil
}

// mixArgs lays music under the dialogue of video. The video stream is copied;
// the mix keeps the dialogue first so its length wins.
func mixArgs(video string, m types.MusicBed, dur time.Duration, out string) []string {
	return []string{
		"-y",
		"-i", video,
		"-i", m.Path,
		"-filter_complex", musicFilter(m, dur),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		out,
	}
}

func musicFilter(m types.MusicBed, dur time.Duration) string {
	var chain []string
	if m.Loop {
		chain = append(chain, "aloop=loop=-1:size=2e+09")
	}
	chain = append(chain, "volume="+fmtFloat(m.Volume))
	if m.FadeIn > 0 {
		chain = append(chain, "afade=t=in:st=0:d="+fmtSeconds(m.FadeIn))
	}
	if m.FadeOut > 0 {
		start := max(dur-m.FadeOut, 0)
		chain = append(chain, "afade=t=out:st="+fmtSeconds(start)+":d="+fmtSeconds(m.FadeOut))
	}
	return "[1:a]" + strings.Join(chain, ",") + "[music];" +
		"[0:a]volume=" + fmtFloat(m.DialogueVolume) + "[dialogue];" +
		"[dialogue][music]amix=inputs=2:duration=first:dropout_transition=0[aout]"
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (a *Adapter) cutArgs(c types.RenderCut, assPath, out string) []string {
	args := []string{
		"-y",
		"-ss", fmtSeconds(c.Start),
		"-i", c.SourcePath,
		"-t", fmtSeconds(c.End - c.Start),
	}
	if assPath != "" {
		args = append(args, "-vf", "subtitles="+escapeFilterPath(assPath))
	}
	if a.opts.Loudnorm {
		args = append(args, "-af", loudnormFilter)
	}
	return append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "48000",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	)
}

func (a *Adapter) concatArgs(listPath, out string) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-r", strconv.Itoa(a.opts.FrameRate),
		"-fps_mode", "cfr",
	}
	if a.opts.Loudnorm {
		args = append(args, "-af", loudnormFilter)
	}
	return append(args,
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "48000",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	)
}

// concatList renders the concat demuxer input, quoting paths for its
// single-quote syntax.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "\\\\")
	p = strings.ReplaceAll(p, ":", "\\:")
	p = strings.ReplaceAll(p, "'", "\\'")
	return p
}
