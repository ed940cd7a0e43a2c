package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/linecut/internal/domain/assembly"
	"github.com/forPelevin/linecut/internal/types"
)

type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCanceled  JobState = "canceled"
)

type Job struct {
	ID         string
	State      JobState
	Output     string
	Partial    bool
	Cuts       []types.CutInstruction
	Manifest   string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (j Job) Done() bool { return j.State != JobRunning }

// StartAssembly plans the cut list synchronously and renders it in the
// background. An incomplete selection without AllowPartial fails here and no
// job is created. Only one job may run at a time.
func (c *Controller) StartAssembly(ctx context.Context, opts assembly.Options, output string) (Job, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return Job{}, types.ErrNoSession
	}
	if c.jobRunningLocked() {
		c.mu.Unlock()
		return Job{}, types.ErrAssemblyRunning
	}
	cuts, err := assembly.Plan(c.state, opts)
	if err != nil {
		c.mu.Unlock()
		return Job{}, err
	}
	if len(cuts) == 0 {
		c.mu.Unlock()
		return Job{}, errors.New("nothing to assemble: no lines selected")
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &Job{
		ID:        uuid.NewString(),
		State:     JobRunning,
		Output:    output,
		Partial:   opts.AllowPartial && !c.state.IsComplete(),
		Cuts:      cuts,
		StartedAt: c.d.Now().UTC(),
	}
	done := make(chan struct{})
	c.job, c.jobCancel, c.jobDone = job, cancel, done
	lines := c.state.Lines()
	sessionID := c.sessionID
	ev := c.eventLocked(types.EventAssemblyStarted, nil)
	ev.JobID = job.ID
	snapshot := *job
	c.mu.Unlock()

	c.log.Info("assembly started", "job", job.ID, "cuts", len(cuts), "output", output, "partial", snapshot.Partial)
	c.emit(ev)

	go c.runJob(jobCtx, cancel, done, job.ID, cuts, opts, output, snapshot.Partial, sessionID, lines)
	return snapshot, nil
}

func (c *Controller) runJob(ctx context.Context, cancel context.CancelFunc, done chan struct{}, jobID string,
	cuts []types.CutInstruction, opts assembly.Options, output string, partial bool, sessionID string, lines []types.ScriptLine) {
	defer close(done)
	defer cancel()

	res, err := c.assembler.Render(ctx, cuts, opts, output)
	manifestPath := ""
	if err == nil {
		m := BuildManifest(sessionID, res.Output, partial, res.Cuts, lines)
		manifestPath = ManifestPath(res.Output)
		if werr := WriteManifest(manifestPath, m); werr != nil {
			c.log.Warn("manifest not written", "job", jobID, "error", werr)
			manifestPath = ""
		}
	}

	c.mu.Lock()
	job := c.job
	if job == nil || job.ID != jobID {
		c.mu.Unlock()
		return
	}
	job.FinishedAt = c.d.Now().UTC()
	var typ string
	switch {
	case err == nil:
		job.State, job.Output, job.Manifest = JobSucceeded, res.Output, manifestPath
		typ = types.EventAssemblySucceeded
	case errors.Is(err, context.Canceled):
		job.State, job.Err = JobCanceled, err
		typ = types.EventAssemblyCanceled
	default:
		job.State, job.Err = JobFailed, err
		typ = types.EventAssemblyFailed
	}
	ev := c.eventLocked(typ, nil)
	ev.JobID = jobID
	if err != nil {
		ev.Message = err.Error()
	}
	c.jobCancel = nil
	took := job.FinishedAt.Sub(job.StartedAt)
	c.mu.Unlock()

	if err != nil {
		c.log.Error("assembly finished", "job", jobID, "state", typ, "error", err)
	} else {
		c.log.Info("assembly finished", "job", jobID, "output", res.Output, "took", took)
	}
	c.emit(ev)
}

// CancelAssembly stops the running job. Selections are untouched.
func (c *Controller) CancelAssembly() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.jobRunningLocked() || c.jobCancel == nil {
		return types.ErrNoAssembly
	}
	c.jobCancel()
	return nil
}

// Job returns the latest assembly job, if any.
func (c *Controller) Job() (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return Job{}, false
	}
	return *c.job, true
}

// Assemble runs an assembly and waits for it. Canceling ctx cancels the job.
// A failed or canceled job returns its error alongside the job.
func (c *Controller) Assemble(ctx context.Context, opts assembly.Options, output string) (Job, error) {
	job, err := c.StartAssembly(ctx, opts, output)
	if err != nil {
		return Job{}, err
	}
	c.mu.Lock()
	done := c.jobDone
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		_ = c.CancelAssembly()
		<-done
	}
	final, _ := c.Job()
	if final.ID != job.ID {
		return job, errors.New("assembly job replaced while waiting")
	}
	return final, final.Err
}

func (c *Controller) jobRunningLocked() bool {
	return c.job != nil && c.job.State == JobRunning
}

// BuildManifest describes an assembled output in script order.
func BuildManifest(sessionID, output string, partial bool, cuts []types.CutInstruction, lines []types.ScriptLine) types.Manifest {
	m := types.Manifest{SessionID: sessionID, Output: output, Partial: partial}
	for _, cut := range cuts {
		text := ""
		if cut.LineIndex >= 0 && cut.LineIndex < len(lines) {
			text = lines[cut.LineIndex].Text
		}
		m.Cuts = append(m.Cuts, types.ManifestCut{
			Position: cut.OutputPosition,
			Line:     cut.LineIndex,
			ClipID:   cut.ClipID,
			StartSec: cut.Start.Seconds(),
			EndSec:   cut.End.Seconds(),
			Text:     text,
		})
	}
	return m
}

// ManifestPath puts the manifest next to output: out/final.mp4 gives
// out/final.manifest.json.
func ManifestPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".manifest.json"
}

func WriteManifest(path string, m types.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
