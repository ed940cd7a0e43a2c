// Package api exposes a session controller over HTTP: a small JSON API for
// the operator UI, a websocket event stream, and clip media for preview.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forPelevin/linecut/internal/domain/assembly"
	"github.com/forPelevin/linecut/internal/domain/selection"
	"github.com/forPelevin/linecut/internal/ports"
	"github.com/forPelevin/linecut/internal/sessionfile"
	"github.com/forPelevin/linecut/internal/types"
	"github.com/forPelevin/linecut/internal/usecase"
)

type Options struct {
	// OutputDir receives assembled videos; request output names are taken
	// relative to it.
	OutputDir string
	// SessionFile is where POST /api/session/save writes. Empty disables it.
	SessionFile string
	// Script is recorded in saved session files.
	Script   string
	Captions bool
	// Music is mixed under assembled outputs unless a request turns it off.
	Music  *types.MusicBed
	Logger *slog.Logger
	Now    func() time.Time
}

type Server struct {
	ctrl    *usecase.Controller
	hub     *Hub
	sources ports.SourceLocator
	opts    Options
	log     *slog.Logger
}

func New(ctrl *usecase.Controller, hub *Hub, sources ports.SourceLocator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{ctrl: ctrl, hub: hub, sources: sources, opts: opts, log: opts.Logger}
}

// Router builds the gin engine. Every handler goes through the controller,
// which serializes mutations.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/api")
	{
		api.GET("/status", s.status)
		api.GET("/lines", s.lines)
		api.GET("/lines/:index", s.line)
		api.POST("/lines/:index/select", s.selectClip)
		api.POST("/lines/:index/skip", s.skip)
		api.POST("/navigate", s.navigate)
		api.POST("/refresh", s.refresh)
		api.POST("/session/save", s.saveSession)

		api.GET("/assemble", s.job)
		api.POST("/assemble", s.startAssembly)
		api.DELETE("/assemble", s.cancelAssembly)

		if s.hub != nil {
			api.GET("/events", func(c *gin.Context) { s.hub.ServeWS(c.Writer, c.Request) })
		}
	}
	r.GET("/media/:clip", s.media)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

func lineIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, fmt.Sprintf("line index %q is not a number", c.Param("index")))
		return 0, false
	}
	return i, true
}

func (s *Server) status(c *gin.Context) {
	st, err := s.ctrl.Status()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatus(st))
}

func (s *Server) lines(c *gin.Context) {
	st, err := s.ctrl.Status()
	if err != nil {
		writeError(c, err)
		return
	}
	ls, err := s.ctrl.Lines()
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]lineDTO, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLineSummary(l, st.Current))
	}
	c.JSON(http.StatusOK, gin.H{"lines": out})
}

func (s *Server) line(c *gin.Context) {
	i, ok := lineIndex(c)
	if !ok {
		return
	}
	v, err := s.ctrl.Line(i)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toLine(v))
}

type selectRequest struct {
	ClipID       string   `json:"clip_id" binding:"required"`
	TrimStartSec *float64 `json:"trim_start_sec"`
	TrimEndSec   *float64 `json:"trim_end_sec"`
}

func (s *Server) selectClip(c *gin.Context) {
	i, ok := lineIndex(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	var trim *usecase.Trim
	switch {
	case req.TrimStartSec != nil && req.TrimEndSec != nil:
		trim = &usecase.Trim{
			Start: types.Seconds(*req.TrimStartSec),
			End:   types.Seconds(*req.TrimEndSec),
		}
	case req.TrimStartSec != nil || req.TrimEndSec != nil:
		badRequest(c, "trim_start_sec and trim_end_sec must be given together")
		return
	}
	sel, err := s.ctrl.Select(c.Request.Context(), i, req.ClipID, trim)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSelection(&sel))
}

func (s *Server) skip(c *gin.Context) {
	i, ok := lineIndex(c)
	if !ok {
		return
	}
	if err := s.ctrl.Skip(i); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type navigateRequest struct {
	Direction string `json:"direction"`
	Index     *int   `json:"index"`
}

func (s *Server) navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Index != nil {
		if err := s.ctrl.Seek(*req.Index); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"current": *req.Index})
		return
	}
	d, err := selection.ParseDirection(req.Direction)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	cur, err := s.ctrl.Navigate(d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": cur})
}

func (s *Server) refresh(c *gin.Context) {
	if err := s.ctrl.Refresh(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	s.status(c)
}

func (s *Server) saveSession(c *gin.Context) {
	if s.opts.SessionFile == "" {
		c.AbortWithStatusJSON(http.StatusNotImplemented, errorBody{Error: "no session file configured"})
		return
	}
	id, snap, err := s.ctrl.Snapshot()
	if err != nil {
		writeError(c, err)
		return
	}
	f := sessionfile.FromSnapshot(id, s.opts.Script, snap, s.opts.Now())
	if err := sessionfile.Save(c.Request.Context(), s.opts.SessionFile, f); err != nil {
		writeError(c, err)
		return
	}
	s.log.Info("session saved", "path", s.opts.SessionFile, "selections", len(f.Selections))
	c.JSON(http.StatusOK, gin.H{"path": s.opts.SessionFile, "selections": len(f.Selections)})
}

type assembleRequest struct {
	Output       string `json:"output"`
	AllowPartial bool   `json:"allow_partial"`
	Captions     *bool  `json:"captions"`
	Music        *bool  `json:"music"`
}

func (s *Server) startAssembly(c *gin.Context) {
	var req assembleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	opts := assembly.Options{AllowPartial: req.AllowPartial, Captions: s.opts.Captions}
	if req.Captions != nil {
		opts.Captions = *req.Captions
	}
	if req.Music == nil || *req.Music {
		if req.Music != nil && s.opts.Music == nil {
			badRequest(c, "no background music is configured")
			return
		}
		opts.Music = s.opts.Music
	}
	output, err := s.outputPath(req.Output)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	// The job outlives the request.
	job, err := s.ctrl.StartAssembly(context.WithoutCancel(c.Request.Context()), opts, output)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toJob(job))
}

// outputPath keeps assembled files inside OutputDir: only the base name of a
// requested output is used.
func (s *Server) outputPath(name string) (string, error) {
	if name == "" {
		name = "linecut-" + s.opts.Now().Format("20060102-150405") + ".mp4"
	}
	base := filepath.Base(name)
	switch base {
	case ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("output %q does not name a file", name)
	}
	if filepath.Ext(base) == "" {
		base += ".mp4"
	}
	return filepath.Join(s.opts.OutputDir, base), nil
}

func (s *Server) job(c *gin.Context) {
	j, ok := s.ctrl.Job()
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "no assembly has been started"})
		return
	}
	c.JSON(http.StatusOK, toJob(j))
}

func (s *Server) cancelAssembly(c *gin.Context) {
	if err := s.ctrl.CancelAssembly(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) media(c *gin.Context) {
	if s.sources == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	path, err := s.sources.Locate(c.Param("clip"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.File(path)
}

// ListenAndServe runs the API on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("api listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	if s.hub != nil {
		s.hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
