package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/satchelworks/satchel/internal/bundle"
	"github.com/satchelworks/satchel/internal/pipeline"
	"github.com/satchelworks/satchel/internal/shared/id"
	"github.com/satchelworks/satchel/internal/stages"
)

// PackRequest is the body of POST /v1/pack.
type PackRequest struct {
	Root            string `json:"root" binding:"required"`
	Profile         string `json:"profile"`
	Format          string `json:"format"`
	Summarize       bool   `json:"summarize"`
	ContinueOnError bool   `json:"continue_on_error"`
}

// PackResponse carries the artifact and the run's statistics.
type PackResponse struct {
	RequestID  id.RequestID        `json:"request_id"`
	ArtifactID id.ArtifactID       `json:"artifact_id"`
	Checksum   string              `json:"checksum"`
	Profile    string              `json:"profile"`
	Files      int                 `json:"files"`
	Skipped    int                 `json:"skipped"`
	Artifact   string              `json:"artifact"`
	Stats      pipeline.Statistics `json:"stats"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "satchel",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"summarizer": s.ai.Enabled(),
		"streams":    s.streamer.ClientCount(),
	})
}

func (s *Server) handleProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": s.resolver.List()})
}

func (s *Server) handlePack(c *gin.Context) {
	reqID := id.NewRequestID()
	c.Header("X-Request-ID", reqID.String())

	var req PackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := req.Profile
	if name == "" {
		name = s.config.Pack.Profile
	}
	prof, err := s.resolver.Resolve(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Format != "" {
		prof.Format = req.Format
	}
	prof.Summarize = prof.Summarize || req.Summarize
	// The artifact travels in the response body, never the server's stdout.
	prof.Output = "-"

	stageList := stages.Pack(stages.Deps{Summarizer: s.ai})
	for _, st := range stageList {
		if d, ok := st.(*stages.Deliver); ok {
			d.Stdout = io.Discard
		}
	}

	p := pipeline.New(
		pipeline.WithLogger(s.logger),
		pipeline.WithBus(s.bus),
		pipeline.WithConfig(s.config),
		pipeline.ContinueOnError(req.ContinueOnError || s.config.Pack.ContinueOnErr),
		pipeline.MaxConcurrency(s.config.Pack.MaxConcurrency),
	).Through(stageList...)

	start := time.Now()
	out, err := p.Process(c.Request.Context(), bundle.New(req.Root, prof))
	stats := p.Stats()
	if err != nil {
		s.metrics.RecordPack(prof.Name, "error", time.Since(start), 0, 0)
		s.logger.Warn("pack failed",
			zap.String("request", reqID.String()),
			zap.String("profile", prof.Name),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"request_id": reqID,
			"error":      err.Error(),
			"stats":      stats,
		})
		return
	}

	b := out.(*bundle.Bundle)
	s.metrics.RecordPack(prof.Name, "success", time.Since(start), len(b.Included()), len(b.Artifact))

	c.JSON(http.StatusOK, PackResponse{
		RequestID:  reqID,
		ArtifactID: b.ArtifactID,
		Checksum:   b.Checksum,
		Profile:    prof.Name,
		Files:      len(b.Included()),
		Skipped:    len(b.SkippedFiles()),
		Artifact:   string(b.Artifact),
		Stats:      stats,
	})
}
