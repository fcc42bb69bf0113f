// Package api exposes the engine over a JSON HTTP API with background
// evolution jobs.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gonomen/domain/core"
	domevolution "gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	"gonomen/internal"
	"gonomen/internal/cipher"
	"gonomen/internal/convergence"
	apperrors "gonomen/internal/errors"
	"gonomen/internal/evolution"
	"gonomen/internal/formula"
	"gonomen/internal/stego"
	"gonomen/internal/validation"
	"gonomen/ports"
)

// Deps are the collaborators the server routes to. Stego and Histories
// are optional; their endpoints answer with an error when unset.
type Deps struct {
	Engine    *formula.Engine
	Extractor ports.FeatureExtractor
	Dataset   ports.DomainDataset
	Validator *validation.Validator
	Evolver   *evolution.Evolver
	Analyzer  *convergence.Analyzer
	Detector  *cipher.Detector
	Stego     *stego.Encoder
	Histories ports.HistoryRepository

	// EvolutionDefaults fills fields an evolution request leaves unset.
	EvolutionDefaults func(t domformula.Type, domains []core.DomainID) domevolution.Config
}

// Server wires HTTP routes to the engine
type Server struct {
	deps   Deps
	jobs   *JobManager
	hub    *SSEHub
	router *gin.Engine
	logger *internal.Logger
}

// NewServer creates the API server
func NewServer(deps Deps, logger *internal.Logger) (*Server, error) {
	if deps.Engine == nil || deps.Extractor == nil || deps.Dataset == nil || deps.Validator == nil ||
		deps.Evolver == nil || deps.Analyzer == nil || deps.Detector == nil {
		return nil, core.NewConfigError("api", "engine, extractor, dataset, validator, evolver, analyzer and detector are required")
	}
	if deps.EvolutionDefaults == nil {
		deps.EvolutionDefaults = domevolution.DefaultConfig
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	hub := NewSSEHub(logger)
	s := &Server{
		deps:   deps,
		hub:    hub,
		jobs:   NewJobManager(deps.Evolver, deps.Histories, hub, logger),
		logger: logger.With("API"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Jobs returns the background job manager
func (s *Server) Jobs() *JobManager {
	return s.jobs
}

// Shutdown cancels running jobs and stops the event hub
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.jobs.Shutdown(ctx)
	s.hub.Close()
	return err
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/domains", s.handleDomains)
		v1.POST("/transform", s.handleTransform)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/cipher", s.handleCipher)

		v1.POST("/evolutions", s.handleStartEvolution)
		v1.GET("/evolutions", s.handleListEvolutions)
		v1.GET("/evolutions/:id", s.handleGetEvolution)
		v1.DELETE("/evolutions/:id", s.handleCancelEvolution)
		v1.GET("/evolutions/:id/history", s.handleEvolutionHistory)
		v1.GET("/evolutions/:id/events", s.handleEvolutionEvents)
		v1.POST("/evolutions/:id/convergence", s.handleConvergence)

		v1.GET("/histories", s.handleListHistories)
		v1.GET("/histories/:id", s.handleGetHistory)

		st := v1.Group("/stego")
		st.POST("/inject", s.handleStegoInject)
		st.POST("/extract", s.handleStegoExtract)
		st.POST("/auth", s.handleStegoAuth)
		st.POST("/verify", s.handleStegoVerify)
	}
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps err to a status and the {"error","code"} envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apperrors.GetCode(err)})
}

// bind decodes the JSON body, reporting binding failures as invalid input.
func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.respondError(c, apperrors.Wrap(apperrors.InvalidInput(err.Error()), "invalid request body"))
		return false
	}
	return true
}
