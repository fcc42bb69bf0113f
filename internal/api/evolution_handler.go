package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gonomen/domain/convergence"
	"gonomen/domain/core"
	domevolution "gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	domstats "gonomen/domain/stats"
	apperrors "gonomen/internal/errors"
)

// EvolutionRequest starts a background run. Zero-valued optional fields
// take the server defaults.
type EvolutionRequest struct {
	Formula        domformula.Type `json:"formula"`
	Domains        []core.DomainID `json:"domains"`
	PopulationSize int             `json:"population_size" binding:"omitempty,gte=2"`
	Generations    int             `json:"generations" binding:"omitempty,gte=1"`
	MutationRate   *float64        `json:"mutation_rate,omitempty" binding:"omitempty,gte=0,lte=1"`
	EliteSize      int             `json:"elite_size" binding:"omitempty,gte=1"`
	LimitPerDomain int             `json:"limit_per_domain" binding:"omitempty,gte=1"`
	Seed           *int64          `json:"seed,omitempty"`
	Epsilon        *float64        `json:"epsilon,omitempty"`
	Patience       int             `json:"patience" binding:"omitempty,gte=1"`
}

// ConvergenceRequest pools extra stored histories into the analysis
type ConvergenceRequest struct {
	HistoryIDs []core.HistoryID `json:"history_ids"`
}

// ConvergenceResponse is the convergence signature of the pooled runs and
// the universal patterns found against a validation of the best formula.
type ConvergenceResponse struct {
	Signature *convergence.Signature      `json:"signature"`
	Patterns  *convergence.PatternReport  `json:"patterns"`
	Report    *domstats.CrossDomainReport `json:"report"`
}

func (s *Server) evolutionConfig(c *gin.Context, req EvolutionRequest) (domevolution.Config, bool) {
	domains, ok := s.resolveDomains(c, req.Domains)
	if !ok {
		return domevolution.Config{}, false
	}
	cfg := s.deps.EvolutionDefaults(req.Formula, domains)
	if req.PopulationSize > 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.Generations > 0 {
		cfg.Generations = req.Generations
	}
	if req.MutationRate != nil {
		cfg.MutationRate = *req.MutationRate
	}
	if req.EliteSize > 0 {
		cfg.EliteSize = req.EliteSize
	}
	if req.LimitPerDomain > 0 {
		cfg.LimitPerDomain = req.LimitPerDomain
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Epsilon != nil {
		cfg.Epsilon = *req.Epsilon
	}
	if req.Patience > 0 {
		cfg.Patience = req.Patience
	}
	if cfg.TournamentSize > cfg.PopulationSize {
		cfg.TournamentSize = cfg.PopulationSize
	}
	return cfg, true
}

func (s *Server) handleStartEvolution(c *gin.Context) {
	var req EvolutionRequest
	if !s.bind(c, &req) {
		return
	}
	cfg, ok := s.evolutionConfig(c, req)
	if !ok {
		return
	}
	view, err := s.jobs.Start(cfg)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Location", "/api/v1/evolutions/"+view.ID.String())
	c.JSON(http.StatusAccepted, view)
}

func (s *Server) jobID(c *gin.Context) (core.JobID, bool) {
	id, err := core.ParseJobID(c.Param("id"))
	if err != nil {
		s.respondError(c, apperrors.InvalidInput(err.Error()))
		return "", false
	}
	return id, true
}

func (s *Server) handleListEvolutions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.jobs.List()})
}

func (s *Server) handleGetEvolution(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	view, err := s.jobs.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleCancelEvolution(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	view, err := s.jobs.Cancel(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

func (s *Server) handleEvolutionHistory(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	h, err := s.jobs.History(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleEvolutionEvents(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	// subscribe before the snapshot so a finish in between is not missed
	client := s.hub.Subscribe(id)
	defer s.hub.Unsubscribe(client)

	view, err := s.jobs.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	eventType := "progress"
	if view.Status != JobRunning {
		eventType = string(view.Status)
	}
	s.hub.Stream(c, client, ProgressEvent{JobID: id, EventType: eventType, Progress: view.Progress, Timestamp: time.Now().UTC()})
}

func (s *Server) handleConvergence(c *gin.Context) {
	id, ok := s.jobID(c)
	if !ok {
		return
	}
	var req ConvergenceRequest
	if c.Request.ContentLength != 0 && !s.bind(c, &req) {
		return
	}

	h, err := s.jobs.History(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if len(h.Generations) == 0 {
		s.respondError(c, apperrors.Wrap(core.NewInsufficientDataError("evolution", 0, 1), "job recorded no generations"))
		return
	}
	histories := []*domevolution.History{h}
	for _, hid := range req.HistoryIDs {
		if s.deps.Histories == nil {
			s.respondError(c, apperrors.ConfigInvalid("history persistence is disabled"))
			return
		}
		extra, err := s.deps.Histories.Get(c.Request.Context(), hid)
		if err != nil {
			s.respondError(c, err)
			return
		}
		histories = append(histories, extra)
	}

	sig, err := s.deps.Analyzer.AnalyzeRuns(histories)
	if err != nil {
		s.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	corpus, err := s.deps.Validator.Prepare(ctx, h.Config.Domains, h.Config.LimitPerDomain)
	if err != nil {
		s.respondError(c, err)
		return
	}
	report, err := s.deps.Validator.ValidateDefinition(ctx, corpus, h.Frozen())
	if err != nil {
		s.respondError(c, err)
		return
	}
	patterns, err := s.deps.Analyzer.UniversalPatterns(histories, []*domstats.CrossDomainReport{report})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConvergenceResponse{Signature: sig, Patterns: patterns, Report: report})
}

func (s *Server) handleListHistories(c *gin.Context) {
	if s.deps.Histories == nil {
		s.respondError(c, apperrors.ConfigInvalid("history persistence is disabled"))
		return
	}
	t, err := domformula.ParseType(c.DefaultQuery("formula", domformula.Hybrid.String()))
	if err != nil {
		s.respondError(c, err)
		return
	}
	limit, err := parseLimit(c, 20)
	if err != nil {
		s.respondError(c, err)
		return
	}
	list, err := s.deps.Histories.List(c.Request.Context(), t, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"histories": list})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	if s.deps.Histories == nil {
		s.respondError(c, apperrors.ConfigInvalid("history persistence is disabled"))
		return
	}
	id, err := core.ParseHistoryID(c.Param("id"))
	if err != nil {
		s.respondError(c, apperrors.InvalidInput(err.Error()))
		return
	}
	h, err := s.deps.Histories.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}
