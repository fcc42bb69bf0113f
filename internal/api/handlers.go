package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gonomen/domain/core"
	"gonomen/domain/encoding"
	"gonomen/domain/features"
	domformula "gonomen/domain/formula"
	domstego "gonomen/domain/stego"
	apperrors "gonomen/internal/errors"
)

// TransformRequest encodes one name under one theory, a custom definition,
// or every theory when neither is given.
type TransformRequest struct {
	Name       string                 `json:"name" binding:"required"`
	Formula    *domformula.Type       `json:"formula,omitempty"`
	Definition *domformula.Definition `json:"definition,omitempty"`
}

// TransformResponse carries the features and the encodings by theory name
type TransformResponse struct {
	Name      string                            `json:"name"`
	Features  features.Vector                   `json:"features"`
	Encodings map[string]encoding.VisualEncoding `json:"encodings"`
}

// ValidateRequest validates one theory over domains; empty domains means all.
type ValidateRequest struct {
	Formula    domformula.Type        `json:"formula"`
	Definition *domformula.Definition `json:"definition,omitempty"`
	Domains    []core.DomainID        `json:"domains"`
	Limit      int                    `json:"limit" binding:"omitempty,gte=1"`
}

// CipherRequest analyzes the transform over a name corpus
type CipherRequest struct {
	Names   []string        `json:"names" binding:"required,min=4"`
	Formula domformula.Type `json:"formula"`
}

// InjectRequest embeds a message in an encoding. When Encoding is absent
// the encoding of Name under Formula is used.
type InjectRequest struct {
	Encoding    *encoding.VisualEncoding `json:"encoding,omitempty"`
	Name        string                   `json:"name,omitempty"`
	Formula     domformula.Type          `json:"formula"`
	MessageType domstego.MessageType     `json:"message_type" binding:"required"`
	Data        string                   `json:"data"`
	Method      domstego.Method          `json:"method" binding:"required"`
}

// EncodingRequest carries an encoding for extract and auth
type EncodingRequest struct {
	Encoding encoding.VisualEncoding `json:"encoding"`
}

// VerifyRequest checks an authentication code
type VerifyRequest struct {
	Encoding encoding.VisualEncoding `json:"encoding"`
	Code     string                  `json:"code" binding:"required"`
}

func (s *Server) handleDomains(c *gin.Context) {
	domains, err := s.deps.Dataset.Domains(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

func (s *Server) handleTransform(c *gin.Context) {
	var req TransformRequest
	if !s.bind(c, &req) {
		return
	}
	fv, err := s.deps.Extractor.Extract(req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := TransformResponse{Name: req.Name, Features: fv, Encodings: make(map[string]encoding.VisualEncoding)}
	switch {
	case req.Definition != nil:
		enc, err := s.deps.Engine.TransformWith(req.Name, fv, *req.Definition)
		if err != nil {
			s.respondError(c, err)
			return
		}
		resp.Encodings[req.Definition.Type.String()] = enc
	case req.Formula != nil:
		enc, err := s.deps.Engine.Transform(req.Name, fv, *req.Formula)
		if err != nil {
			s.respondError(c, err)
			return
		}
		resp.Encodings[req.Formula.String()] = enc
	default:
		all, err := s.deps.Engine.TransformAll(req.Name, fv)
		if err != nil {
			s.respondError(c, err)
			return
		}
		for t, enc := range all {
			resp.Encodings[t.String()] = enc
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) resolveDomains(c *gin.Context, domains []core.DomainID) ([]core.DomainID, bool) {
	if len(domains) > 0 {
		return domains, true
	}
	all, err := s.deps.Dataset.Domains(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return all, true
}

func (s *Server) handleValidate(c *gin.Context) {
	var req ValidateRequest
	if !s.bind(c, &req) {
		return
	}
	domains, ok := s.resolveDomains(c, req.Domains)
	if !ok {
		return
	}
	if req.Limit == 0 {
		req.Limit = s.deps.EvolutionDefaults(req.Formula, domains).LimitPerDomain
	}

	ctx := c.Request.Context()
	def, err := s.definition(req.Formula, req.Definition)
	if err != nil {
		s.respondError(c, err)
		return
	}
	corpus, err := s.deps.Validator.Prepare(ctx, domains, req.Limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	report, err := s.deps.Validator.ValidateDefinition(ctx, corpus, def)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) definition(t domformula.Type, custom *domformula.Definition) (domformula.Definition, error) {
	if custom != nil {
		return *custom, nil
	}
	return s.deps.Engine.Definition(t)
}

func (s *Server) handleCipher(c *gin.Context) {
	var req CipherRequest
	if !s.bind(c, &req) {
		return
	}
	profile, err := s.deps.Detector.Analyze(c.Request.Context(), req.Names, req.Formula)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) requireStego(c *gin.Context) bool {
	if s.deps.Stego == nil {
		s.respondError(c, apperrors.ConfigInvalid("steganography is disabled: STEGO_KEY is not set"))
		return false
	}
	return true
}

func (s *Server) handleStegoInject(c *gin.Context) {
	var req InjectRequest
	if !s.requireStego(c) || !s.bind(c, &req) {
		return
	}

	var enc encoding.VisualEncoding
	switch {
	case req.Encoding != nil:
		enc = *req.Encoding
	case req.Name != "":
		fv, err := s.deps.Extractor.Extract(req.Name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		enc, err = s.deps.Engine.Transform(req.Name, fv, req.Formula)
		if err != nil {
			s.respondError(c, err)
			return
		}
	default:
		s.respondError(c, apperrors.InvalidInput("either encoding or name is required"))
		return
	}

	msg, err := s.deps.Stego.CreateMessage(req.MessageType, []byte(req.Data))
	if err != nil {
		s.respondError(c, err)
		return
	}
	out, err := s.deps.Stego.Inject(enc, msg, req.Method)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"encoding":  out,
		"message":   msg,
		"auth_code": s.deps.Stego.GenerateAuthCode(out),
	})
}

func (s *Server) handleStegoExtract(c *gin.Context) {
	var req EncodingRequest
	if !s.requireStego(c) || !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.deps.Stego.Extract(req.Encoding))
}

func (s *Server) handleStegoAuth(c *gin.Context) {
	var req EncodingRequest
	if !s.requireStego(c) || !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": s.deps.Stego.GenerateAuthCode(req.Encoding)})
}

func (s *Server) handleStegoVerify(c *gin.Context) {
	var req VerifyRequest
	if !s.requireStego(c) || !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": s.deps.Stego.Verify(req.Encoding, req.Code)})
}

func parseLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n < 0 {
		return 0, apperrors.InvalidInput(fmt.Sprintf("limit %q is not a non-negative integer", raw))
	}
	return n, nil
}
