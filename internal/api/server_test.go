package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonomen/domain/core"
	domevolution "gonomen/domain/evolution"
	domformula "gonomen/domain/formula"
	"gonomen/domain/stats"
	"gonomen/internal"
	"gonomen/internal/cipher"
	"gonomen/internal/convergence"
	"gonomen/internal/evolution"
	"gonomen/internal/formula"
	"gonomen/internal/stego"
	"gonomen/internal/testkit"
	"gonomen/internal/validation"
	"gonomen/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*Server
	histories ports.HistoryRepository
}

func newTestServer(t *testing.T, withStego bool) *testServer {
	t.Helper()
	kit := testkit.NewTestKit()
	engine, err := formula.NewEngine()
	require.NoError(t, err)
	v, err := validation.NewValidator(engine, kit.DomainDataset(), kit.FeatureExtractor(), validation.WithLogger(internal.Discard))
	require.NoError(t, err)
	analyzer, err := convergence.NewAnalyzer(convergence.WithLogger(internal.Discard))
	require.NoError(t, err)
	detector, err := cipher.NewDetector(engine, kit.FeatureExtractor(), cipher.WithLogger(internal.Discard))
	require.NoError(t, err)

	deps := Deps{
		Engine:    engine,
		Extractor: kit.FeatureExtractor(),
		Dataset:   kit.DomainDataset(),
		Validator: v,
		Evolver:   evolution.NewEvolver(v, kit.RNGAdapter(), evolution.WithLogger(internal.Discard)),
		Analyzer:  analyzer,
		Detector:  detector,
		Histories: kit.HistoryRepository(),
		EvolutionDefaults: func(ft domformula.Type, domains []core.DomainID) domevolution.Config {
			cfg := domevolution.DefaultConfig(ft, domains)
			cfg.PopulationSize = 6
			cfg.Generations = 3
			cfg.LimitPerDomain = 80
			return cfg
		},
	}
	if withStego {
		enc, err := stego.NewEncoder([]byte("api-test-key"), stego.WithLogger(internal.Discard))
		require.NoError(t, err)
		deps.Stego = enc
	}

	s, err := NewServer(deps, internal.Discard)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return &testServer{Server: s, histories: deps.Histories}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var body errorBody
	decode(t, w, &body)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(Deps{}, internal.Discard)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDomains(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodGet, "/api/v1/domains", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Domains []core.DomainID `json:"domains"`
	}
	decode(t, w, &body)
	assert.Contains(t, body.Domains, core.DomainID("crypto"))
	assert.Len(t, body.Domains, len(testkit.DefaultDomains()))
}

func TestTransform(t *testing.T) {
	s := newTestServer(t, false)

	t.Run("every theory", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/transform", gin.H{"name": "Bitcoin"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Name      string                     `json:"name"`
			Encodings map[string]json.RawMessage `json:"encodings"`
		}
		decode(t, w, &resp)
		assert.Equal(t, "Bitcoin", resp.Name)
		assert.Len(t, resp.Encodings, len(domformula.Types()))
	})

	t.Run("one theory", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/transform", gin.H{"name": "Bitcoin", "formula": "phonetic"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Encodings map[string]json.RawMessage `json:"encodings"`
		}
		decode(t, w, &resp)
		assert.Len(t, resp.Encodings, 1)
		assert.Contains(t, resp.Encodings, "phonetic")
	})

	t.Run("missing name", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/transform", gin.H{})
		assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})

	t.Run("unknown theory", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/transform", gin.H{"name": "Bitcoin", "formula": "astrology"})
		assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})
}

func TestValidate(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/api/v1/validate", gin.H{
		"formula": "hybrid",
		"domains": []string{"crypto", "bands"},
		"limit":   120,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		LimitPerDomain int               `json:"limit_per_domain"`
		Domains        []json.RawMessage `json:"domains"`
	}
	decode(t, w, &report)
	assert.Equal(t, 120, report.LimitPerDomain)
	assert.Len(t, report.Domains, 2)
}

func TestValidate_UnknownDomainIsReported(t *testing.T) {
	s := newTestServer(t, false)
	w := s.do(t, http.MethodPost, "/api/v1/validate", gin.H{"formula": "hybrid", "domains": []string{"crypto", "atlantis"}, "limit": 100})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		Domains []struct {
			Domain core.DomainID `json:"domain"`
			Status string        `json:"status"`
		} `json:"domains"`
		Warnings []json.RawMessage `json:"warnings"`
	}
	decode(t, w, &report)
	require.Len(t, report.Domains, 2)
	for _, d := range report.Domains {
		if d.Domain == "atlantis" {
			assert.Equal(t, string(stats.DomainUnavailable), d.Status)
		}
	}
	assert.NotEmpty(t, report.Warnings)
}

func TestCipher(t *testing.T) {
	s := newTestServer(t, false)

	t.Run("profile", func(t *testing.T) {
		names := testkit.NewTestKit().Names(40, 7)
		w := s.do(t, http.MethodPost, "/api/v1/cipher", gin.H{"names": names, "formula": "phonetic"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var profile map[string]json.RawMessage
		decode(t, w, &profile)
		assert.Contains(t, profile, "disclaimer")
	})

	t.Run("too few names", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/cipher", gin.H{"names": []string{"Ka", "Lo"}})
		assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})
}

func TestStego_DisabledWithoutKey(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/api/v1/stego/inject", "/api/v1/stego/extract", "/api/v1/stego/auth", "/api/v1/stego/verify"} {
		w := s.do(t, http.MethodPost, path, gin.H{})
		assertError(t, w, http.StatusBadRequest, "CONFIG_INVALID")
	}
}

func TestStego_InjectExtractVerify(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(t, http.MethodPost, "/api/v1/stego/inject", gin.H{
		"name":         "Ethereum",
		"formula":      "hybrid",
		"message_type": "text",
		"data":         "hi",
		"method":       "multi_channel",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var injected struct {
		Encoding json.RawMessage `json:"encoding"`
		AuthCode string          `json:"auth_code"`
	}
	decode(t, w, &injected)
	assert.Len(t, injected.AuthCode, stego.AuthCodeLength)

	w = s.do(t, http.MethodPost, "/api/v1/stego/extract", gin.H{"encoding": injected.Encoding})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var extraction struct {
		Found   bool   `json:"found"`
		Method  string `json:"method"`
		Message struct {
			Type    string `json:"type"`
			Payload []byte `json:"payload"`
		} `json:"message"`
	}
	decode(t, w, &extraction)
	assert.True(t, extraction.Found)
	assert.Equal(t, "multi_channel", extraction.Method)
	assert.Equal(t, "text", extraction.Message.Type)
	assert.Equal(t, "hi", string(extraction.Message.Payload))

	w = s.do(t, http.MethodPost, "/api/v1/stego/verify", gin.H{"encoding": injected.Encoding, "code": injected.AuthCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/stego/verify", gin.H{"encoding": injected.Encoding, "code": "0000000000000000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":false}`, w.Body.String())
}

func TestStego_InjectNeedsEncodingOrName(t *testing.T) {
	s := newTestServer(t, true)
	w := s.do(t, http.MethodPost, "/api/v1/stego/inject", gin.H{"message_type": "text", "data": "x", "method": "lsb"})
	assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")
}

func startJob(t *testing.T, s *testServer, body gin.H) JobView {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/evolutions", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var view JobView
	decode(t, w, &view)
	assert.Equal(t, "/api/v1/evolutions/"+view.ID.String(), w.Header().Get("Location"))
	return view
}

func waitJob(t *testing.T, s *testServer, id core.JobID) JobView {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	view, err := s.Jobs().Wait(ctx, id)
	require.NoError(t, err)
	return view
}

func TestEvolution_Lifecycle(t *testing.T) {
	s := newTestServer(t, false)

	started := startJob(t, s, gin.H{"formula": "structural", "domains": []string{"crypto", "bands"}})
	assert.Equal(t, JobRunning, started.Status)
	assert.Equal(t, 6, started.Config.PopulationSize)

	done := waitJob(t, s, started.ID)
	assert.Equal(t, JobCompleted, done.Status)
	assert.NotNil(t, done.FinishedAt)

	w := s.do(t, http.MethodGet, "/api/v1/evolutions/"+started.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view JobView
	decode(t, w, &view)
	assert.Equal(t, JobCompleted, view.Status)
	assert.False(t, view.Progress.Running)

	w = s.do(t, http.MethodGet, "/api/v1/evolutions/"+started.ID.String()+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history struct {
		ID          core.HistoryID    `json:"id"`
		Generations []json.RawMessage `json:"generations"`
	}
	decode(t, w, &history)
	assert.Equal(t, started.HistoryID, history.ID)
	assert.NotEmpty(t, history.Generations)

	w = s.do(t, http.MethodGet, "/api/v1/histories/"+history.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/histories?formula=structural", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Histories []ports.HistorySummary `json:"histories"`
	}
	decode(t, w, &list)
	require.Len(t, list.Histories, 1)
	assert.Equal(t, history.ID, list.Histories[0].ID)

	w = s.do(t, http.MethodGet, "/api/v1/evolutions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs struct {
		Jobs []JobView `json:"jobs"`
	}
	decode(t, w, &jobs)
	assert.Len(t, jobs.Jobs, 1)
}

func TestEvolution_Convergence(t *testing.T) {
	s := newTestServer(t, false)

	first := startJob(t, s, gin.H{"formula": "hybrid", "domains": []string{"crypto"}, "seed": 1})
	second := startJob(t, s, gin.H{"formula": "hybrid", "domains": []string{"crypto"}, "seed": 2})
	waitJob(t, s, first.ID)
	waitJob(t, s, second.ID)

	w := s.do(t, http.MethodPost, "/api/v1/evolutions/"+first.ID.String()+"/convergence",
		gin.H{"history_ids": []core.HistoryID{second.HistoryID}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Signature struct {
			Histories []core.HistoryID `json:"histories"`
		} `json:"signature"`
		Patterns json.RawMessage `json:"patterns"`
		Report   json.RawMessage `json:"report"`
	}
	decode(t, w, &resp)
	assert.ElementsMatch(t, []core.HistoryID{first.HistoryID, second.HistoryID}, resp.Signature.Histories)
	assert.NotEmpty(t, resp.Patterns)
	assert.NotEmpty(t, resp.Report)
}

func TestEvolution_ConvergenceUnknownHistory(t *testing.T) {
	s := newTestServer(t, false)
	job := startJob(t, s, gin.H{"formula": "hybrid", "domains": []string{"crypto"}})
	waitJob(t, s, job.ID)

	missing := core.HistoryID(core.NewID())
	w := s.do(t, http.MethodPost, "/api/v1/evolutions/"+job.ID.String()+"/convergence",
		gin.H{"history_ids": []core.HistoryID{missing}})
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestEvolution_Cancel(t *testing.T) {
	s := newTestServer(t, false)
	started := startJob(t, s, gin.H{
		"formula":     "phonetic",
		"domains":     []string{"crypto"},
		"generations": 100000,
		"patience":    100000,
		"epsilon":     0,
	})

	w := s.do(t, http.MethodDelete, "/api/v1/evolutions/"+started.ID.String(), nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	done := waitJob(t, s, started.ID)
	assert.Equal(t, JobCancelled, done.Status)

	_, err := s.histories.Get(context.Background(), started.HistoryID)
	assert.ErrorIs(t, err, core.ErrHistoryNotFound, "cancelled runs are not persisted")
}

func TestEvolution_RejectsBadRequests(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodPost, "/api/v1/evolutions", gin.H{"formula": "hybrid", "population_size": 1})
	assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = s.do(t, http.MethodPost, "/api/v1/evolutions", gin.H{"formula": "hybrid", "elite_size": 6})
	assertError(t, w, http.StatusBadRequest, "CONFIG_INVALID")

	w = s.do(t, http.MethodGet, "/api/v1/evolutions/not-a-uuid", nil)
	assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")

	w = s.do(t, http.MethodGet, "/api/v1/evolutions/"+core.NewID().String(), nil)
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")

	w = s.do(t, http.MethodGet, "/api/v1/evolutions/"+core.NewID().String()+"/history", nil)
	assertError(t, w, http.StatusNotFound, "NOT_FOUND")
}

func TestEvolution_EventsAfterFinish(t *testing.T) {
	s := newTestServer(t, false)
	job := startJob(t, s, gin.H{"formula": "frequency", "domains": []string{"crypto"}})
	waitJob(t, s, job.ID)

	w := s.do(t, http.MethodGet, "/api/v1/evolutions/"+job.ID.String()+"/events", nil)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event:completed")
}

func TestAdminRouter(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.AdminRouter(map[string]HealthCheck{
		"dataset": func(ctx context.Context) error { return nil },
	})
	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","checks":{"dataset":"ok"}}`, w.Body.String())

	w = get("/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	job := startJob(t, s, gin.H{"formula": "phonetic", "domains": []string{"crypto"}})
	waitJob(t, s, job.ID)
	w = get("/jobs/" + job.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	var view JobView
	decode(t, w, &view)
	assert.Equal(t, JobCompleted, view.Status)

	w = get("/jobs/nope")
	assertError(t, w, http.StatusBadRequest, "INVALID_INPUT")
}

func TestAdminRouter_UnhealthyCheck(t *testing.T) {
	s := newTestServer(t, false)
	admin := s.AdminRouter(map[string]HealthCheck{
		"database": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	w := httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
