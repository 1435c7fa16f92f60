package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gideonite22/zensync-meditation-assets/internal/application/command"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/query"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/auth"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/metrics"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/persistence/memory"
	"github.com/Gideonite22/zensync-meditation-assets/internal/infrastructure/signing"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/logger"
	"github.com/Gideonite22/zensync-meditation-assets/pkg/timeutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	store := memory.NewStore()
	groups := memory.NewGroupStore()
	clock := timeutil.NewStepClock(time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC), time.Second)

	table := progress.DefaultMilestones()
	table.SessionCount = []uint64{1, 10}
	engine, err := progress.NewEngine(progress.EngineConfig{Milestones: table, SameDay: progress.SameDayKeep})
	require.NoError(t, err)

	signer, err := signing.NewBlake2bSigner(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager("test-secret", "zensync", time.Hour)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimitRPS = 0
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(cfg, Dependencies{
		RecordSession:     command.NewRecordSessionHandler(store, engine, clock, nil, logger.Nop()),
		ShareAchievement:  command.NewShareAchievementHandler(store.Ledger(), groups, signer, clock, nil, logger.Nop()),
		Groups:            command.NewManageGroupHandler(groups, clock, nil, logger.Nop()),
		GetProgress:       query.NewGetProgressHandler(store.Aggregates(), store.Ledger(), time.UTC),
		VerifyAchievement: query.NewVerifyAchievementHandler(store.Ledger()),
		VerifyAttestation: query.NewVerifyAttestationHandler(store.Ledger(), signer),
		Tokens:            tokens,
		Metrics:           metrics.New("test"),
		Logger:            logger.Nop(),
	})
	return &testEnv{server: srv, tokens: tokens}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := e.tokens.Issue(shared.UserID(user))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestServer_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/sessions", "", map[string]any{"duration_minutes": 10, "type": "breathing"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/progress", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_RecordSessionAndProgress(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": 15, "type": "breathing"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	var session sessionResponse
	require.NoError(t, json.Unmarshal(body.Data, &session))
	assert.Equal(t, uint32(1), session.Streak)
	assert.Equal(t, "breathing", session.Type)
	require.Len(t, session.Awarded, 1)
	assert.Equal(t, "session_count", session.Awarded[0].Category)

	rec, body = env.do(t, http.MethodGet, "/api/v1/me/progress", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prog query.ProgressDTO
	require.NoError(t, json.Unmarshal(body.Data, &prog))
	assert.Equal(t, uint64(1), prog.TotalSessions)
	assert.Equal(t, uint64(15), prog.TotalMinutes)
	assert.Equal(t, "2025-06-01", prog.LastActiveDate)
	assert.Len(t, prog.Achievements, 1)
}

func TestServer_RecordSessionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	// Duration is reported before the unknown category.
	rec, body := env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": 0, "type": "juggling"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body.Error.Code)
	assert.Contains(t, body.Error.Message, "duration")

	rec, body = env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": 5, "type": "juggling"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body.Error.Message, "category")

	// A negative duration is a duration error, still ahead of the category.
	rec, body = env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": -1, "type": "juggling"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body.Error.Code)
	assert.Contains(t, body.Error.Message, "duration")

	rec, body = env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": int64(math.MaxUint32) + 1, "type": "breathing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", body.Error.Code)
	assert.Contains(t, body.Error.Message, "duration")

	// Long sessions are accepted.
	rec, _ = env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": 1441, "type": "breathing"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": "ten", "type": "breathing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", body.Error.Code)
}

func TestServer_AchievementShareAndVerify(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/api/v1/sessions", "alice", map[string]any{"duration_minutes": 10, "type": "mindfulness"})
	var session sessionResponse
	require.NoError(t, json.Unmarshal(body.Data, &session))
	require.Len(t, session.Awarded, 1)
	achPath := "/api/v1/achievements/" + strconv.FormatUint(session.Awarded[0].ID, 10)

	// Public verification.
	rec, body := env.do(t, http.MethodGet, achPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ach query.AchievementDTO
	require.NoError(t, json.Unmarshal(body.Data, &ach))
	assert.Equal(t, "alice", ach.Owner)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/achievements/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/v1/achievements/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Group and share.
	rec, body = env.do(t, http.MethodPost, "/api/v1/groups", "alice", map[string]any{"name": "sunrise"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var grp groupResponse
	require.NoError(t, json.Unmarshal(body.Data, &grp))
	assert.Equal(t, []string{"alice"}, grp.Members)

	share := map[string]any{"group_id": grp.ID}
	rec, body = env.do(t, http.MethodPost, achPath+"/share", "alice", share)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var att sharing.Attestation
	require.NoError(t, json.Unmarshal(body.Data, &att))
	assert.NotEmpty(t, att.Signature)

	rec, _ = env.do(t, http.MethodPost, achPath+"/share", "bob", share)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = env.do(t, http.MethodPost, achPath+"/share", "alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "group_id")

	// Attestation verification.
	rec, body = env.do(t, http.MethodPost, "/api/v1/attestations/verify", "", att)
	require.Equal(t, http.StatusOK, rec.Code)
	var verdict query.AttestationVerificationDTO
	require.NoError(t, json.Unmarshal(body.Data, &verdict))
	assert.True(t, verdict.Valid)

	att.GroupID++
	_, body = env.do(t, http.MethodPost, "/api/v1/attestations/verify", "", att)
	require.NoError(t, json.Unmarshal(body.Data, &verdict))
	assert.False(t, verdict.Valid)
	assert.Equal(t, query.ReasonBadSignature, verdict.Reason)
}

func TestServer_GroupMembership(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/api/v1/groups", "alice", map[string]any{"name": "evening"})
	var grp groupResponse
	require.NoError(t, json.Unmarshal(body.Data, &grp))
	members := "/api/v1/groups/" + strconv.FormatUint(grp.ID, 10) + "/members"

	rec, _ := env.do(t, http.MethodPost, members, "bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = env.do(t, http.MethodPost, members, "bob", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, members+"/me", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = env.do(t, http.MethodDelete, members+"/me", "bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/groups/424242/members", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/v1/groups/zero/members", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.True(t, strings.Contains(mrec.Body.String(), "test_http_requests_total"))
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 1
	})

	rec, _ := env.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, body := env.do(t, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", body.Error.Code)
}

func TestServer_RecoversPanics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.engine.GET("/boom", func(*gin.Context) { panic("boom") })

	rec, body := env.do(t, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body.Error.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{shared.ErrGroupNotFound, http.StatusNotFound},
		{shared.ErrAlreadyMember, http.StatusConflict},
		{shared.ErrNotMember, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", shared.ErrInvalidDuration), http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := statusFor(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}
