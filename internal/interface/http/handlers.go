package http

import (
	"context"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gideonite22/zensync-meditation-assets/internal/application/command"
	"github.com/Gideonite22/zensync-meditation-assets/internal/application/query"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/activity"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/group"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/progress"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/shared"
	"github.com/Gideonite22/zensync-meditation-assets/internal/domain/sharing"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(c *gin.Context) {
	status := s.deps.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(c, code, status)
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.deps.Health.Check(c.Request.Context()).Healthy {
		writeJSONError(c, http.StatusServiceUnavailable, &APIError{Code: "not_ready", Message: "dependencies unavailable"})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleLive(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS & PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRecordSession(c *gin.Context) {
	var req recordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	switch {
	case req.DurationMinutes <= 0:
		s.respondError(c, shared.ErrInvalidDuration)
		return
	case req.DurationMinutes > math.MaxUint32:
		s.respondError(c, shared.ErrDurationTooLarge)
		return
	}

	// An unknown name stays 0 so the command reports it after the duration check.
	t, _ := activity.ParseType(req.Type)
	res, err := s.deps.RecordSession.Handle(c.Request.Context(), command.RecordSessionCommand{
		UserID:          currentUser(c),
		DurationMinutes: uint32(req.DurationMinutes),
		Type:            t,
		Notes:           req.Notes,
		CorrelationID:   requestID(c),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newSessionResponse(res))
}

func (s *Server) handleGetProgress(c *gin.Context) {
	dto, err := s.deps.GetProgress.Handle(c.Request.Context(), query.GetProgressQuery{UserID: currentUser(c)})
	if err != nil {
		s.respondError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleVerifyAchievement(c *gin.Context) {
	id, err := progress.ParseAchievementID(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	dto, err := s.deps.VerifyAchievement.Handle(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, dto)
}

func (s *Server) handleShareAchievement(c *gin.Context) {
	id, err := progress.ParseAchievementID(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req shareAchievementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	att, err := s.deps.ShareAchievement.Handle(c.Request.Context(), command.ShareAchievementCommand{
		AchievementID: id,
		GroupID:       group.ID(req.GroupID),
		UserID:        currentUser(c),
		CorrelationID: requestID(c),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, att)
}

func (s *Server) handleVerifyAttestation(c *gin.Context) {
	var att sharing.Attestation
	if err := c.ShouldBindJSON(&att); err != nil {
		s.respondBindError(c, err)
		return
	}
	verdict, err := s.deps.VerifyAttestation.Handle(c.Request.Context(), att)
	if err != nil {
		s.respondError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, verdict)
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUPS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	g, err := s.deps.Groups.Create(c.Request.Context(), command.CreateGroupCommand{
		UserID: currentUser(c),
		Name:   req.Name,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newGroupResponse(g))
}

func (s *Server) handleJoinGroup(c *gin.Context) {
	s.membership(c, s.deps.Groups.Join)
}

func (s *Server) handleLeaveGroup(c *gin.Context) {
	s.membership(c, s.deps.Groups.Leave)
}

func (s *Server) membership(c *gin.Context, op func(ctx context.Context, cmd command.MembershipCommand) error) {
	id, err := group.ParseID(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := op(c.Request.Context(), command.MembershipCommand{UserID: currentUser(c), GroupID: id}); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
