package handlers

import (
	"context"
	"net/http"
	"strings"

	"orchidaquiz/services"

	"github.com/gin-gonic/gin"
)

type GameHandler struct {
	registry   *services.Registry
	stateCache *services.StateCache
}

func NewGameHandler(registry *services.Registry, stateCache *services.StateCache) *GameHandler {
	return &GameHandler{
		registry:   registry,
		stateCache: stateCache,
	}
}

type CreateSessionRequest struct {
	QuizID  uint                    `json:"quiz_id" binding:"required"`
	Options services.SessionOptions `json:"options"`
}

type JoinRequest struct {
	Nickname string `json:"nickname" binding:"required"`
	UserID   *uint  `json:"user_id"`
}

type SubmitRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	QuestionID    uint   `json:"question_id" binding:"required"`
	OptionIDs     []uint `json:"option_ids" binding:"required"`
	// ElapsedMs is the client's own measurement. It is accepted for
	// diagnostics only; the server measures elapsed time itself.
	ElapsedMs int64 `json:"elapsed_ms"`
}

type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// CreateSession starts a new live run for one of the host's quizzes and
// returns its PIN.
func (h *GameHandler) CreateSession(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.registry.Create(c.Request.Context(), identity.UserID, req.QuizID, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID(),
		"pin":        session.PIN(),
		"status":     session.Status(),
	})
}

// GetStatus returns the authoritative session status for a PIN. Live
// sessions answer from memory; finished ones from the Redis snapshot, so
// a client that missed the final event can still reconcile.
func (h *GameHandler) GetStatus(c *gin.Context) {
	pin := strings.ToLower(c.Param("pin"))

	session, err := h.registry.LookupByPIN(pin)
	if err == nil {
		c.JSON(http.StatusOK, session.Status())
		return
	}

	if h.stateCache != nil {
		snapshot, cacheErr := h.stateCache.Get(c.Request.Context(), pin)
		if cacheErr == nil {
			c.JSON(http.StatusOK, snapshot)
			return
		}
	}
	respondError(c, err)
}

func (h *GameHandler) Join(c *gin.Context) {
	pin := strings.ToLower(c.Param("pin"))

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.registry.LookupByPIN(pin)
	if err != nil {
		respondError(c, err)
		return
	}

	participant, err := session.Join(c.Request.Context(), req.Nickname, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, participant)
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	pin := strings.ToLower(c.Param("pin"))

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.registry.LookupByPIN(pin)
	if err != nil {
		respondError(c, err)
		return
	}

	response, err := session.Submit(c.Request.Context(), req.ParticipantID, req.QuestionID, req.OptionIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response_id": response.ID,
		"elapsed_ms":  response.ElapsedMs,
	})
}

// Command dispatches a host command (start, advance, close-question,
// show-leaderboard, finish) to the session's state machine.
func (h *GameHandler) Command(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	pin := strings.ToLower(c.Param("pin"))

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.registry.LookupByPIN(pin)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := session.Command(c.Request.Context(), identity, req.Command); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": session.Status()})
}

func (h *GameHandler) GetLeaderboard(c *gin.Context) {
	pin := strings.ToLower(c.Param("pin"))

	session, err := h.registry.LookupByPIN(pin)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"leaderboard": session.Leaderboard()})
		return
	}

	if h.stateCache != nil {
		snapshot, cacheErr := h.stateCache.Get(context.Background(), pin)
		if cacheErr == nil {
			c.JSON(http.StatusOK, gin.H{"leaderboard": snapshot.Leaderboard})
			return
		}
	}
	respondError(c, err)
}

func (h *GameHandler) GetParticipants(c *gin.Context) {
	pin := strings.ToLower(c.Param("pin"))

	session, err := h.registry.LookupByPIN(pin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": session.Participants()})
}
