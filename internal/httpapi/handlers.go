package httpapi

import (
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/orchestrator"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/ctxutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/session"
)

type Handlers struct {
	orch     *orchestrator.Orchestrator
	sessions session.Store
	log      *logger.Logger
}

func NewHandlers(orch *orchestrator.Orchestrator, sessions session.Store, log *logger.Logger) *Handlers {
	return &Handlers{orch: orch, sessions: sessions, log: log.With("component", "Handlers")}
}

type chatStreamRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	ImageDesc string `json:"image_description"`
}

// PostChatStream runs one turn through the orchestrator and forwards its
// events on an SSE connection (spec §4.5, §6). Anonymous callers are
// admitted against the IP quota, authenticated callers against the user
// quota (spec §4.4).
func (h *Handlers) PostChatStream(c *gin.Context) {
	var req chatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid request body"}})
		return
	}

	principal := principalFor(c)

	var sessionID *uuid.UUID
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid session_id"}})
			return
		}
		sessionID = &id
	}

	events := h.orch.RunTurn(c.Request.Context(), orchestrator.TurnInput{
		Principal: principal,
		SessionID: sessionID,
		Utterance: req.Message,
		ImageDesc: req.ImageDesc,
	})
	streamEvents(c, events, h.log)
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *Handlers) PostSessions(c *gin.Context) {
	principal := principalFor(c)
	var req createSessionRequest
	_ = c.ShouldBindJSON(&req)

	sess, err := h.sessions.CreateSession(c.Request.Context(), principal.ID, req.Title)
	if err != nil {
		h.log.Warn("handlers: create session failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "could not create session"}})
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handlers) GetSessions(c *gin.Context) {
	principal := principalFor(c)
	sessions, err := h.sessions.ListSessions(c.Request.Context(), principal.ID)
	if err != nil {
		h.log.Warn("handlers: list sessions failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "could not list sessions"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handlers) GetSessionMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid session id"}})
		return
	}
	if !h.requireOwnedSession(c, id) {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	messages, err := h.sessions.ListMessages(c.Request.Context(), id, limit)
	if err != nil {
		h.log.Warn("handlers: list messages failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "could not list messages"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

func (h *Handlers) PatchSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid session id"}})
		return
	}
	if !h.requireOwnedSession(c, id) {
		return
	}
	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid request body"}})
		return
	}
	sess, err := h.sessions.RenameSession(c.Request.Context(), id, req.Title)
	if err != nil {
		h.log.Warn("handlers: rename session failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "could not rename session"}})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handlers) DeleteSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid session id"}})
		return
	}
	if !h.requireOwnedSession(c, id) {
		return
	}
	if err := h.sessions.DeleteSession(c.Request.Context(), id); err != nil {
		h.log.Warn("handlers: delete session failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "could not delete session"}})
		return
	}
	c.Status(http.StatusNoContent)
}

// requireOwnedSession loads the session named by id and aborts the request
// (404 if it doesn't exist, 403 if it belongs to a different principal) when
// the caller isn't its owner. Returns false in either case, signalling the
// caller to stop handling the request (spec §8 Testable Property #8,
// "cross-principal reads are refused").
func (h *Handlers) requireOwnedSession(c *gin.Context, id uuid.UUID) bool {
	sess, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		h.log.Warn("handlers: get session failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "could not load session"}})
		return false
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "session not found"}})
		return false
	}
	if sess.PrincipalID != principalFor(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "session belongs to another principal"}})
		return false
	}
	return true
}

// principalFor returns the principal the auth middleware attached, falling
// back to an IP-keyed anonymous principal (spec §4.4 "Principal").
func principalFor(c *gin.Context) domain.Principal {
	if p, ok := ctxutil.GetPrincipal(c.Request.Context()); ok {
		return p
	}
	return domain.Principal{Kind: domain.PrincipalIP, ID: clientIP(c)}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		return host
	}
	return ip
}
