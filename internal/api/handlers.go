package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"libchat/internal/botlog"
	"libchat/internal/logger"
	"libchat/internal/models"
	"libchat/internal/router"
	"libchat/internal/support"
)

// PollHints are the refresh intervals suggested to clients.
type PollHints struct {
	MessageSeconds int `json:"messagePollSeconds"`
	SessionSeconds int `json:"sessionPollSeconds"`
}

// Handler wires HTTP routes to the conversation router, bot log and support manager.
type Handler struct {
	router  *router.Router
	botlog  botlog.Store
	support *support.Manager
	hints   PollHints
	ready   func(context.Context) error
	log     *logger.Logger
}

// NewHandler constructs a Handler instance. ready backs /readyz and may be nil.
func NewHandler(rt *router.Router, store botlog.Store, manager *support.Manager, hints PollHints, ready func(context.Context) error, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if hints.MessageSeconds <= 0 {
		hints.MessageSeconds = 3
	}
	if hints.SessionSeconds <= 0 {
		hints.SessionSeconds = 5
	}
	return &Handler{
		router:  rt,
		botlog:  store,
		support: manager,
		hints:   hints,
		ready:   ready,
		log:     log.WithModule("api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the engine.
func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", h.healthz)
	engine.GET("/readyz", h.readyz)

	api := engine.Group("/api")
	api.GET("/chatbot/config", h.chatConfig)
	api.POST("/chatbot/message", h.sendChatMessage)
	api.GET("/chatbot/history/:userId", h.chatHistory)

	api.POST("/support/sessions", h.createSupportSession)
	api.GET("/support/sessions/active/:userId", h.activeSupportSession)
	api.GET("/support/sessions/:sessionId/messages", h.supportMessages)
	api.POST("/support/sessions/:sessionId/messages", h.sendSupportMessage)

	// Staff authentication is enforced in front of this service.
	admin := api.Group("/admin")
	admin.GET("/chatbot/sessions", h.listBotSessions)
	admin.GET("/chatbot/sessions/:userId/messages", h.chatHistory)
	admin.POST("/chatbot/sessions/:userId/reply", h.staffBotReply)
	admin.GET("/support/sessions", h.listSupportSessions)
	admin.GET("/support/sessions/:sessionId", h.supportSession)
	admin.POST("/support/sessions/:sessionId/resolve", h.resolveSupportSession)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) readyz(c *gin.Context) {
	if h.ready != nil {
		if err := h.ready(c.Request.Context()); err != nil {
			h.log.WithError(err).WarnContext(c.Request.Context(), "readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) chatConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.hints)
}

// Bot channel

type chatMessageRequest struct {
	Message  string `json:"message"`
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	Image    string `json:"image"`
}

func (h *Handler) sendChatMessage(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UserID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	reply, err := h.router.Route(c.Request.Context(), router.Request{
		Message:  req.Message,
		UserID:   req.UserID,
		UserName: strings.TrimSpace(req.UserName),
		Image:    req.Image,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) chatHistory(c *gin.Context) {
	userID, ok := pathID(c, "userId", "invalid user id")
	if !ok {
		return
	}
	messages, err := h.botlog.Messages(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) listBotSessions(c *gin.Context) {
	sessions, err := h.botlog.Sessions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.BotSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

type staffReplyRequest struct {
	Text      string `json:"text"`
	AdminName string `json:"adminName"`
}

func (h *Handler) staffBotReply(c *gin.Context) {
	userID, ok := pathID(c, "userId", "invalid user id")
	if !ok {
		return
	}
	var req staffReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := h.router.StaffReply(c.Request.Context(), userID, req.Text, req.AdminName)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Support channel

type createSupportRequest struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

func (h *Handler) createSupportSession(c *gin.Context) {
	var req createSupportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.support.CreateSession(c.Request.Context(), req.UserID, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusOK
	text := "Tin nhắn đã được thêm vào phiên hỗ trợ hiện tại."
	if res.Created {
		status = http.StatusCreated
		text = "Yêu cầu hỗ trợ đã được gửi, thủ thư sẽ phản hồi sớm."
	}
	c.JSON(status, gin.H{
		"success":   true,
		"sessionId": res.Session.ID,
		"status":    res.Session.Status,
		"created":   res.Created,
		"message":   text,
	})
}

func (h *Handler) activeSupportSession(c *gin.Context) {
	userID, ok := pathID(c, "userId", "invalid user id")
	if !ok {
		return
	}
	active, err := h.support.ActiveSession(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (h *Handler) listSupportSessions(c *gin.Context) {
	sessions, err := h.support.ListSessions(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.SupportSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) supportSession(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionId", "invalid session id")
	if !ok {
		return
	}
	sess, err := h.support.Session(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) supportMessages(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionId", "invalid session id")
	if !ok {
		return
	}
	var after int64
	if raw := c.Query("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after cursor"})
			return
		}
		after = v
	}
	messages, err := h.support.Messages(c.Request.Context(), sessionID, after)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if messages == nil {
		messages = []models.SupportMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

type supportMessageRequest struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

func (h *Handler) sendSupportMessage(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionId", "invalid session id")
	if !ok {
		return
	}
	var req supportMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	msg, err := h.support.SendMessage(c.Request.Context(), sessionID, req.UserID, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "messageId": msg.ID})
}

func (h *Handler) resolveSupportSession(c *gin.Context) {
	sessionID, ok := pathID(c, "sessionId", "invalid session id")
	if !ok {
		return
	}
	sess, err := h.support.Resolve(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

func pathID(c *gin.Context, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, support.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, support.ErrSenderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, support.ErrSessionResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "session already resolved"})
	case errors.Is(err, support.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, support.ErrEmptyMessage), errors.Is(err, router.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
	case errors.Is(err, support.ErrInvalidUser), errors.Is(err, botlog.ErrInvalidUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
	default:
		h.log.WithError(err).ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "route", c.FullPath())
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": router.BusyReply})
	}
}
