package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
)

func (h *httpHandler) registerUserRoutes(group *gin.RouterGroup) {
	group.GET("/session", h.handleSession)
	group.POST("/session/touch", h.handleSessionTouch)

	staff := group.Group("/users")
	staff.Use(requireGrade(staffGrade))
	staff.GET("", h.handleListUsers)
	staff.POST("", h.handleCreateUser)
	staff.GET("/:id", h.handleGetUser)
	staff.PATCH("/:id/grade", h.handleUpdateGrade)
	staff.PATCH("/:id/notes", h.handleUpdateNotes)
	staff.POST("/:id/block", h.handleBlockUser)
	staff.POST("/:id/unblock", h.handleUnblockUser)
	staff.DELETE("/:id", h.handleDeleteUser)
	staff.GET("/:id/activity", h.handleUserActivity)
	staff.GET("/:id/downloads", h.handleUserDownloads)
}

type sessionResponsePayload struct {
	User      models.User `json:"user"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// handleGuestSession keeps a still valid session, otherwise it creates a guest account and
// sets its session cookie.
func (h *httpHandler) handleGuestSession(c *gin.Context) {
	ctx := c.Request.Context()
	if claims, err := h.sessions.ValidateRequest(c.Request); err == nil {
		if user, source, found := h.hook.Users.Get(ctx, claims.UserID); found {
			respond(c, http.StatusOK, sessionResponsePayload{User: user}, source)
			return
		}
	}

	guest, source, err := h.hook.Users.CreateGuest(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expiresAt, err := h.issuer.IssueSession(guest)
	if err != nil {
		h.logger.Error("failed to issue guest session", zap.String("user_id", guest.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed"})
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("guest session started", zap.String("user_id", guest.ID), zap.String("source", string(source)))
	respond(c, http.StatusCreated, sessionResponsePayload{User: guest, ExpiresAt: &expiresAt}, source)
}

func (h *httpHandler) handleSession(c *gin.Context) {
	claims := sessionClaims(c)
	user, source, found := h.hook.Users.Get(c.Request.Context(), claims.UserID)
	if !found {
		notFound(c)
		return
	}
	respond(c, http.StatusOK, sessionResponsePayload{User: user}, source)
}

func (h *httpHandler) handleSessionTouch(c *gin.Context) {
	user, source, err := h.hook.Users.Touch(c.Request.Context(), sessionClaims(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, source)
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	users, source := h.hook.Users.List(c.Request.Context())
	respond(c, http.StatusOK, users, source)
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	user, source, found := h.hook.Users.Get(c.Request.Context(), c.Param("id"))
	if !found {
		notFound(c)
		return
	}
	respond(c, http.StatusOK, user, source)
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Grade string `json:"grade"`
}

func (h *httpHandler) handleCreateUser(c *gin.Context) {
	var request createUserRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	user, source, err := h.hook.Users.Create(c.Request.Context(), models.User{
		Name:  request.Name,
		Email: request.Email,
		Grade: models.Grade(strings.TrimSpace(request.Grade)),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "user.create", user.ID)
	respond(c, http.StatusCreated, user, source)
}

type gradeRequest struct {
	Grade string `json:"grade" binding:"required"`
}

func (h *httpHandler) handleUpdateGrade(c *gin.Context) {
	var request gradeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	grade, err := models.ParseGrade(request.Grade)
	if err != nil {
		badRequest(c, "invalid_grade")
		return
	}
	user, source, err := h.hook.Users.UpdateGrade(c.Request.Context(), c.Param("id"), grade)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "user.grade", user.ID+" -> "+string(grade))
	respond(c, http.StatusOK, user, source)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *httpHandler) handleUpdateNotes(c *gin.Context) {
	var request notesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	user, source, err := h.hook.Users.UpdateNotes(c.Request.Context(), c.Param("id"), request.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, source)
}

type blockRequest struct {
	Duration string `json:"duration" binding:"required"`
}

func (h *httpHandler) handleBlockUser(c *gin.Context) {
	var request blockRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	duration, err := hook.ParseBlockDuration(request.Duration)
	if err != nil {
		badRequest(c, "invalid_duration")
		return
	}
	user, source, err := h.hook.Users.Block(c.Request.Context(), c.Param("id"), duration)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "user.block", user.ID+" for "+string(duration))
	respond(c, http.StatusOK, user, source)
}

func (h *httpHandler) handleUnblockUser(c *gin.Context) {
	user, source, err := h.hook.Users.Unblock(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "user.unblock", user.ID)
	respond(c, http.StatusOK, user, source)
}

func (h *httpHandler) handleDeleteUser(c *gin.Context) {
	id := c.Param("id")
	source, err := h.hook.Users.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "user.delete", id)
	respond(c, http.StatusOK, gin.H{"id": id}, source)
}

func (h *httpHandler) handleUserActivity(c *gin.Context) {
	logs, source := h.hook.Activity.ForUser(c.Request.Context(), c.Param("id"), queryLimit(c))
	respond(c, http.StatusOK, logs, source)
}

func (h *httpHandler) handleUserDownloads(c *gin.Context) {
	logs, source := h.hook.Downloads.ForUser(c.Request.Context(), c.Param("id"), queryLimit(c))
	respond(c, http.StatusOK, logs, source)
}

// recordActivity audits a staff action. Failures are logged by the hook and never fail the request.
func (h *httpHandler) recordActivity(c *gin.Context, action, details string) {
	claims := sessionClaims(c)
	_, _, _ = h.hook.Activity.Record(c.Request.Context(), models.ActivityLog{
		UserID:    claims.UserID,
		UserName:  claims.UserName,
		Action:    action,
		Details:   details,
		IPAddress: c.ClientIP(),
	})
}
