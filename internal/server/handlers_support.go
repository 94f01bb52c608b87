package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
)

func (h *httpHandler) registerSupportRoutes(group *gin.RouterGroup) {
	staff := requireGrade(staffGrade)

	group.GET("/bugs", h.handleListBugs)
	group.POST("/bugs", h.handleCreateBug)
	group.GET("/bugs/:id", h.handleGetBug)
	group.POST("/bugs/:id/comments", h.handleAddBugComment)
	group.PATCH("/bugs/:id", staff, h.handleUpdateBug)
	group.PATCH("/bugs/:id/status", staff, h.handleUpdateBugStatus)
	group.DELETE("/bugs/:id", staff, h.handleDeleteBug)

	group.GET("/notifications", h.handleListNotifications)
	group.GET("/notifications/stream", h.handleNotificationStream)
	group.POST("/notifications/read-all", h.handleMarkAllNotificationsRead)
	group.POST("/notifications/:id/read", h.handleMarkNotificationRead)
	group.DELETE("/notifications", h.handleClearNotifications)

	group.GET("/logs/activity", staff, h.handleRecentActivity)
	group.GET("/logs/downloads", staff, h.handleRecentDownloads)
	group.GET("/system-metrics/:type", staff, h.handleMetricSeries)
	group.GET("/errors", staff, h.handleLastError)
	group.DELETE("/errors", staff, h.handleClearError)
	group.POST("/admin/reconcile", staff, h.handleReconcile)
}

// Non-staff callers only see their own reports.
func (h *httpHandler) handleListBugs(c *gin.Context) {
	filter := hook.BugFilter{Status: models.BugStatus(c.Query("status"))}
	if !isStaff(c) {
		filter.ReporterID = sessionClaims(c).UserID
	}
	reports, source := h.hook.Bugs.List(c.Request.Context(), filter)
	respond(c, http.StatusOK, reports, source)
}

func (h *httpHandler) visibleBug(c *gin.Context) (models.BugReport, hook.Source, bool) {
	report, source, found := h.hook.Bugs.Get(c.Request.Context(), c.Param("id"))
	if !found || (!isStaff(c) && report.ReporterID != sessionClaims(c).UserID) {
		notFound(c)
		return report, source, false
	}
	return report, source, true
}

func (h *httpHandler) handleGetBug(c *gin.Context) {
	report, source, ok := h.visibleBug(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, report, source)
}

type bugRequest struct {
	Title            *string             `json:"title"`
	Description      *string             `json:"description"`
	Severity         *models.BugSeverity `json:"severity"`
	Category         *string             `json:"category"`
	ExpectedBehavior *string             `json:"expected_behavior"`
	ActualBehavior   *string             `json:"actual_behavior"`
	Steps            []string            `json:"steps"`
	Environment      map[string]any      `json:"environment"`
	Attachments      []string            `json:"attachments"`
}

func valueOf[T any](pointer *T) T {
	var zero T
	if pointer == nil {
		return zero
	}
	return *pointer
}

func (h *httpHandler) handleCreateBug(c *gin.Context) {
	var request bugRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	claims := sessionClaims(c)
	report, source, err := h.hook.Bugs.Create(c.Request.Context(), models.BugReport{
		Title:            valueOf(request.Title),
		Description:      valueOf(request.Description),
		Severity:         valueOf(request.Severity),
		Category:         valueOf(request.Category),
		ExpectedBehavior: valueOf(request.ExpectedBehavior),
		ActualBehavior:   valueOf(request.ActualBehavior),
		ReporterID:       claims.UserID,
		ReporterName:     claims.UserName,
		Steps:            request.Steps,
		Environment:      request.Environment,
		Attachments:      request.Attachments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, report, source)
}

func (h *httpHandler) handleUpdateBug(c *gin.Context) {
	var request bugRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	report, source, err := h.hook.Bugs.Update(c.Request.Context(), c.Param("id"), hook.BugPatch{
		Title:            request.Title,
		Description:      request.Description,
		Severity:         request.Severity,
		Category:         request.Category,
		ExpectedBehavior: request.ExpectedBehavior,
		ActualBehavior:   request.ActualBehavior,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, report, source)
}

type bugStatusRequest struct {
	Status models.BugStatus `json:"status" binding:"required"`
}

func (h *httpHandler) handleUpdateBugStatus(c *gin.Context) {
	var request bugStatusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	report, source, err := h.hook.Bugs.UpdateStatus(c.Request.Context(), c.Param("id"), request.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "bug.status", report.ID+" -> "+string(report.Status))
	respond(c, http.StatusOK, report, source)
}

type commentRequest struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleAddBugComment(c *gin.Context) {
	var request commentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	if _, _, ok := h.visibleBug(c); !ok {
		return
	}
	report, source, err := h.hook.Bugs.AddComment(c.Request.Context(), c.Param("id"), sessionClaims(c).UserName, request.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, report, source)
}

func (h *httpHandler) handleDeleteBug(c *gin.Context) {
	id := c.Param("id")
	source, err := h.hook.Bugs.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id}, source)
}

type notificationsResponsePayload struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	userID := sessionClaims(c).UserID
	c.JSON(http.StatusOK, gin.H{"data": notificationsResponsePayload{
		Items:  h.hook.Notifications.List(ctx, userID),
		Unread: h.hook.Notifications.Unread(ctx, userID),
	}})
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	if err := h.hook.Notifications.MarkRead(c.Request.Context(), sessionClaims(c).UserID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMarkAllNotificationsRead(c *gin.Context) {
	if err := h.hook.Notifications.MarkAllRead(c.Request.Context(), sessionClaims(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleClearNotifications(c *gin.Context) {
	if err := h.hook.Notifications.Clear(c.Request.Context(), sessionClaims(c).UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleNotificationStream pushes new notifications as server-sent events until the client goes
// away, with a heartbeat to keep proxies from closing the connection.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	ctx := c.Request.Context()
	userID := sessionClaims(c).UserID
	stream, cleanup := h.dispatcher.Subscribe(ctx, userID)
	defer cleanup()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	h.logger.Debug("notification stream opened", zap.String("user_id", userID))

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, message.Notification)
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend, "time": tick.UTC()})
			return true
		}
	})
	h.logger.Debug("notification stream closed", zap.String("user_id", userID))
}

func (h *httpHandler) handleRecentActivity(c *gin.Context) {
	logs, source := h.hook.Activity.Recent(c.Request.Context(), queryLimit(c))
	respond(c, http.StatusOK, logs, source)
}

func (h *httpHandler) handleRecentDownloads(c *gin.Context) {
	logs, source := h.hook.Downloads.Recent(c.Request.Context(), queryLimit(c))
	respond(c, http.StatusOK, logs, source)
}

func (h *httpHandler) handleMetricSeries(c *gin.Context) {
	metricType := models.MetricType(c.Param("type"))
	if _, _, known := hook.MetricRange(metricType); !known {
		notFound(c)
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))
	series, source := h.hook.Metrics.Series(c.Request.Context(), metricType, days)
	respond(c, http.StatusOK, series, source)
}

func (h *httpHandler) handleLastError(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": h.hook.LastError()}})
}

func (h *httpHandler) handleClearError(c *gin.Context) {
	h.hook.ClearError()
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleReconcile(c *gin.Context) {
	changed, err := h.hook.Users.RecountDownloads(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "users.reconcile", strconv.Itoa(changed)+" counters corrected")
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"changed": changed}})
}
