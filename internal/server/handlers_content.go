package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/hook"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
)

func (h *httpHandler) registerContentRoutes(group *gin.RouterGroup) {
	staff := requireGrade(staffGrade)

	group.GET("/files", h.handleListFiles)
	group.GET("/files/latest", h.handleLatestFiles)
	group.GET("/files/:id", h.handleGetFile)
	group.POST("/files/:id/download", h.handleDownloadFile)
	group.POST("/files", staff, h.handleCreateFile)
	group.PATCH("/files/:id", staff, h.handleUpdateFile)
	group.DELETE("/files/:id", staff, h.handleDeleteFile)

	group.GET("/patch-notes", h.handleListPatchNotes)
	group.GET("/patch-notes/:id", h.handleGetPatchNote)
	group.POST("/patch-notes", staff, h.handleCreatePatchNote)
	group.PATCH("/patch-notes/:id", staff, h.handleUpdatePatchNote)
	group.POST("/patch-notes/:id/publish", staff, h.handlePublishPatchNote)
	group.DELETE("/patch-notes/:id", staff, h.handleDeletePatchNote)

	group.GET("/docs", h.handleListDocs)
	group.GET("/docs/slug/:slug", h.handleGetDocBySlug)
	group.POST("/docs", staff, h.handleCreateDoc)
	group.PUT("/docs/order", staff, h.handleReorderDocs)
	group.PATCH("/docs/:id", staff, h.handleUpdateDoc)
	group.DELETE("/docs/:id", staff, h.handleDeleteDoc)
}

func (h *httpHandler) handleListFiles(c *gin.Context) {
	files, source := h.hook.Files.ListAccessible(c.Request.Context(), sessionClaims(c).Grade)
	respond(c, http.StatusOK, files, source)
}

func (h *httpHandler) handleLatestFiles(c *gin.Context) {
	files, source := h.hook.Files.LatestVersions(c.Request.Context(), sessionClaims(c).Grade)
	respond(c, http.StatusOK, files, source)
}

// accessibleFile loads a file and writes the error response when it is missing or above the
// caller's grade.
func (h *httpHandler) accessibleFile(c *gin.Context) (models.ServerFile, hook.Source, bool) {
	file, source, found := h.hook.Files.Get(c.Request.Context(), c.Param("id"))
	if !found {
		notFound(c)
		return file, source, false
	}
	if !sessionClaims(c).Grade.Meets(file.MinGrade) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "required_grade": file.MinGrade})
		return file, source, false
	}
	return file, source, true
}

func (h *httpHandler) handleGetFile(c *gin.Context) {
	file, source, ok := h.accessibleFile(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, file, source)
}

type downloadResponsePayload struct {
	FileURL       string              `json:"file_url"`
	Log           *models.DownloadLog `json:"log,omitempty"`
	LogSource     hook.Source         `json:"log_source,omitempty"`
	CounterSource hook.Source         `json:"counter_source,omitempty"`
}

// handleDownloadFile hands out the file URL. The download is logged best effort.
func (h *httpHandler) handleDownloadFile(c *gin.Context) {
	file, source, ok := h.accessibleFile(c)
	if !ok {
		return
	}
	claims := sessionClaims(c)
	response := downloadResponsePayload{FileURL: file.FileURL}
	receipt, err := h.hook.Downloads.Record(c.Request.Context(), models.DownloadLog{
		UserID:      claims.UserID,
		UserName:    claims.UserName,
		FileID:      file.ID,
		FileName:    file.Name,
		FileVersion: file.Version,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("download not logged", zap.String("file_id", file.ID), zap.Error(err))
	} else {
		response.Log = &receipt.Log
		response.LogSource = receipt.Source
		response.CounterSource = receipt.CounterSource
	}
	respond(c, http.StatusOK, response, source)
}

type fileRequest struct {
	Name        *string            `json:"name"`
	Version     *string            `json:"version"`
	Description *string            `json:"description"`
	FileURL     *string            `json:"file_url"`
	FileSize    *int64             `json:"file_size"`
	FileType    *models.FileType   `json:"file_type"`
	MinGrade    *models.Grade      `json:"min_grade"`
	Status      *models.FileStatus `json:"status"`
	Changelog   []string           `json:"changelog"`
}

func (r fileRequest) patch() hook.FilePatch {
	return hook.FilePatch{
		Name:        r.Name,
		Version:     r.Version,
		Description: r.Description,
		FileURL:     r.FileURL,
		FileSize:    r.FileSize,
		FileType:    r.FileType,
		MinGrade:    r.MinGrade,
		Status:      r.Status,
		Changelog:   r.Changelog,
	}
}

func (r fileRequest) file() models.ServerFile {
	var file models.ServerFile
	if r.Name != nil {
		file.Name = *r.Name
	}
	if r.Version != nil {
		file.Version = *r.Version
	}
	if r.Description != nil {
		file.Description = *r.Description
	}
	if r.FileURL != nil {
		file.FileURL = *r.FileURL
	}
	if r.FileSize != nil {
		file.FileSize = *r.FileSize
	}
	if r.FileType != nil {
		file.FileType = *r.FileType
	}
	if r.MinGrade != nil {
		file.MinGrade = *r.MinGrade
	}
	if r.Status != nil {
		file.Status = *r.Status
	}
	file.Changelog = r.Changelog
	return file
}

func (h *httpHandler) handleCreateFile(c *gin.Context) {
	var request fileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	file := request.file()
	file.CreatedBy = sessionClaims(c).UserID
	created, source, err := h.hook.Files.Create(c.Request.Context(), file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "file.create", created.Name+" "+created.Version)
	respond(c, http.StatusCreated, created, source)
}

func (h *httpHandler) handleUpdateFile(c *gin.Context) {
	var request fileRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	updated, source, err := h.hook.Files.Update(c.Request.Context(), c.Param("id"), request.patch())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, updated, source)
}

func (h *httpHandler) handleDeleteFile(c *gin.Context) {
	id := c.Param("id")
	source, err := h.hook.Files.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "file.delete", id)
	respond(c, http.StatusOK, gin.H{"id": id}, source)
}

// Drafts are visible to staff only, and only when asked for with ?all=true.
func (h *httpHandler) handleListPatchNotes(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	notes, source := h.hook.PatchNotes.List(c.Request.Context(), !(all && isStaff(c)))
	respond(c, http.StatusOK, notes, source)
}

func (h *httpHandler) handleGetPatchNote(c *gin.Context) {
	note, source, found := h.hook.PatchNotes.Get(c.Request.Context(), c.Param("id"))
	if !found || (note.Status != models.StatusPublished && !isStaff(c)) {
		notFound(c)
		return
	}
	respond(c, http.StatusOK, note, source)
}

type patchNoteRequest struct {
	Version *string `json:"version"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *httpHandler) handleCreatePatchNote(c *gin.Context) {
	var request patchNoteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	claims := sessionClaims(c)
	note := models.PatchNote{AuthorID: claims.UserID, AuthorName: claims.UserName}
	if request.Version != nil {
		note.Version = *request.Version
	}
	if request.Title != nil {
		note.Title = *request.Title
	}
	if request.Content != nil {
		note.Content = *request.Content
	}
	created, source, err := h.hook.PatchNotes.Create(c.Request.Context(), note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, created, source)
}

func (h *httpHandler) handleUpdatePatchNote(c *gin.Context) {
	var request patchNoteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	updated, source, err := h.hook.PatchNotes.Update(c.Request.Context(), c.Param("id"), hook.PatchNotePatch{
		Version: request.Version,
		Title:   request.Title,
		Content: request.Content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, updated, source)
}

func (h *httpHandler) handlePublishPatchNote(c *gin.Context) {
	published, source, err := h.hook.PatchNotes.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.recordActivity(c, "patch_note.publish", published.Version)
	respond(c, http.StatusOK, published, source)
}

func (h *httpHandler) handleDeletePatchNote(c *gin.Context) {
	id := c.Param("id")
	source, err := h.hook.PatchNotes.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id}, source)
}

func (h *httpHandler) handleListDocs(c *gin.Context) {
	filter := hook.DocFilter{
		VersionType:   models.DocVersionType(c.Query("version_type")),
		Category:      c.Query("category"),
		PublishedOnly: !isStaff(c),
	}
	docs, source := h.hook.Docs.List(c.Request.Context(), filter)
	respond(c, http.StatusOK, docs, source)
}

func (h *httpHandler) handleGetDocBySlug(c *gin.Context) {
	doc, source, found := h.hook.Docs.GetBySlug(c.Request.Context(), c.Param("slug"))
	if !found || (doc.Status != models.StatusPublished && !isStaff(c)) {
		notFound(c)
		return
	}
	respond(c, http.StatusOK, doc, source)
}

type docRequest struct {
	Title       *string                `json:"title"`
	Slug        *string                `json:"slug"`
	Content     *string                `json:"content"`
	Category    *string                `json:"category"`
	VersionType *models.DocVersionType `json:"version_type"`
	Status      *models.PublishStatus  `json:"status"`
	Tags        []string               `json:"tags"`
}

func (h *httpHandler) handleCreateDoc(c *gin.Context) {
	var request docRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	claims := sessionClaims(c)
	doc := models.Documentation{AuthorID: claims.UserID, AuthorName: claims.UserName, Tags: request.Tags}
	if request.Title != nil {
		doc.Title = *request.Title
	}
	if request.Content != nil {
		doc.Content = *request.Content
	}
	if request.Category != nil {
		doc.Category = *request.Category
	}
	if request.VersionType != nil {
		doc.VersionType = *request.VersionType
	}
	if request.Status != nil {
		doc.Status = *request.Status
	}
	created, source, err := h.hook.Docs.Create(c.Request.Context(), doc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, created, source)
}

func (h *httpHandler) handleUpdateDoc(c *gin.Context) {
	var request docRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "invalid_request")
		return
	}
	updated, source, err := h.hook.Docs.Update(c.Request.Context(), c.Param("id"), hook.DocPatch{
		Title:       request.Title,
		Slug:        request.Slug,
		Content:     request.Content,
		Category:    request.Category,
		VersionType: request.VersionType,
		Status:      request.Status,
		Tags:        request.Tags,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, updated, source)
}

type reorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h *httpHandler) handleReorderDocs(c *gin.Context) {
	var request reorderRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		badRequest(c, "invalid_request")
		return
	}
	if err := h.hook.Docs.Reorder(c.Request.Context(), request.IDs); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"ids": request.IDs}})
}

func (h *httpHandler) handleDeleteDoc(c *gin.Context) {
	id := c.Param("id")
	source, err := h.hook.Docs.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id}, source)
}
