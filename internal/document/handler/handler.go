package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/document"
	"github.com/kartikgopal01/coedit/internal/document/service"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/kartikgopal01/coedit/internal/live"
	"github.com/kartikgopal01/coedit/pkg/logger"
	"github.com/kartikgopal01/coedit/pkg/middleware"
)

// DefaultOperationTimeout bounds a single snapshot, materialize or rollback call.
const DefaultOperationTimeout = 30 * time.Second

// Deps are the services the document API is served from.
type Deps struct {
	Documents *service.Documents
	Snapshots *service.Snapshots
	Rollbacks *service.Rollbacks
	Live      live.Channel
	// Hub serves GET /ws when set.
	Hub *live.Hub

	OperationTimeout time.Duration
}

type documentHandler struct {
	Deps
}

// RegisterDocumentRoutes mounts the /api routes behind authn. limit, when not
// nil, is applied to endpoints that write.
func RegisterDocumentRoutes(r *gin.Engine, deps Deps, authn gin.HandlerFunc, limit gin.HandlerFunc) {
	if deps.OperationTimeout <= 0 {
		deps.OperationTimeout = DefaultOperationTimeout
	}
	h := &documentHandler{Deps: deps}
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api := r.Group("/api", authn)
	api.POST("/documents", limit, h.createDocument)
	api.GET("/documents", h.listDocuments)
	api.GET("/documents/:id", h.getDocument)
	api.DELETE("/documents/:id", limit, h.deleteDocument)
	api.POST("/documents/:id/collaborators", limit, h.addCollaborator)
	api.POST("/documents/:id/share", limit, h.shareDocument)
	api.POST("/documents/:id/join-with-key", limit, h.joinWithKey)
	api.POST("/documents/:id/snapshot", limit, h.commitSnapshot)
	api.GET("/documents/:id/versions", h.listVersions)
	api.GET("/documents/:id/versions/:versionId", h.getVersion)
	api.GET("/documents/:id/versions/:versionId/text", h.getVersionText)
	api.POST("/documents/:id/versions/:versionId/rollback", limit, h.rollback)
	api.GET("/documents/:id/compare", h.compare)
	api.GET("/versions/:versionId", h.getVersionByID)
	api.POST("/uploads", limit, h.signUpload)
	api.POST("/download", h.signDownload)

	if deps.Hub != nil {
		r.GET("/ws", authn, func(c *gin.Context) {
			deps.Hub.ServeWS(c.Writer, c.Request, middleware.CallerID(c))
		})
	}
}

// writeError renders err as {error, code} with the status its kind maps to.
// Server-side failures only expose the kind's message.
func writeError(c *gin.Context, err error) {
	status := domain.StatusCode(err)
	kind := domain.KindOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = kind.Message()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": string(kind)})
}

func badRequest(c *gin.Context, err error) {
	writeError(c, domain.E(domain.KindValidation, "handler", err))
}

func (h *documentHandler) opContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.OperationTimeout)
}

func (h *documentHandler) createDocument(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.Documents.Create(c.Request.Context(), middleware.CallerID(c), service.CreateRequest{Title: req.Title, Description: req.Description})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": d.ID, "title": d.Title})
}

func (h *documentHandler) listDocuments(c *gin.Context) {
	list, err := h.Documents.List(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(list))
	for _, d := range list {
		out = append(out, map[string]interface{}{"id": d.ID, "title": d.Title, "ownerId": d.OwnerID, "updatedAt": d.UpdatedAt})
	}
	c.JSON(http.StatusOK, out)
}

func (h *documentHandler) getDocument(c *gin.Context) {
	d, err := h.Documents.Get(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *documentHandler) deleteDocument(c *gin.Context) {
	if err := h.Documents.Delete(c.Request.Context(), middleware.CallerID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *documentHandler) addCollaborator(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d, err := h.Documents.AddCollaborator(c.Request.Context(), middleware.CallerID(c), c.Param("id"), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *documentHandler) shareDocument(c *gin.Context) {
	key, err := h.Documents.ShareKey(c.Request.Context(), middleware.CallerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shareKey": key})
}

func (h *documentHandler) joinWithKey(c *gin.Context) {
	// older clients send the key as "key"
	var req struct {
		ShareKey string `json:"shareKey"`
		Key      string `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ShareKey == "" {
		req.ShareKey = req.Key
	}
	d, err := h.Documents.JoinWithKey(c.Request.Context(), middleware.CallerID(c), c.Param("id"), req.ShareKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// snapshotContent picks the body to commit: an explicit content field, the
// older delta field, or else whatever the live channel currently holds.
func (h *documentHandler) snapshotContent(ctx context.Context, docID string, content, legacy json.RawMessage) (delta.Delta, error) {
	for _, raw := range []json.RawMessage{content, legacy} {
		if len(raw) > 0 && string(raw) != "null" {
			return delta.Decode(raw)
		}
	}
	if h.Live == nil {
		return delta.Delta{}, domain.E(domain.KindValidation, "handler.snapshot", errors.New("content is required"))
	}
	return h.Live.GetCurrentContent(ctx, docID)
}

func (h *documentHandler) commitSnapshot(c *gin.Context) {
	var req struct {
		Content       json.RawMessage `json:"content"`
		Delta         json.RawMessage `json:"delta"`
		CommitMessage string          `json:"commitMessage"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := h.opContext(c)
	defer cancel()

	docID := c.Param("id")
	content, err := h.snapshotContent(ctx, docID, req.Content, req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	v, err := h.Snapshots.Commit(ctx, service.CommitRequest{
		DocumentID:    docID,
		CallerID:      middleware.CallerID(c),
		Content:       content,
		CommitMessage: req.CommitMessage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"versionId": v.VersionID, "blobKey": v.BlobKey, "createdAt": document.FormatTimestamp(v.CreatedAt)})
}

func (h *documentHandler) listVersions(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	vs, err := h.Snapshots.ListHistory(ctx, middleware.CallerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vs)
}

func (h *documentHandler) getVersion(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	snap, err := h.Snapshots.Materialize(ctx, middleware.CallerID(c), c.Param("id"), c.Param("versionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versionId": snap.Version.VersionID, "version": snap.Version, "content": snap.Content})
}

func (h *documentHandler) getVersionText(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	text, err := h.Snapshots.PreviewText(ctx, middleware.CallerID(c), c.Param("id"), c.Param("versionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.String(http.StatusOK, text)
}

func (h *documentHandler) getVersionByID(c *gin.Context) {
	ctx, cancel := h.opContext(c)
	defer cancel()
	snap, err := h.Snapshots.MaterializeByID(ctx, middleware.CallerID(c), c.Param("versionId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versionId": snap.Version.VersionID, "documentId": snap.Version.DocumentID, "version": snap.Version, "content": snap.Content})
}

func (h *documentHandler) compare(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		badRequest(c, errors.New("from and to are required"))
		return
	}
	ctx, cancel := h.opContext(c)
	defer cancel()
	cmp, err := h.Snapshots.Compare(ctx, middleware.CallerID(c), c.Param("id"), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": cmp.From, "to": cmp.To, "fromText": cmp.FromText, "toText": cmp.ToText})
}

func (h *documentHandler) rollback(c *gin.Context) {
	var req struct {
		CommitMessage string `json:"commitMessage"`
	}
	// the body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	ctx, cancel := h.opContext(c)
	defer cancel()
	v, err := h.Rollbacks.Rollback(ctx, service.RollbackRequest{
		DocumentID:      c.Param("id"),
		CallerID:        middleware.CallerID(c),
		TargetVersionID: c.Param("versionId"),
		CommitMessage:   req.CommitMessage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *documentHandler) signUpload(c *gin.Context) {
	var req struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
		FileSize int64  `json:"fileSize"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	signed, err := h.Documents.SignUpload(c.Request.Context(), middleware.CallerID(c), service.UploadRequest{FileName: req.FileName, FileType: req.FileType, FileSize: req.FileSize})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploadUrl": signed.URL, "fileKey": signed.Key, "expiresAt": signed.ExpiresAt})
}

func (h *documentHandler) signDownload(c *gin.Context) {
	var req struct {
		FileKey    string `json:"fileKey"`
		DocumentID string `json:"documentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	signed, err := h.Documents.SignDownload(c.Request.Context(), middleware.CallerID(c), req.FileKey, req.DocumentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": signed.URL, "fileKey": signed.Key, "expiresAt": signed.ExpiresAt})
}
