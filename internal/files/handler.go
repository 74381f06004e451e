package files

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dsr-backend/internal/shared/server/middleware"
	"dsr-backend/internal/shared/server/respond"
)

// multipartOverhead allows for boundaries and the type field on top of the
// file itself.
const multipartOverhead = 1 << 20

const maxListLimit = 200

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches routes served without a session. Retrieval
// relies on unguessable generated names so plain <img> tags keep working.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/*path", h.retrieve)
}

// RegisterRoutes attaches routes that require an authenticated session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.upload)
	rg.DELETE("/delete-file", h.delete)
	rg.GET("/uploads", h.list)
}

func (h *Handler) upload(c *gin.Context) {
	limit := h.Svc.MaxBytes + multipartOverhead
	if c.Request.ContentLength > limit {
		h.writeError(c, ErrTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.writeError(c, ErrTooLarge)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			h.writeError(c, ErrNoFile)
		default:
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Invalid multipart form", nil)
		}
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Unable to read uploaded file", nil)
		return
	}
	defer file.Close()

	rec, err := h.Svc.Upload(c.Request.Context(), UploadInput{
		Type:         c.PostForm("type"),
		OriginalName: fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
		Body:         file,
		UploadedBy:   middleware.UserIDFromContext(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set(middleware.FilePathKey, rec.RelativePath)
	respond.OK(c, toUploadResponse(rec))
}

func (h *Handler) retrieve(c *gin.Context) {
	raw := c.Param("path")
	c.Set(middleware.FilePathKey, raw)

	dl, err := h.Svc.Open(c.Request.Context(), raw)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer dl.Body.Close()

	c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, dl.Body, map[string]string{
		"Cache-Control":          "public, max-age=31536000",
		"X-Content-Type-Options": "nosniff",
	})
}

func (h *Handler) delete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "filePath is required", nil)
		return
	}
	c.Set(middleware.FilePathKey, req.FilePath)

	res, err := h.Svc.Delete(c.Request.Context(), req.FilePath)
	if err != nil {
		h.writeError(c, err)
		return
	}
	msg := "File deleted successfully"
	if !res.Existed {
		msg = "File already deleted or does not exist"
	}
	respond.OK(c, deleteResponse{Success: true, Message: msg})
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{Limit: 50}
	if raw := c.Query("category"); raw != "" {
		cat, ok := ParseCategory(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unknown category", nil)
			return
		}
		filter.Category = cat
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), nil)
			return
		}
		filter.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "offset must be a non-negative integer", nil)
			return
		}
		filter.Offset = n
	}

	out, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, listResponse{Success: true, Data: out, Limit: filter.Limit, Offset: filter.Offset})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoFile):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "No file uploaded", nil)
	case errors.Is(err, ErrUnsupportedType):
		msg := "Invalid file type"
		var typeErr *UnsupportedTypeError
		if errors.As(err, &typeErr) {
			msg += ". Allowed types: " + typeErr.Category.AllowedDescription()
		}
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, msg, nil)
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation,
			fmt.Sprintf("File too large. Maximum size is %s", humanBytes(h.Svc.MaxBytes)), nil)
	case errors.Is(err, ErrAccessDenied):
		respond.Error(c, http.StatusForbidden, respond.CodeAccessDenied, "Access denied", nil)
	case errors.Is(err, ErrInvalidPath):
		respond.Error(c, http.StatusBadRequest, respond.CodeInvalidPath, "Invalid file path", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "File not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeStorage, "Storage operation failed", nil)
	}
}

func humanBytes(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	if n%(1<<10) == 0 {
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
