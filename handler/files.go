package handler

import (
	"bytes"
	"errors"
	"net/http"
	"path"

	"github.com/Amaz3n/inkwell/service"
	"github.com/Amaz3n/inkwell/store"
	"github.com/gin-gonic/gin"
)

// FileHandler serves executed artifacts through short-lived download
// tokens. Range requests are honored so large documents can be fetched
// partially.
type FileHandler struct {
	tokens  *service.TokenService
	storage service.ArtifactStorage
	store   store.Store
}

func NewFileHandler(tokens *service.TokenService, storage service.ArtifactStorage, st store.Store) *FileHandler {
	return &FileHandler{tokens: tokens, storage: storage, store: st}
}

// Download streams the artifact a download token grants access to.
// 404 for unknown tokens or files, 410 once the token has expired.
func (h *FileHandler) Download(c *gin.Context) {
	orgID, fileID, err := h.tokens.ParseDownloadToken(c.Param("token"))
	if err != nil {
		if service.CodeOf(err) == service.CodeExpired {
			c.JSON(http.StatusGone, gin.H{"error": "Download link has expired"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	file, err := h.store.FileByID(c.Request.Context(), orgID, fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	data, err := h.storage.Download(c.Request.Context(), orgID, file.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch file"})
		return
	}

	if file.ContentType != "" {
		c.Header("Content-Type", file.ContentType)
	}
	c.Header("Content-Disposition", `attachment; filename="`+path.Base(file.Path)+`"`)

	// ServeContent handles Range, Content-Range, and Accept-Ranges,
	// returning 206 for partial requests.
	http.ServeContent(c.Writer, c.Request, path.Base(file.Path), file.CreatedAt, bytes.NewReader(data))
}
