// api/handlers/upload_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/metrics"
)

// UploadsRoute is where accepted uploads are served from.
const UploadsRoute = "/uploads"

// UploadHandler accepts files for image-uploader fields.
type UploadHandler struct {
	Cfg      *config.Config
	Compiler *form.Compiler
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(cfg *config.Config, compiler *form.Compiler) *UploadHandler {
	return &UploadHandler{Cfg: cfg, Compiler: compiler}
}

// UploadImage checks the multipart "file" against the field's fileTypes and
// maxSize. A rejected file is never written.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	plan, err := planFor(c, h.Compiler)
	if err != nil {
		_ = c.Error(err)
		return
	}

	field := c.Param("field")
	decl, ok := plan.Declaration(field)
	if !ok || decl.Type != cmsconfig.TypeFile {
		_ = c.Error(fmt.Errorf("%w: '%s' is not a file field of table '%s'", auth.ErrBadRequest, field, plan.Table))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: multipart field 'file' is required", auth.ErrBadRequest))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	handle, err := form.CheckImageUpload(decl, fileHeader.Filename, mimeType, fileHeader.Size)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(plan.Table, field, metrics.OutcomeRejected).Inc()
		customLog.Printf("Handler: %v", err)
		_ = c.Error(err)
		return
	}

	if err := os.MkdirAll(h.Cfg.UploadDir, 0o750); err != nil {
		_ = c.Error(fmt.Errorf("failed to create upload directory: %w", err))
		return
	}
	name := handle.ID + "." + form.ExtensionFromMIME(mimeType)
	if err := c.SaveUploadedFile(fileHeader, filepath.Join(h.Cfg.UploadDir, name)); err != nil {
		_ = c.Error(fmt.Errorf("failed to store upload: %w", err))
		return
	}

	metrics.UploadsTotal.WithLabelValues(plan.Table, field, metrics.OutcomeAccepted).Inc()
	customLog.Printf("Handler: Stored upload '%s' for %s.%s (%d bytes)", name, plan.Table, field, handle.Size)
	c.JSON(http.StatusCreated, models.UploadResponse{
		File:       *handle,
		PreviewURL: path.Join(UploadsRoute, name),
	})
}
