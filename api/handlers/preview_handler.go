// api/handlers/preview_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/internal/form"
)

// PreviewRichText renders markdown to the same sanitized HTML a rich-text
// field would store.
func PreviewRichText(c *gin.Context) {
	var req models.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	html, err := form.RenderRichText(req.Markdown)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.PreviewResponse{HTML: html})
}
