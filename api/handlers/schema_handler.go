// api/handlers/schema_handler.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/core"
	"github.com/Annany2002/nebula-cms/internal/form"
)

// SchemaHandler serves the CMS document and compiled form plans.
type SchemaHandler struct {
	Compiler *form.Compiler
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(compiler *form.Compiler) *SchemaHandler {
	return &SchemaHandler{Compiler: compiler}
}

// GetConfig returns the whole CMS document.
func (h *SchemaHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Compiler.Config())
}

// ListTables returns the configured tables.
func (h *SchemaHandler) ListTables(c *gin.Context) {
	cfg := h.Compiler.Config()
	failures := h.Compiler.CheckAll()
	tables := make([]models.TableSummary, 0, len(cfg.Tables))
	for _, id := range cfg.TableIDs() {
		summary := models.TableSummary{ID: id, Label: cfg.Tables[id].Label, Fields: cfg.Tables[id].Fields.Len()}
		if err, ok := failures[id]; ok {
			summary.Error = err.Error()
		}
		tables = append(tables, summary)
	}
	c.JSON(http.StatusOK, tables)
}

// GetForm returns the compiled widget and validation plan of a table.
func (h *SchemaHandler) GetForm(c *gin.Context) {
	plan, err := planFor(c, h.Compiler)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// planFor resolves the :table_id path parameter to its compiled plan.
func planFor(c *gin.Context, compiler *form.Compiler) (*form.Plan, error) {
	tableID := c.Param("table_id")
	if !core.IsValidIdentifier(tableID) {
		return nil, fmt.Errorf("%w: invalid table id in URL path", auth.ErrBadRequest)
	}
	return compiler.Plan(tableID)
}
