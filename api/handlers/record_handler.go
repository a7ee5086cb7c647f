// api/handlers/record_handler.go
package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/core"
	"github.com/Annany2002/nebula-cms/internal/domain"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/metrics"
	"github.com/Annany2002/nebula-cms/internal/storage"
)

// RecordHandler holds dependencies for record CRUD handlers.
type RecordHandler struct {
	MetaDB   *sql.DB        // Metadata DB pool
	Cfg      *config.Config // App configuration
	Compiler *form.Compiler // Validation plans by table
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(metaDB *sql.DB, cfg *config.Config, compiler *form.Compiler) *RecordHandler {
	return &RecordHandler{
		MetaDB:   metaDB,
		Cfg:      cfg,
		Compiler: compiler,
	}
}

// recordPlan resolves the table of the request. Agents have their own
// endpoints because they are saved as one collection.
func (h *RecordHandler) recordPlan(c *gin.Context) (*form.Plan, error) {
	if c.Param("table_id") == cmsconfig.AgentsTable {
		return nil, fmt.Errorf("%w: agents are managed under /api/v1/agents", auth.ErrBadRequest)
	}
	return planFor(c, h.Compiler)
}

func recordKey(c *gin.Context) (string, error) {
	key := c.Param("record_key")
	if !core.IsValidRecordKey(key) {
		return "", fmt.Errorf("%w: invalid record key '%s'", auth.ErrBadRequest, key)
	}
	return key, nil
}

// validateRecord turns a failed result into an error and counts the rejection.
func validateRecord(plan *form.Plan, res form.Result) (map[string]any, error) {
	if err := res.Err(plan.Table); err != nil {
		metrics.ValidationFailuresTotal.WithLabelValues(plan.Table).Inc()
		customLog.Printf("Handler: Record rejected for table '%s': %v", plan.Table, res.FailedFields())
		return nil, err
	}
	return res.Values, nil
}

// CreateRecord handles inserting a new record.
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	plan, err := h.recordPlan(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req models.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	if !core.IsValidRecordKey(req.Key) {
		_ = c.Error(fmt.Errorf("%w: invalid record key '%s'", auth.ErrBadRequest, req.Key))
		return
	}

	values, err := validateRecord(plan, plan.Validate(req.Record))
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	if err := storage.InsertRecord(ctx, h.MetaDB, plan.Table, req.Key, values); err != nil {
		_ = c.Error(err)
		return
	}

	rec, err := storage.GetRecord(ctx, h.MetaDB, plan.Table, req.Key)
	if err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Created record '%s' in table '%s'", req.Key, plan.Table)
	c.JSON(http.StatusCreated, toRecordResponse(rec))
}

// ListRecords handles listing records with pagination, sorting and filters.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	plan, err := h.recordPlan(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	opts, err := core.ParseListQueryOptions(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", auth.ErrBadRequest, err))
		return
	}

	records, err := storage.ListRecords(c.Request.Context(), h.MetaDB, plan.Table, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]models.RecordResponse, 0, len(records))
	for i := range records {
		out = append(out, toRecordResponse(&records[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetRecord handles fetching a single record by key.
func (h *RecordHandler) GetRecord(c *gin.Context) {
	plan, err := h.recordPlan(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	key, err := recordKey(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rec, err := storage.GetRecord(c.Request.Context(), h.MetaDB, plan.Table, key)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toRecordResponse(rec))
}

// UpdateRecord replaces a record body. Hidden and undeclared keys are carried
// over from the stored record and readonly fields keep their stored value.
func (h *RecordHandler) UpdateRecord(c *gin.Context) {
	plan, err := h.recordPlan(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	key, err := recordKey(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req models.UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	existing, err := storage.GetRecord(ctx, h.MetaDB, plan.Table, key)
	if err != nil {
		_ = c.Error(err)
		return
	}

	merged, err := validateRecord(plan, plan.ValidateUpdate(existing.Body, req.Record))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := storage.UpdateRecord(ctx, h.MetaDB, plan.Table, key, merged); err != nil {
		_ = c.Error(err)
		return
	}

	rec, err := storage.GetRecord(ctx, h.MetaDB, plan.Table, key)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toRecordResponse(rec))
}

// DeleteRecord handles deleting a record by key.
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	plan, err := h.recordPlan(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	key, err := recordKey(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := storage.DeleteRecord(c.Request.Context(), h.MetaDB, plan.Table, key); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Deleted record '%s' from table '%s'", key, plan.Table)
	c.Status(http.StatusNoContent)
}

func toRecordResponse(rec *domain.StoredRecord) models.RecordResponse {
	return models.RecordResponse{Key: rec.Key, Record: rec.Body, UpdatedAt: rec.UpdatedAt}
}
