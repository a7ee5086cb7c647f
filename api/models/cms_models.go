// api/models/cms_models.go
package models

import (
	"time"

	"github.com/Annany2002/nebula-cms/internal/form"
)

// --- Record Request/Response Structs ---

// CreateRecordRequest is the body of POST .../records
type CreateRecordRequest struct {
	Key    string         `json:"key" binding:"required,min=3,max=64"`
	Record map[string]any `json:"record" binding:"required"`
}

// UpdateRecordRequest is the body of PUT .../records/:record_key
type UpdateRecordRequest struct {
	Record map[string]any `json:"record" binding:"required"`
}

// RecordResponse is one record as returned by the API
type RecordResponse struct {
	Key       string         `json:"key"`
	Record    map[string]any `json:"record"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ValidationErrorResponse carries per-field messages for a rejected record
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors"`
}

// TableSummary lists a configured table. Error is set when the table's
// detail view cannot be rendered.
type TableSummary struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Fields int    `json:"fields"`
	Error  string `json:"error,omitempty"`
}

// --- Form Widget Structs ---

// UploadResponse is returned after an accepted image upload. PreviewURL is
// only for displaying the selection; File is what the record stores.
type UploadResponse struct {
	File       form.FileHandle `json:"file"`
	PreviewURL string          `json:"preview_url"`
}

// PreviewRequest is the body of POST /preview/rich-text
type PreviewRequest struct {
	Markdown string `json:"markdown" binding:"required"`
}

// PreviewResponse carries sanitized HTML
type PreviewResponse struct {
	HTML string `json:"html"`
}
