// internal/storage/record_storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Annany2002/nebula-cms/internal/core"
	"github.com/Annany2002/nebula-cms/internal/domain"
)

// Specific errors for record operations
var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrRecordExists       = errors.New("record key already exists in this table")
	ErrInvalidFilterValue = errors.New("invalid value provided for filter")
)

// --- Record CRUD Operations ---

// InsertRecord stores a new record body under (tableID, key).
func InsertRecord(ctx context.Context, db *sql.DB, tableID, key string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO records (table_id, record_key, body) VALUES (?, ?, ?)`, tableID, key, string(payload))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRecordExists
		}
		customLog.Warnf("Storage: Failed INSERT into '%s' for key '%s': %v", tableID, key, err)
		return fmt.Errorf("database error during insert: %w", err)
	}
	return nil
}

// GetRecord returns a single record or ErrRecordNotFound.
func GetRecord(ctx context.Context, db *sql.DB, tableID, key string) (*domain.StoredRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT record_key, body, updated_at FROM records WHERE table_id = ? AND record_key = ? LIMIT 1`,
		tableID, key)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		customLog.Warnf("Storage: Failed SELECT in '%s' for key '%s': %v", tableID, key, err)
		return nil, fmt.Errorf("database error getting record: %w", err)
	}
	rec.TableID = tableID
	return rec, nil
}

// ListRecords returns a page of records of tableID. Filters compare the text
// form of a top-level body field; sorting by a body field uses its JSON value.
func ListRecords(ctx context.Context, db *sql.DB, tableID string, opts *core.ListQueryOptions) ([]domain.StoredRecord, error) {
	if opts == nil {
		opts = &core.ListQueryOptions{Limit: core.DefaultLimit, SortOrder: core.DefaultOrder}
	}

	whereClauses := []string{"table_id = ?"}
	args := []any{tableID}
	for _, field := range opts.FilterFields() {
		// Identifiers only, they are spliced into the JSON path
		if !core.IsValidIdentifier(field) {
			return nil, fmt.Errorf("%w: invalid filter key format '%s'", ErrInvalidFilterValue, field)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("CAST(json_extract(body, '$.%s') AS TEXT) = ?", field))
		args = append(args, opts.Filters[field])
	}

	orderBy := "record_key"
	if opts.SortBy != "" {
		if !core.IsValidIdentifier(opts.SortBy) {
			return nil, fmt.Errorf("%w: invalid sort field '%s'", ErrInvalidFilterValue, opts.SortBy)
		}
		orderBy = fmt.Sprintf("json_extract(body, '$.%s')", opts.SortBy)
	}
	direction := "ASC"
	if strings.EqualFold(opts.SortOrder, "desc") {
		direction = "DESC"
	}

	// nolint:gosec // every spliced name passed IsValidIdentifier above
	selectSQL := fmt.Sprintf(
		"SELECT record_key, body, updated_at FROM records WHERE %s ORDER BY %s %s, record_key %s LIMIT ? OFFSET ?",
		strings.Join(whereClauses, " AND "), orderBy, direction, direction)
	args = append(args, opts.Limit, opts.Offset)

	customLog.Debugf("Storage: Executing List Records SQL: %s | Args: %v", selectSQL, args)

	rows, err := db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed listing records of '%s': %v", tableID, err)
		return nil, fmt.Errorf("database error listing records: %w", err)
	}
	defer rows.Close()

	results := make([]domain.StoredRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed reading record data: %w", err)
		}
		rec.TableID = tableID
		if len(opts.Fields) > 0 {
			rec.Body = project(rec.Body, opts.Fields)
		}
		results = append(results, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed processing all records: %w", err)
	}
	return results, nil
}

// UpdateRecord replaces the body of an existing record.
func UpdateRecord(ctx context.Context, db *sql.DB, tableID, key string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE records SET body = ?, updated_at = CURRENT_TIMESTAMP WHERE table_id = ? AND record_key = ?`,
		string(payload), tableID, key)
	if err != nil {
		customLog.Warnf("Storage: Failed UPDATE in '%s' for key '%s': %v", tableID, key, err)
		return fmt.Errorf("database error during update: %w", err)
	}
	return expectOneRow(result, ErrRecordNotFound)
}

// DeleteRecord removes a record or returns ErrRecordNotFound.
func DeleteRecord(ctx context.Context, db *sql.DB, tableID, key string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM records WHERE table_id = ? AND record_key = ?`, tableID, key)
	if err != nil {
		customLog.Warnf("Storage: Failed DELETE in '%s' for key '%s': %v", tableID, key, err)
		return fmt.Errorf("database error during delete: %w", err)
	}
	return expectOneRow(result, ErrRecordNotFound)
}

func scanRecord(scan func(dest ...any) error) (*domain.StoredRecord, error) {
	var (
		rec  domain.StoredRecord
		body string
	)
	if err := scan(&rec.Key, &body, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &rec.Body); err != nil {
		return nil, fmt.Errorf("corrupt body for record '%s': %w", rec.Key, err)
	}
	return &rec, nil
}

func project(body map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := body[f]; ok {
			out[f] = v
		}
	}
	return out
}

func expectOneRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
