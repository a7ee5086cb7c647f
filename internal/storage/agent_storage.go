// internal/storage/agent_storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrAgentNotFound = errors.New("agent not found")

// ListAgents returns every agent profile keyed by agent key.
func ListAgents(ctx context.Context, db *sql.DB) (map[string]map[string]any, error) {
	rows, err := db.QueryContext(ctx, `SELECT agent_key, body FROM agents ORDER BY agent_key`)
	if err != nil {
		customLog.Warnf("Storage: Failed listing agents: %v", err)
		return nil, fmt.Errorf("database error listing agents: %w", err)
	}
	defer rows.Close()

	agents := make(map[string]map[string]any)
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("failed reading agent: %w", err)
		}
		decoded := map[string]any{}
		if err := json.Unmarshal([]byte(body), &decoded); err != nil {
			return nil, fmt.Errorf("corrupt body for agent '%s': %w", key, err)
		}
		agents[key] = decoded
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed processing agents: %w", err)
	}
	return agents, nil
}

// GetAgent returns one agent profile or ErrAgentNotFound.
func GetAgent(ctx context.Context, db *sql.DB, key string) (map[string]any, error) {
	var body string
	err := db.QueryRowContext(ctx, `SELECT body FROM agents WHERE agent_key = ? LIMIT 1`, key).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		customLog.Warnf("Storage: Failed to get agent '%s': %v", key, err)
		return nil, fmt.Errorf("database error getting agent: %w", err)
	}

	decoded := map[string]any{}
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("corrupt body for agent '%s': %w", key, err)
	}
	return decoded, nil
}

// ReplaceAgents overwrites the whole agent collection in one transaction.
func ReplaceAgents(ctx context.Context, db *sql.DB, agents map[string]map[string]any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM agents`); err != nil {
		customLog.Warnf("Storage: Failed clearing agents: %v", err)
		return fmt.Errorf("database error clearing agents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO agents (agent_key, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare agent insert: %w", err)
	}
	defer stmt.Close()

	for key, body := range agents {
		if body == nil {
			body = map[string]any{}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode agent '%s': %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, key, string(payload)); err != nil {
			customLog.Warnf("Storage: Failed inserting agent '%s': %v", key, err)
			return fmt.Errorf("database error saving agent '%s': %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit agents: %w", err)
	}
	customLog.Printf("Storage: Replaced agent collection (%d agents)", len(agents))
	return nil
}
