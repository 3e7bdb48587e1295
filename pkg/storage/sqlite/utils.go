package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/driftlab/graphmem/pkg/storage"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMemory scans a full memory row in memoryColumns order.
func scanMemory(scanner rowScanner) (*storage.Memory, error) {
	var (
		memory         storage.Memory
		embeddingStr   string
		lastAccessedAt sql.NullTime
		pinned         int
		invalidated    int
	)

	err := scanner.Scan(
		&memory.ID,
		&memory.Text,
		&embeddingStr,
		&memory.Category,
		&memory.Importance,
		&memory.RetrievalCount,
		&lastAccessedAt,
		&memory.CreatedAt,
		&memory.ExtractionStatus,
		&memory.ExtractionRetries,
		&pinned,
		&invalidated,
		&memory.AgentID,
	)
	if err != nil {
		return nil, err
	}

	if memory.Embedding, err = parseVector(embeddingStr); err != nil {
		return nil, err
	}
	if lastAccessedAt.Valid {
		memory.LastAccessedAt = lastAccessedAt.Time
	}
	memory.UserPinned = pinned != 0
	memory.Invalidated = invalidated != 0
	return &memory, nil
}

// serializeVector encodes an embedding as a JSON array string.
func serializeVector(v []float64) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize embedding: %w", err)
	}
	return string(data), nil
}

// parseVector decodes a JSON array string back into an embedding.
func parseVector(s string) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return v, nil
}

// upsertEntity merges an entity by (name, type) and returns its ID.
// Fresh aliases and descriptions overwrite blank ones but never erase
// existing data.
func upsertEntity(ctx context.Context, tx *sql.Tx, entity storage.EntityInput) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM entities WHERE name = ? AND type = ?`,
		entity.Name, entity.Type).Scan(&id)
	if err == sql.ErrNoRows {
		id = uuid.NewString()
		aliases, marshalErr := json.Marshal(entity.Aliases)
		if marshalErr != nil {
			return "", marshalErr
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities (id, name, type, aliases, description)
			VALUES (?, ?, ?, ?, ?)`,
			id, entity.Name, entity.Type, string(aliases), entity.Description)
		return id, err
	}
	if err != nil {
		return "", err
	}

	if len(entity.Aliases) > 0 {
		aliases, marshalErr := json.Marshal(entity.Aliases)
		if marshalErr != nil {
			return "", marshalErr
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET aliases = ? WHERE id = ?`, string(aliases), id); err != nil {
			return "", err
		}
	}
	if entity.Description != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET description = ? WHERE id = ?`, entity.Description, id); err != nil {
			return "", err
		}
	}
	return id, nil
}

// upsertTag merges a tag by name and returns its ID.
func upsertTag(ctx context.Context, tx *sql.Tx, tag storage.TagInput) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE name = ?`, tag.Name).Scan(&id)
	if err == sql.ErrNoRows {
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tags (id, name, category) VALUES (?, ?, ?)`,
			id, tag.Name, tag.Category)
		return id, err
	}
	return id, err
}

// resolveEntity finds the entity ID for a relationship endpoint: batch
// entities first, then anything already in the graph. An unresolvable
// name yields the empty string.
func resolveEntity(ctx context.Context, tx *sql.Tx, batch map[string]string, name string) (string, error) {
	if id, ok := batch[name]; ok {
		return id, nil
	}

	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM entities WHERE name = ? LIMIT 1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// toArgs widens a string slice for variadic query arguments.
func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// appendAgentFilter narrows a query to one agent when agentID is set.
func appendAgentFilter(query string, args []interface{}, agentID string) (string, []interface{}) {
	if agentID == "" {
		return query, args
	}
	return query + " AND agent_id = ?", append(args, agentID)
}

// boolToInt stores Go bools in INTEGER columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
