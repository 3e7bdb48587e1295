// Package sqlite provides the embedded SQLite implementation of the graph
// store.
//
// SQLite is a lightweight, file-based database suitable for local
// deployments and tests. Memories, entities and tags are rows; MENTIONS
// and TAGGED edges are join tables; embeddings are stored as JSON strings
// in TEXT fields and similarity search runs in memory over a full scan.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/driftlab/graphmem/pkg/storage"
)

// Client implements storage.GraphStore on SQLite.
type Client struct {
	db *sql.DB
}

// Config contains configuration for the SQLite graph store.
type Config struct {
	// Path is the database file path; ":memory:" opens an in-memory
	// store.
	Path string
}

// NewClient opens (or creates) the database and initializes the schema.
//
// Parameters:
//   - cfg: Configuration containing the database path
//
// Returns:
//   - *Client: The SQLite graph store
//   - error: Error if the database cannot be opened or migrated
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("NewClient: database path is required")
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0755); err != nil {
				return nil, fmt.Errorf("NewClient: failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	// SQLite allows a single writer; one pooled connection also keeps
	// an in-memory database on the same handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	client := &Client{db: db}
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

// initTables initializes the database schema.
func (c *Client) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			embedding TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'other',
			importance REAL NOT NULL DEFAULT 0.5,
			retrieval_count INTEGER NOT NULL DEFAULT 0,
			last_accessed_at DATETIME,
			created_at DATETIME NOT NULL,
			extraction_status TEXT NOT NULL DEFAULT 'pending',
			extraction_retries INTEGER NOT NULL DEFAULT 0,
			user_pinned INTEGER NOT NULL DEFAULT 0,
			invalidated INTEGER NOT NULL DEFAULT 0,
			agent_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_status
			ON memories(extraction_status, invalidated)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_agent
			ON memories(agent_id, invalidated)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			aliases TEXT,
			description TEXT NOT NULL DEFAULT '',
			UNIQUE(name, type)
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL DEFAULT 'topic'
		)`,
		`CREATE TABLE IF NOT EXISTS memory_entities (
			memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			PRIMARY KEY (memory_id, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_tags (
			memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (memory_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS entity_relations (
			source_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0.7,
			PRIMARY KEY (source_id, target_id, type)
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

// InsertMemory stores a new memory with a generated UUID.
func (c *Client) InsertMemory(ctx context.Context, text string, embedding []float64, opts *storage.InsertOptions) (string, error) {
	if opts == nil {
		opts = &storage.InsertOptions{}
	}

	category := opts.Category
	if category == "" {
		category = storage.CategoryOther
	}
	importance := opts.Importance
	if importance == 0 {
		importance = storage.DefaultImportance
	}

	embeddingJSON, err := serializeVector(embedding)
	if err != nil {
		return "", fmt.Errorf("InsertMemory: %w", err)
	}

	id := uuid.NewString()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO memories
			(id, text, embedding, category, importance, created_at,
			 extraction_status, user_pinned, agent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, text, embeddingJSON, category, importance, time.Now().UTC(),
		storage.ExtractionPending, boolToInt(opts.Pinned), opts.AgentID,
	)
	if err != nil {
		return "", fmt.Errorf("InsertMemory: %w", err)
	}
	return id, nil
}

const memoryColumns = `id, text, embedding, category, importance,
	retrieval_count, last_accessed_at, created_at, extraction_status,
	extraction_retries, user_pinned, invalidated, agent_id`

// GetMemory retrieves a memory by ID, invalidated or not.
func (c *Client) GetMemory(ctx context.Context, id string) (*storage.Memory, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)

	memory, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("GetMemory: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	return memory, nil
}

// SearchSimilar returns the limit most similar live memories, highest
// cosine similarity first. SQLite has no native vector operations, so
// similarity is computed in memory over a full scan.
func (c *Client) SearchSimilar(ctx context.Context, embedding []float64, limit int, agentID string) ([]*storage.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE invalidated = 0`
	args := []interface{}{}
	query, args = appendAgentFilter(query, args, agentID)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("SearchSimilar: %w", err)
		}
		memory.Score = storage.CosineSimilarity(embedding, memory.Embedding)
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})
	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// TouchMemories increments RetrievalCount and refreshes LastAccessedAt.
func (c *Client) TouchMemories(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := append([]interface{}{time.Now().UTC()}, toArgs(ids)...)
	_, err := c.db.ExecContext(ctx, `
		UPDATE memories
		SET retrieval_count = retrieval_count + 1, last_accessed_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("TouchMemories: %w", err)
	}
	return nil
}

// SetPinned sets or clears the user-pinned flag.
func (c *Client) SetPinned(ctx context.Context, id string, pinned bool) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE memories SET user_pinned = ? WHERE id = ?`, boolToInt(pinned), id)
	if err != nil {
		return fmt.Errorf("SetPinned: %w", err)
	}
	return requireRow(result, "SetPinned")
}

// InvalidateMemory soft-deletes a memory.
func (c *Client) InvalidateMemory(ctx context.Context, id string) error {
	result, err := c.db.ExecContext(ctx,
		`UPDATE memories SET invalidated = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("InvalidateMemory: %w", err)
	}
	return requireRow(result, "InvalidateMemory")
}

// UpdateExtractionStatus advances the extraction status. The WHERE guard
// keeps transitions monotonic: a terminal status only ever rewrites to
// itself, and the retry counter only grows.
func (c *Client) UpdateExtractionStatus(ctx context.Context, id, status string, incrementRetries bool) error {
	increment := 0
	if incrementRetries {
		increment = 1
	}

	_, err := c.db.ExecContext(ctx, `
		UPDATE memories
		SET extraction_status = ?,
		    extraction_retries = extraction_retries + ?
		WHERE id = ?
		  AND (extraction_status = ? OR extraction_status = ?)`,
		status, increment, id, storage.ExtractionPending, status)
	if err != nil {
		return fmt.Errorf("UpdateExtractionStatus: %w", err)
	}
	return nil
}

// BatchEntityOperations applies a full extraction result in a single
// transaction.
func (c *Client) BatchEntityOperations(ctx context.Context, memoryID string, entities []storage.EntityInput, relationships []storage.RelationshipInput, tags []storage.TagInput, category string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BatchEntityOperations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	entityIDs := make(map[string]string, len(entities))
	for _, entity := range entities {
		entityID, err := upsertEntity(ctx, tx, entity)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
		entityIDs[entity.Name] = entityID

		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO memory_entities (memory_id, entity_id)
			VALUES (?, ?)`, memoryID, entityID)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
	}

	for _, rel := range relationships {
		sourceID, err := resolveEntity(ctx, tx, entityIDs, rel.Source)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
		targetID, err := resolveEntity(ctx, tx, entityIDs, rel.Target)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
		// Endpoints the extraction never defined resolve to nothing;
		// the relationship is skipped rather than invented.
		if sourceID == "" || targetID == "" {
			continue
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity_relations (source_id, target_id, type, confidence)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(source_id, target_id, type)
			DO UPDATE SET confidence = excluded.confidence`,
			sourceID, targetID, rel.Type, rel.Confidence)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
	}

	for _, tag := range tags {
		tagID, err := upsertTag(ctx, tx, tag)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO memory_tags (memory_id, tag_id)
			VALUES (?, ?)`, memoryID, tagID)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
	}

	if category != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE memories SET category = ?
			WHERE id = ? AND category != ?`,
			category, memoryID, storage.CategoryCore)
		if err != nil {
			return fmt.Errorf("BatchEntityOperations: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories SET extraction_status = ?
		WHERE id = ? AND extraction_status = ?`,
		storage.ExtractionComplete, memoryID, storage.ExtractionPending)
	if err != nil {
		return fmt.Errorf("BatchEntityOperations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("BatchEntityOperations: %w", err)
	}
	return nil
}

// ListPendingExtractions returns up to limit pending memories, oldest
// first.
func (c *Client) ListPendingExtractions(ctx context.Context, limit int, agentID string) ([]*storage.PendingExtraction, error) {
	query := `
		SELECT id, text, extraction_retries FROM memories
		WHERE extraction_status = ? AND invalidated = 0`
	args := []interface{}{storage.ExtractionPending}
	query, args = appendAgentFilter(query, args, agentID)
	query += ` ORDER BY created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListPendingExtractions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pending []*storage.PendingExtraction
	for rows.Next() {
		p := &storage.PendingExtraction{}
		if err := rows.Scan(&p.ID, &p.Text, &p.Retries); err != nil {
			return nil, fmt.Errorf("ListPendingExtractions: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPendingExtractions: %w", err)
	}
	return pending, nil
}

// CountByExtractionStatus returns live memory counts per extraction
// status.
func (c *Client) CountByExtractionStatus(ctx context.Context, agentID string) (map[string]int, error) {
	query := `
		SELECT extraction_status, COUNT(*) FROM memories
		WHERE invalidated = 0`
	args := []interface{}{}
	query, args = appendAgentFilter(query, args, agentID)
	query += ` GROUP BY extraction_status`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("CountByExtractionStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("CountByExtractionStatus: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CountByExtractionStatus: %w", err)
	}
	return counts, nil
}

// FindDuplicateClusters loads live memories and groups them into the
// connected components of the similarity graph.
func (c *Client) FindDuplicateClusters(ctx context.Context, threshold float64, agentID string, withScores bool) ([]*storage.DuplicateCluster, error) {
	query := `
		SELECT id, text, importance, embedding FROM memories
		WHERE invalidated = 0`
	args := []interface{}{}
	query, args = appendAgentFilter(query, args, agentID)
	query += ` ORDER BY created_at ASC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindDuplicateClusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []storage.ClusterMember
	for rows.Next() {
		var member storage.ClusterMember
		var embeddingStr string
		if err := rows.Scan(&member.ID, &member.Text, &member.Importance, &embeddingStr); err != nil {
			return nil, fmt.Errorf("FindDuplicateClusters: %w", err)
		}
		if member.Embedding, err = parseVector(embeddingStr); err != nil {
			return nil, fmt.Errorf("FindDuplicateClusters: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindDuplicateClusters: %w", err)
	}

	return storage.BuildClusters(members, threshold, withScores), nil
}

// MergeMemoryCluster collapses a cluster into its most important live
// member. Ties break on higher retrieval count, then older creation.
func (c *Client) MergeMemoryCluster(ctx context.Context, ids []string, importances []float64) (*storage.MergeResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("MergeMemoryCluster: empty cluster")
	}
	if len(ids) == 1 {
		return &storage.MergeResult{KeptID: ids[0]}, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, importance, retrieval_count, created_at FROM memories
		WHERE id IN (`+placeholders(len(ids))+`) AND invalidated = 0`,
		toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}

	type member struct {
		id             string
		importance     float64
		retrievalCount int
		createdAt      time.Time
	}
	var members []member
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.id, &m.importance, &m.retrievalCount, &m.createdAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}
	_ = rows.Close()

	if len(members) == 0 {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", storage.ErrNotFound)
	}
	if len(members) == 1 {
		return &storage.MergeResult{KeptID: members[0].id}, nil
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].importance != members[j].importance {
			return members[i].importance > members[j].importance
		}
		if members[i].retrievalCount != members[j].retrievalCount {
			return members[i].retrievalCount > members[j].retrievalCount
		}
		return members[i].createdAt.Before(members[j].createdAt)
	})

	survivor := members[0]
	totalRetrievals := 0
	maxImportance := 0.0
	loserIDs := make([]string, 0, len(members)-1)
	for _, m := range members {
		totalRetrievals += m.retrievalCount
		if m.importance > maxImportance {
			maxImportance = m.importance
		}
		if m.id != survivor.id {
			loserIDs = append(loserIDs, m.id)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories SET retrieval_count = ?, importance = ?
		WHERE id = ?`, totalRetrievals, maxImportance, survivor.id)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}

	loserArgs := toArgs(loserIDs)
	loserSet := placeholders(len(loserIDs))

	// Migrate MENTIONS and TAGGED edges onto the survivor before the
	// losers are invalidated.
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO memory_entities (memory_id, entity_id)
		SELECT ?, entity_id FROM memory_entities
		WHERE memory_id IN (`+loserSet+`)`,
		append([]interface{}{survivor.id}, loserArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM memory_entities WHERE memory_id IN (`+loserSet+`)`, loserArgs...)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO memory_tags (memory_id, tag_id)
		SELECT ?, tag_id FROM memory_tags
		WHERE memory_id IN (`+loserSet+`)`,
		append([]interface{}{survivor.id}, loserArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM memory_tags WHERE memory_id IN (`+loserSet+`)`, loserArgs...)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE memories SET invalidated = 1 WHERE id IN (`+loserSet+`)`, loserArgs...)
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}
	return &storage.MergeResult{KeptID: survivor.id, DeletedCount: len(loserIDs)}, nil
}

// FindConflictingMemories returns candidate pairs for conflict
// adjudication.
func (c *Client) FindConflictingMemories(ctx context.Context, agentID string) ([]*storage.ConflictPair, error) {
	query := `
		SELECT id, text, category, embedding FROM memories
		WHERE invalidated = 0 AND category IN (?, ?, ?)`
	args := []interface{}{storage.CategoryPreference, storage.CategoryFact, storage.CategoryDecision}
	query, args = appendAgentFilter(query, args, agentID)
	query += ` ORDER BY created_at ASC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindConflictingMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []storage.ConflictMember
	for rows.Next() {
		var member storage.ConflictMember
		var embeddingStr string
		if err := rows.Scan(&member.ID, &member.Text, &member.Category, &embeddingStr); err != nil {
			return nil, fmt.Errorf("FindConflictingMemories: %w", err)
		}
		if member.Embedding, err = parseVector(embeddingStr); err != nil {
			return nil, fmt.Errorf("FindConflictingMemories: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindConflictingMemories: %w", err)
	}

	return storage.BuildConflictPairs(members), nil
}

// CalculateAllEffectiveScores computes the effective score of every live
// memory at the current instant.
func (c *Client) CalculateAllEffectiveScores(ctx context.Context, agentID string) ([]*storage.ScoredMemory, error) {
	query := `
		SELECT id, text, category, importance, retrieval_count,
		       last_accessed_at, created_at
		FROM memories WHERE invalidated = 0`
	args := []interface{}{}
	query, args = appendAgentFilter(query, args, agentID)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("CalculateAllEffectiveScores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	now := time.Now().UTC()
	var scored []*storage.ScoredMemory
	for rows.Next() {
		var (
			m              storage.Memory
			lastAccessedAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Text, &m.Category, &m.Importance,
			&m.RetrievalCount, &lastAccessedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("CalculateAllEffectiveScores: %w", err)
		}
		if lastAccessedAt.Valid {
			m.LastAccessedAt = lastAccessedAt.Time
		}

		scored = append(scored, &storage.ScoredMemory{
			ID:             m.ID,
			Text:           m.Text,
			Category:       m.Category,
			EffectiveScore: storage.EffectiveScore(m.Importance, m.RetrievalCount, m.DaysSinceAccess(now)),
			RetrievalCount: m.RetrievalCount,
			AgeDays:        m.AgeDays(now),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CalculateAllEffectiveScores: %w", err)
	}
	return scored, nil
}

// ListCoreMemories returns all live core-tier memories.
func (c *Client) ListCoreMemories(ctx context.Context, agentID string) ([]*storage.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories
		WHERE invalidated = 0 AND category = ?`
	args := []interface{}{storage.CategoryCore}
	query, args = appendAgentFilter(query, args, agentID)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListCoreMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListCoreMemories: %w", err)
		}
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCoreMemories: %w", err)
	}
	return memories, nil
}

// PromoteToCore sets category core on the given live memories.
func (c *Client) PromoteToCore(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := append([]interface{}{storage.CategoryCore}, toArgs(ids)...)
	args = append(args, storage.CategoryCore)
	result, err := c.db.ExecContext(ctx, `
		UPDATE memories SET category = ?
		WHERE id IN (`+placeholders(len(ids))+`)
		  AND invalidated = 0 AND category != ?`, args...)
	if err != nil {
		return 0, fmt.Errorf("PromoteToCore: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PromoteToCore: %w", err)
	}
	return int(affected), nil
}

// FindDecayedMemories returns the IDs of live memories whose retention
// has fallen below the threshold. Pinned and core memories never decay.
func (c *Client) FindDecayedMemories(ctx context.Context, opts *storage.DecayOptions) ([]string, error) {
	query := `
		SELECT id, category, importance, user_pinned, created_at
		FROM memories WHERE invalidated = 0`
	args := []interface{}{}
	query, args = appendAgentFilter(query, args, opts.AgentID)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FindDecayedMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	now := time.Now().UTC()
	var decayed []string
	for rows.Next() {
		var m storage.Memory
		var pinned int
		if err := rows.Scan(&m.ID, &m.Category, &m.Importance, &pinned, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("FindDecayedMemories: %w", err)
		}
		m.UserPinned = pinned != 0

		if storage.IsDecayed(&m, m.AgeDays(now), opts) {
			decayed = append(decayed, m.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindDecayedMemories: %w", err)
	}
	return decayed, nil
}

// PruneMemories hard-deletes the given memories; their MENTIONS and
// TAGGED edges go with them through the cascade. Core and pinned
// memories are skipped.
func (c *Client) PruneMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := toArgs(ids)
	args = append(args, storage.CategoryCore)
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM memories
		WHERE id IN (`+placeholders(len(ids))+`)
		  AND category != ? AND user_pinned = 0`, args...)
	if err != nil {
		return 0, fmt.Errorf("PruneMemories: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("PruneMemories: %w", err)
	}
	return int(affected), nil
}

// FindOrphanEntities returns entities no live memory mentions.
func (c *Client) FindOrphanEntities(ctx context.Context) ([]string, error) {
	return c.findOrphans(ctx, `
		SELECT e.id FROM entities e
		WHERE NOT EXISTS (
			SELECT 1 FROM memory_entities me
			JOIN memories m ON m.id = me.memory_id
			WHERE me.entity_id = e.id AND m.invalidated = 0
		)`, "FindOrphanEntities")
}

// DeleteOrphanEntities removes the given entities; their relationships
// cascade away.
func (c *Client) DeleteOrphanEntities(ctx context.Context, ids []string) (int, error) {
	return c.deleteByID(ctx, "entities", ids, "DeleteOrphanEntities")
}

// FindOrphanTags returns tags no live memory carries.
func (c *Client) FindOrphanTags(ctx context.Context) ([]string, error) {
	return c.findOrphans(ctx, `
		SELECT t.id FROM tags t
		WHERE NOT EXISTS (
			SELECT 1 FROM memory_tags mt
			JOIN memories m ON m.id = mt.memory_id
			WHERE mt.tag_id = t.id AND m.invalidated = 0
		)`, "FindOrphanTags")
}

// DeleteOrphanTags removes the given tags.
func (c *Client) DeleteOrphanTags(ctx context.Context, ids []string) (int, error) {
	return c.deleteByID(ctx, "tags", ids, "DeleteOrphanTags")
}

// ListActiveMemories returns the minimal projection of every live memory.
func (c *Client) ListActiveMemories(ctx context.Context, agentID string) ([]*storage.ActiveMemory, error) {
	query := `
		SELECT id, text, category, user_pinned FROM memories
		WHERE invalidated = 0`
	args := []interface{}{}
	query, args = appendAgentFilter(query, args, agentID)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListActiveMemories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var active []*storage.ActiveMemory
	for rows.Next() {
		a := &storage.ActiveMemory{}
		var pinned int
		if err := rows.Scan(&a.ID, &a.Text, &a.Category, &pinned); err != nil {
			return nil, fmt.Errorf("ListActiveMemories: %w", err)
		}
		a.Pinned = pinned != 0
		active = append(active, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActiveMemories: %w", err)
	}
	return active, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) findOrphans(ctx context.Context, query, op string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

func (c *Client) deleteByID(ctx context.Context, table string, ids []string, op string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := c.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id IN (`+placeholders(len(ids))+`)`,
		toArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(affected), nil
}
