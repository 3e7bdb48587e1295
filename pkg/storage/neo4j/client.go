// Package neo4j provides the Neo4j implementation of the graph store.
//
// Memories, entities and tags are nodes; MENTIONS and TAGGED edges link
// memories to what they reference, and typed edges such as WORKS_AT link
// entities to each other. Embeddings live on Memory nodes as float lists
// and similarity is computed client-side through the shared helpers, so
// both backends rank identically.
package neo4j

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/driftlab/graphmem/pkg/storage"
)

// Client implements storage.GraphStore on Neo4j.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config contains configuration for the Neo4j graph store.
type Config struct {
	// URI is the bolt or neo4j scheme address, e.g. "bolt://localhost:7687".
	URI string

	// Username and Password authenticate against the server.
	Username string
	Password string

	// Database selects the database; empty uses the server default.
	Database string
}

// NewClient connects to Neo4j, verifies connectivity and ensures the
// schema constraints exist.
//
// Parameters:
//   - ctx: Context for the connectivity check and schema setup
//   - cfg: Connection configuration
//
// Returns:
//   - *Client: The Neo4j graph store
//   - error: Error if the server is unreachable or schema setup fails
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, fmt.Errorf("NewClient: URI is required")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}

	client := &Client{driver: driver, database: cfg.Database}
	if err := client.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// ensureSchema creates the uniqueness constraints and lookup indexes.
func (c *Client) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT memory_id IF NOT EXISTS
			FOR (m:Memory) REQUIRE m.id IS UNIQUE`,
		`CREATE CONSTRAINT tag_name IF NOT EXISTS
			FOR (t:Tag) REQUIRE t.name IS UNIQUE`,
		`CREATE INDEX entity_name_type IF NOT EXISTS
			FOR (e:Entity) ON (e.name, e.type)`,
		`CREATE INDEX memory_status IF NOT EXISTS
			FOR (m:Memory) ON (m.extractionStatus)`,
	}

	for _, stmt := range statements {
		if _, err := c.write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensureSchema: %w", err)
		}
	}
	return nil
}

// InsertMemory stores a new memory node with a generated UUID.
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

	id := uuid.NewString()
	_, err := c.write(ctx, `
		CREATE (m:Memory {
			id: $id, text: $text, embedding: $embedding,
			category: $category, importance: $importance,
			retrievalCount: 0, createdAt: $createdAt,
			extractionStatus: $status, extractionRetries: 0,
			userPinned: $pinned, invalidated: false, agentId: $agentId
		})`,
		map[string]any{
			"id":         id,
			"text":       text,
			"embedding":  embedding,
			"category":   category,
			"importance": importance,
			"createdAt":  time.Now().UTC(),
			"status":     storage.ExtractionPending,
			"pinned":     opts.Pinned,
			"agentId":    opts.AgentID,
		})
	if err != nil {
		return "", fmt.Errorf("InsertMemory: %w", err)
	}
	return id, nil
}

// GetMemory retrieves a memory by ID, invalidated or not.
func (c *Client) GetMemory(ctx context.Context, id string) (*storage.Memory, error) {
	records, err := c.read(ctx, `MATCH (m:Memory {id: $id}) RETURN m`,
		map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("GetMemory: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("GetMemory: %w", storage.ErrNotFound)
	}
	return memoryFromRecord(records[0], "m")
}

// SearchSimilar returns the limit most similar live memories, highest
// cosine similarity first.
func (c *Client) SearchSimilar(ctx context.Context, embedding []float64, limit int, agentID string) ([]*storage.Memory, error) {
	params := map[string]any{}
	query := `MATCH (m:Memory) WHERE m.invalidated = false` +
		agentClause(agentID, params) + ` RETURN m`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}

	memories := make([]*storage.Memory, 0, len(records))
	for _, record := range records {
		memory, err := memoryFromRecord(record, "m")
		if err != nil {
			return nil, fmt.Errorf("SearchSimilar: %w", err)
		}
		memory.Score = storage.CosineSimilarity(embedding, memory.Embedding)
		memories = append(memories, memory)
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})
	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// TouchMemories increments retrievalCount and refreshes lastAccessedAt.
func (c *Client) TouchMemories(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := c.write(ctx, `
		MATCH (m:Memory) WHERE m.id IN $ids
		SET m.retrievalCount = m.retrievalCount + 1,
		    m.lastAccessedAt = $now`,
		map[string]any{"ids": ids, "now": time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("TouchMemories: %w", err)
	}
	return nil
}

// SetPinned sets or clears the user-pinned flag.
func (c *Client) SetPinned(ctx context.Context, id string, pinned bool) error {
	return c.updateOne(ctx, "SetPinned", `
		MATCH (m:Memory {id: $id})
		SET m.userPinned = $pinned
		RETURN m.id`,
		map[string]any{"id": id, "pinned": pinned})
}

// InvalidateMemory soft-deletes a memory.
func (c *Client) InvalidateMemory(ctx context.Context, id string) error {
	return c.updateOne(ctx, "InvalidateMemory", `
		MATCH (m:Memory {id: $id})
		SET m.invalidated = true
		RETURN m.id`,
		map[string]any{"id": id})
}

// UpdateExtractionStatus advances the extraction status. The WHERE guard
// keeps transitions monotonic and the retry counter only grows.
func (c *Client) UpdateExtractionStatus(ctx context.Context, id, status string, incrementRetries bool) error {
	increment := 0
	if incrementRetries {
		increment = 1
	}

	_, err := c.write(ctx, `
		MATCH (m:Memory {id: $id})
		WHERE m.extractionStatus = $pending OR m.extractionStatus = $status
		SET m.extractionStatus = $status,
		    m.extractionRetries = m.extractionRetries + $increment`,
		map[string]any{
			"id":        id,
			"pending":   storage.ExtractionPending,
			"status":    status,
			"increment": increment,
		})
	if err != nil {
		return fmt.Errorf("UpdateExtractionStatus: %w", err)
	}
	return nil
}

// BatchEntityOperations applies a full extraction result in a single
// managed transaction.
func (c *Client) BatchEntityOperations(ctx context.Context, memoryID string, entities []storage.EntityInput, relationships []storage.RelationshipInput, tags []storage.TagInput, category string) error {
	_, err := c.writeTx(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, entity := range entities {
			aliases := entity.Aliases
			if aliases == nil {
				aliases = []string{}
			}
			_, err := tx.Run(ctx, `
				MERGE (e:Entity {name: $name, type: $type})
				ON CREATE SET e.id = $id, e.aliases = $aliases,
				              e.description = $description
				ON MATCH SET
					e.aliases = CASE WHEN size($aliases) > 0
						THEN $aliases ELSE e.aliases END,
					e.description = CASE WHEN $description <> ''
						THEN $description ELSE e.description END
				WITH e
				MATCH (m:Memory {id: $memoryId})
				MERGE (m)-[:MENTIONS]->(e)`,
				map[string]any{
					"name":        entity.Name,
					"type":        entity.Type,
					"id":          uuid.NewString(),
					"aliases":     aliases,
					"description": entity.Description,
					"memoryId":    memoryID,
				})
			if err != nil {
				return nil, err
			}
		}

		for _, rel := range relationships {
			// The relationship type becomes the edge label and labels
			// cannot be parameterized, so only whitelisted types are
			// ever interpolated.
			if !storage.ValidRelationshipTypes[rel.Type] {
				continue
			}
			_, err := tx.Run(ctx, `
				MATCH (s:Entity {name: $source})
				MATCH (t:Entity {name: $target})
				MERGE (s)-[r:`+rel.Type+`]->(t)
				SET r.confidence = $confidence`,
				map[string]any{
					"source":     rel.Source,
					"target":     rel.Target,
					"confidence": rel.Confidence,
				})
			if err != nil {
				return nil, err
			}
		}

		for _, tag := range tags {
			_, err := tx.Run(ctx, `
				MERGE (t:Tag {name: $name})
				ON CREATE SET t.id = $id, t.category = $category
				WITH t
				MATCH (m:Memory {id: $memoryId})
				MERGE (m)-[:TAGGED]->(t)`,
				map[string]any{
					"name":     tag.Name,
					"id":       uuid.NewString(),
					"category": tag.Category,
					"memoryId": memoryID,
				})
			if err != nil {
				return nil, err
			}
		}

		if category != "" {
			_, err := tx.Run(ctx, `
				MATCH (m:Memory {id: $id})
				WHERE m.category <> $core
				SET m.category = $category`,
				map[string]any{
					"id":       memoryID,
					"core":     storage.CategoryCore,
					"category": category,
				})
			if err != nil {
				return nil, err
			}
		}

		_, err := tx.Run(ctx, `
			MATCH (m:Memory {id: $id})
			WHERE m.extractionStatus = $pending
			SET m.extractionStatus = $complete`,
			map[string]any{
				"id":       memoryID,
				"pending":  storage.ExtractionPending,
				"complete": storage.ExtractionComplete,
			})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("BatchEntityOperations: %w", err)
	}
	return nil
}

// ListPendingExtractions returns up to limit pending memories, oldest
// first.
func (c *Client) ListPendingExtractions(ctx context.Context, limit int, agentID string) ([]*storage.PendingExtraction, error) {
	params := map[string]any{
		"pending": storage.ExtractionPending,
		"limit":   limit,
	}
	query := `
		MATCH (m:Memory)
		WHERE m.extractionStatus = $pending AND m.invalidated = false` +
		agentClause(agentID, params) + `
		RETURN m.id AS id, m.text AS text, m.extractionRetries AS retries
		ORDER BY m.createdAt ASC
		LIMIT $limit`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("ListPendingExtractions: %w", err)
	}

	pending := make([]*storage.PendingExtraction, 0, len(records))
	for _, record := range records {
		pending = append(pending, &storage.PendingExtraction{
			ID:      stringValue(record, "id"),
			Text:    stringValue(record, "text"),
			Retries: intValue(record, "retries"),
		})
	}
	return pending, nil
}

// CountByExtractionStatus returns live memory counts per extraction
// status.
func (c *Client) CountByExtractionStatus(ctx context.Context, agentID string) (map[string]int, error) {
	params := map[string]any{}
	query := `
		MATCH (m:Memory) WHERE m.invalidated = false` +
		agentClause(agentID, params) + `
		RETURN m.extractionStatus AS status, count(*) AS count`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("CountByExtractionStatus: %w", err)
	}

	counts := make(map[string]int, len(records))
	for _, record := range records {
		counts[stringValue(record, "status")] = intValue(record, "count")
	}
	return counts, nil
}

// FindDuplicateClusters loads live memories and groups them into the
// connected components of the similarity graph.
func (c *Client) FindDuplicateClusters(ctx context.Context, threshold float64, agentID string, withScores bool) ([]*storage.DuplicateCluster, error) {
	params := map[string]any{}
	query := `
		MATCH (m:Memory) WHERE m.invalidated = false` +
		agentClause(agentID, params) + `
		RETURN m.id AS id, m.text AS text, m.importance AS importance,
		       m.embedding AS embedding
		ORDER BY m.createdAt ASC`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("FindDuplicateClusters: %w", err)
	}

	members := make([]storage.ClusterMember, 0, len(records))
	for _, record := range records {
		members = append(members, storage.ClusterMember{
			ID:         stringValue(record, "id"),
			Text:       stringValue(record, "text"),
			Importance: floatValue(record, "importance"),
			Embedding:  embeddingValue(record, "embedding"),
		})
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

	result, err := c.writeTx(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (m:Memory)
			WHERE m.id IN $ids AND m.invalidated = false
			RETURN m.id AS id, m.importance AS importance,
			       m.retrievalCount AS retrievalCount, m.createdAt AS createdAt`,
			map[string]any{"ids": ids})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		type member struct {
			id             string
			importance     float64
			retrievalCount int
			createdAt      time.Time
		}
		members := make([]member, 0, len(records))
		for _, record := range records {
			members = append(members, member{
				id:             stringValue(record, "id"),
				importance:     floatValue(record, "importance"),
				retrievalCount: intValue(record, "retrievalCount"),
				createdAt:      timeValue(record, "createdAt"),
			})
		}

		if len(members) == 0 {
			return nil, storage.ErrNotFound
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

		if _, err := tx.Run(ctx, `
			MATCH (m:Memory {id: $id})
			SET m.retrievalCount = $total, m.importance = $importance`,
			map[string]any{
				"id":         survivor.id,
				"total":      totalRetrievals,
				"importance": maxImportance,
			}); err != nil {
			return nil, err
		}

		// Migrate MENTIONS and TAGGED edges onto the survivor before
		// the losers are invalidated.
		if _, err := tx.Run(ctx, `
			MATCH (loser:Memory)-[r:MENTIONS]->(e:Entity)
			WHERE loser.id IN $loserIds
			MATCH (survivor:Memory {id: $survivorId})
			MERGE (survivor)-[:MENTIONS]->(e)
			DELETE r`,
			map[string]any{"loserIds": loserIDs, "survivorId": survivor.id}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			MATCH (loser:Memory)-[r:TAGGED]->(t:Tag)
			WHERE loser.id IN $loserIds
			MATCH (survivor:Memory {id: $survivorId})
			MERGE (survivor)-[:TAGGED]->(t)
			DELETE r`,
			map[string]any{"loserIds": loserIDs, "survivorId": survivor.id}); err != nil {
			return nil, err
		}

		if _, err := tx.Run(ctx, `
			MATCH (m:Memory) WHERE m.id IN $loserIds
			SET m.invalidated = true`,
			map[string]any{"loserIds": loserIDs}); err != nil {
			return nil, err
		}

		return &storage.MergeResult{KeptID: survivor.id, DeletedCount: len(loserIDs)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("MergeMemoryCluster: %w", err)
	}
	return result.(*storage.MergeResult), nil
}

// FindConflictingMemories returns candidate pairs for conflict
// adjudication.
func (c *Client) FindConflictingMemories(ctx context.Context, agentID string) ([]*storage.ConflictPair, error) {
	params := map[string]any{
		"categories": []string{
			storage.CategoryPreference,
			storage.CategoryFact,
			storage.CategoryDecision,
		},
	}
	query := `
		MATCH (m:Memory)
		WHERE m.invalidated = false AND m.category IN $categories` +
		agentClause(agentID, params) + `
		RETURN m.id AS id, m.text AS text, m.category AS category,
		       m.embedding AS embedding
		ORDER BY m.createdAt ASC`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("FindConflictingMemories: %w", err)
	}

	members := make([]storage.ConflictMember, 0, len(records))
	for _, record := range records {
		members = append(members, storage.ConflictMember{
			ID:        stringValue(record, "id"),
			Text:      stringValue(record, "text"),
			Category:  stringValue(record, "category"),
			Embedding: embeddingValue(record, "embedding"),
		})
	}
	return storage.BuildConflictPairs(members), nil
}

// CalculateAllEffectiveScores computes the effective score of every live
// memory at the current instant.
func (c *Client) CalculateAllEffectiveScores(ctx context.Context, agentID string) ([]*storage.ScoredMemory, error) {
	params := map[string]any{}
	query := `
		MATCH (m:Memory) WHERE m.invalidated = false` +
		agentClause(agentID, params) + `
		RETURN m.id AS id, m.text AS text, m.category AS category,
		       m.importance AS importance, m.retrievalCount AS retrievalCount,
		       m.lastAccessedAt AS lastAccessedAt, m.createdAt AS createdAt`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("CalculateAllEffectiveScores: %w", err)
	}

	now := time.Now().UTC()
	scored := make([]*storage.ScoredMemory, 0, len(records))
	for _, record := range records {
		m := storage.Memory{
			ID:             stringValue(record, "id"),
			Text:           stringValue(record, "text"),
			Category:       stringValue(record, "category"),
			Importance:     floatValue(record, "importance"),
			RetrievalCount: intValue(record, "retrievalCount"),
			LastAccessedAt: timeValue(record, "lastAccessedAt"),
			CreatedAt:      timeValue(record, "createdAt"),
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
	return scored, nil
}

// ListCoreMemories returns all live core-tier memories.
func (c *Client) ListCoreMemories(ctx context.Context, agentID string) ([]*storage.Memory, error) {
	params := map[string]any{"core": storage.CategoryCore}
	query := `
		MATCH (m:Memory)
		WHERE m.invalidated = false AND m.category = $core` +
		agentClause(agentID, params) + `
		RETURN m`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("ListCoreMemories: %w", err)
	}

	memories := make([]*storage.Memory, 0, len(records))
	for _, record := range records {
		memory, err := memoryFromRecord(record, "m")
		if err != nil {
			return nil, fmt.Errorf("ListCoreMemories: %w", err)
		}
		memories = append(memories, memory)
	}
	return memories, nil
}

// PromoteToCore sets category core on the given live memories.
func (c *Client) PromoteToCore(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	count, err := c.writeCount(ctx, `
		MATCH (m:Memory)
		WHERE m.id IN $ids AND m.invalidated = false AND m.category <> $core
		SET m.category = $core
		RETURN count(m) AS n`,
		map[string]any{"ids": ids, "core": storage.CategoryCore})
	if err != nil {
		return 0, fmt.Errorf("PromoteToCore: %w", err)
	}
	return count, nil
}

// FindDecayedMemories returns the IDs of live memories whose retention
// has fallen below the threshold. Pinned and core memories never decay.
func (c *Client) FindDecayedMemories(ctx context.Context, opts *storage.DecayOptions) ([]string, error) {
	params := map[string]any{}
	query := `
		MATCH (m:Memory) WHERE m.invalidated = false` +
		agentClause(opts.AgentID, params) + `
		RETURN m.id AS id, m.category AS category,
		       m.importance AS importance, m.userPinned AS userPinned,
		       m.createdAt AS createdAt`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("FindDecayedMemories: %w", err)
	}

	now := time.Now().UTC()
	var decayed []string
	for _, record := range records {
		m := storage.Memory{
			ID:         stringValue(record, "id"),
			Category:   stringValue(record, "category"),
			Importance: floatValue(record, "importance"),
			UserPinned: boolValue(record, "userPinned"),
			CreatedAt:  timeValue(record, "createdAt"),
		}
		if storage.IsDecayed(&m, m.AgeDays(now), opts) {
			decayed = append(decayed, m.ID)
		}
	}
	return decayed, nil
}

// PruneMemories hard-deletes the given memories and all their edges.
// Core and pinned memories are skipped.
func (c *Client) PruneMemories(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	count, err := c.writeCount(ctx, `
		MATCH (m:Memory)
		WHERE m.id IN $ids AND m.category <> $core AND m.userPinned = false
		DETACH DELETE m
		RETURN count(m) AS n`,
		map[string]any{"ids": ids, "core": storage.CategoryCore})
	if err != nil {
		return 0, fmt.Errorf("PruneMemories: %w", err)
	}
	return count, nil
}

// FindOrphanEntities returns entities no live memory mentions.
func (c *Client) FindOrphanEntities(ctx context.Context) ([]string, error) {
	return c.findOrphans(ctx, "FindOrphanEntities", `
		MATCH (e:Entity)
		WHERE NOT EXISTS {
			MATCH (m:Memory)-[:MENTIONS]->(e)
			WHERE m.invalidated = false
		}
		RETURN e.id AS id`)
}

// DeleteOrphanEntities removes the given entities and their
// relationships.
func (c *Client) DeleteOrphanEntities(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	count, err := c.writeCount(ctx, `
		MATCH (e:Entity) WHERE e.id IN $ids
		DETACH DELETE e
		RETURN count(e) AS n`,
		map[string]any{"ids": ids})
	if err != nil {
		return 0, fmt.Errorf("DeleteOrphanEntities: %w", err)
	}
	return count, nil
}

// FindOrphanTags returns tags no live memory carries.
func (c *Client) FindOrphanTags(ctx context.Context) ([]string, error) {
	return c.findOrphans(ctx, "FindOrphanTags", `
		MATCH (t:Tag)
		WHERE NOT EXISTS {
			MATCH (m:Memory)-[:TAGGED]->(t)
			WHERE m.invalidated = false
		}
		RETURN t.id AS id`)
}

// DeleteOrphanTags removes the given tags.
func (c *Client) DeleteOrphanTags(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	count, err := c.writeCount(ctx, `
		MATCH (t:Tag) WHERE t.id IN $ids
		DETACH DELETE t
		RETURN count(t) AS n`,
		map[string]any{"ids": ids})
	if err != nil {
		return 0, fmt.Errorf("DeleteOrphanTags: %w", err)
	}
	return count, nil
}

// ListActiveMemories returns the minimal projection of every live memory.
func (c *Client) ListActiveMemories(ctx context.Context, agentID string) ([]*storage.ActiveMemory, error) {
	params := map[string]any{}
	query := `
		MATCH (m:Memory) WHERE m.invalidated = false` +
		agentClause(agentID, params) + `
		RETURN m.id AS id, m.text AS text, m.category AS category,
		       m.userPinned AS pinned`

	records, err := c.read(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("ListActiveMemories: %w", err)
	}

	active := make([]*storage.ActiveMemory, 0, len(records))
	for _, record := range records {
		active = append(active, &storage.ActiveMemory{
			ID:       stringValue(record, "id"),
			Text:     stringValue(record, "text"),
			Category: stringValue(record, "category"),
			Pinned:   boolValue(record, "pinned"),
		})
	}
	return active, nil
}

// Close closes the driver and its connection pool.
func (c *Client) Close() error {
	return c.driver.Close(context.Background())
}

func (c *Client) findOrphans(ctx context.Context, op, query string) ([]string, error) {
	records, err := c.read(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var ids []string
	for _, record := range records {
		ids = append(ids, stringValue(record, "id"))
	}
	return ids, nil
}
