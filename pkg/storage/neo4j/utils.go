package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/driftlab/graphmem/pkg/storage"
)

func (c *Client) session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
}

// read runs one query in a read transaction and collects all records.
func (c *Client) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

// write runs one statement in a write transaction and collects any
// returned records.
func (c *Client) write(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

// writeTx runs work inside a single managed write transaction.
func (c *Client) writeTx(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.session(ctx)
	defer func() { _ = session.Close(ctx) }()
	return session.ExecuteWrite(ctx, work)
}

// writeCount runs a write statement that returns one count column named n.
func (c *Client) writeCount(ctx context.Context, query string, params map[string]any) (int, error) {
	records, err := c.write(ctx, query, params)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return intValue(records[0], "n"), nil
}

// updateOne runs a write statement expected to match exactly one memory.
// Zero returned rows map to storage.ErrNotFound.
func (c *Client) updateOne(ctx context.Context, op, query string, params map[string]any) error {
	records, err := c.write(ctx, query, params)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// agentClause appends an agent filter to a query whose memory node is
// aliased m and which already carries a WHERE clause.
func agentClause(agentID string, params map[string]any) string {
	if agentID == "" {
		return ""
	}
	params["agentId"] = agentID
	return " AND m.agentId = $agentId"
}

// memoryFromRecord converts a returned Memory node into the shared
// representation.
func memoryFromRecord(record *neo4j.Record, key string) (*storage.Memory, error) {
	value, ok := record.Get(key)
	if !ok {
		return nil, fmt.Errorf("record has no %q column", key)
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("record column %q is not a node", key)
	}

	props := node.Props
	return &storage.Memory{
		ID:                asString(props["id"]),
		Text:              asString(props["text"]),
		Embedding:         asFloats(props["embedding"]),
		Category:          asString(props["category"]),
		Importance:        asFloat(props["importance"]),
		RetrievalCount:    asInt(props["retrievalCount"]),
		LastAccessedAt:    asTime(props["lastAccessedAt"]),
		CreatedAt:         asTime(props["createdAt"]),
		ExtractionStatus:  asString(props["extractionStatus"]),
		ExtractionRetries: asInt(props["extractionRetries"]),
		UserPinned:        asBool(props["userPinned"]),
		Invalidated:       asBool(props["invalidated"]),
		AgentID:           asString(props["agentId"]),
	}, nil
}

func stringValue(record *neo4j.Record, key string) string {
	value, _ := record.Get(key)
	return asString(value)
}

func intValue(record *neo4j.Record, key string) int {
	value, _ := record.Get(key)
	return asInt(value)
}

func floatValue(record *neo4j.Record, key string) float64 {
	value, _ := record.Get(key)
	return asFloat(value)
}

func boolValue(record *neo4j.Record, key string) bool {
	value, _ := record.Get(key)
	return asBool(value)
}

func timeValue(record *neo4j.Record, key string) time.Time {
	value, _ := record.Get(key)
	return asTime(value)
}

func embeddingValue(record *neo4j.Record, key string) []float64 {
	value, _ := record.Get(key)
	return asFloats(value)
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

// asInt converts the driver's int64 representation of Cypher integers.
func asInt(value any) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func asBool(value any) bool {
	b, _ := value.(bool)
	return b
}

func asTime(value any) time.Time {
	t, _ := value.(time.Time)
	return t
}

// asFloats converts a Cypher float list, which the driver hands back as
// []any.
func asFloats(value any) []float64 {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	floats := make([]float64, 0, len(items))
	for _, item := range items {
		floats = append(floats, asFloat(item))
	}
	return floats
}
