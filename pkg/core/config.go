package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a graphmem client.
//
// It includes settings for:
//   - Graph store backend (SQLite or Neo4j)
//   - LLM endpoint (for extraction, importance, dedup and conflict calls)
//   - Embedding endpoint (for vector generation)
//   - Sleep-cycle scheduling
//
// Example:
//
//	config := &core.Config{
//	    Storage: core.StorageConfig{
//	        Backend:    "sqlite",
//	        SQLitePath: "./memories.db",
//	    },
//	    LLM: core.LLMConfig{
//	        Endpoint: "https://api.openai.com/v1",
//	        Model:    "gpt-4o-mini",
//	        APIKey:   "sk-...",
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Model:      "text-embedding-3-small",
//	        APIKey:     "sk-...",
//	        Dimensions: 1536,
//	    },
//	    Extraction: true,
//	}
type Config struct {
	// Storage selects and configures the graph store backend.
	Storage StorageConfig `json:"storage"`

	// LLM configures the chat model behind extraction, importance rating,
	// deduplication and conflict resolution. Ignored when Extraction is
	// false.
	LLM LLMConfig `json:"llm"`

	// Embedder configures embedding generation.
	Embedder EmbedderConfig `json:"embedder"`

	// Extraction toggles the LLM pipeline. When false the engine stores
	// and retrieves memories without any LLM calls: no entity extraction,
	// neutral importance, vector-only deduplication.
	Extraction bool `json:"extraction"`

	// SleepInterval is the pause between scheduled consolidation runs.
	// Default 6 hours.
	SleepInterval time.Duration `json:"sleep_interval"`

	// AgentID optionally scopes every operation to one agent by default.
	// Individual calls can override it.
	AgentID string `json:"agent_id,omitempty"`
}

// StorageConfig selects the graph store backend.
//
// Supported backends: sqlite, neo4j
type StorageConfig struct {
	// Backend is the store backend name (sqlite, neo4j).
	Backend string `json:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// ":memory:" opens an in-memory store.
	SQLitePath string `json:"sqlite_path,omitempty"`

	// Neo4j configures the neo4j backend.
	Neo4j Neo4jConfig `json:"neo4j,omitempty"`
}

// Neo4jConfig contains connection settings for the Neo4j backend.
type Neo4jConfig struct {
	// URI is the bolt endpoint, e.g. "bolt://localhost:7687".
	URI string `json:"uri"`

	// Username for basic auth. Defaults to "neo4j".
	Username string `json:"username"`

	// Password for basic auth.
	Password string `json:"password"`

	// Database is the target database; empty selects the server default.
	Database string `json:"database,omitempty"`
}

// LLMConfig contains configuration for the OpenAI-compatible chat
// endpoint.
type LLMConfig struct {
	// Endpoint is the base URL; empty uses the OpenAI default.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the chat model name.
	Model string `json:"model"`

	// APIKey authenticates against the endpoint. May be empty for local
	// servers.
	APIKey string `json:"api_key,omitempty"`

	// MaxRetries is the per-call retry budget for transient failures.
	// Default 2.
	MaxRetries int `json:"max_retries,omitempty"`

	// TimeoutMs is the per-attempt timeout in milliseconds. Default 30000.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// EmbedderConfig contains configuration for the OpenAI-compatible
// embedding endpoint.
type EmbedderConfig struct {
	// Endpoint is the base URL; empty uses the OpenAI default.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the embedding model name.
	Model string `json:"model"`

	// APIKey authenticates against the endpoint.
	APIKey string `json:"api_key,omitempty"`

	// Dimensions is the embedding vector dimension. Default 1536.
	Dimensions int `json:"dimensions,omitempty"`
}

// DefaultConfig returns a configuration with every default filled in:
// SQLite storage at ./graphmem.db, extraction enabled, OpenAI endpoints,
// a 6 hour sleep interval.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "graphmem.db",
			Neo4j: Neo4jConfig{
				URI:      "bolt://localhost:7687",
				Username: "neo4j",
			},
		},
		LLM: LLMConfig{
			MaxRetries: 2,
			TimeoutMs:  30000,
		},
		Embedder: EmbedderConfig{
			Dimensions: 1536,
		},
		Extraction:    true,
		SleepInterval: 6 * time.Hour,
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for a .env file (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Overlays the variables onto DefaultConfig
//
// Supported environment variables:
//   - GRAPHMEM_STORAGE_BACKEND (sqlite, neo4j)
//   - GRAPHMEM_SQLITE_PATH
//   - GRAPHMEM_NEO4J_URI, GRAPHMEM_NEO4J_USERNAME, GRAPHMEM_NEO4J_PASSWORD, GRAPHMEM_NEO4J_DATABASE
//   - GRAPHMEM_EXTRACTION_ENABLED (true/false)
//   - GRAPHMEM_LLM_ENDPOINT, GRAPHMEM_LLM_MODEL, GRAPHMEM_LLM_API_KEY
//   - GRAPHMEM_LLM_MAX_RETRIES, GRAPHMEM_LLM_TIMEOUT_MS
//   - GRAPHMEM_EMBEDDER_ENDPOINT, GRAPHMEM_EMBEDDER_MODEL, GRAPHMEM_EMBEDDER_API_KEY, GRAPHMEM_EMBEDDER_DIMENSIONS
//   - GRAPHMEM_SLEEP_INTERVAL_HOURS
//   - GRAPHMEM_AGENT_ID
//
// Returns a Config instance; missing variables keep their defaults.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	cfg.Storage.Backend = getEnvOrDefault("GRAPHMEM_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.SQLitePath = getEnvOrDefault("GRAPHMEM_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.Neo4j.URI = getEnvOrDefault("GRAPHMEM_NEO4J_URI", cfg.Storage.Neo4j.URI)
	cfg.Storage.Neo4j.Username = getEnvOrDefault("GRAPHMEM_NEO4J_USERNAME", cfg.Storage.Neo4j.Username)
	cfg.Storage.Neo4j.Password = os.Getenv("GRAPHMEM_NEO4J_PASSWORD")
	cfg.Storage.Neo4j.Database = os.Getenv("GRAPHMEM_NEO4J_DATABASE")

	cfg.Extraction = getEnvBool("GRAPHMEM_EXTRACTION_ENABLED", cfg.Extraction)
	cfg.LLM.Endpoint = getEnvOrDefault("GRAPHMEM_LLM_ENDPOINT", cfg.LLM.Endpoint)
	cfg.LLM.Model = getEnvOrDefault("GRAPHMEM_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnvOrDefault("GRAPHMEM_LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.MaxRetries = getEnvInt("GRAPHMEM_LLM_MAX_RETRIES", cfg.LLM.MaxRetries)
	cfg.LLM.TimeoutMs = getEnvInt("GRAPHMEM_LLM_TIMEOUT_MS", cfg.LLM.TimeoutMs)

	cfg.Embedder.Endpoint = getEnvOrDefault("GRAPHMEM_EMBEDDER_ENDPOINT", cfg.Embedder.Endpoint)
	cfg.Embedder.Model = getEnvOrDefault("GRAPHMEM_EMBEDDER_MODEL", cfg.Embedder.Model)
	cfg.Embedder.APIKey = getEnvOrDefault("GRAPHMEM_EMBEDDER_API_KEY", cfg.Embedder.APIKey)
	cfg.Embedder.Dimensions = getEnvInt("GRAPHMEM_EMBEDDER_DIMENSIONS", cfg.Embedder.Dimensions)

	if hours := getEnvFloat("GRAPHMEM_SLEEP_INTERVAL_HOURS", 0); hours > 0 {
		cfg.SleepInterval = time.Duration(hours * float64(time.Hour))
	}
	cfg.AgentID = os.Getenv("GRAPHMEM_AGENT_ID")

	return cfg, nil
}

// Validate checks the configuration for internal consistency.
//
// It verifies that the storage backend is known and minimally configured,
// and that the embedding dimension is positive. LLM settings are not
// validated here: an empty model or key is legal for local endpoints and
// surfaces as a call error instead.
//
// Returns an error wrapping ErrInvalidConfig, or nil.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return NewMemoryError("Validate", fmt.Errorf("sqlite path is required: %w", ErrInvalidConfig))
		}
	case "neo4j":
		if c.Storage.Neo4j.URI == "" {
			return NewMemoryError("Validate", fmt.Errorf("neo4j uri is required: %w", ErrInvalidConfig))
		}
	default:
		return NewMemoryError("Validate", fmt.Errorf("unknown storage backend %q: %w", c.Storage.Backend, ErrInvalidConfig))
	}

	if c.Embedder.Dimensions <= 0 {
		return NewMemoryError("Validate", fmt.Errorf("embedder dimensions must be positive: %w", ErrInvalidConfig))
	}
	if c.SleepInterval <= 0 {
		return NewMemoryError("Validate", fmt.Errorf("sleep interval must be positive: %w", ErrInvalidConfig))
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
