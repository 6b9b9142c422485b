package config

import "fmt"

// RAG backend names.
const (
	BackendManual    = "manual"
	BackendFramework = "framework"
)

// Framework vector store modes.
const (
	VectorStoreFlat       = "flat"
	VectorStorePersistent = "persistent"
	VectorStoreQdrant     = "qdrant"
)

// RAGConfig controls document ingestion and retrieval.
type RAGConfig struct {
	// Enabled is the master switch, on unless explicitly turned off. When
	// false the orchestrator always builds plain prompts and ingestion
	// endpoints refuse work.
	Enabled *bool `yaml:"enabled,omitempty"`

	// TopK is the default number of chunks retrieved per query.
	TopK int `yaml:"top_k,omitempty"`

	// MaxContextChars caps the assembled context passed to the LLM.
	MaxContextChars int `yaml:"max_context_chars,omitempty"`

	// ChunkSize and ChunkOverlap configure both chunkers, in characters.
	ChunkSize    int `yaml:"chunk_size,omitempty"`
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`

	// BackendDefault selects which backend serves /ws chat retrieval and
	// single-backend admin calls: "manual" or "framework".
	BackendDefault string `yaml:"backend_default,omitempty"`

	// VectorStore selects the framework backend's index: "flat" (in-memory),
	// "persistent" (chromem on disk), or "qdrant" (remote).
	VectorStore string `yaml:"vectorstore,omitempty"`

	// VectorStorePath is the directory for the persistent index; the manual
	// backend keeps its JSON snapshot at <path>/rag_store.json.
	VectorStorePath string `yaml:"vectorstore_path,omitempty"`

	// UploadDir, when set, receives a copy of every uploaded document.
	UploadDir string `yaml:"upload_dir,omitempty"`

	// WatchUploads auto-ingests files dropped into UploadDir.
	WatchUploads bool `yaml:"watch_uploads"`

	// Qdrant connection, used only when VectorStore is "qdrant".
	QdrantHost string `yaml:"qdrant_host,omitempty"`
	QdrantPort int    `yaml:"qdrant_port,omitempty"`
}

// IsEnabled reports whether RAG is on, defaulting to true.
func (c *RAGConfig) IsEnabled() bool {
	return BoolValue(c.Enabled, true)
}

func (c *RAGConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.TopK == 0 {
		c.TopK = 4
	}
	if c.MaxContextChars == 0 {
		c.MaxContextChars = 2000
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.BackendDefault == "" {
		c.BackendDefault = BackendManual
	}
	if c.VectorStore == "" {
		c.VectorStore = VectorStoreFlat
	}
	if c.VectorStorePath == "" {
		c.VectorStorePath = "data/vectorstore"
	}
	if c.QdrantHost == "" {
		c.QdrantHost = "localhost"
	}
	if c.QdrantPort == 0 {
		c.QdrantPort = 6334
	}
}

func (c *RAGConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkSize <= c.ChunkOverlap {
		return fmt.Errorf("chunk_size (%d) must exceed chunk_overlap (%d)", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", c.TopK)
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("max_context_chars must be positive, got %d", c.MaxContextChars)
	}
	switch c.BackendDefault {
	case BackendManual, BackendFramework:
	default:
		return fmt.Errorf("backend_default must be %q or %q, got %q", BackendManual, BackendFramework, c.BackendDefault)
	}
	switch c.VectorStore {
	case VectorStoreFlat, VectorStorePersistent, VectorStoreQdrant:
	default:
		return fmt.Errorf("vectorstore must be %q, %q or %q, got %q",
			VectorStoreFlat, VectorStorePersistent, VectorStoreQdrant, c.VectorStore)
	}
	if c.WatchUploads && c.UploadDir == "" {
		return fmt.Errorf("watch_uploads requires upload_dir to be set")
	}
	return nil
}

func (c *RAGConfig) applyEnv() {
	envBoolPtr("RAG_ENABLED", &c.Enabled)
	envInt("RAG_TOP_K", &c.TopK)
	envInt("RAG_MAX_CONTEXT_CHARS", &c.MaxContextChars)
	envInt("RAG_CHUNK_SIZE", &c.ChunkSize)
	envInt("RAG_CHUNK_OVERLAP", &c.ChunkOverlap)
	envString("RAG_BACKEND_DEFAULT", &c.BackendDefault)
	envString("RAG_VECTORSTORE", &c.VectorStore)
	envString("RAG_VECTORSTORE_PATH", &c.VectorStorePath)
	envString("RAG_UPLOAD_DIR", &c.UploadDir)
	envBool("RAG_WATCH_UPLOADS", &c.WatchUploads)
	envString("RAG_QDRANT_HOST", &c.QdrantHost)
	envInt("RAG_QDRANT_PORT", &c.QdrantPort)
}
