package mcp

// SearchCodeInput defines the input schema for the search_code tool.
type SearchCodeInput struct {
	Query       string   `json:"query" jsonschema:"the code search query to execute"`
	Language    string   `json:"language,omitempty" jsonschema:"filter by programming language (go, typescript, python)"`
	SymbolType  string   `json:"symbol_type,omitempty" jsonschema:"filter by symbol type: function, class, interface, type, method, or any"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Scope       []string `json:"scope,omitempty" jsonschema:"filter by path prefixes (OR logic)"`
	StalePolicy string   `json:"stale_policy,omitempty" jsonschema:"how to react to a stale or missing index: auto, warn, or fail (default from config)"`
}

// SearchDocsInput defines the input schema for the search_docs tool.
type SearchDocsInput struct {
	Query       string   `json:"query" jsonschema:"the documentation search query to execute"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Scope       []string `json:"scope,omitempty" jsonschema:"filter by path prefixes (OR logic)"`
	StalePolicy string   `json:"stale_policy,omitempty" jsonschema:"how to react to a stale or missing index: auto, warn, or fail (default from config)"`
}

// ReadPackInput defines the input schema for the read_pack tool: a single
// multiplexed entry point over File/Grep/Query/Recall/Memory/Onboarding
// intents (section 4.15), mirroring internal/readpack.Request.
type ReadPackInput struct {
	Intent        string   `json:"intent,omitempty" jsonschema:"explicit intent override: file, grep, query, recall, memory, onboarding; omit for auto-detection from the other fields"`
	Path          string   `json:"path,omitempty" jsonschema:"project-relative root hint; also accepts a root switch"`
	File          string   `json:"file,omitempty" jsonschema:"file path for the file intent"`
	FilePattern   string   `json:"file_pattern,omitempty" jsonschema:"glob restricting grep to matching files"`
	Pattern       string   `json:"pattern,omitempty" jsonschema:"regex or literal pattern for the grep intent"`
	Query         string   `json:"query,omitempty" jsonschema:"semantic query for the query intent"`
	Question      string   `json:"question,omitempty" jsonschema:"short natural-language question for the recall intent"`
	Cursor        string   `json:"cursor,omitempty" jsonschema:"opaque continuation cursor from a previous read_pack call"`
	MaxChars      int      `json:"max_chars,omitempty" jsonschema:"output budget in characters, default 4000"`
	ResponseMode  string   `json:"response_mode,omitempty" jsonschema:"facts or narrative rendering of the .context document"`
	TimeoutMS     int      `json:"timeout_ms,omitempty" jsonschema:"per-call timeout in milliseconds"`
	MaxResults    int      `json:"max_results,omitempty" jsonschema:"maximum matches/sections to return"`
	CaseSensitive bool     `json:"case_sensitive,omitempty" jsonschema:"grep intent: match case-sensitively"`
	WholeWord     bool     `json:"whole_word,omitempty" jsonschema:"grep intent: match whole words only"`
	AllowSecrets  bool     `json:"allow_secrets,omitempty" jsonschema:"file intent: permit reading files that look like secrets (e.g. .env)"`
	StartLine     int      `json:"start_line,omitempty" jsonschema:"file intent: 1-indexed starting line"`
	EndLine       int      `json:"end_line,omitempty" jsonschema:"file intent: 1-indexed ending line (inclusive)"`
	IncludePaths  []string `json:"include_paths,omitempty" jsonschema:"restrict results to these path prefixes"`
	ExcludePaths  []string `json:"exclude_paths,omitempty" jsonschema:"exclude results under these path prefixes"`
}

// ReadPackOutput defines the output schema for the read_pack tool: the
// rendered `.context` document plus its continuation cursor, if any.
type ReadPackOutput struct {
	Context string `json:"context" jsonschema:"the rendered .context document"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Project    ProjectInfo       `json:"project"`
	Stats      IndexStats        `json:"stats"`
	Embeddings EmbeddingInfo     `json:"embeddings"`
	Indexing   *IndexingProgress `json:"indexing,omitempty"` // Present during background indexing
}

// IndexingProgress contains information about ongoing background indexing.
type IndexingProgress struct {
	Status         string  `json:"status"`                     // "indexing", "ready", or "error"
	Stage          string  `json:"stage,omitempty"`            // "scanning", "chunking", "embedding", "indexing"
	FilesTotal     int     `json:"files_total"`                // Total files to process
	FilesProcessed int     `json:"files_processed"`            // Files processed so far
	ChunksIndexed  int     `json:"chunks_indexed"`             // Chunks indexed so far
	ProgressPct    float64 `json:"progress_pct"`               // Progress percentage (0-100)
	ElapsedSeconds int     `json:"elapsed_seconds"`            // Time since indexing started
	ErrorMessage   string  `json:"error_message,omitempty"`    // Error message if status is "error"
}

// ProjectInfo contains information about the indexed project.
type ProjectInfo struct {
	Name     string `json:"name"`
	RootPath string `json:"root_path"`
	Type     string `json:"type"`
}

// IndexStats contains statistics about the index.
type IndexStats struct {
	FileCount      int    `json:"file_count"`
	ChunkCount     int    `json:"chunk_count"`
	IndexSizeBytes int64  `json:"index_size_bytes"`
	LastIndexed    string `json:"last_indexed"`
}

// EmbeddingInfo contains information about the embedding configuration.
type EmbeddingInfo struct {
	// Config values
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"`

	// Runtime state - allows AI clients to adjust search strategy
	ActualProvider   string `json:"actual_provider"`    // "hugot" or "static"
	ActualModel      string `json:"actual_model"`       // e.g., "embeddinggemma-300m" or "static"
	Dimensions       int    `json:"dimensions"`         // 768 (hugot) or 256 (static)
	IsFallbackActive bool   `json:"is_fallback_active"` // true if using static fallback
	SemanticQuality  string `json:"semantic_quality"`   // "high" (hugot) or "low" (static)
}
