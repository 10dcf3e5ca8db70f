package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/cursorstore"
	"github.com/Aman-CERP/amanmcp/internal/embed"
	"github.com/Aman-CERP/amanmcp/internal/readpack"
	"github.com/Aman-CERP/amanmcp/internal/rootsession"
	"github.com/Aman-CERP/amanmcp/internal/search"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// readPackOptions holds CLI flags for the read-pack command, mirroring
// internal/mcp.ReadPackInput one-for-one for the file/grep/query/recall/
// memory/onboarding intents.
type readPackOptions struct {
	intent       string
	path         string
	file         string
	filePattern  string
	pattern      string
	query        string
	question     string
	cursor       string
	maxChars     int
	responseMode string
	maxResults   int
	caseSens     bool
	wholeWord    bool
	allowSecrets bool
	startLine    int
	endLine      int
}

// newReadPackCmd exposes the read_pack multiplexed reading surface (section
// 4.15) as a one-shot CLI command, for scripting and debugging outside an
// MCP client.
func newReadPackCmd() *cobra.Command {
	var opts readPackOptions

	cmd := &cobra.Command{
		Use:   "read-pack",
		Short: "Fetch a .context document via the read_pack multiplexed reader",
		Long: `read-pack is the CLI entry point to the same file/grep/query/recall/
memory/onboarding reading surface the read_pack MCP tool exposes, rendered
as one cursor-paginated .context document.

Examples:
  amanmcp read-pack --intent file --file internal/search/engine.go --start-line 1 --end-line 40
  amanmcp read-pack --intent grep --pattern "func NewEngine"
  amanmcp read-pack --intent query --query "hybrid search ranking"
  amanmcp read-pack --cursor <opaque-cursor-from-a-previous-call>`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReadPack(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.intent, "intent", "", "Explicit intent: file, grep, query, recall, memory, onboarding (default: auto-detect)")
	cmd.Flags().StringVar(&opts.path, "path", "", "Project root hint")
	cmd.Flags().StringVar(&opts.file, "file", "", "File intent: file path")
	cmd.Flags().StringVar(&opts.filePattern, "file-pattern", "", "Grep intent: glob restricting which files are searched")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "Grep intent: regex or literal pattern")
	cmd.Flags().StringVar(&opts.query, "query", "", "Query intent: semantic query")
	cmd.Flags().StringVar(&opts.question, "question", "", "Recall intent: short natural-language question")
	cmd.Flags().StringVar(&opts.cursor, "cursor", "", "Continuation cursor from a previous call")
	cmd.Flags().IntVar(&opts.maxChars, "max-chars", 0, "Output budget in characters (default from config)")
	cmd.Flags().StringVar(&opts.responseMode, "response-mode", "", "facts or narrative rendering")
	cmd.Flags().IntVar(&opts.maxResults, "max-results", 0, "Maximum matches/sections to return")
	cmd.Flags().BoolVar(&opts.caseSens, "case-sensitive", false, "Grep intent: match case-sensitively")
	cmd.Flags().BoolVar(&opts.wholeWord, "whole-word", false, "Grep intent: match whole words only")
	cmd.Flags().BoolVar(&opts.allowSecrets, "allow-secrets", false, "File intent: permit reading files that look like secrets")
	cmd.Flags().IntVar(&opts.startLine, "start-line", 0, "File intent: 1-indexed starting line")
	cmd.Flags().IntVar(&opts.endLine, "end-line", 0, "File intent: 1-indexed ending line (inclusive)")

	return cmd
}

func runReadPack(ctx context.Context, cmd *cobra.Command, opts readPackOptions) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	dataDir := filepath.Join(root, ".amanmcp")
	metadataPath := filepath.Join(dataDir, "metadata.db")
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'amanmcp index' first")
	}

	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		return fmt.Errorf("failed to open BM25 index: %w", err)
	}
	defer func() { _ = bm25.Close() }()

	// The file/grep intents never touch the embedder or vector store; the
	// CLI only pays for a real embedder when an intent needs semantic
	// ranking, the same split amanmcp search draws with --bm25-only.
	needsSemantic := opts.intent == string(readpack.IntentQuery) ||
		opts.intent == string(readpack.IntentRecall) ||
		opts.intent == string(readpack.IntentOnboarding) ||
		opts.query != "" || opts.question != ""

	var embedder embed.Embedder
	if needsSemantic {
		embed.SetMLXConfig(embed.MLXServerConfig{
			Endpoint: cfg.Embeddings.MLXEndpoint,
			Model:    cfg.Embeddings.MLXModel,
		})
		provider := embed.ParseProvider(cfg.Embeddings.Provider)
		embedder, err = embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
	} else {
		embedder = embed.NewStaticEmbedder768()
	}
	defer func() { _ = embedder.Close() }()

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")
	vectorCfg := store.DefaultVectorStoreConfig(embedder.Dimensions())
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	defer func() { _ = vector.Close() }()
	if _, err := os.Stat(vectorPath); err == nil {
		_ = vector.Load(vectorPath)
	}

	engineCfg := search.DefaultConfig()
	engine, err := search.NewEngine(bm25, vector, embedder, metadata, engineCfg,
		search.WithClassifier(search.NewRuleClassifier()),
		search.WithMultiQuerySearch(search.NewPatternDecomposer()))
	if err != nil {
		return fmt.Errorf("failed to create search engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	sess := &rootsession.Session{}
	rootHint := opts.path
	if rootHint == "" {
		rootHint = root
	}
	sess.SetRoot(root, rootHint, nil, rootsession.UpdateSourceCwdFallback, nil, nil)

	router := readpack.NewRouter(readpack.Deps{
		Session:      sess,
		Cursors:      cursorstore.New(root),
		SearchEngine: engine,
	})

	req := readpack.Request{
		Path:          opts.path,
		File:          opts.file,
		FilePattern:   opts.filePattern,
		Pattern:       opts.pattern,
		Query:         opts.query,
		Question:      opts.question,
		Cursor:        opts.cursor,
		MaxChars:      opts.maxChars,
		ResponseMode:  readpack.ResponseMode(opts.responseMode),
		MaxResults:    opts.maxResults,
		CaseSensitive: opts.caseSens,
		WholeWord:     opts.wholeWord,
		AllowSecrets:  opts.allowSecrets,
		StartLine:     opts.startLine,
		EndLine:       opts.endLine,
	}

	intent := readpack.IntentAuto
	if opts.intent != "" {
		intent = readpack.Intent(opts.intent)
	}

	doc, err := router.Run(ctx, req, intent)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), doc)
	return nil
}
