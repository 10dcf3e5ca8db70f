package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanmcp/internal/chunk"
	"github.com/Aman-CERP/amanmcp/internal/config"
	"github.com/Aman-CERP/amanmcp/internal/daemon"
	"github.com/Aman-CERP/amanmcp/internal/embed"
	"github.com/Aman-CERP/amanmcp/internal/index"
	"github.com/Aman-CERP/amanmcp/internal/logging"
	"github.com/Aman-CERP/amanmcp/internal/mcp"
	"github.com/Aman-CERP/amanmcp/internal/readpack"
	"github.com/Aman-CERP/amanmcp/internal/scanner"
	"github.com/Aman-CERP/amanmcp/internal/search"
	"github.com/Aman-CERP/amanmcp/internal/session"
	"github.com/Aman-CERP/amanmcp/internal/store"
	"github.com/Aman-CERP/amanmcp/internal/ui"
	"github.com/Aman-CERP/amanmcp/internal/watcher"
	"github.com/Aman-CERP/amanmcp/pkg/version"
)

// verifyStdinForMCP checks if stdin is suitable for MCP stdio transport.
// Returns nil if stdin is a pipe (usable for MCP), error if terminal or unavailable.
func verifyStdinForMCP() error {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return fmt.Errorf("stdin unavailable: %w", err)
	}

	mode := stat.Mode()
	slog.Debug("stdin status",
		slog.String("mode", mode.String()),
		slog.Int64("size", stat.Size()),
		slog.Bool("is_pipe", (mode&os.ModeNamedPipe) != 0),
		slog.Bool("is_char_device", (mode&os.ModeCharDevice) != 0))

	if (mode & os.ModeCharDevice) != 0 {
		return fmt.Errorf("stdin is a terminal, not a pipe. " +
			"For MCP mode, run via Claude Code or pipe input:\n" +
			"  echo '{\"jsonrpc\":\"2.0\",\"method\":\"initialize\",\"id\":1}' | amanmcp serve")
	}

	return nil
}

func newServeCmd() *cobra.Command {
	var transport string
	var port int
	var sessionName string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the AmanMCP MCP server for AI coding assistants.

The server communicates via JSON-RPC over stdio (default) and provides
hybrid search and read_pack tools to connected clients like Claude Code
and Cursor.

File watching is automatically enabled for real-time index updates.

Before running serve, you need to index your project:
  amanmcp index .

Named sessions allow you to quickly switch between projects:
  amanmcp serve --session=work-api

Debug mode enables verbose logging to ~/.amanmcp/logs/server.log:
  amanmcp serve --debug

Example configuration (.mcp.json in project root):
  {
    "mcpServers": {
      "amanmcp": {
        "command": "amanmcp",
        "args": ["serve"],
        "cwd": "/path/to/project"
      }
    }
  }

Note: The cwd field is required for Claude Code to start the server in the correct directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if debug {
				cleanup, err := setupDebugLogging()
				if err != nil {
					return fmt.Errorf("failed to setup debug logging: %w", err)
				}
				defer cleanup()
				slog.Info("Debug logging enabled", slog.String("log_path", logging.DefaultLogPath()))
			}

			if sessionName != "" {
				root, err := config.FindProjectRoot(".")
				if err != nil {
					return fmt.Errorf("failed to find project root: %w", err)
				}
				return runServeWithSession(cmd.Context(), sessionName, root, transport, port)
			}
			return runServe(cmd.Context(), transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type (stdio|sse)")
	cmd.Flags().IntVar(&port, "port", 8765, "Port for SSE transport")
	cmd.Flags().StringVar(&sessionName, "session", "", "Named session to create/load")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to ~/.amanmcp/logs/server.log")

	return cmd
}

// setupDebugLogging initializes the structured logging system with debug level.
func setupDebugLogging() (func(), error) {
	cfg := logging.DebugConfig()
	cfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// quietRenderer is the renderer handed to index.Runner instances that exist
// only to back the freshness gate's budgeted reindex: MCP mode forbids any
// stdout chatter, so progress is always discarded rather than printed.
func quietRenderer() ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(io.Discard, ui.WithForcePlain(true)))
}

// newFreshnessRunner builds the *index.Runner the freshness gate uses for
// its own budgeted reindex attempts, sharing the already-open stores rather
// than reopening them.
func newFreshnessRunner(cfg *config.Config, metadata store.MetadataStore, bm25 store.BM25Index, vector store.VectorStore, embedder embed.Embedder) (*index.Runner, error) {
	return index.NewRunner(index.RunnerDependencies{
		Renderer: quietRenderer(),
		Config:   cfg,
		Metadata: metadata,
		BM25:     bm25,
		Vector:   vector,
		Embedder: embedder,
	})
}

// wireReadPack builds the read_pack router sharing the MCP server's own
// session and cursor-store instances, so a root switch or cursor minted by
// search/search_code/search_docs is visible to read_pack calls and vice
// versa.
func wireReadPack(srv *mcp.Server, engine *search.Engine) {
	deps := readpack.Deps{
		Session:      srv.Session(),
		Cursors:      srv.Cursors(),
		SearchEngine: engine,
	}
	srv.SetReadPack(readpack.NewRouter(deps))
}

func runServe(ctx context.Context, transport string, port int) (err error) {
	// MCP protocol requires stdout to be used exclusively for JSON-RPC, so
	// logging must be redirected to file before anything else runs.
	mcpLogCleanup, logErr := logging.SetupMCPMode()
	if logErr != nil {
		return fmt.Errorf("failed to setup MCP logging: %w", logErr)
	}
	defer mcpLogCleanup()

	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			slog.Warn("stdin validation failed (continuing anyway)",
				slog.String("error", err.Error()))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Server panic recovered",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("server panic: %v", r)
		}
	}()

	slog.Info("=== AmanMCP Server Startup ===",
		slog.String("version", version.Version),
		slog.String("transport", transport),
		slog.Int("port", port))

	root, err := config.FindProjectRoot(".")
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}
	slog.Debug("Found project root", slog.String("root", root))

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if transport == "" {
		transport = cfg.Server.Transport
	}

	dataDir := filepath.Join(root, ".amanmcp")

	pidFile := daemon.NewPIDFile(filepath.Join(dataDir, "serve.pid"))
	if pidFile.IsRunning() {
		pid, _ := pidFile.Read()
		return fmt.Errorf("another serve instance is already running (PID %d). "+
			"Kill it first with: kill %d", pid, pid)
	}
	_ = pidFile.Remove()
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = pidFile.Remove() }()

	metadataPath := filepath.Join(dataDir, "metadata.db")
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'amanmcp index' first to create an index")
	}

	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	checkpoint, checkpointErr := metadata.LoadIndexCheckpoint(ctx)
	if checkpointErr == nil && checkpoint != nil && checkpoint.Stage != "" && checkpoint.Stage != "complete" {
		return fmt.Errorf("incomplete index detected (stage=%s, %d/%d chunks embedded). "+
			"Run 'amanmcp index --resume' to complete indexing before serving",
			checkpoint.Stage, checkpoint.EmbeddedCount, checkpoint.Total)
	}

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), cfg.Search.BM25Backend)
	if err != nil {
		return fmt.Errorf("failed to open BM25 index: %w", err)
	}
	defer func() { _ = bm25.Close() }()

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")

	embed.SetMLXConfig(embed.MLXServerConfig{
		Endpoint: cfg.Embeddings.MLXEndpoint,
		Model:    cfg.Embeddings.MLXModel,
	})

	provider := embed.ParseProvider(cfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	var reranker search.Reranker
	if provider == embed.ProviderMLX {
		rerankerCfg := search.MLXRerankerConfig{
			Endpoint:        cfg.Embeddings.MLXEndpoint,
			SkipHealthCheck: true,
		}
		r, rerankErr := search.NewMLXReranker(ctx, rerankerCfg)
		if rerankErr != nil {
			slog.Warn("Reranker unavailable, search results will not be reranked",
				slog.String("error", rerankErr.Error()))
		} else {
			reranker = r
			defer func() { _ = reranker.Close() }()
			slog.Info("Reranker initialized", slog.String("endpoint", rerankerCfg.Endpoint))
		}
	}

	skipReconciliation := false
	storedModel, _ := metadata.GetState(ctx, store.StateKeyIndexModel)
	currentModel := embedder.ModelName()
	if storedModel != "" && storedModel != currentModel {
		slog.Warn("embedder_mismatch_skipping_reconciliation",
			slog.String("stored", storedModel),
			slog.String("current", currentModel))
		skipReconciliation = true
	}

	dimensions := embedder.Dimensions()
	vectorCfg := store.DefaultVectorStoreConfig(dimensions)
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	if _, err := os.Stat(vectorPath); err == nil {
		if err := vector.Load(vectorPath); err != nil {
			slog.Warn("Failed to load vectors, starting with empty store",
				slog.String("error", err.Error()), slog.String("path", vectorPath))
		}
	}
	defer func() { _ = vector.Close() }()

	consistencyChecker := index.NewConsistencyChecker(metadata, bm25, vector)
	if consistent, checkErr := consistencyChecker.QuickCheck(ctx); checkErr != nil {
		slog.Warn("consistency_check_failed", slog.String("error", checkErr.Error()))
	} else if !consistent {
		go func() {
			result, err := consistencyChecker.Check(context.Background())
			if err != nil {
				slog.Warn("full_consistency_check_failed", slog.String("error", err.Error()))
				return
			}
			if len(result.Inconsistencies) > 0 {
				if err := consistencyChecker.Repair(context.Background(), result.Inconsistencies); err != nil {
					slog.Warn("consistency_repair_failed", slog.String("error", err.Error()))
				}
			}
		}()
	}

	engineCfg := search.EngineConfig{
		DefaultLimit:   cfg.Search.MaxResults,
		MaxLimit:       100,
		DefaultWeights: search.Weights{BM25: cfg.Search.BM25Weight, Semantic: cfg.Search.SemanticWeight},
		RRFConstant:    cfg.Search.RRFConstant,
		SearchTimeout:  search.DefaultConfig().SearchTimeout,
	}
	queryExpander := search.NewQueryExpander()

	engineOpts := []search.EngineOption{
		search.WithQueryExpander(queryExpander),
		// The rule-based classifier sharpens routing between lexical and
		// semantic weighting for the query/symbol/docs shapes read_pack and
		// search_code callers actually send.
		search.WithClassifier(search.NewRuleClassifier()),
	}
	if reranker != nil {
		engineOpts = append(engineOpts, search.WithReranker(reranker))
	}
	engineOpts = append(engineOpts, search.WithMultiQuerySearch(search.NewPatternDecomposer()))

	engine, err := search.NewEngine(bm25, vector, embedder, metadata, engineCfg, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create search engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	slog.Debug("Creating MCP server")
	srv, err := mcp.NewServer(engine, metadata, embedder, cfg, root)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	freshnessRunner, err := newFreshnessRunner(cfg, metadata, bm25, vector, embedder)
	if err != nil {
		return fmt.Errorf("failed to create freshness gate runner: %w", err)
	}
	defer func() { _ = freshnessRunner.Close() }()
	srv.SetFreshness(freshnessRunner, vectorPath, currentModel, cfg.Freshness)

	wireReadPack(srv, engine)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	excludePatterns := append(cfg.Paths.Exclude, "**/.amanmcp/**")
	go func() {
		slog.Debug("Starting file watcher in background", slog.String("root", root))
		if err := startFileWatcher(ctx, root, dataDir, engine, metadata, skipReconciliation, excludePatterns); err != nil {
			slog.Error("File watcher failed to start (non-fatal, search still works)",
				slog.String("error", err.Error()), slog.String("root", root))
			return
		}
		slog.Info("File watcher running", slog.String("root", root))
	}()

	slog.Info("MCP server ready", slog.String("transport", transport), slog.String("root", root))
	addr := fmt.Sprintf(":%d", port)
	return srv.Serve(ctx, transport, addr)
}

// startFileWatcher creates and starts the file watcher for incremental updates.
func startFileWatcher(ctx context.Context, root, dataDir string, engine *search.Engine, metadata store.MetadataStore, skipReconciliation bool, excludePatterns []string) error {
	opts := watcher.Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}.WithDefaults()

	w, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	codeChunker := chunk.NewCodeChunker()
	mdChunker := chunk.NewMarkdownChunker()

	fileScanner, err := scanner.New()
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	h := sha256.Sum256([]byte(root))
	projectID := hex.EncodeToString(h[:])[:16]
	coordinator := index.NewCoordinator(index.CoordinatorConfig{
		ProjectID:       projectID,
		RootPath:        root,
		DataDir:         dataDir,
		Engine:          engine,
		Metadata:        metadata,
		CodeChunker:     codeChunker,
		MDChunker:       mdChunker,
		Scanner:         fileScanner,
		ExcludePatterns: excludePatterns,
	})

	if skipReconciliation {
		slog.Info("startup_reconciliation_skipped", slog.String("reason", "embedder model mismatch"))
	} else {
		if err := coordinator.ReconcileOnStartup(ctx); err != nil {
			slog.Warn("Failed to reconcile gitignore on startup", slog.String("error", err.Error()))
		}
		if err := coordinator.ReconcileFilesOnStartup(ctx); err != nil {
			slog.Warn("Failed to reconcile files on startup", slog.String("error", err.Error()))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	startupErr := make(chan error, 1)

	g.Go(func() error {
		slog.Info("Starting file watcher", slog.String("root", root), slog.String("type", w.WatcherType()))
		err := w.Start(gctx, root)
		if err != nil && err != context.Canceled {
			select {
			case startupErr <- err:
			default:
			}
			slog.Error("File watcher failed", slog.String("error", err.Error()))
		}
		return err
	})

	g.Go(func() error {
		defer func() {
			_ = w.Stop()
			codeChunker.Close()
			mdChunker.Close()
		}()

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case events, ok := <-w.Events():
				if !ok {
					return nil
				}
				if len(events) > 0 {
					if err := coordinator.HandleEvents(gctx, events); err != nil {
						slog.Error("Failed to process file events", slog.String("error", err.Error()))
					}
				}
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				slog.Warn("File watcher error (non-fatal)", slog.String("error", err.Error()))
			}
		}
	})

	startupTimeout := getWatcherStartupTimeout()
	select {
	case err := <-startupErr:
		return fmt.Errorf("file watcher startup failed: %w", err)
	case <-time.After(startupTimeout):
		slog.Debug("File watcher started successfully", slog.String("type", w.WatcherType()), slog.Duration("startup_time", startupTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}

	go func() {
		if err := g.Wait(); err != nil && err != context.Canceled {
			slog.Error("File watcher stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// getWatcherStartupTimeout returns the watcher startup timeout from environment
// or a default of 2 seconds.
func getWatcherStartupTimeout() time.Duration {
	if v := os.Getenv("AMANMCP_WATCHER_STARTUP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("Invalid AMANMCP_WATCHER_STARTUP_TIMEOUT, using default",
			slog.String("value", v), slog.Duration("default", 2*time.Second))
	}
	return 2 * time.Second
}

// runServeWithSession runs the server with session management, using the
// named session's directory for index data instead of the project's own
// .amanmcp directory.
func runServeWithSession(ctx context.Context, sessionName, projectPath, transport string, port int) (err error) {
	mcpLogCleanup, logErr := logging.SetupMCPMode()
	if logErr != nil {
		return fmt.Errorf("failed to setup MCP logging: %w", logErr)
	}
	defer mcpLogCleanup()

	if transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			slog.Warn("stdin validation failed (continuing anyway)", slog.String("error", err.Error()))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Server panic recovered (session mode)",
				slog.Any("panic", r), slog.String("session", sessionName), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("server panic: %v", r)
		}
	}()

	cfg := config.NewConfig()

	mgr, err := session.NewManager(session.ManagerConfig{
		StoragePath: cfg.Sessions.StoragePath,
		MaxSessions: cfg.Sessions.MaxSessions,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	sess, err := mgr.Open(sessionName, projectPath)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	dataDir := sess.SessionDir

	projectDataDir := filepath.Join(projectPath, ".amanmcp")
	projectMetadataPath := filepath.Join(projectDataDir, "metadata.db")
	sessionMetadataPath := filepath.Join(dataDir, "metadata.db")

	pidFile := daemon.NewPIDFile(filepath.Join(projectDataDir, "serve.pid"))
	if pidFile.IsRunning() {
		pid, _ := pidFile.Read()
		return fmt.Errorf("another serve instance is already running (PID %d). "+
			"Kill it first with: kill %d", pid, pid)
	}
	_ = pidFile.Remove()
	if err := pidFile.Write(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = pidFile.Remove() }()

	if _, err := os.Stat(sessionMetadataPath); os.IsNotExist(err) {
		if _, err := os.Stat(projectMetadataPath); err == nil {
			if err := session.CopyIndexFiles(projectDataDir, dataDir); err != nil {
				return fmt.Errorf("failed to copy index files: %w", err)
			}
		} else {
			return fmt.Errorf("no index found. Run 'amanmcp index' first to create an index")
		}
	}

	projCfg, err := config.Load(projectPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if transport == "" {
		transport = projCfg.Server.Transport
	}

	metadata, err := store.NewSQLiteStore(sessionMetadataPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	checkpoint, checkpointErr := metadata.LoadIndexCheckpoint(ctx)
	if checkpointErr == nil && checkpoint != nil && checkpoint.Stage != "" && checkpoint.Stage != "complete" {
		return fmt.Errorf("incomplete index detected (stage=%s, %d/%d chunks embedded). "+
			"Run 'amanmcp index --resume' to complete indexing before serving",
			checkpoint.Stage, checkpoint.EmbeddedCount, checkpoint.Total)
	}

	bm25BasePath := filepath.Join(dataDir, "bm25")
	bm25, err := store.NewBM25IndexWithBackend(bm25BasePath, store.DefaultBM25Config(), projCfg.Search.BM25Backend)
	if err != nil {
		return fmt.Errorf("failed to open BM25 index: %w", err)
	}
	defer func() { _ = bm25.Close() }()

	vectorPath := filepath.Join(dataDir, "vectors.hnsw")

	embed.SetMLXConfig(embed.MLXServerConfig{
		Endpoint: projCfg.Embeddings.MLXEndpoint,
		Model:    projCfg.Embeddings.MLXModel,
	})

	provider := embed.ParseProvider(projCfg.Embeddings.Provider)
	embedder, err := embed.NewEmbedder(ctx, provider, projCfg.Embeddings.Model)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	var rerankerSession search.Reranker
	if provider == embed.ProviderMLX {
		rerankerCfg := search.MLXRerankerConfig{
			Endpoint:        projCfg.Embeddings.MLXEndpoint,
			SkipHealthCheck: true,
		}
		r, rerankErr := search.NewMLXReranker(ctx, rerankerCfg)
		if rerankErr != nil {
			slog.Warn("Reranker unavailable (session mode)", slog.String("error", rerankErr.Error()))
		} else {
			rerankerSession = r
			defer func() { _ = rerankerSession.Close() }()
		}
	}

	skipReconciliationSession := false
	storedModelSession, _ := metadata.GetState(ctx, store.StateKeyIndexModel)
	currentModelSession := embedder.ModelName()
	if storedModelSession != "" && storedModelSession != currentModelSession {
		slog.Warn("embedder_mismatch_skipping_reconciliation",
			slog.String("stored", storedModelSession), slog.String("current", currentModelSession))
		skipReconciliationSession = true
	}

	dimensions := embedder.Dimensions()
	vectorCfg := store.DefaultVectorStoreConfig(dimensions)
	vector, err := store.NewHNSWStore(vectorCfg)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	if _, err := os.Stat(vectorPath); err == nil {
		if err := vector.Load(vectorPath); err != nil {
			slog.Warn("Failed to load vectors, starting with empty store", slog.String("error", err.Error()))
		}
	}
	defer func() { _ = vector.Close() }()

	sessionChecker := index.NewConsistencyChecker(metadata, bm25, vector)
	if consistent, checkErr := sessionChecker.QuickCheck(ctx); checkErr != nil {
		slog.Warn("consistency_check_failed", slog.String("error", checkErr.Error()), slog.String("session", sessionName))
	} else if !consistent {
		go func() {
			result, err := sessionChecker.Check(context.Background())
			if err != nil {
				slog.Warn("full_consistency_check_failed", slog.String("error", err.Error()))
				return
			}
			if len(result.Inconsistencies) > 0 {
				if err := sessionChecker.Repair(context.Background(), result.Inconsistencies); err != nil {
					slog.Warn("consistency_repair_failed", slog.String("error", err.Error()))
				}
			}
		}()
	}

	engineCfg := search.EngineConfig{
		DefaultLimit:   projCfg.Search.MaxResults,
		MaxLimit:       100,
		DefaultWeights: search.Weights{BM25: projCfg.Search.BM25Weight, Semantic: projCfg.Search.SemanticWeight},
		RRFConstant:    projCfg.Search.RRFConstant,
		SearchTimeout:  search.DefaultConfig().SearchTimeout,
	}
	queryExpander := search.NewQueryExpander()

	engineOptsSession := []search.EngineOption{
		search.WithQueryExpander(queryExpander),
		search.WithClassifier(search.NewRuleClassifier()),
	}
	if rerankerSession != nil {
		engineOptsSession = append(engineOptsSession, search.WithReranker(rerankerSession))
	}
	engineOptsSession = append(engineOptsSession, search.WithMultiQuerySearch(search.NewPatternDecomposer()))

	engine, err := search.NewEngine(bm25, vector, embedder, metadata, engineCfg, engineOptsSession...)
	if err != nil {
		return fmt.Errorf("failed to create search engine: %w", err)
	}
	defer func() { _ = engine.Close() }()

	srv, err := mcp.NewServer(engine, metadata, embedder, projCfg, projectPath)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	freshnessRunner, err := newFreshnessRunner(projCfg, metadata, bm25, vector, embedder)
	if err != nil {
		return fmt.Errorf("failed to create freshness gate runner: %w", err)
	}
	defer func() { _ = freshnessRunner.Close() }()
	srv.SetFreshness(freshnessRunner, vectorPath, currentModelSession, projCfg.Freshness)

	wireReadPack(srv, engine)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if cfg.Sessions.AutoSave {
		defer func() {
			if err := mgr.Save(sess); err != nil {
				slog.Warn("Failed to save session on shutdown",
					slog.String("error", err.Error()), slog.String("session", sessionName))
			}
		}()
	}

	sessionExcludePatterns := append(projCfg.Paths.Exclude, "**/.amanmcp/**")
	go func() {
		slog.Debug("Starting file watcher in background (session mode)",
			slog.String("root", projectPath), slog.String("session", sessionName))
		if err := startFileWatcher(ctx, projectPath, dataDir, engine, metadata, skipReconciliationSession, sessionExcludePatterns); err != nil {
			slog.Error("File watcher failed to start (non-fatal, search still works)",
				slog.String("error", err.Error()), slog.String("root", projectPath))
			return
		}
		slog.Info("File watcher running (session mode)", slog.String("root", projectPath), slog.String("session", sessionName))
	}()

	addr := fmt.Sprintf(":%d", port)
	return srv.Serve(ctx, transport, addr)
}
