package index

import (
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"time"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/watermark"
)

// RunFull runs the full indexing pipeline and, on success, atomically
// writes the project's current watermark alongside the persisted vector
// store so a later query can assess staleness without rescanning.
func (r *Runner) RunFull(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	result, err := r.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.writeWatermarkBestEffort(ctx, cfg)
	return result, nil
}

// IndexWithBudget runs a full index bounded by budget, satisfying the
// freshness.Indexer capability interface. If the pipeline does not finish
// within budget, the error is surfaced as ErrCodeBudgetExceeded rather
// than a generic context-cancellation error; nothing is persisted unless
// the run's own stages (metadata checkpoints, chunk/embedding saves)
// already committed it, so a timed-out run never leaves a corrupted
// index.json/vectors.hnsw behind.
func (r *Runner) IndexWithBudget(ctx context.Context, root string, budget time.Duration) error {
	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	_, err := r.RunFull(budgetCtx, RunnerConfig{RootDir: root})
	if err == nil {
		return nil
	}
	if stderrors.Is(budgetCtx.Err(), context.DeadlineExceeded) {
		return amanerrors.New(amanerrors.ErrCodeBudgetExceeded, "indexing did not complete within max_reindex_ms", err)
	}
	return err
}

func (r *Runner) writeWatermarkBestEffort(ctx context.Context, cfg RunnerConfig) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(cfg.RootDir, ".amanmcp")
	}
	vectorPath := filepath.Join(dataDir, "vectors.hnsw")

	mark, err := watermark.ComputeProjectWatermark(ctx, cfg.RootDir)
	if err != nil {
		slog.Warn("failed to compute project watermark after index", slog.String("error", err.Error()))
		return
	}
	if err := watermark.WriteIndexWatermark(vectorPath, mark); err != nil {
		slog.Warn("failed to write index watermark", slog.String("error", err.Error()))
	}
}
