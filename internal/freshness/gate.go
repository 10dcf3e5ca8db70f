// Package freshness implements the query-path freshness gate: deciding,
// for a given stale_policy, whether a search may proceed against the
// persisted index as-is, after a bounded reindex, or must block.
package freshness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/watermark"
)

// Policy selects how the gate reacts to a stale or missing index.
type Policy string

const (
	PolicyAuto Policy = "auto"
	PolicyWarn Policy = "warn"
	PolicyFail Policy = "fail"
)

// Indexer is the subset of the indexer this gate depends on: a
// budget-bounded reindex of root, writing its own watermark on success.
type Indexer interface {
	IndexWithBudget(ctx context.Context, root string, budget time.Duration) error
}

// Config parameterizes a single Check call.
type Config struct {
	ProjectRoot  string
	StorePath    string
	ModelID      string
	Profile      string
	MaxReindexMS int64
	Indexer      Indexer
}

// Result is returned to the caller on a successful (non-blocking) check.
type Result struct {
	IndexState   watermark.IndexState
	Hints        []string
	IndexUpdated bool
}

// Check computes the project's current freshness state and applies policy,
// returning either a Result the caller may proceed with (possibly carrying
// warn hints) or a structured *errors.AmanError the caller must surface as
// index_missing/index_stale.
func Check(ctx context.Context, cfg Config, policy Policy) (Result, error) {
	state, err := watermark.BuildIndexState(ctx, cfg.ProjectRoot, cfg.StorePath, cfg.ModelID, cfg.Profile, false)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInternal, err)
	}

	switch policy {
	case PolicyFail:
		if !state.Index.Exists || state.Stale {
			return Result{IndexState: state}, blockError(state)
		}
		return Result{IndexState: state}, nil

	case PolicyWarn:
		if !state.Index.Exists {
			return Result{IndexState: state}, blockError(state)
		}
		if state.Stale {
			return Result{IndexState: state, Hints: []string{staleHint(state)}}, nil
		}
		return Result{IndexState: state}, nil

	case PolicyAuto:
		return checkAuto(ctx, cfg, state)

	default:
		return Result{}, errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("unknown stale_policy %q", policy), nil)
	}
}

func checkAuto(ctx context.Context, cfg Config, state watermark.IndexState) (Result, error) {
	if state.Index.Exists && !state.Stale {
		return Result{IndexState: state}, nil
	}

	budget := time.Duration(cfg.MaxReindexMS) * time.Millisecond
	reindexErr := cfg.Indexer.IndexWithBudget(ctx, cfg.ProjectRoot, budget)

	refreshed, err := watermark.BuildIndexState(ctx, cfg.ProjectRoot, cfg.StorePath, cfg.ModelID, cfg.Profile, false)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInternal, err)
	}

	if !refreshed.Index.Exists {
		return Result{IndexState: refreshed}, blockError(refreshed)
	}
	if refreshed.Stale {
		hint := staleHint(refreshed)
		if reindexErr != nil {
			hint = fmt.Sprintf("%s (reindex attempt failed: %v)", hint, reindexErr)
		}
		return Result{IndexState: refreshed, Hints: []string{hint}, IndexUpdated: reindexErr == nil}, nil
	}
	return Result{IndexState: refreshed, IndexUpdated: reindexErr == nil}, nil
}

func staleHint(state watermark.IndexState) string {
	return fmt.Sprintf("index is stale (%s); results may be out of date", strings.Join(reasonStrings(state.StaleReasons), ", "))
}

func reasonStrings(reasons []watermark.StaleReason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return out
}

// blockError renders the single typed error the router surfaces for a
// missing or stale index, naming the reasons so the caller can act on
// next_actions without re-deriving them.
func blockError(state watermark.IndexState) *errors.AmanError {
	if !state.Index.Exists {
		return errors.New(errors.ErrCodeIndexMissing, "no index exists for this project yet", nil).
			WithSuggestion("run index to build one")
	}
	reasons := reasonStrings(state.StaleReasons)
	msg := fmt.Sprintf("index is stale: %s", strings.Join(reasons, ", "))
	return errors.New(errors.ErrCodeIndexStale, msg, nil).
		WithSuggestion("run index to refresh it, or retry with stale_policy=warn/auto").
		WithDetail("stale_reasons", strings.Join(reasons, ","))
}
