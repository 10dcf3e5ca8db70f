package readpack

import (
	"context"

	"github.com/Aman-CERP/amanmcp/internal/contextpack"
	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/graph"
	"github.com/Aman-CERP/amanmcp/internal/search"
)

// handleQueryIntent is the Query intent: a semantic question answered with
// a ContextPack (spec §4.13) built over the hybrid search engine's ranked
// results. When the engine itself fails (store unavailable, index missing)
// it degrades to SemanticUnavailablePack rather than surfacing the error,
// matching contextpack's own never-fail-closed contract.
func handleQueryIntent(ctx context.Context, engine *search.Engine, g *graph.CodeGraph, root string, req Request, maxChars int) (*contextpack.Pack, error) {
	query := req.Query
	if query == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeInvalidRequest, "query must not be empty", nil)
	}

	opts := contextpack.Options{
		Query:        query,
		MaxChars:     maxChars,
		ProjectRoot:  root,
		IncludePaths: req.IncludePaths,
		ExcludePaths: req.ExcludePaths,
		FilePattern:  req.FilePattern,
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = 20
	}

	if engine == nil {
		return contextpack.SemanticUnavailablePack(ctx, opts, "no search engine configured")
	}

	results, err := engine.Search(ctx, query, search.SearchOptions{Limit: limit})
	if err != nil {
		return contextpack.SemanticUnavailablePack(ctx, opts, err.Error())
	}

	return contextpack.BuildFromSearch(ctx, results, g, opts)
}
