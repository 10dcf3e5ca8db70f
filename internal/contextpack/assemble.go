package contextpack

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/graph"
	"github.com/Aman-CERP/amanmcp/internal/scanner"
	"github.com/Aman-CERP/amanmcp/internal/search"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// anchorItem adapts an Item to search.AnchorMentionable so the anchor
// guardrail can reuse the same ItemMentionsAnchor logic the rerank stage
// uses.
type anchorItem struct{ it Item }

func (a anchorItem) AnchorFile() string    { return a.it.File }
func (a anchorItem) AnchorContent() string { return a.it.Content }

// Options configures one BuildFromSearch call.
type Options struct {
	Query               string
	MaxChars            int
	ProjectRoot         string
	IncludePaths        []string
	ExcludePaths        []string
	FilePattern         string
	MaxRelatedPerPrimary int // 0 uses MaxRelatedPerPrimary
	LexicalFallbackLimit int // 0 uses 20
}

// BuildFromSearch assembles a Pack from already-ranked hybrid search
// results, attaching graph-derived related items to each primary and
// applying spec §4.13's anchor guardrail, path filters, and budget.
func BuildFromSearch(ctx context.Context, results []*search.SearchResult, g *graph.CodeGraph, opts Options) (*Pack, error) {
	maxRelated := opts.MaxRelatedPerPrimary
	if maxRelated <= 0 {
		maxRelated = MaxRelatedPerPrimary
	}

	items := buildPrimaryAndRelated(results, g, maxRelated)
	items = applyPathFilters(items, opts.IncludePaths, opts.ExcludePaths, opts.FilePattern)

	if pack, fellBack := applyAnchorGuardrail(ctx, items, opts); fellBack {
		return pack, nil
	}

	return finalizePack(items, opts.MaxChars), nil
}

// SemanticUnavailablePack builds the diagnostic lexical fallback pack used
// when the engine itself couldn't produce semantic results (e.g. store
// load failed). The underlying error is never surfaced to the caller,
// only recorded in errDetail for server-side logs/meta.
func SemanticUnavailablePack(ctx context.Context, opts Options, errDetail string) (*Pack, error) {
	anchor := opts.Query
	items, err := lexicalFallback(ctx, opts.ProjectRoot, anchor, fallbackLimit(opts))
	if err != nil {
		return nil, err
	}
	pack := finalizePack(items, opts.MaxChars)
	pack.Fallback = true
	pack.ReasonNote = "diagnostic: semantic index unavailable"
	_ = errDetail // recorded by the caller's logging/meta, not rendered to the agent
	return pack, nil
}

func buildPrimaryAndRelated(results []*search.SearchResult, g *graph.CodeGraph, maxRelated int) []Item {
	seen := make(map[string]bool, len(results))
	var items []Item

	for _, r := range results {
		if r == nil || r.Chunk == nil || seen[r.Chunk.ID] {
			continue
		}
		seen[r.Chunk.ID] = true
		primary := chunkToItem(r.Chunk, RolePrimary, r.Score, "", 0)
		items = append(items, primary)

		if g == nil {
			continue
		}
		related := relatedItemsFor(g, r.Chunk, maxRelated, seen)
		items = append(items, related...)
	}
	return items
}

func relatedItemsFor(g *graph.CodeGraph, c *store.Chunk, maxRelated int, seen map[string]bool) []Item {
	var out []Item

	addFromNodes(&out, g.GetAllUsages(c.ID), "used_by", maxRelated, seen)
	if len(out) < maxRelated && isCallable(c) {
		addFromNodes(&out, g.GetCallees(c.ID), "calls", maxRelated, seen)
	}
	return out
}

func addFromNodes(out *[]Item, nodes []*graph.GraphNode, relationship string, maxRelated int, seen map[string]bool) {
	for _, n := range nodes {
		if len(*out) >= maxRelated {
			return
		}
		if n == nil || seen[n.ChunkID] {
			continue
		}
		seen[n.ChunkID] = true
		*out = append(*out, Item{
			Role:         RoleRelated,
			ChunkID:      n.ChunkID,
			File:         n.Symbol.FilePath,
			StartLine:    n.Symbol.StartLine,
			EndLine:      n.Symbol.EndLine,
			Symbol:       n.Symbol.Name,
			Relationship: relationship,
			Distance:     1,
		})
	}
}

func isCallable(c *store.Chunk) bool {
	for _, s := range c.Symbols {
		t := strings.ToLower(string(s.Type))
		if t == "function" || t == "method" {
			return true
		}
	}
	return false
}

func chunkToItem(c *store.Chunk, role Role, score float64, relationship string, distance int) Item {
	symbol := ""
	if len(c.Symbols) > 0 {
		symbol = c.Symbols[0].Name
	}
	return Item{
		Role:         role,
		ChunkID:      c.ID,
		File:         c.FilePath,
		StartLine:    c.StartLine,
		EndLine:      c.EndLine,
		Symbol:       symbol,
		Score:        score,
		Content:      c.Content,
		Relationship: relationship,
		Distance:     distance,
	}
}

// applyPathFilters drops items that don't satisfy include/exclude/pattern
// filters, preserving relative order.
func applyPathFilters(items []Item, includePaths, excludePaths []string, pattern string) []Item {
	if len(includePaths) == 0 && len(excludePaths) == 0 && pattern == "" {
		return items
	}

	out := items[:0:0]
	for _, it := range items {
		if len(includePaths) > 0 && !anyPrefix(it.File, includePaths) {
			continue
		}
		if anyPrefix(it.File, excludePaths) {
			continue
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, filepath.Base(it.File)); !ok {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

func anyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// applyAnchorGuardrail implements spec §4.13's guardrail: when the query
// classifies as Identifier/Path, isn't docs intent, an anchor is detected,
// and none of the top AnchorGuardrailTopN primaries mention it, the
// semantic pack is discarded for a lexical fallback.
func applyAnchorGuardrail(ctx context.Context, items []Item, opts Options) (*Pack, bool) {
	classifier := search.NewRuleClassifier()
	qc, _ := classifier.ClassifyQuery(opts.Query)
	if qc != search.QueryClassIdentifier && qc != search.QueryClassPath {
		return nil, false
	}
	if isDocsIntent(opts.Query) {
		return nil, false
	}

	anchor := search.DetectPrimaryAnchor(opts.Query)
	if anchor == nil {
		return nil, false
	}

	primaries := primariesOnly(items)
	top := primaries
	if len(top) > AnchorGuardrailTopN {
		top = top[:AnchorGuardrailTopN]
	}
	for _, it := range top {
		if search.ItemMentionsAnchor(anchorItem{it}, anchor) {
			return nil, false
		}
	}

	fallbackItems, err := lexicalFallback(ctx, opts.ProjectRoot, anchor.Normalized, fallbackLimit(opts))
	if err != nil {
		// Can't produce a lexical fallback either; let the caller keep the
		// semantic pack rather than returning nothing.
		return nil, false
	}
	pack := finalizePack(fallbackItems, opts.MaxChars)
	pack.Fallback = true
	pack.ReasonNote = "semantic: anchor_missing"
	return pack, true
}

func primariesOnly(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.Role == RolePrimary {
			out = append(out, it)
		}
	}
	return out
}

func fallbackLimit(opts Options) int {
	if opts.LexicalFallbackLimit > 0 {
		return opts.LexicalFallbackLimit
	}
	return 20
}

// isDocsIntent is a lightweight heuristic for "the caller actually wants
// prose documentation, not a literal code anchor" — queries like "how do
// I configure X" shouldn't trigger the anchor guardrail just because X
// also looks identifier-like.
func isDocsIntent(query string) bool {
	lower := strings.ToLower(query)
	docsMarkers := []string{"how do i", "how to", "what is", "explain", "overview of", "guide to", "tutorial"}
	for _, marker := range docsMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// lexicalFallback greps projectRoot for needle (case-insensitive
// substring), respecting .gitignore via the shared scanner, returning at
// most limit single-line hunks.
func lexicalFallback(ctx context.Context, projectRoot, needle string, limit int) ([]Item, error) {
	if projectRoot == "" || needle == "" || limit <= 0 {
		return nil, nil
	}

	s, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	results, err := s.Scan(ctx, &scanner.ScanOptions{RootDir: projectRoot, RespectGitignore: true})
	if err != nil {
		return nil, fmt.Errorf("scan for lexical fallback: %w", err)
	}

	var files []*scanner.FileInfo
	for r := range results {
		if r.Error == nil && r.File != nil {
			files = append(files, r.File)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	lowerNeedle := strings.ToLower(needle)
	var items []Item
	for _, f := range files {
		if len(items) >= limit {
			break
		}
		hits, err := grepFile(f, lowerNeedle, limit-len(items))
		if err != nil {
			continue
		}
		items = append(items, hits...)
	}
	return items, nil
}

func grepFile(f *scanner.FileInfo, lowerNeedle string, remaining int) ([]Item, error) {
	file, err := os.Open(f.AbsPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var hits []Item
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.Contains(strings.ToLower(line), lowerNeedle) {
			hits = append(hits, Item{
				Role:      RolePrimary,
				File:      f.Path,
				StartLine: lineNo,
				EndLine:   lineNo,
				Content:   line,
			})
			if len(hits) >= remaining {
				break
			}
		}
	}
	return hits, sc.Err()
}

// finalizePack applies the greedy budget rule: add an item if it fits,
// otherwise count it as dropped and continue; then measures used_chars by
// re-serializing the surviving items.
func finalizePack(items []Item, maxChars int) *Pack {
	budget := Budget{MaxChars: maxChars}
	if maxChars <= 0 {
		budget.UsedChars = serializedLen(items)
		return &Pack{Items: items, Budget: budget}
	}

	var kept []Item
	used := 0
	for _, it := range items {
		n := len(it.Content)
		if used+n > maxChars {
			budget.DroppedItems++
			budget.Truncation = TruncationMaxChars
			continue
		}
		kept = append(kept, it)
		used += n
	}

	for used > maxChars && len(kept) > 1 {
		kept = kept[:len(kept)-1]
		used = serializedLen(kept)
		budget.DroppedItems++
		budget.Truncation = TruncationMaxChars
	}

	budget.UsedChars = used
	return &Pack{Items: kept, Budget: budget}
}

func serializedLen(items []Item) int {
	total := 0
	for _, it := range items {
		total += len(it.Content)
	}
	return total
}
