package readpack

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/contextpack"
	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/graph"
	"github.com/Aman-CERP/amanmcp/internal/search"
)

// recallMode governs whether a question is answered from a cheap grep sweep
// or upgraded to a semantic ContextPack query, grounded on
// recall_directives.rs's RecallQuestionMode (Auto/Fast/Deep).
type recallMode int

const (
	recallModeAuto recallMode = iota
	recallModeFast
	recallModeDeep
)

// recallDirectives is a trimmed port of recall_directives.rs's
// RecallQuestionDirectives: inline tokens a caller can prefix onto a
// natural-language question to steer the Recall intent without a separate
// request field for each knob.
type recallDirectives struct {
	mode         recallMode
	snippetLimit int
	grepContext  int
	includePaths []string
	excludePaths []string
	filePattern  string
}

const maxRecallSnippetsPerQuestion = 12
const maxRecallDirectivePrefixes = 4

// parseRecallDirectives strips directive tokens (fast/deep, k:N, ctx:N,
// in:/scope:, not:/out:/exclude:, fp:/glob:) from the front of a question
// and returns the cleaned question text alongside the parsed knobs.
func parseRecallDirectives(question string) (string, recallDirectives) {
	var d recallDirectives
	var remaining []string

	for _, token := range strings.Fields(question) {
		lowered := strings.ToLower(token)
		switch lowered {
		case "fast", "quick", "grep":
			d.mode = recallModeFast
			continue
		case "deep", "semantic", "sem", "index":
			d.mode = recallModeDeep
			continue
		}

		if rest, ok := stripAnyPrefix(lowered, "k:", "snips:", "top:"); ok {
			if k, err := strconv.Atoi(rest); err == nil {
				d.snippetLimit = clampInt(k, 1, maxRecallSnippetsPerQuestion)
				continue
			}
		}
		if rest, ok := stripAnyPrefix(lowered, "ctx:", "context:"); ok {
			if n, err := strconv.Atoi(rest); err == nil {
				d.grepContext = clampInt(n, 0, 40)
				continue
			}
		}
		if rest, ok := stripAnyPrefix(token, "in:", "scope:"); ok {
			if len(d.includePaths) < maxRecallDirectivePrefixes {
				if p := normalizeRecallPrefix(rest); p != "" {
					d.includePaths = append(d.includePaths, p)
				}
			}
			continue
		}
		if rest, ok := stripAnyPrefix(token, "not:", "out:", "exclude:"); ok {
			if len(d.excludePaths) < maxRecallDirectivePrefixes {
				if p := normalizeRecallPrefix(rest); p != "" {
					d.excludePaths = append(d.excludePaths, p)
				}
			}
			continue
		}
		if rest, ok := stripAnyPrefix(token, "fp:", "glob:"); ok {
			d.filePattern = normalizeRecallPrefix(rest)
			continue
		}

		remaining = append(remaining, token)
	}

	return strings.TrimSpace(strings.Join(remaining, " ")), d
}

func stripAnyPrefix(token string, prefixes ...string) (string, bool) {
	low := strings.ToLower(token)
	for _, p := range prefixes {
		if strings.HasPrefix(low, p) {
			return token[len(p):], true
		}
	}
	return "", false
}

func normalizeRecallPrefix(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	raw = strings.TrimPrefix(raw, "./")
	if raw == "" || raw == "." || strings.HasPrefix(raw, "/") || strings.Contains(raw, "..") {
		return ""
	}
	return raw
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// handleRecallIntent answers a short natural-language question with a
// handful of supporting snippets. Fast mode (or Auto without a search
// engine) grounds entirely on a literal-substring grep sweep over the
// question's significant words; Deep mode (or Auto with a usable engine)
// upgrades to a ContextPack semantic query and flattens its primary items
// into snippets.
func handleRecallIntent(ctx context.Context, engine *search.Engine, g *graph.CodeGraph, root string, req Request) (*RecallResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeInvalidRequest, "question must not be empty", nil)
	}

	cleaned, directives := parseRecallDirectives(question)
	if cleaned == "" {
		cleaned = question
	}

	limit := directives.snippetLimit
	if limit <= 0 {
		limit = 6
	}
	includePaths := req.IncludePaths
	if len(directives.includePaths) > 0 {
		includePaths = directives.includePaths
	}
	excludePaths := req.ExcludePaths
	if len(directives.excludePaths) > 0 {
		excludePaths = directives.excludePaths
	}
	filePattern := req.FilePattern
	if directives.filePattern != "" {
		filePattern = directives.filePattern
	}

	useSemantic := directives.mode == recallModeDeep || (directives.mode == recallModeAuto && engine != nil)

	if useSemantic {
		pack, err := contextpack.BuildFromSearch(ctx, searchOrNil(ctx, engine, cleaned, limit), g, contextpack.Options{
			Query:        cleaned,
			MaxChars:     DefaultMaxChars,
			ProjectRoot:  root,
			IncludePaths: includePaths,
			ExcludePaths: excludePaths,
			FilePattern:  filePattern,
		})
		if err == nil && pack != nil && len(pack.Items) > 0 {
			return &RecallResult{Question: question, Snippets: snippetsFromPack(pack, limit)}, nil
		}
	}

	return recallFromGrep(ctx, root, question, cleaned, directives, includePaths, excludePaths, filePattern, limit, req.AllowSecrets)
}

func searchOrNil(ctx context.Context, engine *search.Engine, query string, limit int) []*search.SearchResult {
	if engine == nil {
		return nil
	}
	results, err := engine.Search(ctx, query, search.SearchOptions{Limit: limit})
	if err != nil {
		return nil
	}
	return results
}

func snippetsFromPack(pack *contextpack.Pack, limit int) []Snippet {
	var out []Snippet
	for _, item := range pack.Items {
		if len(out) >= limit {
			break
		}
		out = append(out, Snippet{
			File:      item.File,
			StartLine: item.StartLine,
			Kind:      snippetKindForPath(item.File),
			Reason:    "needle:context_pack_item",
			Content:   item.Content,
		})
	}
	return out
}

// recallFromGrep builds recall snippets from a literal-substring sweep over
// the question's significant words (3+ chars, deduplicated), grounded on
// recall_snippets.rs's snippets_from_grep/snippets_from_grep_filtered.
func recallFromGrep(ctx context.Context, root, question, cleaned string, d recallDirectives, includePaths, excludePaths []string, filePattern string, limit int, allowSecrets bool) (*RecallResult, error) {
	words := significantWords(cleaned)
	if len(words) == 0 {
		words = significantWords(question)
	}
	if len(words) == 0 {
		return &RecallResult{Question: question}, nil
	}

	grepReq := Request{
		Pattern:      words[0],
		FilePattern:  filePattern,
		MaxResults:   limit * 4,
		AllowSecrets: allowSecrets,
	}
	result, _, err := handleGrepIntent(ctx, root, grepReq, nil)
	if err != nil {
		return nil, err
	}

	var snippets []Snippet
	for _, hunk := range result.Hunks {
		if len(snippets) >= limit {
			break
		}
		if !recallPathAllowed(hunk.File, includePaths, excludePaths) {
			continue
		}
		snippets = append(snippets, Snippet{
			File:      hunk.File,
			StartLine: hunk.StartLine,
			Kind:      snippetKindForPath(hunk.File),
			Reason:    "needle:grep_hunk",
			Content:   hunk.Content,
		})
	}

	sort.Slice(snippets, func(i, j int) bool {
		if snippets[i].Kind != snippets[j].Kind {
			return snippetKindRank(snippets[i].Kind) < snippetKindRank(snippets[j].Kind)
		}
		if snippets[i].File != snippets[j].File {
			return snippets[i].File < snippets[j].File
		}
		return snippets[i].StartLine < snippets[j].StartLine
	})

	return &RecallResult{Question: question, Snippets: snippets}, nil
}

func significantWords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if len(w) < 3 || seen[strings.ToLower(w)] {
			continue
		}
		seen[strings.ToLower(w)] = true
		out = append(out, w)
	}
	return out
}

func recallPathAllowed(path string, includePaths, excludePaths []string) bool {
	for _, ex := range excludePaths {
		if strings.HasPrefix(path, ex) {
			return false
		}
	}
	if len(includePaths) == 0 {
		return true
	}
	for _, in := range includePaths {
		if strings.HasPrefix(path, in) {
			return true
		}
	}
	return false
}

func snippetKindForPath(path string) SnippetKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".mdx", ".rst", ".txt":
		return SnippetKindDoc
	case ".json", ".yaml", ".yml", ".toml", ".ini", ".env":
		return SnippetKindConfig
	default:
		return SnippetKindCode
	}
}

func snippetKindRank(k SnippetKind) int {
	switch k {
	case SnippetKindCode:
		return 0
	case SnippetKindConfig:
		return 1
	default:
		return 2
	}
}
