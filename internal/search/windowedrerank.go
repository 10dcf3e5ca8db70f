package search

import (
	"math"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/store"
)

// RerankBoosts are the additive score bonuses spec §4.11 layers on top of
// the windowed BM25 score: a path/symbol hit adds a fixed bonus regardless
// of how many query tokens matched.
type RerankBoosts struct {
	BM25     float64
	Path     float64
	YAMLPath float64
	Symbol   float64
}

// RerankBM25Config tunes the windowed BM25 pass. Window caps how many
// query-matching tokens are pulled from a candidate's content, keeping
// rerank cost independent of chunk size; K1/B are the standard BM25 knobs.
type RerankBM25Config struct {
	Window int
	K1     float64
	B      float64
}

// MustHitRule pins a candidate to the top of the reranked list whenever its
// file path contains Pattern and the query mentions at least one of Tokens
// (an empty Tokens list matches unconditionally).
type MustHitRule struct {
	Pattern string
	Tokens  []string
	Boost   float64
}

// RerankProfile is the named bundle of rerank knobs a search profile
// supplies (spec §9 Profile: "fusion weights, rerank thresholds, noise
// filters, must-hit rules"). Project profile files are loaded and
// translated into this shape elsewhere; RerankProfile itself carries no
// file-loading logic.
type RerankProfile struct {
	BM25          RerankBM25Config
	Boosts        RerankBoosts
	MustHitBase   float64
	MustHitRules  []MustHitRule
	NoisePatterns []string
}

// DefaultRerankProfile returns the built-in "general" rerank profile.
func DefaultRerankProfile() RerankProfile {
	return RerankProfile{
		BM25:        RerankBM25Config{Window: 64, K1: 1.2, B: 0.75},
		Boosts:      RerankBoosts{BM25: 1.0, Path: 0.3, YAMLPath: 0.15, Symbol: 0.5},
		MustHitBase: 1.0,
	}
}

// ApplyWindowedRerank implements spec §4.11: for each surviving candidate,
// compute a windowed BM25 score over query tokens plus path/symbol bonuses;
// noise files are filtered out first, then must_hit rules inject their
// matches at top_score+base_bonus (scaled by the rule's boost) before a
// final sort and dedupe. Runs after fusion and the AST-priority boost, and
// before the pipeline's score normalization.
func ApplyWindowedRerank(query string, results []*SearchResult, profile RerankProfile) []*SearchResult {
	tokens := rerankQueryTokens(query)
	if len(results) == 0 || len(tokens) == 0 {
		return results
	}

	kept := filterNoiseCandidates(results, profile.NoisePatterns)
	if len(kept) == 0 {
		return kept
	}

	bm := buildWindowedBM25(kept, tokens, profile.BM25)

	for _, r := range kept {
		if r.Chunk == nil {
			continue
		}
		r.Score += bm.score(r.Chunk.ID, tokens) * profile.Boosts.BM25
		r.Score += pathBonus(r.Chunk.FilePath, tokens, profile.Boosts)
		r.Score += symbolBonus(r.Chunk, tokens, profile.Boosts.Symbol)
	}

	kept = sortAndDedupeByChunk(kept)
	kept = injectMustHits(kept, tokens, profile)

	return kept
}

// rerankQueryTokens lowercases and splits the query on non-alphanumeric
// runes, dropping tokens shorter than 3 characters (matched-noise guard —
// "a", "of", "to" carry no rerank signal).
func rerankQueryTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func filterNoiseCandidates(results []*SearchResult, patterns []string) []*SearchResult {
	if len(patterns) == 0 {
		return results
	}
	kept := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			kept = append(kept, r)
			continue
		}
		if !matchesAnyPattern(r.Chunk.FilePath, patterns) {
			kept = append(kept, r)
		}
	}
	return kept
}

func matchesAnyPattern(path string, patterns []string) bool {
	lower := strings.ToLower(path)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// windowedBM25 holds the per-candidate token windows and corpus statistics
// needed to score a single query against the restricted candidate set —
// the corpus for IDF purposes is the candidate pool itself, not the whole
// index, which is what keeps this pass cheap enough to run per-query.
type windowedBM25 struct {
	cfg     RerankBM25Config
	docs    map[string][]string
	docFreq map[string]int
	avgLen  float64
}

func buildWindowedBM25(results []*SearchResult, queryTokens []string, cfg RerankBM25Config) *windowedBM25 {
	allow := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		allow[t] = true
	}

	bm := &windowedBM25{cfg: cfg, docs: make(map[string][]string, len(results)), docFreq: make(map[string]int)}
	var totalLen int
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		toks := windowedTokens(r.Chunk.Content, cfg.Window, allow)
		if len(toks) == 0 {
			continue
		}
		totalLen += len(toks)
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				bm.docFreq[t]++
			}
		}
		bm.docs[r.Chunk.ID] = toks
	}

	docCount := len(bm.docs)
	if docCount == 0 {
		docCount = 1
	}
	bm.avgLen = float64(totalLen) / float64(docCount)
	return bm
}

func windowedTokens(content string, window int, allow map[string]bool) []string {
	if window <= 0 || len(allow) == 0 {
		return nil
	}
	var tokens []string
	for _, part := range strings.FieldsFunc(content, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		if len(tokens) >= window {
			break
		}
		normalized := strings.ToLower(part)
		if len(normalized) < 3 || !allow[normalized] {
			continue
		}
		tokens = append(tokens, normalized)
	}
	return tokens
}

func (bm *windowedBM25) score(chunkID string, queryTokens []string) float64 {
	docTokens, ok := bm.docs[chunkID]
	if !ok || len(docTokens) == 0 {
		return 0
	}

	dl := float64(len(docTokens))
	totalDocs := float64(len(bm.docs))
	if totalDocs < 1 {
		totalDocs = 1
	}

	var score float64
	for _, tok := range queryTokens {
		freq := termFrequency(docTokens, tok)
		if freq <= 0 {
			continue
		}
		df := float64(bm.docFreq[tok])
		idf := bm25Idf(totalDocs, df)
		denom := freq + bm.cfg.K1*(1-bm.cfg.B+bm.cfg.B*dl/math.Max(bm.avgLen, 1e-3))
		if denom > 0 {
			score += idf * (freq * (bm.cfg.K1 + 1)) / denom
		}
	}
	return score
}

func termFrequency(docTokens []string, needle string) float64 {
	var n float64
	for _, t := range docTokens {
		if t == needle {
			n++
		}
	}
	return n
}

func bm25Idf(totalDocs, df float64) float64 {
	return math.Log((totalDocs-df+0.5)/(df+0.5) + 1.0)
}

func pathBonus(filePath string, tokens []string, boosts RerankBoosts) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(filePath)
	var bonus float64
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			bonus += boosts.Path
			if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
				bonus += boosts.YAMLPath
			}
			break
		}
	}
	return bonus
}

func symbolBonus(c *store.Chunk, tokens []string, boost float64) float64 {
	if len(c.Symbols) == 0 {
		return 0
	}
	symbol := strings.ToLower(c.Symbols[0].Name)
	for _, tok := range tokens {
		if strings.Contains(symbol, tok) {
			return boost
		}
	}
	return 0
}

func sortAndDedupeByChunk(results []*SearchResult) []*SearchResult {
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	seen := make(map[string]bool, len(results))
	out := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		if r.Chunk == nil {
			out = append(out, r)
			continue
		}
		if seen[r.Chunk.ID] {
			continue
		}
		seen[r.Chunk.ID] = true
		out = append(out, r)
	}
	return out
}

// injectMustHits pins any already-present candidate whose file path matches
// a must_hit rule (and whose rule tokens, if any, overlap the query) to
// top_score+base_bonus scaled by the rule's boost, then re-sorts.
func injectMustHits(results []*SearchResult, queryTokens []string, profile RerankProfile) []*SearchResult {
	if len(results) == 0 || len(profile.MustHitRules) == 0 {
		return results
	}

	target := results[0].Score + math.Max(profile.MustHitBase, 0)
	queryHas := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		queryHas[t] = true
	}

	for _, rule := range profile.MustHitRules {
		if rule.Pattern == "" {
			continue
		}
		if len(rule.Tokens) > 0 && !anyTokenPresent(rule.Tokens, queryHas) {
			continue
		}
		boost := math.Max(rule.Boost, 1.0)
		for _, r := range results {
			if r.Chunk == nil || !strings.Contains(strings.ToLower(r.Chunk.FilePath), strings.ToLower(rule.Pattern)) {
				continue
			}
			candidate := target * boost
			if candidate > r.Score {
				r.Score = candidate
			}
		}
	}

	return sortAndDedupeByChunk(results)
}

func anyTokenPresent(ruleTokens []string, queryHas map[string]bool) bool {
	for _, t := range ruleTokens {
		if queryHas[strings.ToLower(t)] {
			return true
		}
	}
	return false
}
