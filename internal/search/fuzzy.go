package search

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Aman-CERP/amanmcp/internal/chunk"
)

// FuzzyCandidate is the minimal view of a chunk the Fuzzy component scores
// against — deliberately narrow so callers can build it from either
// store.Chunk or a lighter in-memory projection.
type FuzzyCandidate struct {
	ChunkID        string
	SymbolName     string
	QualifiedName  string
	FilePath       string
	ContextImports []string
	ContentHead    string // first ~200 chars of RawContent, used for head matching
}

// FuzzyScore is one scored candidate from the Fuzzy component, spec §4.9.
type FuzzyScore struct {
	ChunkIndex int
	Score      float64
}

// fuzzyFieldWeights balances which part of a chunk a fuzzy hit counts most
// against: symbol name matches are the strongest signal, followed by
// qualified name, file path, imports, and finally the content head.
const (
	weightSymbol  = 1.00
	weightQual    = 0.85
	weightPath    = 0.60
	weightImports = 0.35
	weightHead    = 0.20
)

// contentHeadChars bounds how much of a chunk's raw content the Fuzzy
// component scores against, keeping per-query cost bounded regardless of
// chunk size.
const contentHeadChars = 200

// FuzzySearch computes a per-chunk lexical score for query against each
// candidate as a weighted sum of fuzzy matches on (symbol, qualified_name,
// file path, imports, content head), per spec §4.9. Results are sorted
// descending by score and truncated to poolSize (candidate_pool_multiplier
// · limit, supplied by the caller).
func FuzzySearch(query string, candidates []FuzzyCandidate, poolSize int) []FuzzyScore {
	query = strings.TrimSpace(query)
	if query == "" || len(candidates) == 0 {
		return nil
	}

	scores := make([]FuzzyScore, 0, len(candidates))
	for idx, c := range candidates {
		score := fuzzyFieldScore(query, c.SymbolName) * weightSymbol
		score += fuzzyFieldScore(query, c.QualifiedName) * weightQual
		score += fuzzyFieldScore(query, c.FilePath) * weightPath
		score += fuzzyFieldScore(query, strings.Join(c.ContextImports, " ")) * weightImports
		score += fuzzyFieldScore(query, truncateHead(c.ContentHead, contentHeadChars)) * weightHead

		if score <= 0 {
			continue
		}
		scores = append(scores, FuzzyScore{ChunkIndex: idx, Score: score})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ChunkIndex < scores[j].ChunkIndex
	})

	if poolSize > 0 && len(scores) > poolSize {
		scores = scores[:poolSize]
	}
	return scores
}

// fuzzyFieldScore runs sahilm/fuzzy's subsequence matcher against a single
// field and normalizes its raw score into roughly [0, 1] so the weighted
// sum across fields stays comparable regardless of field length.
func fuzzyFieldScore(query, field string) float64 {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0
	}
	matches := fuzzy.Find(query, []string{field})
	if len(matches) == 0 {
		return 0
	}
	raw := float64(matches[0].Score)
	// sahilm/fuzzy scores grow with match quality and pattern length; divide
	// by pattern length so a 3-char and 30-char query land on a comparable
	// scale, then clamp to keep the weighted sum bounded.
	normalized := raw / float64(len(query)*8)
	if normalized > 1 {
		normalized = 1
	}
	if normalized < 0 {
		normalized = 0
	}
	return normalized
}

func truncateHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CandidateFromChunk builds a FuzzyCandidate from a chunk.Chunk.
func CandidateFromChunk(c *chunk.Chunk) FuzzyCandidate {
	head := c.RawContent
	if len(head) > contentHeadChars {
		head = head[:contentHeadChars]
	}
	return FuzzyCandidate{
		ChunkID:        c.ID,
		SymbolName:     c.SymbolName,
		QualifiedName:  c.QualifiedName,
		FilePath:       c.FilePath,
		ContextImports: c.ContextImports,
		ContentHead:    head,
	}
}
