package search

import "sort"

// anchorFuzzyBoostWeight bounds how much a fuzzy-match signal can move a
// result's score: a perfect fuzzy match (score 1.0) scales the result up by
// at most this fraction, keeping the boost a tiebreaker rather than a
// second ranking system layered on top of RRF.
const anchorFuzzyBoostWeight = 0.25

// applyAnchorFuzzyBoost blends a fuzzy lexical-match signal into each
// result's score when the query carries a strong literal anchor (quoted
// string, path, or bare identifier), per spec §4.8/§4.9: identifier and
// path-class queries should weight exact-token matching far above semantic
// similarity, which RRF alone under-rewards when the anchor term is short.
// Returns results unchanged if the query is purely conceptual (no anchor).
func applyAnchorFuzzyBoost(query string, results []*SearchResult) []*SearchResult {
	if len(results) == 0 {
		return results
	}

	anchor := DetectPrimaryAnchor(query)
	if anchor == nil {
		return results
	}

	candidates := make([]FuzzyCandidate, len(results))
	for i, r := range results {
		if r.Chunk == nil {
			continue
		}
		var symbolName string
		if len(r.Chunk.Symbols) > 0 {
			symbolName = r.Chunk.Symbols[0].Name
		}
		candidates[i] = FuzzyCandidate{
			ChunkID:     r.Chunk.ID,
			SymbolName:  symbolName,
			FilePath:    r.Chunk.FilePath,
			ContentHead: r.Chunk.RawContent,
		}
	}

	scores := FuzzySearch(anchor.Normalized, candidates, len(candidates))
	if len(scores) == 0 {
		return results
	}

	for _, s := range scores {
		results[s.ChunkIndex].Score *= 1.0 + s.Score*anchorFuzzyBoostWeight
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}
