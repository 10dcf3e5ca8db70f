package search

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryClass is the spec §4.8 query classification, distinct from the
// teacher's LEXICAL/SEMANTIC/MIXED QueryType: it is purely rule-based (no
// LLM round trip) and drives semantic/fuzzy fusion weights plus the
// candidate pool multiplier rather than a BM25/semantic split.
type QueryClass string

const (
	QueryClassIdentifier QueryClass = "identifier"
	QueryClassPath       QueryClass = "path"
	QueryClassConceptual QueryClass = "conceptual"
)

// FusionWeights is the (semantic, fuzzy, candidate_pool_multiplier) tuple
// spec §4.8 assigns per query class.
type FusionWeights struct {
	Semantic               float64
	Fuzzy                  float64
	CandidatePoolMultiplier int
}

// FusionWeightsForClass returns the fixed weight table from spec §4.8.
func FusionWeightsForClass(qc QueryClass, wordCount int) FusionWeights {
	switch qc {
	case QueryClassIdentifier:
		return FusionWeights{Semantic: 0.10, Fuzzy: 0.90, CandidatePoolMultiplier: 3}
	case QueryClassPath:
		return FusionWeights{Semantic: 0.15, Fuzzy: 0.85, CandidatePoolMultiplier: 4}
	default:
		if wordCount >= 4 {
			return FusionWeights{Semantic: 0.90, Fuzzy: 0.10, CandidatePoolMultiplier: 6}
		}
		return FusionWeights{Semantic: 0.80, Fuzzy: 0.20, CandidatePoolMultiplier: 6}
	}
}

// knownSourceExtensions backs the Path classification rule: a bare token
// ending in one of these counts as path-like even without a "/".
var knownSourceExtensions = []string{
	".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".toml", ".md", ".mdx",
	".json", ".yaml", ".yml", ".java", ".proto", ".c", ".cpp", ".h", ".hpp",
	".rb", ".php", ".swift", ".sh",
}

var interrogatives = map[string]bool{
	"how": true, "what": true, "where": true, "why": true, "when": true,
	"which": true, "who": true, "can": true, "does": true, "do": true,
	"is": true, "are": true, "should": true, "could": true, "would": true,
}

// RuleClassifier implements spec §4.8's query classification: Path >
// Identifier > Conceptual, applied in that priority order over
// whitespace-separated tokens. It never errors and never calls out to an
// LLM — it is the rule-based replacement for the teacher's Ollama-backed
// HybridClassifier, kept in the same LRU-cache-wrapped shape.
type RuleClassifier struct {
	cache *lru.Cache[string, ruleClassification]
}

type ruleClassification struct {
	class   QueryClass
	weights FusionWeights
}

// NewRuleClassifier creates a classifier with the teacher's default
// classification cache size.
func NewRuleClassifier() *RuleClassifier {
	cache, _ := lru.New[string, ruleClassification](DefaultClassifierCacheSize)
	return &RuleClassifier{cache: cache}
}

// ClassifyQuery determines the spec query class and its fusion weights.
// Unlike the HybridClassifier, this never returns an error: rule evaluation
// is total over any input string.
func (c *RuleClassifier) ClassifyQuery(query string) (QueryClass, FusionWeights) {
	key := normalizeQuery(query)
	if key == "" {
		qc := QueryClassConceptual
		return qc, FusionWeightsForClass(qc, 0)
	}

	if cached, ok := c.cache.Get(key); ok {
		return cached.class, cached.weights
	}

	tokens := strings.Fields(query)
	qc := classifyTokens(tokens)
	weights := FusionWeightsForClass(qc, len(tokens))
	c.cache.Add(key, ruleClassification{class: qc, weights: weights})
	return qc, weights
}

// Classify adapts ClassifyQuery to the teacher's Classifier interface so
// RuleClassifier can be dropped into any code path expecting one, mapping
// the spec's three-way class onto the teacher's LEXICAL/SEMANTIC/MIXED
// weight pair (Identifier/Path -> lexical-heavy, Conceptual -> semantic).
func (c *RuleClassifier) Classify(_ context.Context, query string) (QueryType, Weights, error) {
	qc, fw := c.ClassifyQuery(query)
	qt := QueryTypeMixed
	switch qc {
	case QueryClassIdentifier, QueryClassPath:
		qt = QueryTypeLexical
	case QueryClassConceptual:
		qt = QueryTypeSemantic
	}
	return qt, Weights{BM25: fw.Fuzzy, Semantic: fw.Semantic}, nil
}

func classifyTokens(tokens []string) QueryClass {
	if len(tokens) == 0 {
		return QueryClassConceptual
	}

	for _, tok := range tokens {
		if looksPathToken(tok) {
			return QueryClassPath
		}
	}

	first := tokens[0]
	if len(tokens) == 1 {
		if looksIdentifierToken(first) {
			return QueryClassIdentifier
		}
	} else if looksIdentifierToken(first) && !isAnchorStopword(first) && !interrogatives[strings.ToLower(first)] {
		return QueryClassIdentifier
	}

	return QueryClassConceptual
}

// looksPathToken implements spec §4.8's Path rule: contains "/", "\", "::",
// or ends in a known source extension.
func looksPathToken(token string) bool {
	if strings.ContainsAny(token, "/\\") || strings.Contains(token, "::") {
		return true
	}
	lower := strings.ToLower(token)
	for _, ext := range knownSourceExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// looksIdentifierToken implements spec §4.8's Identifier rule: the token has
// "_", "-", digits, "::", or internal uppercase after a lowercase letter.
func looksIdentifierToken(token string) bool {
	if strings.Contains(token, "::") {
		return true
	}
	if strings.ContainsAny(token, "_-") {
		return true
	}
	if strings.IndexFunc(token, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
		return true
	}
	sawLower := false
	for _, r := range token {
		if r >= 'a' && r <= 'z' {
			sawLower = true
			continue
		}
		if sawLower && r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// Ensure RuleClassifier implements the teacher's Classifier interface so it
// composes with existing BM25/semantic weight consumers.
var _ Classifier = (*RuleClassifier)(nil)
