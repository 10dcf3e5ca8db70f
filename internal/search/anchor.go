package search

import (
	"strings"
)

// AnchorKind is the category of a detected query anchor (spec §4.8).
type AnchorKind string

const (
	AnchorKindQuoted     AnchorKind = "quoted"
	AnchorKindPath       AnchorKind = "path"
	AnchorKindIdentifier AnchorKind = "identifier"
)

// DetectedAnchor is the highest-confidence literal signal found in a query,
// used by ContextPack's anchor guardrail to decide whether a semantic pack
// actually answered the literal thing the caller asked about.
type DetectedAnchor struct {
	Kind       AnchorKind
	Raw        string
	Normalized string
}

const (
	minQuotedLen     = 3
	minIdentifierLen = 4
	minPathLen       = 3
)

// anchorStopwords mirrors the teacher's PatternClassifier noise list, widened
// with the anchor-specific noise terms from the original implementation:
// interrogatives, common code/query filler, repo-path filler, and file
// extensions that would otherwise look path-like on their own.
var anchorStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "what": true, "when": true,
	"where": true, "why": true, "with": true,

	"struct": true, "definition": true, "define": true, "defined": true,
	"fn": true, "function": true, "method": true, "class": true, "type": true,
	"enum": true, "trait": true, "impl": true, "module": true, "file": true,
	"path": true, "usage": true, "usages": true, "reference": true,
	"references": true, "find": true, "show": true,

	"bin": true, "crates": true, "doc": true, "docs": true, "lib": true,
	"src": true, "test": true, "tests": true,

	"c": true, "cpp": true, "go": true, "h": true, "hpp": true, "java": true,
	"js": true, "json": true, "md": true, "mdx": true, "py": true, "rs": true,
	"toml": true, "ts": true, "yaml": true, "yml": true,
}

var pathLikeExtensions = []string{
	".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".toml", ".md", ".mdx",
	".json", ".yaml", ".yml", ".java", ".proto",
}

func isAnchorStopword(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return true
	}
	return anchorStopwords[strings.ToLower(token)]
}

func stripWrappingPunct(token string) string {
	return strings.Trim(strings.TrimSpace(token), ",.;:()[]{}<>")
}

// stripLineSuffix removes a trailing "#L123" or ":123" locator suffix,
// returning the token unchanged if the tail isn't purely digits.
func stripLineSuffix(token string) string {
	token = strings.TrimSpace(token)
	if idx := strings.LastIndex(token, "#L"); idx > 0 {
		tail := token[idx+2:]
		if tail != "" && isAllDigits(tail) {
			return token[:idx]
		}
	}
	if idx := strings.LastIndex(token, ":"); idx > 0 {
		tail := token[idx+1:]
		if tail != "" && isAllDigits(tail) {
			return token[:idx]
		}
	}
	return token
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizePathLike(token string) string {
	return stripLineSuffix(strings.ReplaceAll(token, "\\", "/"))
}

func looksPathLike(token string) bool {
	token = stripLineSuffix(stripWrappingPunct(token))
	if len(token) < minPathLen {
		return false
	}
	if strings.ContainsAny(token, "/\\") {
		return strings.IndexFunc(token, isASCIIAlnum) >= 0
	}
	for _, ext := range pathLikeExtensions {
		if strings.HasSuffix(token, ext) {
			return true
		}
	}
	return false
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func looksIdentifierLike(token string) bool {
	token = stripWrappingPunct(token)
	if len(token) < minIdentifierLen {
		return false
	}
	if isAnchorStopword(token) {
		return false
	}
	if strings.Contains(token, "::") {
		return true
	}
	if strings.ContainsAny(token, "_-") {
		return strings.IndexFunc(token, func(r rune) bool {
			return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		}) >= 0
	}
	hasUpperInternal := false
	for i, r := range token {
		if i > 0 && r >= 'A' && r <= 'Z' {
			hasUpperInternal = true
			break
		}
	}
	if hasUpperInternal {
		return true
	}
	return strings.IndexFunc(token, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func extractQuoted(query string) []string {
	var out []string
	for _, quote := range []byte{'"', '\'', '`'} {
		out = append(out, extractForQuote(query, quote)...)
	}
	return out
}

func extractForQuote(query string, quote byte) []string {
	var out []string
	start := -1
	for i := 0; i < len(query); i++ {
		if query[i] != quote {
			continue
		}
		if start < 0 {
			start = i + 1
			continue
		}
		if i > start {
			out = append(out, query[start:i])
		}
		start = -1
	}
	return out
}

// DetectPrimaryAnchor finds the strongest literal signal in a query, in
// priority order: quoted string, path-like token, identifier-like token.
// Returns nil if no anchor can be found (a purely conceptual query).
func DetectPrimaryAnchor(query string) *DetectedAnchor {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var bestQuoted string
	for _, q := range extractQuoted(query) {
		q = strings.TrimSpace(q)
		if len(q) < minQuotedLen {
			continue
		}
		if strings.IndexFunc(q, isASCIIAlnum) < 0 {
			continue
		}
		if len(q) > len(bestQuoted) {
			bestQuoted = q
		}
	}
	if bestQuoted != "" {
		return &DetectedAnchor{Kind: AnchorKindQuoted, Raw: bestQuoted, Normalized: bestQuoted}
	}

	var bestPath string
	for _, tok := range strings.Fields(query) {
		candidate := stripWrappingPunct(tok)
		if !looksPathLike(candidate) {
			continue
		}
		normalized := normalizePathLike(candidate)
		if len(normalized) < minPathLen {
			continue
		}
		if len(normalized) > len(bestPath) {
			bestPath = normalized
		}
	}
	if bestPath != "" {
		return &DetectedAnchor{Kind: AnchorKindPath, Raw: bestPath, Normalized: bestPath}
	}

	var bestIdent string
	for _, tok := range strings.Fields(query) {
		candidate := stripWrappingPunct(tok)
		if !looksIdentifierLike(candidate) {
			continue
		}
		normalized := stripLineSuffix(candidate)
		if len(normalized) > len(bestIdent) {
			bestIdent = normalized
		}
	}
	if bestIdent != "" {
		return &DetectedAnchor{Kind: AnchorKindIdentifier, Raw: bestIdent, Normalized: bestIdent}
	}

	return nil
}

func containsCaseInsensitive(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func isIdentByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

func containsCaseInsensitiveWord(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	haystackLC := strings.ToLower(haystack)
	needleLC := strings.ToLower(needle)
	start := 0
	for {
		pos := strings.Index(haystackLC[start:], needleLC)
		if pos < 0 {
			return false
		}
		idx := start + pos
		beforeOK := idx == 0 || !isIdentByte(haystackLC[idx-1])
		afterIdx := idx + len(needleLC)
		afterOK := afterIdx >= len(haystackLC) || !isIdentByte(haystackLC[afterIdx])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

// AnchorMentionable is the minimal shape an anchor-checkable item needs:
// ContextPackItem and ReadPackSection both satisfy it.
type AnchorMentionable interface {
	AnchorFile() string
	AnchorContent() string
}

// ItemMentionsAnchor reports whether content/file carries the anchor,
// using substring matching for quoted/path anchors and whole-word matching
// for bare identifiers (so "Run" doesn't match inside "RunLoop").
func ItemMentionsAnchor(item AnchorMentionable, anchor *DetectedAnchor) bool {
	if anchor == nil {
		return false
	}
	switch anchor.Kind {
	case AnchorKindQuoted:
		return containsCaseInsensitive(item.AnchorContent(), anchor.Normalized)
	case AnchorKindPath:
		return containsCaseInsensitive(strings.ReplaceAll(item.AnchorFile(), "\\", "/"), anchor.Normalized) ||
			containsCaseInsensitive(item.AnchorContent(), anchor.Normalized)
	case AnchorKindIdentifier:
		needle := anchor.Normalized
		if strings.ContainsAny(needle, ".-") || strings.Contains(needle, "::") {
			return containsCaseInsensitive(item.AnchorContent(), needle)
		}
		return containsCaseInsensitiveWord(item.AnchorContent(), needle)
	default:
		return false
	}
}

// CountAnchorHits reports how many items mention the anchor.
func CountAnchorHits(items []AnchorMentionable, anchor *DetectedAnchor) int {
	count := 0
	for _, item := range items {
		if ItemMentionsAnchor(item, anchor) {
			count++
		}
	}
	return count
}
