// Package readpack implements the spec's tagged-intent reading surface: a
// single router dispatches File/Grep/Query/Recall/Memory/Onboarding
// requests to intent-specific handlers, each emitting sections that are
// deduped, budget-trimmed, and rendered into one deterministic `.context`
// document.
package readpack

import "github.com/Aman-CERP/amanmcp/internal/contextpack"

// Intent is the tagged dispatch key for one read_pack call.
type Intent string

const (
	IntentAuto       Intent = "auto"
	IntentFile       Intent = "file"
	IntentGrep       Intent = "grep"
	IntentQuery      Intent = "query"
	IntentRecall     Intent = "recall"
	IntentMemory     Intent = "memory"
	IntentOnboarding Intent = "onboarding"
)

// ResponseMode controls how verbose rendered sections are.
type ResponseMode string

const (
	ResponseModeMinimal ResponseMode = "minimal"
	ResponseModeFacts   ResponseMode = "facts"
	ResponseModeFull    ResponseMode = "full"
)

// Truncation records why a result was cut short.
type Truncation string

const (
	TruncationNone     Truncation = ""
	TruncationMaxChars Truncation = "max_chars"
	TruncationTimeout  Truncation = "timeout"
)

const (
	// DefaultTimeoutMS is used when a request doesn't specify one.
	DefaultTimeoutMS = 10_000
	// MaxTimeoutMS bounds how long any single intent handler may run.
	MaxTimeoutMS = 60_000
	// DefaultMaxChars bounds a rendered document when the caller doesn't specify one.
	DefaultMaxChars = 16_000
)

// Request is one read_pack call. Exactly the fields relevant to resolving
// Auto intent and routing are required; the rest are handler-specific.
type Request struct {
	Path         string
	File         string
	FilePattern  string
	Pattern      string // grep literal substring
	Query        string // semantic query
	Question     string // recall natural-language question
	Cursor       string // compact alias, expanded by the router
	MaxChars     int
	ResponseMode ResponseMode
	TimeoutMS    int
	MaxResults   int
	CaseSensitive bool
	WholeWord    bool
	AllowSecrets bool
	StartLine    int // File intent: 1-indexed, 0 means start of file
	EndLine      int // File intent: 0 means to end of file (bounded by budget)
	IncludePaths []string
	ExcludePaths []string
}

// NextAction suggests a concrete recovery/follow-up tool call (spec §7's
// ErrorEnvelope.next_actions, reused here for successful-but-partial results).
type NextAction struct {
	Tool   string
	Args   map[string]string
	Reason string
}

// Budget tracks the character budget for one read_pack render.
type Budget struct {
	MaxChars   int
	UsedChars  int
	Truncated  bool
	Truncation Truncation
}

// SectionKind tags which field of Section is populated.
type SectionKind string

const (
	SectionProjectFacts SectionKind = "project_facts"
	SectionSnippet      SectionKind = "snippet"
	SectionRecall       SectionKind = "recall"
	SectionFileSlice    SectionKind = "file_slice"
	SectionGrepContext  SectionKind = "grep_context"
	SectionOverview     SectionKind = "overview"
	SectionContextPack  SectionKind = "context_pack"
	SectionOnboarding   SectionKind = "onboarding"
	SectionMemory       SectionKind = "memory"
)

// SnippetKind labels a rendered code/doc/config snippet for its header.
type SnippetKind string

const (
	SnippetKindCode   SnippetKind = "code"
	SnippetKindDoc    SnippetKind = "doc"
	SnippetKindConfig SnippetKind = "config"
)

// Snippet is one verbatim, line-anchored excerpt.
type Snippet struct {
	File      string
	StartLine int
	Kind      SnippetKind
	Reason    string
	Content   string
}

// FileSliceResult is the File intent's payload.
type FileSliceResult struct {
	File      string
	StartLine int
	EndLine   int
	Content   string
	Truncated bool
}

// GrepHunk is one matched line rendered with its file/line anchor.
type GrepHunk struct {
	File      string
	StartLine int
	Content   string
}

// GrepContextResult is the Grep intent's payload.
type GrepContextResult struct {
	Pattern       string
	ScannedFiles  int
	MatchedFiles  int
	SkippedLarge  int
	Hunks         []GrepHunk
	Truncated     bool
}

// RecallResult is the Recall intent's payload: a short question answered
// with a handful of supporting snippets.
type RecallResult struct {
	Question string
	Snippets []Snippet
}

// OverviewResult is the Onboarding intent's repo-introduction payload.
type OverviewResult struct {
	ProjectName string
	Files       int
	Chunks      int
	Lines       int
	GraphNodes  int
	GraphEdges  int
	EntryPoints []string
	KeyDirs     []string
	KeyTypes    []string
}

// MemoryResult is the Memory intent's notebook-overlay payload.
type MemoryResult struct {
	Source string
	Hits   []MemoryHit
}

// MemoryHit is one notebook entry surfaced as a recall candidate.
type MemoryHit struct {
	Kind    string
	Title   string
	Excerpt string
	Score   float64
}

// Section is one tagged unit of read_pack output. Exactly one of the
// pointer fields matching Kind is populated.
type Section struct {
	Kind SectionKind

	Snippet     *Snippet
	Recall      *RecallResult
	FileSlice   *FileSliceResult
	GrepContext *GrepContextResult
	Overview    *OverviewResult
	ContextPack *contextpack.Pack
	Memory      *MemoryResult
}

// Result is the full assembled read_pack output before rendering.
type Result struct {
	Intent      Intent
	Root        string
	Sections    []Section
	NextActions []NextAction
	NextCursor  string // compact alias, set by the router after minting
	Budget      Budget
}
