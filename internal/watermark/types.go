// Package watermark fingerprints a project's on-disk state so the indexer
// can decide whether a persisted index is still fresh without re-reading
// every file's content.
package watermark

// Kind discriminates the two ways a Watermark can be computed.
type Kind string

const (
	KindGit        Kind = "git"
	KindFilesystem Kind = "filesystem"
)

// Watermark is a tagged union mirroring the two computation strategies in
// ComputeProjectWatermark: a cheap git-based fingerprint when the project is
// a git repo, a filesystem aggregate otherwise. Exactly one of the Git* or
// FS* field groups is meaningful, selected by Kind — this mirrors the
// internally-tagged enum shape the persisted watermark.json already commits
// to, so fields are flat rather than nested in a sub-struct.
type Watermark struct {
	Kind             Kind   `json:"kind"`
	ComputedAtUnixMS *int64 `json:"computed_at_unix_ms,omitempty"`

	// Git fields, meaningful when Kind == KindGit.
	GitHead   string  `json:"git_head,omitempty"`
	GitDirty  bool    `json:"git_dirty,omitempty"`
	DirtyHash *uint64 `json:"dirty_hash,omitempty"`

	// Filesystem fields, meaningful when Kind == KindFilesystem.
	FileCount  uint64 `json:"file_count,omitempty"`
	MaxMtimeMS uint64 `json:"max_mtime_ms,omitempty"`
	TotalBytes uint64 `json:"total_bytes,omitempty"`
}

// StaleReason enumerates why AssessStaleness judged an index stale. Order of
// appearance in StaleAssessment.Reasons follows the fixed priority this
// package's AssessStaleness evaluates them in.
type StaleReason string

const (
	StaleReasonIndexMissing     StaleReason = "index_missing"
	StaleReasonIndexCorrupt     StaleReason = "index_corrupt"
	StaleReasonWatermarkMissing StaleReason = "watermark_missing"
	StaleReasonGitHeadMismatch  StaleReason = "git_head_mismatch"
	StaleReasonGitDirtyMismatch StaleReason = "git_dirty_mismatch"
	StaleReasonFilesystemChanged StaleReason = "filesystem_changed"
)

// StaleAssessment is the result of AssessStaleness.
type StaleAssessment struct {
	Stale   bool
	Reasons []StaleReason
}

// ReindexResult records how a triggered reindex attempt concluded.
type ReindexResult string

const (
	ReindexResultOK             ReindexResult = "ok"
	ReindexResultBudgetExceeded ReindexResult = "budget_exceeded"
	ReindexResultFailed         ReindexResult = "failed"
	ReindexResultSkipped        ReindexResult = "skipped"
)

// ReindexAttempt records whether a reindex was attempted/performed by
// FreshnessGate and, if so, how it went.
type ReindexAttempt struct {
	Attempted  bool           `json:"attempted"`
	Performed  bool           `json:"performed"`
	BudgetMS   *int64         `json:"budget_ms,omitempty"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
	Result     *ReindexResult `json:"result,omitempty"`
	Error      *string        `json:"error,omitempty"`
}

// IndexSnapshot is a point-in-time view of whether a persisted index exists
// and what it claims about itself.
type IndexSnapshot struct {
	Exists        bool       `json:"exists"`
	Path          *string    `json:"path,omitempty"`
	MtimeMS       *int64     `json:"mtime_ms,omitempty"`
	BuiltAtUnixMS *int64     `json:"built_at_unix_ms,omitempty"`
	Watermark     *Watermark `json:"watermark,omitempty"`
}

// IndexState is the full freshness picture FreshnessGate assembles and
// reports back to callers: the project's current fingerprint, what the
// persisted index claims, whether they agree, and (if a reindex was
// triggered) how that went.
type IndexState struct {
	SchemaVersion   int             `json:"schema_version"`
	ProjectRoot     *string         `json:"project_root,omitempty"`
	ModelID         string          `json:"model_id"`
	Profile         string          `json:"profile"`
	ProjectWatermark Watermark      `json:"project_watermark"`
	Index           IndexSnapshot   `json:"index"`
	Stale           bool            `json:"stale"`
	StaleReasons    []StaleReason   `json:"stale_reasons"`
	Reindex         *ReindexAttempt `json:"reindex,omitempty"`
}

// IndexStateSchemaVersion is the current IndexState wire schema version.
const IndexStateSchemaVersion = 1
