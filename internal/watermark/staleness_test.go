package watermark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func gitMark(head string, dirty bool) Watermark {
	return Watermark{Kind: KindGit, GitHead: head, GitDirty: dirty}
}

func gitMarkWithHash(head string, dirty bool, hash *uint64) Watermark {
	return Watermark{Kind: KindGit, GitHead: head, GitDirty: dirty, DirtyHash: hash}
}

func fsMark(files, maxMtimeMS, bytes uint64) Watermark {
	return Watermark{Kind: KindFilesystem, FileCount: files, MaxMtimeMS: maxMtimeMS, TotalBytes: bytes}
}

func u64(v uint64) *uint64 { return &v }

func TestAssessStalenessIndexMissing(t *testing.T) {
	out := AssessStaleness(gitMark("abc", false), false, false, nil)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonIndexMissing}, out.Reasons)
}

func TestAssessStalenessIndexCorrupt(t *testing.T) {
	mark := gitMark("abc", false)
	out := AssessStaleness(mark, true, true, &mark)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonIndexCorrupt}, out.Reasons)
}

func TestAssessStalenessWatermarkMissing(t *testing.T) {
	out := AssessStaleness(gitMark("abc", false), true, false, nil)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonWatermarkMissing}, out.Reasons)
}

func TestAssessStalenessGitHeadMismatch(t *testing.T) {
	idx := gitMark("aaa", false)
	out := AssessStaleness(gitMark("bbb", false), true, false, &idx)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonGitHeadMismatch}, out.Reasons)
}

func TestAssessStalenessGitDirtyMismatch(t *testing.T) {
	idx := gitMark("aaa", false)
	out := AssessStaleness(gitMark("aaa", true), true, false, &idx)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonGitDirtyMismatch}, out.Reasons)
}

func TestAssessStalenessGitDirtyHashMismatch(t *testing.T) {
	idx := gitMarkWithHash("aaa", true, u64(2))
	out := AssessStaleness(gitMarkWithHash("aaa", true, u64(1)), true, false, &idx)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonFilesystemChanged}, out.Reasons)
}

func TestAssessStalenessFilesystemChanged(t *testing.T) {
	idx := fsMark(10, 124, 50)
	out := AssessStaleness(fsMark(10, 123, 50), true, false, &idx)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonFilesystemChanged}, out.Reasons)
}

func TestAssessStalenessFreshWhenGitEqual(t *testing.T) {
	idx := gitMark("aaa", false)
	out := AssessStaleness(gitMark("aaa", false), true, false, &idx)
	assert.False(t, out.Stale)
	assert.Empty(t, out.Reasons)
}

func TestAssessStalenessFreshWhenFilesystemEqual(t *testing.T) {
	mark := fsMark(10, 123, 50)
	out := AssessStaleness(mark, true, false, &mark)
	assert.False(t, out.Stale)
	assert.Empty(t, out.Reasons)
}

func TestAssessStalenessMixedKindsAlwaysFilesystemChanged(t *testing.T) {
	idx := fsMark(10, 123, 50)
	out := AssessStaleness(gitMark("aaa", false), true, false, &idx)
	assert.True(t, out.Stale)
	assert.Equal(t, []StaleReason{StaleReasonFilesystemChanged}, out.Reasons)
}
