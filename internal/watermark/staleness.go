package watermark

// AssessStaleness compares the project's current fingerprint against what a
// persisted index claims, producing reasons in a fixed priority order:
// IndexMissing, IndexCorrupt, WatermarkMissing, GitHeadMismatch,
// GitDirtyMismatch, FilesystemChanged. A watermark-kind mismatch (comparing
// a Git watermark against a Filesystem one, or vice versa) always reports as
// FilesystemChanged — the two kinds carry no comparable fields, so a mixed
// pair is conservatively treated as "something changed".
func AssessStaleness(projectMark Watermark, indexExists, indexCorrupt bool, indexMark *Watermark) StaleAssessment {
	var reasons []StaleReason

	if !indexExists {
		reasons = append(reasons, StaleReasonIndexMissing)
	}
	if indexCorrupt {
		reasons = append(reasons, StaleReasonIndexCorrupt)
	}

	switch {
	case indexMark == nil:
		if indexExists {
			reasons = append(reasons, StaleReasonWatermarkMissing)
		}
	case indexMark.Kind == KindGit && projectMark.Kind == KindGit:
		if indexMark.GitHead != projectMark.GitHead {
			reasons = append(reasons, StaleReasonGitHeadMismatch)
		}
		if indexMark.GitDirty != projectMark.GitDirty {
			reasons = append(reasons, StaleReasonGitDirtyMismatch)
		}
		if !dirtyHashEqual(indexMark.DirtyHash, projectMark.DirtyHash) {
			reasons = append(reasons, StaleReasonFilesystemChanged)
		}
	case indexMark.Kind == KindFilesystem && projectMark.Kind == KindFilesystem:
		if indexMark.FileCount != projectMark.FileCount ||
			indexMark.MaxMtimeMS != projectMark.MaxMtimeMS ||
			indexMark.TotalBytes != projectMark.TotalBytes {
			reasons = append(reasons, StaleReasonFilesystemChanged)
		}
	default:
		reasons = append(reasons, StaleReasonFilesystemChanged)
	}

	return StaleAssessment{Stale: len(reasons) > 0, Reasons: reasons}
}

func dirtyHashEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
