package watermark

import (
	"context"
	"fmt"
	"os"
)

// BuildIndexState assembles the full freshness picture for a project: its
// current fingerprint, what the persisted index at storePath claims about
// itself, and whether the two agree. indexCorrupt lets a caller that has
// already attempted (and failed) to load the store itself report
// IndexCorrupt instead of the weaker IndexMissing/WatermarkMissing reasons.
func BuildIndexState(ctx context.Context, projectRoot, storePath, modelID, profile string, indexCorrupt bool) (IndexState, error) {
	projectMark, err := ComputeProjectWatermark(ctx, projectRoot)
	if err != nil {
		return IndexState{}, fmt.Errorf("compute project watermark: %w", err)
	}

	snapshot, indexMark, err := buildIndexSnapshot(storePath)
	if err != nil {
		return IndexState{}, err
	}

	assessment := AssessStaleness(projectMark, snapshot.Exists, indexCorrupt, indexMark)

	root := projectRoot
	return IndexState{
		SchemaVersion:    IndexStateSchemaVersion,
		ProjectRoot:      &root,
		ModelID:          modelID,
		Profile:          profile,
		ProjectWatermark: projectMark,
		Index:            snapshot,
		Stale:            assessment.Stale,
		StaleReasons:     assessment.Reasons,
	}, nil
}

// buildIndexSnapshot inspects storePath on disk and its sidecar
// watermark.json, returning both the snapshot and (when present) the
// watermark it carries, suitable for AssessStaleness.
func buildIndexSnapshot(storePath string) (IndexSnapshot, *Watermark, error) {
	info, statErr := os.Stat(storePath)
	exists := statErr == nil

	snapshot := IndexSnapshot{Exists: exists}
	if exists {
		path := storePath
		snapshot.Path = &path
		mtimeMS := info.ModTime().UnixMilli()
		snapshot.MtimeMS = &mtimeMS
	}

	persisted, err := ReadIndexWatermark(storePath)
	if err != nil {
		return IndexSnapshot{}, nil, fmt.Errorf("read index watermark: %w", err)
	}
	if persisted == nil {
		return snapshot, nil, nil
	}

	builtAt := persisted.BuiltAtUnixMS
	snapshot.BuiltAtUnixMS = &builtAt
	snapshot.Watermark = &persisted.Watermark
	return snapshot, &persisted.Watermark, nil
}
