package readpack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMemoryIntentReturnsEmptyForMissingNotebook(t *testing.T) {
	root := t.TempDir()
	result, err := handleMemoryIntent(root, Request{Question: "anything"})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestHandleMemoryIntentScoresByKeywordOverlap(t *testing.T) {
	root := t.TempDir()
	nb := agentNotebook{
		Version: notebookVersion,
		RepoID:  "x",
		Anchors: []notebookAnchor{
			{ID: "1", Title: "auth flow", Body: "login uses JWT tokens", HitCount: 2},
			{ID: "2", Title: "unrelated", Body: "nothing to do with auth", HitCount: 0},
		},
	}
	path := notebookPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	raw, err := json.Marshal(nb)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	result, err := handleMemoryIntent(root, Request{Question: "how does JWT auth work"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "auth flow", result.Hits[0].Title)
}
