package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/watermark"
)

type fakeIndexer struct {
	calls    int
	buildsAt func(storePath string)
	err      error
}

func (f *fakeIndexer) IndexWithBudget(ctx context.Context, root string, budget time.Duration) error {
	f.calls++
	return f.err
}

func writeStore(t *testing.T, storePath string, mark watermark.Watermark) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(storePath), 0755))
	require.NoError(t, os.WriteFile(storePath, []byte("fake-index"), 0644))
	require.NoError(t, watermark.WriteIndexWatermark(storePath, mark))
}

func TestCheckFailPolicyBlocksOnMissingIndex(t *testing.T) {
	root := t.TempDir()
	storePath := filepath.Join(root, ".agents", "index.json")

	_, err := Check(context.Background(), Config{ProjectRoot: root, StorePath: storePath}, PolicyFail)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexMissing, errors.GetCode(err))
}

func TestCheckWarnPolicyProceedsWithHintWhenStale(t *testing.T) {
	root := t.TempDir()
	storePath := filepath.Join(root, ".agents", "index.json")
	writeStore(t, storePath, watermark.Watermark{Kind: watermark.KindFilesystem, FileCount: 999})

	result, err := Check(context.Background(), Config{ProjectRoot: root, StorePath: storePath}, PolicyWarn)
	require.NoError(t, err)
	assert.True(t, result.IndexState.Stale)
	assert.NotEmpty(t, result.Hints)
}

func TestCheckAutoPolicyTriggersReindexWhenMissing(t *testing.T) {
	root := t.TempDir()
	storePath := filepath.Join(root, ".agents", "index.json")

	indexer := &fakeIndexer{}
	_, err := Check(context.Background(), Config{
		ProjectRoot:  root,
		StorePath:    storePath,
		MaxReindexMS: 1000,
		Indexer:      indexer,
	}, PolicyAuto)

	require.Error(t, err) // fake indexer never actually writes the store
	assert.Equal(t, errors.ErrCodeIndexMissing, errors.GetCode(err))
	assert.Equal(t, 1, indexer.calls)
}

func TestCheckAutoPolicyProceedsWhenFresh(t *testing.T) {
	root := t.TempDir()
	storePath := filepath.Join(root, ".agents", "index.json")

	mark, err := watermark.ComputeProjectWatermark(context.Background(), root)
	require.NoError(t, err)
	writeStore(t, storePath, mark)

	indexer := &fakeIndexer{}
	result, err := Check(context.Background(), Config{
		ProjectRoot:  root,
		StorePath:    storePath,
		MaxReindexMS: 1000,
		Indexer:      indexer,
	}, PolicyAuto)

	require.NoError(t, err)
	assert.False(t, result.IndexState.Stale)
	assert.Equal(t, 0, indexer.calls)
}
