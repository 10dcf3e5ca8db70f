package readpack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleOnboardingIntentSummarizesProject(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "cmd/app/main.go", "package main\n\nfunc main() {}\n")
	writeTestFile(t, root, "internal/foo/foo.go", "package foo\n")

	result, err := handleOnboardingIntent(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Files)
	assert.Contains(t, result.EntryPoints, "cmd/app/main.go")
	assert.Contains(t, result.KeyDirs, "internal")
	assert.Contains(t, result.KeyDirs, "cmd")
}

func TestLooksLikeEntryFileExcludesTestsAndDocs(t *testing.T) {
	assert.False(t, looksLikeEntryFile("internal/tests/main.go"))
	assert.False(t, looksLikeEntryFile("README.md"))
	assert.True(t, looksLikeEntryFile("cmd/main.go"))
	assert.True(t, looksLikeEntryFile("src/index.ts"))
}
