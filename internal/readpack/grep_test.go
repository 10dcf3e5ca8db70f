package readpack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGrepIntentFindsMatches(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.go", "package a\n\nfunc Foo() {}\n")
	writeTestFile(t, root, "b.go", "package b\n\nfunc Bar() {}\n")

	result, next, err := handleGrepIntent(context.Background(), root, Request{Pattern: "func"}, nil)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, 2, result.MatchedFiles)
	assert.Len(t, result.Hunks, 2)
}

func TestHandleGrepIntentPaginatesWithMaxResults(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.go", "func A() {}\nfunc B() {}\nfunc C() {}\n")

	result, next, err := handleGrepIntent(context.Background(), root, Request{Pattern: "func", MaxResults: 2}, nil)
	require.NoError(t, err)
	assert.Len(t, result.Hunks, 2)
	require.NotNil(t, next)
	assert.True(t, result.Truncated)

	result2, _, err := handleGrepIntent(context.Background(), root, Request{Pattern: "func", MaxResults: 2}, next)
	require.NoError(t, err)
	require.Len(t, result2.Hunks, 1)
	assert.Equal(t, "func C() {}", result2.Hunks[0].Content)
}

func TestHandleGrepIntentSkipsSecretFiles(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, ".env", "SECRET_TOKEN=abc\n")
	writeTestFile(t, root, "a.go", "// SECRET_TOKEN reference\n")

	result, _, err := handleGrepIntent(context.Background(), root, Request{Pattern: "SECRET_TOKEN"}, nil)
	require.NoError(t, err)
	for _, hunk := range result.Hunks {
		assert.NotEqual(t, ".env", hunk.File)
	}
}

func TestHandleGrepIntentRejectsEmptyPattern(t *testing.T) {
	root := t.TempDir()
	_, _, err := handleGrepIntent(context.Background(), root, Request{Pattern: "  "}, nil)
	require.Error(t, err)
}
