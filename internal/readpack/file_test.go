package readpack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestHandleFileIntentReturnsRequestedRange(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "main.go", "line1\nline2\nline3\nline4\nline5\n")

	result, err := handleFileIntent(root, Request{File: "main.go", StartLine: 2, EndLine: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, result.StartLine)
	assert.Equal(t, 4, result.EndLine)
	assert.Equal(t, "line2\nline3\nline4", result.Content)
	assert.False(t, result.Truncated)
}

func TestHandleFileIntentRefusesSecretPathWithoutOverride(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, ".env", "SECRET=xyz\n")

	_, err := handleFileIntent(root, Request{File: ".env"})
	require.Error(t, err)

	result, err := handleFileIntent(root, Request{File: ".env", AllowSecrets: true})
	require.NoError(t, err)
	assert.True(t, strings.Contains(result.Content, "SECRET"))
}

func TestHandleFileIntentRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	_, err := handleFileIntent(root, Request{File: "../outside.go"})
	require.Error(t, err)
}
