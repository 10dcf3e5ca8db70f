package readpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorPayloadRoundTrips(t *testing.T) {
	state := grepCursorState{FileIndex: 3, LineOffset: 42}
	payload, err := encodeCursorPayload(toolTag, "/repo", "*.go", false, state)
	require.NoError(t, err)

	env, err := decodeCursorPayload(payload, toolTag, "/repo")
	require.NoError(t, err)

	var decoded grepCursorState
	require.NoError(t, env.decodeState(&decoded))
	assert.Equal(t, state, decoded)
}

func TestCursorRejectsDifferentRoot(t *testing.T) {
	payload, err := encodeCursorPayload(toolTag, "/repo-a", "", false, grepCursorState{})
	require.NoError(t, err)

	_, err = decodeCursorPayload(payload, toolTag, "/repo-b")
	require.Error(t, err)
}

func TestCursorRejectsDifferentTool(t *testing.T) {
	payload, err := encodeCursorPayload("other_tool", "/repo", "", false, grepCursorState{})
	require.NoError(t, err)

	_, err = decodeCursorPayload(payload, toolTag, "/repo")
	require.Error(t, err)
}

func TestCursorRestartsPaginationOnFilePatternChange(t *testing.T) {
	env, err := encodeCursorPayload(toolTag, "/repo", "*.go", false, grepCursorState{})
	require.NoError(t, err)
	decoded, err := decodeCursorPayload(env, toolTag, "/repo")
	require.NoError(t, err)

	assert.False(t, decoded.restartsPagination("*.go", false))
	assert.True(t, decoded.restartsPagination("*.ts", false))
	assert.True(t, decoded.restartsPagination("*.go", true))
}
