package readpack

import (
	"encoding/json"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/rootsession"
)

// cursorVersion is bumped whenever envelope shape changes incompatibly.
const cursorVersion = 1

// cursorEnvelope is the decoded form of the payload cursorstore.Store
// resolves a compact "M:" alias to. Spec §4.15's cursor discipline: every
// cursor carries a tool tag and root_fingerprint; a mismatch on either is
// invalid_cursor, while a mismatched file_pattern/allow_secrets instead
// restarts pagination from the beginning.
type cursorEnvelope struct {
	V               int             `json:"v"`
	Tool            string          `json:"tool"`
	RootFingerprint uint64          `json:"root_fingerprint"`
	FilePattern     string          `json:"file_pattern,omitempty"`
	AllowSecrets    bool            `json:"allow_secrets,omitempty"`
	State           json.RawMessage `json:"state,omitempty"`
}

func encodeCursorPayload(tool, rootDisplay string, filePattern string, allowSecrets bool, state any) ([]byte, error) {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeInternal, "encode cursor state", err)
	}
	env := cursorEnvelope{
		V:               cursorVersion,
		Tool:            tool,
		RootFingerprint: rootsession.Fingerprint(rootDisplay),
		FilePattern:     filePattern,
		AllowSecrets:    allowSecrets,
		State:           stateBytes,
	}
	return json.Marshal(env)
}

// decodeCursorPayload validates the tool tag and root_fingerprint strictly
// (mismatch is invalid_cursor) and reports whether the file_pattern/
// allow_secrets match the current request — a mismatch there is not fatal,
// it just means pagination restarts from the beginning.
func decodeCursorPayload(payload []byte, tool, rootDisplay string) (cursorEnvelope, error) {
	var env cursorEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return cursorEnvelope{}, amanerrors.New(amanerrors.ErrCodeInvalidCursor, "malformed cursor payload", err)
	}
	if env.Tool != tool {
		return cursorEnvelope{}, amanerrors.New(amanerrors.ErrCodeInvalidCursor, "cursor was issued for a different tool", nil).
			WithDetail("expected_tool", tool).WithDetail("cursor_tool", env.Tool)
	}
	want := rootsession.Fingerprint(rootDisplay)
	if env.RootFingerprint != want {
		return cursorEnvelope{}, amanerrors.New(amanerrors.ErrCodeInvalidCursor, "cursor was issued for a different project root", nil)
	}
	return env, nil
}

func (e cursorEnvelope) restartsPagination(filePattern string, allowSecrets bool) bool {
	return e.FilePattern != filePattern || e.AllowSecrets != allowSecrets
}

func (e cursorEnvelope) decodeState(out any) error {
	if len(e.State) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.State, out); err != nil {
		return amanerrors.New(amanerrors.ErrCodeInvalidCursor, "malformed cursor state", err)
	}
	return nil
}
