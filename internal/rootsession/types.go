// Package rootsession tracks per-connection project-root state: which
// root a session is bound to, how it got there, and the ephemeral
// per-session working set (recently shown snippet files) that root
// changes and re-initialization must clear.
package rootsession

import (
	"sync"
	"time"
)

// UpdateSource records why a session's root changed, for diagnostics
// surfaced back to the caller (e.g. in an Onboarding response's meta).
type UpdateSource string

const (
	UpdateSourceRootSet     UpdateSource = "root_set"
	UpdateSourceResolvePath UpdateSource = "resolve_path"
	UpdateSourceMCPRoots    UpdateSource = "mcp_roots"
	UpdateSourceCwdFallback UpdateSource = "cwd_fallback"
	UpdateSourceEnvOverride UpdateSource = "env_override"
)

// maxSeenSnippetFiles bounds the per-session "already shown" working set
// so a very long-lived connection doesn't grow this list unbounded.
const maxSeenSnippetFiles = 160

// rootUpdate is one recorded root change.
type rootUpdate struct {
	atMS          int64
	source        UpdateSource
	requestedPath *string
	sourceTool    *string
}

func (u rootUpdate) snapshot() RootUpdateSnapshot {
	return RootUpdateSnapshot{
		AtMS:          u.atMS,
		Source:        u.source,
		RequestedPath: u.requestedPath,
		SourceTool:    u.sourceTool,
	}
}

// RootUpdateSnapshot is the read-only view of a rootUpdate handed back to
// callers.
type RootUpdateSnapshot struct {
	AtMS          int64
	Source        UpdateSource
	RequestedPath *string
	SourceTool    *string
}

// Session is the mutable per-connection root/session state. Zero value is
// a valid, uninitialized session.
type Session struct {
	mu sync.Mutex

	initialized bool

	root         *string
	rootDisplay  *string
	focusFile    *string
	rootsPending bool

	mcpRootsAmbiguous  bool
	mcpWorkspaceRoots  []string
	rootMismatchError  *string

	lastRootSet    *rootUpdate
	lastRootUpdate *rootUpdate

	seenSnippetFiles    []string
	seenSnippetFilesSet map[string]struct{}
}

func unixMS() int64 { return time.Now().UnixMilli() }
