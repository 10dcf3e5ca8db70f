package rootsession

import "strings"

// Initialized reports whether this connection has completed an MCP
// initialize handshake. Some clients reuse a shared-daemon transport
// across working directories and issue tool calls without
// re-initializing; in daemon mode callers must fail closed on this.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Session) RootsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootsPending
}

func (s *Session) SetRootsPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootsPending = pending
}

func (s *Session) MCPRootsAmbiguous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mcpRootsAmbiguous
}

func (s *Session) SetMCPRootsAmbiguous(value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mcpRootsAmbiguous = value
}

// SetMCPWorkspaceRoots records the canonical workspace roots reported by
// MCP roots/list. When non-empty, any resolved root must fall within one
// of these directories.
func (s *Session) SetMCPWorkspaceRoots(roots []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mcpWorkspaceRoots = append([]string(nil), roots...)
}

func (s *Session) MCPWorkspaceRoots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.mcpWorkspaceRoots...)
}

// RootAllowedByWorkspace reports whether root falls within a declared MCP
// workspace root. An empty workspace-root set allows anything.
func (s *Session) RootAllowedByWorkspace(root string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.mcpWorkspaceRoots) == 0 {
		return true
	}
	for _, candidate := range s.mcpWorkspaceRoots {
		if pathStartsWith(root, candidate) {
			return true
		}
	}
	return false
}

func pathStartsWith(root, candidate string) bool {
	root = strings.TrimRight(root, "/")
	candidate = strings.TrimRight(candidate, "/")
	return root == candidate || strings.HasPrefix(root, candidate+"/")
}

func (s *Session) RootMismatchError() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootMismatchError == nil {
		return "", false
	}
	return *s.rootMismatchError, true
}

// SetRootMismatchError records the first root-mismatch message seen;
// subsequent calls are no-ops until the next SetRoot or
// ResetForInitialize, matching the "latch until resolved" behavior a
// fail-closed session needs.
func (s *Session) SetRootMismatchError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootMismatchError == nil {
		s.rootMismatchError = &message
	}
}

// Root returns the session's bound root and its display form, or
// ok == false if no root has been set yet.
func (s *Session) Root() (root string, display string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil || s.rootDisplay == nil {
		return "", "", false
	}
	return *s.root, *s.rootDisplay, true
}

func (s *Session) FocusFile() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focusFile == nil {
		return "", false
	}
	return *s.focusFile, true
}

func (s *Session) LastRootSetSnapshot() (RootUpdateSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRootSet == nil {
		return RootUpdateSnapshot{}, false
	}
	return s.lastRootSet.snapshot(), true
}

func (s *Session) LastRootUpdateSnapshot() (RootUpdateSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRootUpdate == nil {
		return RootUpdateSnapshot{}, false
	}
	return s.lastRootUpdate.snapshot(), true
}

// SeenSnippetFilesSnapshot returns the set of files already shown to the
// caller this session, so a handler can avoid repeating the same anchors
// across multiple calls.
func (s *Session) SeenSnippetFilesSnapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.seenSnippetFilesSet))
	for k := range s.seenSnippetFilesSet {
		out[k] = struct{}{}
	}
	return out
}

// ResetForInitialize clears all session state on a fresh MCP initialize,
// including the working set, and marks the session initialized.
func (s *Session) ResetForInitialize(rootsPending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.root = nil
	s.rootDisplay = nil
	s.focusFile = nil
	s.rootsPending = rootsPending
	s.mcpRootsAmbiguous = false
	s.mcpWorkspaceRoots = nil
	s.rootMismatchError = nil
	s.lastRootSet = nil
	s.lastRootUpdate = nil
	s.clearWorkingSetLocked()
}

// SetRoot binds the session to root/rootDisplay, recording why (source)
// and clearing the per-session working set whenever the root actually
// changes.
func (s *Session) SetRoot(root, rootDisplay string, focusFile *string, source UpdateSource, requestedPath, sourceTool *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rootChanged := s.root == nil || *s.root != root
	s.root = &root
	s.rootDisplay = &rootDisplay
	s.focusFile = focusFile
	s.mcpRootsAmbiguous = false
	s.rootMismatchError = nil
	s.noteRootUpdateLocked(source, requestedPath, sourceTool)
	if rootChanged {
		s.clearWorkingSetLocked()
	}
}

func (s *Session) noteRootUpdateLocked(source UpdateSource, requestedPath, sourceTool *string) {
	update := &rootUpdate{
		atMS:          unixMS(),
		source:        source,
		requestedPath: requestedPath,
		sourceTool:    sourceTool,
	}
	if source == UpdateSourceRootSet {
		copied := *update
		s.lastRootSet = &copied
	}
	s.lastRootUpdate = update
}

func (s *Session) clearWorkingSetLocked() {
	s.seenSnippetFiles = nil
	s.seenSnippetFilesSet = make(map[string]struct{})
}

// NoteSeenSnippetFile records file as shown this session, evicting the
// oldest entry once more than maxSeenSnippetFiles are tracked.
func (s *Session) NoteSeenSnippetFile(file string) {
	trimmed := strings.TrimSpace(file)
	if trimmed == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenSnippetFilesSet == nil {
		s.seenSnippetFilesSet = make(map[string]struct{})
	}
	if _, exists := s.seenSnippetFilesSet[trimmed]; exists {
		return
	}

	s.seenSnippetFilesSet[trimmed] = struct{}{}
	s.seenSnippetFiles = append(s.seenSnippetFiles, trimmed)
	for len(s.seenSnippetFiles) > maxSeenSnippetFiles {
		oldest := s.seenSnippetFiles[0]
		s.seenSnippetFiles = s.seenSnippetFiles[1:]
		delete(s.seenSnippetFilesSet, oldest)
	}
}

// TrimmedNonEmpty returns input trimmed, or ok=false if it is empty or
// only whitespace.
func TrimmedNonEmpty(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}
