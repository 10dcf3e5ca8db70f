package rootsession

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// markerFiles are ancestor-walk markers, checked in this order, for step 4
// of root resolution.
var markerFiles = []string{
	".git", "AGENTS.md", "Cargo.toml", "package.json", "pyproject.toml",
	"go.mod", "pom.xml", "build.gradle", "build.gradle.kts", "CMakeLists.txt", "Makefile",
}

// envRootNames are checked, in order, for step 2 of root resolution;
// CONTEXT_FINDER_* variants are honored as legacy aliases of the same name.
var envRootNames = []string{"CONTEXT_ROOT", "CONTEXT_PROJECT_ROOT"}

// ResolveInput carries everything Resolve needs to apply spec §4.16's root
// resolution order for one request.
type ResolveInput struct {
	// ExplicitPath is the request's `path` argument, if any (step 1).
	ExplicitPath string
	// WorkspaceRoots are the roots declared by the client on `initialize`
	// (step 3); len==1 is used directly, len>1 is ambiguous.
	WorkspaceRoots []string
	// Cwd is used only when SharedDaemon is false (step 5).
	Cwd string
	// SharedDaemon disables the cwd fallback (step 5) when true.
	SharedDaemon bool
}

// Resolved is the outcome of a successful Resolve.
type Resolved struct {
	Root    string
	Display string
	Source  UpdateSource
}

// ErrRootsAmbiguous is returned when multiple MCP workspace roots were
// declared and no explicit path disambiguates them.
type ErrRootsAmbiguous struct{ Roots []string }

func (e *ErrRootsAmbiguous) Error() string {
	return fmt.Sprintf("mcp_roots_ambiguous: %d workspace roots declared, explicit path required", len(e.Roots))
}

// ErrNoRootResolved is returned when every resolution step is exhausted.
var ErrNoRootResolved = fmt.Errorf("no project root could be resolved")

// Resolve applies spec §4.16's root resolution order: explicit path,
// then env overrides, then MCP-declared workspace roots, then an ancestor
// marker-file walk starting from the explicit path or cwd, then (outside
// shared-daemon mode) cwd itself.
func Resolve(in ResolveInput) (Resolved, error) {
	if path, ok := TrimmedNonEmpty(in.ExplicitPath); ok {
		abs, err := canonicalize(path)
		if err != nil {
			return Resolved{}, fmt.Errorf("canonicalize explicit path %q: %w", path, err)
		}
		return Resolved{Root: abs, Display: abs, Source: UpdateSourceResolvePath}, nil
	}

	if envPath, ok := envOverride(); ok {
		abs, err := canonicalize(envPath)
		if err != nil {
			return Resolved{}, fmt.Errorf("canonicalize env root %q: %w", envPath, err)
		}
		return Resolved{Root: abs, Display: abs, Source: UpdateSourceEnvOverride}, nil
	}

	if len(in.WorkspaceRoots) == 1 {
		abs, err := canonicalize(in.WorkspaceRoots[0])
		if err != nil {
			return Resolved{}, fmt.Errorf("canonicalize workspace root: %w", err)
		}
		return Resolved{Root: abs, Display: abs, Source: UpdateSourceMCPRoots}, nil
	}
	if len(in.WorkspaceRoots) > 1 {
		return Resolved{}, &ErrRootsAmbiguous{Roots: in.WorkspaceRoots}
	}

	if in.Cwd != "" {
		if found, ok := walkAncestorsForMarker(in.Cwd); ok {
			abs, err := canonicalize(found)
			if err != nil {
				return Resolved{}, fmt.Errorf("canonicalize marker root: %w", err)
			}
			return Resolved{Root: abs, Display: abs, Source: UpdateSourceResolvePath}, nil
		}
	}

	if !in.SharedDaemon && in.Cwd != "" {
		abs, err := canonicalize(in.Cwd)
		if err != nil {
			return Resolved{}, fmt.Errorf("canonicalize cwd: %w", err)
		}
		return Resolved{Root: abs, Display: abs, Source: UpdateSourceCwdFallback}, nil
	}

	return Resolved{}, ErrNoRootResolved
}

func envOverride() (string, bool) {
	for _, name := range envRootNames {
		if v, ok := TrimmedNonEmpty(os.Getenv(name)); ok {
			return v, true
		}
		legacy := "CONTEXT_FINDER_" + strings.TrimPrefix(name, "CONTEXT_")
		if v, ok := TrimmedNonEmpty(os.Getenv(legacy)); ok {
			return v, true
		}
	}
	return "", false
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// A not-yet-existent path (e.g. in tests) still canonicalizes to
		// its absolute form; only a real I/O error beyond "not found"
		// should fail resolution.
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// walkAncestorsForMarker walks from start up to the filesystem root,
// returning the first directory containing one of markerFiles.
func walkAncestorsForMarker(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}

	for {
		for _, marker := range markerFiles {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Fingerprint computes the root_fingerprint spec §6 requires on every
// cursor and `.context` note line: the first 8 bytes of
// sha256(rootDisplay) read as a big-endian u64.
func Fingerprint(rootDisplay string) uint64 {
	sum := sha256.Sum256([]byte(rootDisplay))
	return binary.BigEndian.Uint64(sum[:8])
}
