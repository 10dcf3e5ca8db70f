package readpack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
)

// maxFileSliceBytes caps how much of a file handleFileIntent will read,
// mirroring text_search.rs's MAX_FILE_BYTES guard against giant files.
const maxFileSliceBytes = 2_000_000

// handleFileIntent reads a verbatim line-range slice of one file, grounded
// on the original implementation's file-slice render shape
// (render_section's FileSlice arm) and the §7 ForbiddenFile secret check.
func handleFileIntent(root string, req Request) (*FileSliceResult, error) {
	rel := strings.TrimSpace(req.File)
	if rel == "" {
		return nil, amanerrors.New(amanerrors.ErrCodeInvalidRequest, "file must not be empty", nil)
	}
	if strings.ContainsAny(rel, "\x00") {
		return nil, amanerrors.New(amanerrors.ErrCodeInvalidRequest, "file path contains a control character", nil)
	}

	if err := checkSecretPath(rel, req.AllowSecrets); err != nil {
		return nil, err
	}

	abs := filepath.Join(root, rel)
	if !isWithinRoot(root, abs) {
		return nil, amanerrors.New(amanerrors.ErrCodeInvalidRequest, "file path escapes the project root", nil)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", rel), err)
	}
	if info.Size() > maxFileSliceBytes {
		return nil, amanerrors.New(amanerrors.ErrCodeFileTooLarge, fmt.Sprintf("file too large to slice: %s (%d bytes)", rel, info.Size()), nil)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, amanerrors.New(amanerrors.ErrCodeFilePermission, fmt.Sprintf("could not read file: %s", rel), err)
	}

	lines := strings.Split(string(raw), "\n")
	start := req.StartLine
	if start <= 0 {
		start = 1
	}
	end := req.EndLine
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	truncated := false
	if start > len(lines) {
		start = len(lines)
	}
	const maxSliceLines = 2000
	if end-start+1 > maxSliceLines {
		end = start + maxSliceLines - 1
		truncated = true
	}

	slice := lines[start-1 : end]
	return &FileSliceResult{
		File:      rel,
		StartLine: start,
		EndLine:   end,
		Content:   strings.Join(slice, "\n"),
		Truncated: truncated,
	}, nil
}

func isWithinRoot(root, candidate string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	candAbs, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, candAbs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
