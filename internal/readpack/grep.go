package readpack

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/scanner"
)

// grepCursorState resumes a paginated grep from the file/line it left off
// at — the Go equivalent of text_search.rs's Filesystem cursor mode (the
// Corpus mode, which resumes from a cached chunk corpus, isn't ported: this
// build has no chunk-corpus cache standing between the router and the
// scanner, so every grep call re-walks the filesystem).
type grepCursorState struct {
	FileIndex  int `json:"file_index"`
	LineOffset int `json:"line_offset"`
}

// handleGrepIntent is a bounded, literal-substring "safe rg replacement"
// (spec §4.15's Grep intent), grounded on
// original_source's text_search.rs search_in_filesystem path, reusing
// internal/scanner for the .gitignore-respecting walk and the secret
// heuristic for fail-closed exclusion.
func handleGrepIntent(ctx context.Context, root string, req Request, resume *grepCursorState) (*GrepContextResult, *grepCursorState, error) {
	pattern := strings.TrimSpace(req.Pattern)
	if pattern == "" {
		return nil, nil, amanerrors.New(amanerrors.ErrCodeInvalidRequest, "pattern must not be empty", nil)
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	if maxResults > 1000 {
		maxResults = 1000
	}

	s, err := scanner.New()
	if err != nil {
		return nil, nil, amanerrors.New(amanerrors.ErrCodeInternal, "create scanner", err)
	}
	results, err := s.Scan(ctx, &scanner.ScanOptions{RootDir: root, RespectGitignore: true})
	if err != nil {
		return nil, nil, amanerrors.New(amanerrors.ErrCodeInternal, "scan for grep", err)
	}

	var files []*scanner.FileInfo
	for r := range results {
		if r.Error != nil || r.File == nil {
			continue
		}
		if matchesFilePattern(r.File.Path, req.FilePattern) {
			files = append(files, r.File)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	startFile, startLine := 0, 0
	if resume != nil {
		startFile, startLine = resume.FileIndex, resume.LineOffset
	}
	if startFile > len(files) {
		return nil, nil, amanerrors.New(amanerrors.ErrCodeInvalidCursor, "cursor out of range", nil)
	}

	out := &GrepContextResult{Pattern: pattern}
	var next *grepCursorState

	for fileIdx := startFile; fileIdx < len(files); fileIdx++ {
		if len(out.Hunks) >= maxResults {
			next = &grepCursorState{FileIndex: fileIdx, LineOffset: 0}
			out.Truncated = true
			break
		}
		f := files[fileIdx]
		if checkSecretPath(f.Path, req.AllowSecrets) != nil {
			continue
		}
		out.ScannedFiles++

		lineStart := 0
		if fileIdx == startFile {
			lineStart = startLine
		}
		hunks, lastLine, truncatedHere := grepLines(f, pattern, req.CaseSensitive, maxResults-len(out.Hunks), lineStart)
		if len(hunks) > 0 {
			out.MatchedFiles++
			out.Hunks = append(out.Hunks, hunks...)
		}
		if truncatedHere {
			next = &grepCursorState{FileIndex: fileIdx, LineOffset: lastLine}
			out.Truncated = true
			break
		}
	}

	return out, next, nil
}

func grepLines(f *scanner.FileInfo, pattern string, caseSensitive bool, remaining int, startLine int) ([]GrepHunk, int, bool) {
	file, err := os.Open(f.AbsPath)
	if err != nil {
		return nil, 0, false
	}
	defer file.Close()

	needle := pattern
	if !caseSensitive {
		needle = strings.ToLower(pattern)
	}

	var hits []GrepHunk
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := -1
	for sc.Scan() {
		lineNo++
		if lineNo < startLine {
			continue
		}
		line := sc.Text()
		haystack := line
		if !caseSensitive {
			haystack = strings.ToLower(line)
		}
		if !strings.Contains(haystack, needle) {
			continue
		}
		if len(hits) >= remaining {
			return hits, lineNo, true
		}
		hits = append(hits, GrepHunk{File: f.Path, StartLine: lineNo + 1, Content: line})
	}
	return hits, 0, false
}

func matchesFilePattern(path, pattern string) bool {
	if pattern == "" {
		return true
	}
	return strings.Contains(path, strings.TrimSuffix(pattern, "/"))
}
