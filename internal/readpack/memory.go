package readpack

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// notebookVersion matches the on-disk schema version; bumped on incompatible changes.
const notebookVersion = 1

const notebookDirName = "notebook"
const notebookFileName = "notebook_v1.json"

// notebookAnchor is a trimmed port of notebook_types.rs's AgentNotebook
// anchor shape: a named observation with supporting evidence pointers.
// The full original also tracks runbooks and staleness-by-source-hash;
// this build keeps only what the Memory intent needs to retrieve —
// writing/curating a notebook is a separate concern from read_pack.
type notebookAnchor struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags,omitempty"`
	Files     []string `json:"files,omitempty"`
	HitCount  int      `json:"hit_count"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

type agentNotebook struct {
	Version int              `json:"version"`
	RepoID  string           `json:"repo_id"`
	Anchors []notebookAnchor `json:"anchors"`
}

// notebookPath resolves the project-scoped notebook location under the
// project's context dir, mirroring notebook_store.rs's Project scope.
func notebookPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".aman", notebookDirName, notebookFileName)
}

func repoIdentity(root string) string {
	cmd := exec.Command("git", "rev-parse", "--git-common-dir")
	cmd.Dir = root
	if out, err := cmd.Output(); err == nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed != "" {
			abs := trimmed
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(root, abs)
			}
			if canon, err := filepath.Abs(abs); err == nil {
				return sha256Hex(canon)
			}
		}
	}
	canon, err := filepath.Abs(root)
	if err != nil {
		canon = root
	}
	return sha256Hex(canon)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// loadNotebook reads the notebook file if present; a missing file is not an
// error (a project simply hasn't accumulated any notes yet).
func loadNotebook(projectRoot string) (*agentNotebook, error) {
	path := notebookPath(projectRoot)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &agentNotebook{Version: notebookVersion, RepoID: repoIdentity(projectRoot)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notebook %s: %w", path, err)
	}
	var nb agentNotebook
	if err := json.Unmarshal(raw, &nb); err != nil {
		return nil, fmt.Errorf("parse notebook %s: %w", path, err)
	}
	return &nb, nil
}

// handleMemoryIntent scores notebook anchors against the question/query
// text by keyword overlap and recency of use (hit_count), returning the
// top matches. Unlike notebook_store.rs's curation tools, this is
// read-only: the Memory intent surfaces existing notes, it doesn't write
// new ones.
func handleMemoryIntent(projectRoot string, req Request) (*MemoryResult, error) {
	nb, err := loadNotebook(projectRoot)
	if err != nil {
		return &MemoryResult{Source: notebookPath(projectRoot)}, nil
	}

	text := req.Question
	if text == "" {
		text = req.Query
	}
	words := significantWords(text)

	hits := make([]MemoryHit, 0, len(nb.Anchors))
	for _, a := range nb.Anchors {
		score := scoreAnchor(a, words)
		if len(words) > 0 && score <= 0 {
			continue
		}
		hits = append(hits, MemoryHit{
			Kind:    "anchor",
			Title:   a.Title,
			Excerpt: truncateToChars(a.Body, 400),
			Score:   score,
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	limit := req.MaxResults
	if limit <= 0 {
		limit = 10
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	return &MemoryResult{Source: notebookPath(projectRoot), Hits: hits}, nil
}

func scoreAnchor(a notebookAnchor, words []string) float64 {
	if len(words) == 0 {
		return float64(a.HitCount)
	}
	haystack := strings.ToLower(a.Title + " " + a.Body + " " + strings.Join(a.Tags, " "))
	var matched int
	for _, w := range words {
		if strings.Contains(haystack, strings.ToLower(w)) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) + 0.1*float64(a.HitCount)
}
