package watermark

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/scanner"
)

// indexWatermarkFileName is the sidecar file name written next to a
// persisted index store.
const indexWatermarkFileName = "watermark.json"

// Git probing must stay cheap: some repos (dataset-heavy or with many
// untracked files) make `git status` slow enough to stall indexing, so
// probing falls back to a filesystem watermark past these deadlines.
const (
	gitHeadTimeout   = 1 * time.Second
	gitStatusTimeout = 2 * time.Second
)

// maxDirtyPathsForHash bounds how many dirty paths are mixed into the dirty
// hash so a repo with a huge uncommitted changeset doesn't make every
// freshness check slow.
const maxDirtyPathsForHash = 512

// PersistedIndexWatermark is the on-disk shape of watermark.json.
type PersistedIndexWatermark struct {
	BuiltAtUnixMS int64     `json:"built_at_unix_ms"`
	Watermark     Watermark `json:"watermark"`
}

// IndexWatermarkPathForStore derives watermark.json's path from the
// directory containing a vector/BM25 store file.
func IndexWatermarkPathForStore(storePath string) (string, error) {
	if storePath == "" {
		return "", fmt.Errorf("store path has no parent")
	}
	return filepath.Join(filepath.Dir(storePath), indexWatermarkFileName), nil
}

// WriteIndexWatermark persists mark next to storePath, atomically (temp
// file + rename), stamped with the current time.
func WriteIndexWatermark(storePath string, mark Watermark) error {
	path, err := IndexWatermarkPathForStore(storePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create watermark dir: %w", err)
	}

	persisted := PersistedIndexWatermark{BuiltAtUnixMS: unixNowMS(), Watermark: mark}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit watermark: %w", err)
	}
	return nil
}

// ReadIndexWatermark reads watermark.json next to storePath. A missing file
// is not an error: it returns (nil, nil) so callers can treat "no watermark
// yet" as WatermarkMissing rather than a hard failure.
func ReadIndexWatermark(storePath string) (*PersistedIndexWatermark, error) {
	path, err := IndexWatermarkPathForStore(storePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	var persisted PersistedIndexWatermark
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("decode watermark: %w", err)
	}
	return &persisted, nil
}

// ComputeProjectWatermark fingerprints projectRoot: a bounded git probe
// first, falling back to a filesystem aggregate when git is unavailable,
// times out, or the directory isn't a repo.
func ComputeProjectWatermark(ctx context.Context, projectRoot string) (Watermark, error) {
	if mark, ok := tryComputeGitWatermark(ctx, projectRoot); ok {
		return mark, nil
	}
	return computeFilesystemWatermark(ctx, projectRoot)
}

func tryComputeGitWatermark(ctx context.Context, projectRoot string) (Watermark, bool) {
	state, ok := probeGitState(ctx, projectRoot)
	if !ok {
		return Watermark{}, false
	}
	now := state.ComputedAtUnixMS
	return Watermark{
		Kind:             KindGit,
		ComputedAtUnixMS: &now,
		GitHead:          state.GitHead,
		GitDirty:         state.GitDirty,
		DirtyHash:        state.DirtyHash,
	}, true
}

// gitState is the intermediate result of probing a repo's HEAD and working
// tree status before it's wrapped into a Watermark.
type gitState struct {
	ComputedAtUnixMS int64
	GitHead          string
	GitDirty         bool
	DirtyHash        *uint64
}

func probeGitState(ctx context.Context, projectRoot string) (gitState, bool) {
	headCtx, cancel := context.WithTimeout(ctx, gitHeadTimeout)
	defer cancel()
	headOut, err := exec.CommandContext(headCtx, "git", "-C", projectRoot, "rev-parse", "HEAD").Output()
	if err != nil {
		return gitState{}, false
	}
	head := strings.TrimSpace(string(headOut))
	if head == "" {
		return gitState{}, false
	}

	statusCtx, cancel2 := context.WithTimeout(ctx, gitStatusTimeout)
	defer cancel2()
	statusOut, err := exec.CommandContext(statusCtx, "git", "-C", projectRoot, "status", "--porcelain", "-z").Output()
	if err != nil {
		return gitState{}, false
	}

	dirty := len(statusOut) > 0
	var dirtyHash *uint64
	if dirty {
		h := hashDirtyStatus(ctx, projectRoot, statusOut)
		dirtyHash = &h
	}

	return gitState{
		ComputedAtUnixMS: unixNowMS(),
		GitHead:          head,
		GitDirty:         dirty,
		DirtyHash:        dirtyHash,
	}, true
}

// hashDirtyStatus mixes the raw porcelain output with per-path stat length
// and mtime (bounded to maxDirtyPathsForHash paths) so that re-saving the
// same dirty file without changing `git status`'s output still changes the
// dirty hash.
func hashDirtyStatus(ctx context.Context, projectRoot string, porcelain []byte) uint64 {
	hasher := sha256.New()
	hasher.Write(porcelain)

	tokens := splitNUL(porcelain)
	var dirtyPaths [][]byte
	idx := 0
	for idx < len(tokens) && len(dirtyPaths) < maxDirtyPathsForHash {
		token := tokens[idx]
		if len(token) < 4 || token[2] != ' ' {
			idx++
			continue
		}
		statusByte := token[0]
		path1 := token[3:]
		dirtyPaths = append(dirtyPaths, path1)

		if (statusByte == 'R' || statusByte == 'C') && idx+1 < len(tokens) {
			dirtyPaths = append(dirtyPaths, tokens[idx+1])
			idx += 2
		} else {
			idx++
		}
	}

	for _, path := range dirtyPaths {
		if len(path) == 0 {
			continue
		}
		hasher.Write(path)

		candidate := filepath.Join(projectRoot, string(path))
		var lenBuf, mtimeBuf [8]byte
		if info, err := os.Stat(candidate); err == nil {
			binary.BigEndian.PutUint64(lenBuf[:], uint64(info.Size()))
			binary.BigEndian.PutUint64(mtimeBuf[:], uint64(info.ModTime().UnixMilli()))
		}
		hasher.Write(lenBuf[:])
		hasher.Write(mtimeBuf[:])
	}

	digest := hasher.Sum(nil)
	return binary.BigEndian.Uint64(digest[:8])
}

func splitNUL(data []byte) [][]byte {
	var tokens [][]byte
	for _, token := range bytes.Split(data, []byte{0}) {
		if len(token) > 0 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// ProbeGitChangedPathsBetweenHeads returns the set of paths `git diff
// --name-status` reports between two commits, used by the indexer to
// attempt an incremental update instead of a full rescan. Returns
// (nil, false) when git is unavailable, the command fails, or the result
// would exceed maxPaths — callers must fall back to a full scan in that
// case.
func ProbeGitChangedPathsBetweenHeads(ctx context.Context, projectRoot, oldHead, newHead string, maxPaths int) ([]string, bool) {
	oldHead = strings.TrimSpace(oldHead)
	newHead = strings.TrimSpace(newHead)
	if oldHead == "" || newHead == "" {
		return nil, false
	}
	if oldHead == newHead {
		return []string{}, true
	}

	out, err := exec.CommandContext(ctx, "git", "-C", projectRoot, "diff", "--name-status", "-z", oldHead, newHead).Output()
	if err != nil {
		return nil, false
	}

	tokens := splitNUL(out)
	changed := make(map[string]bool)
	idx := 0
	for idx < len(tokens) {
		status := tokens[idx]
		idx++
		if idx >= len(tokens) {
			break
		}
		path1 := string(tokens[idx])
		idx++
		if path1 != "" {
			changed[path1] = true
		}

		if len(status) > 0 && (status[0] == 'R' || status[0] == 'C') {
			if idx >= len(tokens) {
				break
			}
			path2 := string(tokens[idx])
			idx++
			if path2 != "" {
				changed[path2] = true
			}
		}

		if len(changed) > maxPaths {
			return nil, false
		}
	}

	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}
	return paths, true
}

func computeFilesystemWatermark(ctx context.Context, projectRoot string) (Watermark, error) {
	s, err := scanner.New()
	if err != nil {
		return Watermark{}, fmt.Errorf("create scanner: %w", err)
	}

	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          projectRoot,
		RespectGitignore: true,
	})
	if err != nil {
		return Watermark{}, fmt.Errorf("scan project for watermark: %w", err)
	}

	var fileCount, totalBytes, maxMtimeMS uint64
	for result := range results {
		if result.Error != nil || result.File == nil {
			continue
		}
		fileCount++
		totalBytes += uint64(result.File.Size)
		mtimeMS := uint64(result.File.ModTime.UnixMilli())
		if mtimeMS > maxMtimeMS {
			maxMtimeMS = mtimeMS
		}
	}

	now := unixNowMS()
	return Watermark{
		Kind:             KindFilesystem,
		ComputedAtUnixMS: &now,
		FileCount:        fileCount,
		MaxMtimeMS:       maxMtimeMS,
		TotalBytes:       totalBytes,
	}, nil
}

func unixNowMS() int64 { return time.Now().UnixMilli() }
