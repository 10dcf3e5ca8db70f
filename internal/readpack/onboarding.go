package readpack

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Aman-CERP/amanmcp/internal/graph"
	"github.com/Aman-CERP/amanmcp/internal/scanner"
)

const maxEntryPoints = 10
const maxKeyTypes = 10
const hotspotLimit = 20

var entryPointSuffixes = []string{
	"/src/main.rs", "/src/lib.rs",
	"/src/__main__.py", "/src/main.py",
	"/src/index.ts", "/src/index.tsx", "/src/index.js", "/src/index.jsx",
	"/src/main.ts", "/src/main.js",
	"/main.go",
}

// handleOnboardingIntent builds a repo-introduction overview: project
// stats, top-level layer breakdown, detected entry points, and (when a
// graph is available) the most depended-upon symbols — grounded on
// overview.rs's compute_project_info/compute_layers/compute_entry_points/
// compute_key_types, rebuilt here over a filesystem walk rather than a
// cached chunk corpus.
func handleOnboardingIntent(ctx context.Context, root string, g *graph.CodeGraph) (*OverviewResult, error) {
	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	results, err := s.Scan(ctx, &scanner.ScanOptions{RootDir: root, RespectGitignore: true})
	if err != nil {
		return nil, err
	}

	layerFiles := make(map[string]int)
	var entryPoints []string
	files, lines := 0, 0

	for r := range results {
		if r.Error != nil || r.File == nil {
			continue
		}
		files++
		lines += countLines(filepath.Join(root, r.File.Path))

		parts := strings.Split(r.File.Path, "/")
		if len(parts) > 1 {
			layerFiles[parts[0]]++
		}
		if looksLikeEntryFile(r.File.Path) {
			entryPoints = append(entryPoints, r.File.Path)
		}
	}

	sort.Strings(entryPoints)
	entryPoints = dedupeStrings(entryPoints)
	if len(entryPoints) > maxEntryPoints {
		entryPoints = entryPoints[:maxEntryPoints]
	}

	name := filepath.Base(root)
	out := &OverviewResult{
		ProjectName: name,
		Files:       files,
		Lines:       lines,
		EntryPoints: entryPoints,
		KeyDirs:     topLayers(layerFiles),
	}

	if g != nil {
		out.GraphNodes = g.NodeCount()
		out.GraphEdges = g.EdgeCount()
		out.KeyTypes = keyTypesFromGraph(g)
	}

	return out, nil
}

func countLines(absPath string) int {
	f, err := os.Open(absPath)
	if err != nil {
		return 0
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
	}
	return n
}

func looksLikeEntryFile(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	if strings.Contains(path, "/tests/") || strings.Contains(path, "/test/") {
		return false
	}
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".mdx") {
		return false
	}
	for _, suffix := range entryPointSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func topLayers(layerFiles map[string]int) []string {
	type layer struct {
		name  string
		count int
	}
	layers := make([]layer, 0, len(layerFiles))
	for name, count := range layerFiles {
		layers = append(layers, layer{name, count})
	}
	sort.Slice(layers, func(i, j int) bool {
		if layers[i].count != layers[j].count {
			return layers[i].count > layers[j].count
		}
		return layers[i].name < layers[j].name
	})
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		out = append(out, l.name)
	}
	return out
}

func dedupeStrings(in []string) []string {
	out := in[:0:0]
	var prev string
	for i, s := range in {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}

// keyTypesFromGraph surfaces overview.rs's compute_key_types: the most
// depended-upon non-test symbols in the hotspot ranking.
func keyTypesFromGraph(g *graph.CodeGraph) []string {
	if g == nil {
		return nil
	}
	hotspots := g.FindHotspots(hotspotLimit)
	seen := make(map[string]bool)
	var out []string
	for _, node := range hotspots {
		name := node.Symbol.Name
		if name == "" || name == "unknown" || strings.HasPrefix(name, "test_") {
			continue
		}
		if strings.Contains(node.Symbol.FilePath, "/tests/") || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name+" ("+node.Symbol.SymbolType+") "+node.Symbol.FilePath)
		if len(out) >= maxKeyTypes {
			break
		}
	}
	return out
}
