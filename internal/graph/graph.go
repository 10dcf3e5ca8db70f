package graph

import (
	"sort"
	"strings"
)

// CodeGraph is the built call/uses graph for one language. Nodes are keyed
// by chunk ID; edges are adjacency lists keyed by the same ID. Construction
// is two-phase (see Build in builder.go): all nodes first, then edges, so an
// edge target that appears later in the chunk slice still resolves.
type CodeGraph struct {
	language string

	nodes    map[string]*GraphNode // chunk_id -> node
	byName   map[string][]string   // symbol name -> chunk_ids (find_node can be ambiguous)
	outEdges map[string]map[string]GraphEdge // chunk_id -> target chunk_id -> edge
	inEdges  map[string]map[string]GraphEdge // chunk_id -> source chunk_id -> edge

	// order preserves chunk insertion order so stats()/find_hotspots() are
	// deterministic regardless of Go's map iteration order.
	order []string
}

func newCodeGraph(language string) *CodeGraph {
	return &CodeGraph{
		language: language,
		nodes:    make(map[string]*GraphNode),
		byName:   make(map[string][]string),
		outEdges: make(map[string]map[string]GraphEdge),
		inEdges:  make(map[string]map[string]GraphEdge),
	}
}

func (g *CodeGraph) addNode(n *GraphNode) {
	if _, exists := g.nodes[n.ChunkID]; !exists {
		g.order = append(g.order, n.ChunkID)
	}
	g.nodes[n.ChunkID] = n
	if n.Symbol.Name != "" {
		g.byName[n.Symbol.Name] = append(g.byName[n.Symbol.Name], n.ChunkID)
	}
}

// addEdge collapses repeated from->to pairs into a single edge, keeping the
// higher-weight relationship (Calls over Uses) when both are observed.
func (g *CodeGraph) addEdge(fromID, toID string, edge GraphEdge) {
	if fromID == toID {
		return
	}
	if g.outEdges[fromID] == nil {
		g.outEdges[fromID] = make(map[string]GraphEdge)
	}
	if existing, ok := g.outEdges[fromID][toID]; !ok || existing.Weight < edge.Weight {
		g.outEdges[fromID][toID] = edge
	}
	if g.inEdges[toID] == nil {
		g.inEdges[toID] = make(map[string]GraphEdge)
	}
	if existing, ok := g.inEdges[toID][fromID]; !ok || existing.Weight < edge.Weight {
		g.inEdges[toID][fromID] = edge
	}
}

// NodeCount reports the number of nodes, including text-only fallbacks.
func (g *CodeGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount reports the number of distinct directed edges.
func (g *CodeGraph) EdgeCount() int {
	n := 0
	for _, out := range g.outEdges {
		n += len(out)
	}
	return n
}

// Node returns the node for a chunk ID, if present.
func (g *CodeGraph) Node(chunkID string) (*GraphNode, bool) {
	n, ok := g.nodes[chunkID]
	return n, ok
}

// FindNode resolves a symbol name to its node(s). A name can legitimately
// collide across files (overloads, same-named methods on different types),
// so all matches are returned; callers that need exactly one match should
// disambiguate by FilePath or QualifiedName.
func (g *CodeGraph) FindNode(name string) []*GraphNode {
	ids := g.byName[name]
	if len(ids) == 0 {
		return nil
	}
	out := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// GetAllUsages returns every node with a direct edge (Calls or Uses) into
// chunkID, sorted for deterministic output.
func (g *CodeGraph) GetAllUsages(chunkID string) []*GraphNode {
	in := g.inEdges[chunkID]
	if len(in) == 0 {
		return nil
	}
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// GetCallees returns every node chunkID has a direct edge (Calls or Uses)
// into — the symmetric counterpart to GetAllUsages, used by ContextPack to
// attach "callees" related items to a Function/Method primary.
func (g *CodeGraph) GetCallees(chunkID string) []*GraphNode {
	out := g.outEdges[chunkID]
	if len(out) == 0 {
		return nil
	}
	ids := make([]string, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// maxTransitiveDepth caps get_transitive_usages per spec §4.5 so impact
// analysis on a deeply-called utility doesn't walk the whole graph.
const maxTransitiveDepth = 3

// GetTransitiveUsages walks incoming edges breadth-first up to depth (capped
// at maxTransitiveDepth), returning every node reachable as a caller/user of
// chunkID, nearest first and de-duplicated.
func (g *CodeGraph) GetTransitiveUsages(chunkID string, depth int) []*GraphNode {
	if depth <= 0 || depth > maxTransitiveDepth {
		depth = maxTransitiveDepth
	}

	visited := map[string]bool{chunkID: true}
	frontier := []string{chunkID}
	var result []*GraphNode

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			for _, usage := range g.GetAllUsages(id) {
				if visited[usage.ChunkID] {
					continue
				}
				visited[usage.ChunkID] = true
				result = append(result, usage)
				next = append(next, usage.ChunkID)
			}
		}
		frontier = next
	}
	return result
}

// FindRelatedTests returns nodes whose file path or symbol name looks like a
// test for chunkID's symbol: same base file name with a test suffix/prefix,
// or a test file that directly calls/uses the node.
func (g *CodeGraph) FindRelatedTests(chunkID string) []*GraphNode {
	node, ok := g.nodes[chunkID]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var result []*GraphNode
	add := func(n *GraphNode) {
		if n == nil || seen[n.ChunkID] {
			return
		}
		seen[n.ChunkID] = true
		result = append(result, n)
	}

	for _, usage := range g.GetAllUsages(chunkID) {
		if looksLikeTestFile(usage.Symbol.FilePath) {
			add(usage)
		}
	}

	baseName := symbolBaseName(node.Symbol.Name)
	for _, id := range g.order {
		n := g.nodes[id]
		if n == nil || n.ChunkID == chunkID || !looksLikeTestFile(n.Symbol.FilePath) {
			continue
		}
		if baseName != "" && strings.Contains(strings.ToLower(n.Symbol.Name), baseName) {
			add(n)
		}
	}
	return result
}

func looksLikeTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "_test.") ||
		strings.Contains(lower, "/test_") ||
		strings.Contains(lower, ".test.") ||
		strings.Contains(lower, "/tests/")
}

func symbolBaseName(name string) string {
	name = strings.TrimPrefix(name, "Test")
	name = strings.TrimPrefix(name, "test_")
	name = strings.TrimSuffix(name, "_test")
	return strings.ToLower(name)
}

// hotspot pairs a node with its in-degree for FindHotspots ranking.
type hotspot struct {
	node     *GraphNode
	inDegree int
}

// FindHotspots returns the N nodes with the most incoming edges (most
// depended-upon symbols), ties broken by chunk ID for determinism.
func (g *CodeGraph) FindHotspots(n int) []*GraphNode {
	if n <= 0 {
		return nil
	}
	hotspots := make([]hotspot, 0, len(g.nodes))
	for _, id := range g.order {
		hotspots = append(hotspots, hotspot{node: g.nodes[id], inDegree: len(g.inEdges[id])})
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].inDegree != hotspots[j].inDegree {
			return hotspots[i].inDegree > hotspots[j].inDegree
		}
		return hotspots[i].node.ChunkID < hotspots[j].node.ChunkID
	})
	if n > len(hotspots) {
		n = len(hotspots)
	}
	out := make([]*GraphNode, 0, n)
	for i := 0; i < n; i++ {
		if hotspots[i].inDegree == 0 {
			break
		}
		out = append(out, hotspots[i].node)
	}
	return out
}

// IsPublicAPI reports whether a node's symbol is exported: Go-style leading
// uppercase, since the graph is built per-repo and the indexed languages in
// this system are Go/TypeScript/JavaScript/Python chunks. TS/JS/Python have
// no capitalization convention for exports, so a node from those languages
// counts as public API unless its name starts with "_" (the shared
// private-by-convention marker across all four).
func (g *CodeGraph) IsPublicAPI(chunkID string) bool {
	node, ok := g.nodes[chunkID]
	if !ok {
		return false
	}
	name := node.Symbol.Name
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "_") {
		return false
	}
	r := []rune(name)[0]
	if r >= 'a' && r <= 'z' {
		return node.Symbol.FilePath == "" || !strings.HasSuffix(node.Symbol.FilePath, ".go")
	}
	return true
}

// Stats summarizes the built graph for diagnostics and the MCP server_info
// surface.
func (g *CodeGraph) Stats() Stats {
	languages := []string{}
	if g.language != "" {
		languages = append(languages, g.language)
	}
	return Stats{
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
		Languages: languages,
	}
}
