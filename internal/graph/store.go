package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Aman-CERP/amanmcp/internal/embed"
	"github.com/Aman-CERP/amanmcp/internal/store"
)

// NodeStoreSchemaVersion tracks the on-disk format of the persisted node
// store; bump on any incompatible field change.
const NodeStoreSchemaVersion = 2

// NodeDoc is one embeddable graph-node document: a synthetic description of
// a symbol ("function X in module Y with signature ...") distinct from the
// chunk's own source text, so symbol-shaped queries can match it directly.
type NodeDoc struct {
	NodeID  string // == GraphNode.ChunkID
	ChunkID string
	Text    string
	DocHash uint64
}

// NodeStoreMeta fingerprints the inputs a persisted NodeStore was built
// from. Any mismatch against the desired meta on load means the persisted
// data no longer matches reality and must be rebuilt rather than trusted.
type NodeStoreMeta struct {
	SourceIndexMtimeMS int64  `json:"source_index_mtime_ms"`
	GraphLanguage      string `json:"graph_language"`
	GraphDocVersion    int    `json:"graph_doc_version"`
	TemplateHash       uint64 `json:"template_hash"`
	ModelID            string `json:"model_id"`
	EmbeddingMode      string `json:"embedding_mode"`
	Dimension          int    `json:"dimension"`
}

// NodeHit is one ranked NodeStore search result.
type NodeHit struct {
	NodeID  string
	ChunkID string
	Score   float32
}

// persistedNode carries the raw vector alongside identity so a NodeStore can
// rebuild its in-memory index on Load without re-embedding anything whose
// doc_hash is unchanged.
type persistedNode struct {
	NodeID  string    `json:"node_id"`
	ChunkID string    `json:"chunk_id"`
	DocHash uint64    `json:"doc_hash"`
	Vector  []float32 `json:"vector"`
}

type persistedNodeStore struct {
	SchemaVersion int             `json:"schema_version"`
	Meta          NodeStoreMeta   `json:"meta"`
	Nodes         []persistedNode `json:"nodes"`
}

// NodeStore holds one embedding per graph node, separate from chunk
// embeddings, so a query shaped like a symbol description can be matched
// directly against it. Persisted as a single JSON document (node_id,
// chunk_id, doc_hash, vector) written atomically; an in-memory
// store.VectorStore is rebuilt from the persisted vectors on every load.
type NodeStore struct {
	meta     NodeStoreMeta
	nodes    []persistedNode
	vectors  store.VectorStore
	embedder embed.Embedder
}

// Meta returns the fingerprint this store was built with.
func (s *NodeStore) Meta() NodeStoreMeta { return s.meta }

// Load reads a persisted NodeStore, failing closed (a non-nil error, never a
// silently-empty store) if the schema version or any meta field doesn't
// match desired.
func Load(ctx context.Context, path string, desired NodeStoreMeta, embedder embed.Embedder) (*NodeStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph node store: %w", err)
	}

	var persisted persistedNodeStore
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("decode graph node store: %w", err)
	}
	if persisted.SchemaVersion != NodeStoreSchemaVersion {
		return nil, fmt.Errorf("graph node store schema mismatch: got %d, want %d",
			persisted.SchemaVersion, NodeStoreSchemaVersion)
	}
	if !metaMatches(persisted.Meta, desired) {
		return nil, fmt.Errorf("graph node store meta drift: persisted %+v, desired %+v", persisted.Meta, desired)
	}

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(desired.Dimension))
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	ids := make([]string, 0, len(persisted.Nodes))
	vectors := make([][]float32, 0, len(persisted.Nodes))
	for _, n := range persisted.Nodes {
		ids = append(ids, n.NodeID)
		vectors = append(vectors, n.Vector)
	}
	if len(ids) > 0 {
		if err := vs.Add(ctx, ids, vectors); err != nil {
			return nil, fmt.Errorf("rebuild graph node index: %w", err)
		}
	}

	return &NodeStore{meta: persisted.Meta, nodes: persisted.Nodes, vectors: vs, embedder: embedder}, nil
}

func metaMatches(a, b NodeStoreMeta) bool {
	return a.GraphLanguage == b.GraphLanguage &&
		a.GraphDocVersion == b.GraphDocVersion &&
		a.TemplateHash == b.TemplateHash &&
		a.ModelID == b.ModelID &&
		a.EmbeddingMode == b.EmbeddingMode &&
		a.Dimension == b.Dimension
}

// BuildOrUpdate creates a NodeStore, reusing the vector from an existing
// persisted store at path whenever a doc's doc_hash is unchanged (an
// incremental rebuild), and re-embedding everything else. Always writes a
// fresh, fully-consistent store back to path.
func BuildOrUpdate(ctx context.Context, path string, meta NodeStoreMeta, docs []NodeDoc, embedder embed.Embedder) (*NodeStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create graph node store dir: %w", err)
	}

	existingByID := make(map[string]persistedNode)
	if prev, err := Load(ctx, path, meta, embedder); err == nil {
		for _, n := range prev.nodes {
			existingByID[n.NodeID] = n
		}
	}

	sorted := make([]NodeDoc, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeID < sorted[j].NodeID })

	nodes := make([]persistedNode, len(sorted))
	var toEmbedIdx []int
	var toEmbedTexts []string

	for i, doc := range sorted {
		nodes[i] = persistedNode{NodeID: doc.NodeID, ChunkID: doc.ChunkID, DocHash: doc.DocHash}
		if prev, ok := existingByID[doc.NodeID]; ok && prev.DocHash == doc.DocHash && len(prev.Vector) == meta.Dimension {
			nodes[i].Vector = prev.Vector
			continue
		}
		toEmbedIdx = append(toEmbedIdx, i)
		toEmbedTexts = append(toEmbedTexts, doc.Text)
	}

	if len(toEmbedTexts) > 0 {
		vectors, err := embedder.EmbedBatch(ctx, toEmbedTexts)
		if err != nil {
			return nil, fmt.Errorf("embed graph node docs: %w", err)
		}
		for j, idx := range toEmbedIdx {
			nodes[idx].Vector = vectors[j]
		}
	}

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(meta.Dimension))
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	ids := make([]string, len(nodes))
	vectors := make([][]float32, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NodeID
		vectors[i] = n.Vector
	}
	if len(ids) > 0 {
		if err := vs.Add(ctx, ids, vectors); err != nil {
			return nil, fmt.Errorf("index graph nodes: %w", err)
		}
	}

	persisted := persistedNodeStore{SchemaVersion: NodeStoreSchemaVersion, Meta: meta, Nodes: nodes}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph node store: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return nil, fmt.Errorf("write graph node store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("commit graph node store: %w", err)
	}

	return &NodeStore{meta: meta, nodes: nodes, vectors: vs, embedder: embedder}, nil
}

// Search embeds embeddingText and returns the nearest graph-node documents.
func (s *NodeStore) Search(ctx context.Context, embeddingText string, limit int) ([]NodeHit, error) {
	if embeddingText == "" {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, embeddingText)
	if err != nil {
		return nil, fmt.Errorf("embed graph node query: %w", err)
	}
	results, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search graph node vectors: %w", err)
	}

	byID := make(map[string]persistedNode, len(s.nodes))
	for _, n := range s.nodes {
		byID[n.NodeID] = n
	}

	hits := make([]NodeHit, 0, len(results))
	for _, r := range results {
		n, ok := byID[r.ID]
		if !ok {
			continue
		}
		hits = append(hits, NodeHit{NodeID: n.NodeID, ChunkID: n.ChunkID, Score: r.Score})
	}
	return hits, nil
}

// Close releases the underlying vector index.
func (s *NodeStore) Close() error {
	if s.vectors == nil {
		return nil
	}
	return s.vectors.Close()
}
