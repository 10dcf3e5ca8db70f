package graph

import (
	"context"

	"github.com/Aman-CERP/amanmcp/internal/chunk"
)

// callNodeKinds and typeNodeKinds are the language-specific tree-sitter node
// kinds GraphBuilder treats as a function call or a type reference, mirrored
// from the call/type detection in the graph crate this package generalizes
// from a single-language builder to the scanner's full language set.
var callNodeKinds = map[string][]string{
	"go":         {"call_expression"},
	"python":     {"call"},
	"javascript": {"call_expression"},
	"typescript": {"call_expression"},
	"tsx":        {"call_expression"},
	"jsx":        {"call_expression"},
}

var typeNodeKinds = map[string][]string{
	"go":         {"type_identifier", "generic_type"},
	"python":     {"type"},
	"javascript": {"type_identifier"},
	"typescript": {"type_identifier", "generic_type"},
	"tsx":        {"type_identifier", "generic_type"},
	"jsx":        {"type_identifier"},
}

// identifierLikeKinds are node kinds that already *are* an identifier (or a
// qualified/selector expression whose full text is a usable name), so the
// builder stops descending once it reaches one.
var identifierLikeKinds = map[string]bool{
	"identifier":          true,
	"field_identifier":    true,
	"field_expression":    true,
	"selector_expression": true,
	"member_expression":   true,
	"attribute":           true,
	"type_identifier":     true,
}

// DefaultBuilder implements Builder by reusing internal/chunk's tree-sitter
// wrapper: each chunk's own content is parsed in isolation (the graph is
// built from already-extracted chunks, not whole files) and walked for call
// and type-reference node kinds.
type DefaultBuilder struct {
	parser *chunk.Parser
}

// NewBuilder creates a GraphBuilder backed by a fresh chunk.Parser.
func NewBuilder() *DefaultBuilder {
	return &DefaultBuilder{parser: chunk.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (b *DefaultBuilder) Close() {
	if b.parser != nil {
		b.parser.Close()
	}
}

// Build constructs a CodeGraph for one language's chunks in two phases: all
// nodes first (one per chunk, text-only if no symbol name is present), then
// edges, so a call/use target appearing later in the slice still resolves.
func (b *DefaultBuilder) Build(ctx context.Context, language string, chunks []GraphChunkInput) (*CodeGraph, error) {
	g := newCodeGraph(language)

	for _, c := range chunks {
		g.addNode(&GraphNode{
			ChunkID:  c.ChunkID,
			TextOnly: c.SymbolName == "",
			Symbol: Symbol{
				Name:          c.SymbolName,
				QualifiedName: c.QualifiedName,
				FilePath:      c.FilePath,
				StartLine:     c.StartLine,
				EndLine:       c.EndLine,
				SymbolType:    c.ChunkType,
			},
		})
	}

	calls, ok := callNodeKinds[language]
	if !ok {
		// Unrecognized language: nodes stay as text-only fallbacks, no edges.
		return g, nil
	}
	types := typeNodeKinds[language]

	for _, c := range chunks {
		if c.Content == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return g, err
		}

		tree, err := b.parser.Parse(ctx, []byte(c.Content), language)
		if err != nil {
			// A single malformed chunk shouldn't fail the whole build; it just
			// contributes no edges.
			continue
		}

		for _, name := range extractNames(tree.Root, []byte(c.Content), calls) {
			for _, target := range g.FindNode(name) {
				g.addEdge(c.ChunkID, target.ChunkID, GraphEdge{Relationship: RelationshipCalls, Weight: 1.0})
			}
		}
		for _, name := range extractNames(tree.Root, []byte(c.Content), types) {
			for _, target := range g.FindNode(name) {
				g.addEdge(c.ChunkID, target.ChunkID, GraphEdge{Relationship: RelationshipUses, Weight: 0.5})
			}
		}
	}

	return g, nil
}

// extractNames walks root for nodes whose kind is in kinds and returns the
// resolved identifier text for each match.
func extractNames(root *chunk.Node, source []byte, kinds []string) []string {
	if root == nil || len(kinds) == 0 {
		return nil
	}
	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	var names []string
	root.Walk(func(n *chunk.Node) bool {
		if kindSet[n.Type] {
			if name := resolveIdentifier(n, source); name != "" {
				names = append(names, name)
			}
		}
		return true
	})
	return names
}

// resolveIdentifier extracts a usable name from a call/type node: its own
// text if it already is an identifier-like node, otherwise the text of its
// first identifier-like child (the callee of a call_expression is almost
// always that child's first element since this package's Node type does not
// retain tree-sitter field names).
func resolveIdentifier(n *chunk.Node, source []byte) string {
	if identifierLikeKinds[n.Type] {
		return n.GetContent(source)
	}
	for _, child := range n.Children {
		if identifierLikeKinds[child.Type] {
			return child.GetContent(source)
		}
	}
	return ""
}

var _ Builder = (*DefaultBuilder)(nil)
