package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSimpleGoCallGraph(t *testing.T) {
	chunks := []GraphChunkInput{
		{
			ChunkID:    "main.go:1:3",
			FilePath:   "main.go",
			StartLine:  1,
			EndLine:    3,
			Content:    "func foo() {\n\tbar()\n}",
			SymbolName: "foo",
			ChunkType:  "function",
			Language:   "go",
		},
		{
			ChunkID:    "main.go:5:7",
			FilePath:   "main.go",
			StartLine:  5,
			EndLine:    7,
			Content:    "func bar() {\n}",
			SymbolName: "bar",
			ChunkType:  "function",
			Language:   "go",
		},
	}

	b := NewBuilder()
	defer b.Close()

	g, err := b.Build(context.Background(), "go", chunks)
	require.NoError(t, err)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())

	usages := g.GetAllUsages("main.go:5:7")
	require.Len(t, usages, 1)
	assert.Equal(t, "main.go:1:3", usages[0].ChunkID)

	callees := g.GetCallees("main.go:1:3")
	require.Len(t, callees, 1)
	assert.Equal(t, "main.go:5:7", callees[0].ChunkID)
}

func TestBuildUnrecognizedLanguageIsTextOnly(t *testing.T) {
	chunks := []GraphChunkInput{
		{ChunkID: "a.rb:1:2", FilePath: "a.rb", SymbolName: "foo", Content: "def foo; end", Language: "ruby"},
	}

	b := NewBuilder()
	defer b.Close()

	g, err := b.Build(context.Background(), "ruby", chunks)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())

	node, ok := g.Node("a.rb:1:2")
	require.True(t, ok)
	assert.False(t, node.TextOnly) // has a symbol name, just no language-specific edges
}

func TestTextOnlyFallbackForUnnamedChunk(t *testing.T) {
	chunks := []GraphChunkInput{
		{ChunkID: "README.md:1:10", FilePath: "README.md", ChunkType: "other", Language: "markdown"},
	}

	b := NewBuilder()
	defer b.Close()

	g, err := b.Build(context.Background(), "markdown", chunks)
	require.NoError(t, err)

	node, ok := g.Node("README.md:1:10")
	require.True(t, ok)
	assert.True(t, node.TextOnly)
}

func TestGetTransitiveUsagesRespectsDepthCap(t *testing.T) {
	chunks := []GraphChunkInput{
		{ChunkID: "c1", FilePath: "a.go", SymbolName: "a", Content: "func a() { b() }", Language: "go"},
		{ChunkID: "c2", FilePath: "a.go", SymbolName: "b", Content: "func b() { c() }", Language: "go"},
		{ChunkID: "c3", FilePath: "a.go", SymbolName: "c", Content: "func c() { d() }", Language: "go"},
		{ChunkID: "c4", FilePath: "a.go", SymbolName: "d", Content: "func d() { e() }", Language: "go"},
		{ChunkID: "c5", FilePath: "a.go", SymbolName: "e", Content: "func e() {}", Language: "go"},
	}

	b := NewBuilder()
	defer b.Close()
	g, err := b.Build(context.Background(), "go", chunks)
	require.NoError(t, err)

	// e is used by d, which is used by c, which is used by b, which is used by a.
	transitive := g.GetTransitiveUsages("c5", 10) // depth clamps to maxTransitiveDepth
	ids := make([]string, 0, len(transitive))
	for _, n := range transitive {
		ids = append(ids, n.ChunkID)
	}
	assert.Contains(t, ids, "c4")
	assert.Contains(t, ids, "c3")
	assert.Contains(t, ids, "c2")
	assert.NotContains(t, ids, "c1") // depth 3 from e reaches d, c, b — not a
}

func TestFindHotspotsOrdersByInDegree(t *testing.T) {
	chunks := []GraphChunkInput{
		{ChunkID: "util", FilePath: "util.go", SymbolName: "util", Content: "func util() {}", Language: "go"},
		{ChunkID: "a", FilePath: "a.go", SymbolName: "a", Content: "func a() { util() }", Language: "go"},
		{ChunkID: "b", FilePath: "b.go", SymbolName: "b", Content: "func b() { util() }", Language: "go"},
		{ChunkID: "c", FilePath: "c.go", SymbolName: "c", Content: "func c() { util() }", Language: "go"},
	}

	b := NewBuilder()
	defer b.Close()
	g, err := b.Build(context.Background(), "go", chunks)
	require.NoError(t, err)

	hotspots := g.FindHotspots(1)
	require.Len(t, hotspots, 1)
	assert.Equal(t, "util", hotspots[0].ChunkID)
}

func TestIsPublicAPIGoConvention(t *testing.T) {
	chunks := []GraphChunkInput{
		{ChunkID: "x.go:1:1", FilePath: "x.go", SymbolName: "Exported", Language: "go"},
		{ChunkID: "x.go:2:2", FilePath: "x.go", SymbolName: "unexported", Language: "go"},
	}
	b := NewBuilder()
	defer b.Close()
	g, err := b.Build(context.Background(), "go", chunks)
	require.NoError(t, err)

	assert.True(t, g.IsPublicAPI("x.go:1:1"))
	assert.False(t, g.IsPublicAPI("x.go:2:2"))
}

func TestFindRelatedTests(t *testing.T) {
	chunks := []GraphChunkInput{
		{ChunkID: "a.go:1:3", FilePath: "a.go", SymbolName: "Compute", Content: "func Compute() {}", Language: "go"},
		{
			ChunkID: "a_test.go:1:4", FilePath: "a_test.go", SymbolName: "TestCompute",
			Content: "func TestCompute() {\n\tCompute()\n}", Language: "go",
		},
	}
	b := NewBuilder()
	defer b.Close()
	g, err := b.Build(context.Background(), "go", chunks)
	require.NoError(t, err)

	tests := g.FindRelatedTests("a.go:1:3")
	require.Len(t, tests, 1)
	assert.Equal(t, "a_test.go:1:4", tests[0].ChunkID)
}

func TestStatsReportsLanguage(t *testing.T) {
	b := NewBuilder()
	defer b.Close()
	g, err := b.Build(context.Background(), "go", nil)
	require.NoError(t, err)

	stats := g.Stats()
	assert.Equal(t, 0, stats.NodeCount)
	assert.Equal(t, []string{"go"}, stats.Languages)
}
