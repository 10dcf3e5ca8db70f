package readpack

import (
	"fmt"
	"strconv"

	"github.com/Aman-CERP/amanmcp/internal/contextpack"
)

// renderDoc is the Go port of section_render.rs's render_section dispatch,
// plus runner.rs's overall document assembly (answer line + per-section
// notes/refs/blocks).
func renderDoc(result *Result, mode ResponseMode, rootFingerprintHex, cursorAlias string) string {
	doc := newDocBuilder()
	doc.setAnswer(answerLine(result))

	for _, section := range result.Sections {
		renderSection(doc, section, mode)
	}

	return doc.build(rootFingerprintHex, cursorAlias)
}

func answerLine(result *Result) string {
	switch result.Intent {
	case IntentFile:
		return "file slice"
	case IntentGrep:
		return "grep results"
	case IntentQuery:
		return "context pack"
	case IntentRecall:
		return "recall"
	case IntentMemory:
		return "memory overlay"
	case IntentOnboarding:
		return "repo onboarding"
	default:
		return "read_pack"
	}
}

func renderSection(doc *docBuilder, s Section, mode ResponseMode) {
	switch s.Kind {
	case SectionSnippet:
		renderSnippet(doc, s.Snippet, mode)
	case SectionRecall:
		renderRecall(doc, s.Recall, mode)
	case SectionFileSlice:
		renderFileSlice(doc, s.FileSlice)
	case SectionGrepContext:
		renderGrepContext(doc, s.GrepContext)
	case SectionOverview:
		renderOverview(doc, s.Overview, mode)
	case SectionContextPack:
		renderContextPack(doc, s.ContextPack, mode)
	case SectionMemory:
		renderMemory(doc, s.Memory, mode)
	}
}

func renderSnippet(doc *docBuilder, snippet *Snippet, mode ResponseMode) {
	if snippet == nil {
		return
	}
	doc.pushRefHeader(snippet.File, snippet.StartLine, string(snippet.Kind))
	if mode == ResponseModeFull && snippet.Reason != "" {
		doc.pushNote("reason: " + snippet.Reason)
	}
	doc.pushBlockSmart(snippet.Content)
	doc.pushBlank()
}

func renderRecall(doc *docBuilder, recall *RecallResult, mode ResponseMode) {
	if recall == nil {
		return
	}
	doc.pushNote("recall: " + recall.Question)
	for _, snippet := range recall.Snippets {
		doc.pushRefHeader(snippet.File, snippet.StartLine, string(snippet.Kind))
		if mode == ResponseModeFull && snippet.Reason != "" {
			doc.pushNote("reason: " + snippet.Reason)
		}
		doc.pushBlockSmart(snippet.Content)
		doc.pushBlank()
	}
}

func renderFileSlice(doc *docBuilder, fs *FileSliceResult) {
	if fs == nil {
		return
	}
	doc.pushRefHeader(fs.File, fs.StartLine, "file slice")
	doc.pushBlockSmart(fs.Content)
	doc.pushBlank()
}

func renderGrepContext(doc *docBuilder, g *GrepContextResult) {
	if g == nil {
		return
	}
	doc.pushNote("grep: pattern=" + g.Pattern)
	for _, hunk := range g.Hunks {
		doc.pushRefHeader(hunk.File, hunk.StartLine, "grep hunk")
		doc.pushBlockSmart(hunk.Content)
		doc.pushBlank()
	}
}

func renderOverview(doc *docBuilder, o *OverviewResult, mode ResponseMode) {
	if o == nil {
		return
	}
	doc.pushNote(fmt.Sprintf(
		"overview: %s files=%d chunks=%d lines=%d graph(nodes=%d edges=%d)",
		o.ProjectName, o.Files, o.Chunks, o.Lines, o.GraphNodes, o.GraphEdges,
	))
	if mode != ResponseModeMinimal {
		pushCappedList(doc, "entry_points", o.EntryPoints, 6)
		pushCappedList(doc, "key_dirs", o.KeyDirs, 6)
	}
	if mode == ResponseModeFull {
		pushCappedList(doc, "key_types", o.KeyTypes, 6)
	}
	doc.pushBlank()
}

func pushCappedList(doc *docBuilder, label string, items []string, cap int) {
	if len(items) == 0 {
		return
	}
	doc.pushNote(label + ":")
	shown := items
	if len(shown) > cap {
		shown = shown[:cap]
	}
	for _, item := range shown {
		doc.pushLine(" - " + item)
	}
	if len(items) > cap {
		doc.pushLine(" - … (showing " + strconv.Itoa(cap) + " of " + strconv.Itoa(len(items)) + ")")
	}
}

func renderContextPack(doc *docBuilder, pack *contextpack.Pack, mode ResponseMode) {
	if pack == nil {
		return
	}
	var primary, related int
	for _, item := range pack.Items {
		if item.Role == contextpack.RolePrimary {
			primary++
		} else {
			related++
		}
	}
	doc.pushNote(fmt.Sprintf(
		"context_pack: items=%d (primary=%d related=%d) truncated=%v dropped_items=%d",
		len(pack.Items), primary, related, pack.Budget.Truncation != contextpack.TruncationNone, pack.Budget.DroppedItems,
	))
	if pack.Fallback && pack.ReasonNote != "" {
		doc.pushNote("reason_note: " + pack.ReasonNote)
	}

	if mode == ResponseModeFull {
		shown := pack.Items
		const maxShown = 4
		if len(shown) > maxShown {
			shown = shown[:maxShown]
		}
		for _, item := range shown {
			label := string(item.Role)
			doc.pushRefHeader(item.File, item.StartLine, label)
			if item.Symbol != "" {
				doc.pushNote(fmt.Sprintf("symbol=%s score=%.3f", item.Symbol, item.Score))
			} else {
				doc.pushNote(fmt.Sprintf("score=%.3f", item.Score))
			}
			doc.pushBlockSmart(item.Content)
			doc.pushBlank()
		}
		if len(pack.Items) > maxShown {
			doc.pushNote(fmt.Sprintf("context_pack: … (showing %d of %d items)", maxShown, len(pack.Items)))
		}
	}
	doc.pushBlank()
}

func renderMemory(doc *docBuilder, m *MemoryResult, mode ResponseMode) {
	if m == nil {
		return
	}
	doc.pushNote(fmt.Sprintf("external_memory: source=%s hits=%d", m.Source, len(m.Hits)))
	for _, hit := range m.Hits {
		title := hit.Title
		if title == "" {
			doc.pushNote(fmt.Sprintf("memory_hit: [%s] score=%.3f", hit.Kind, hit.Score))
		} else {
			doc.pushNote(fmt.Sprintf("memory_hit: [%s] %s (score=%.3f)", hit.Kind, title, hit.Score))
		}
		if mode != ResponseModeMinimal && hit.Excerpt != "" {
			doc.pushBlockSmart(hit.Excerpt)
			doc.pushBlank()
		}
	}
}
