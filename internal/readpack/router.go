package readpack

import (
	"context"
	"fmt"
	"time"

	"github.com/Aman-CERP/amanmcp/internal/cursorstore"
	amanerrors "github.com/Aman-CERP/amanmcp/internal/errors"
	"github.com/Aman-CERP/amanmcp/internal/graph"
	"github.com/Aman-CERP/amanmcp/internal/rootsession"
	"github.com/Aman-CERP/amanmcp/internal/search"
)

// toolTag is the cursor-envelope tool discriminant for every cursor this
// router mints; a cursor minted by a different tool is rejected outright.
const toolTag = "read_pack"

// Deps wires the router to the rest of the server: the shared root/session
// state, the cursor alias table, and the search/graph backends each intent
// handler needs. A nil SearchEngine or Graph degrades Query/Recall/
// Onboarding gracefully rather than erroring.
type Deps struct {
	Session      *rootsession.Session
	Cursors      *cursorstore.Store
	SearchEngine *search.Engine
	Graph        *graph.CodeGraph
}

// Router dispatches one read_pack call end to end: cursor alias expansion,
// root resolution, intent resolution, timeout-bounded handler dispatch,
// overlap dedup, budget trim, and `.context` rendering — grounded on
// runner.rs's overall orchestration shape.
type Router struct {
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// Run executes one read_pack request and returns the rendered `.context`
// document.
func (r *Router) Run(ctx context.Context, req Request, explicitIntent Intent) (string, error) {
	root, rootDisplay, ok := r.deps.Session.Root()
	if !ok {
		return "", amanerrors.New(amanerrors.ErrCodeInvalidRequest, "no project root resolved; call initialize or pass path", nil)
	}

	timeoutMS := req.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = DefaultTimeoutMS
	}
	if timeoutMS > MaxTimeoutMS {
		timeoutMS = MaxTimeoutMS
	}
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	maxChars := req.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var resumeEnvelope *cursorEnvelope
	if req.Cursor != "" {
		payload, found := r.deps.Cursors.Get(req.Cursor)
		if !found {
			return "", amanerrors.New(amanerrors.ErrCodeInvalidCursor, "cursor not found or expired", nil)
		}
		env, err := decodeCursorPayload(payload, toolTag, rootDisplay)
		if err != nil {
			return "", err
		}
		resumeEnvelope = &env
	}

	intent := resolveIntent(explicitIntent, req)

	result := &Result{Intent: intent, Root: root}

	var mintState any
	truncatedByTimeout := false

	switch intent {
	case IntentFile:
		fs, err := handleFileIntent(root, req)
		if err != nil {
			return "", err
		}
		result.Sections = append(result.Sections, Section{Kind: SectionFileSlice, FileSlice: fs})

	case IntentGrep:
		var resume *grepCursorState
		if resumeEnvelope != nil && !resumeEnvelope.restartsPagination(req.FilePattern, req.AllowSecrets) {
			var state grepCursorState
			if err := resumeEnvelope.decodeState(&state); err == nil {
				resume = &state
			}
		}
		gr, next, err := handleGrepIntent(callCtx, root, req, resume)
		if err != nil {
			return "", err
		}
		result.Sections = append(result.Sections, Section{Kind: SectionGrepContext, GrepContext: gr})
		if next != nil {
			mintState = next
		}

	case IntentQuery:
		pack, err := handleQueryIntent(callCtx, r.deps.SearchEngine, r.deps.Graph, root, req, maxChars)
		if err != nil {
			return "", err
		}
		result.Sections = append(result.Sections, Section{Kind: SectionContextPack, ContextPack: pack})

	case IntentRecall:
		rec, err := handleRecallIntent(callCtx, r.deps.SearchEngine, r.deps.Graph, root, req)
		if err != nil {
			return "", err
		}
		result.Sections = append(result.Sections, Section{Kind: SectionRecall, Recall: rec})

	case IntentMemory:
		mem, err := handleMemoryIntent(root, req)
		if err != nil {
			return "", err
		}
		result.Sections = append(result.Sections, Section{Kind: SectionMemory, Memory: mem})

	case IntentOnboarding:
		ov, err := handleOnboardingIntent(callCtx, root, r.deps.Graph)
		if err != nil {
			return "", err
		}
		result.Sections = append(result.Sections, Section{Kind: SectionOverview, Overview: ov})

	default:
		return "", amanerrors.New(amanerrors.ErrCodeInvalidRequest, "unresolvable intent", nil)
	}

	if callCtx.Err() != nil {
		truncatedByTimeout = true
	}

	result.Sections = overlapDedupeSnippetSections(result.Sections)

	// LIFO section-popping budget trim, mirroring runner.rs's
	// while used_chars > max_chars && sections.len() > 1 loop: drop the
	// lowest-priority (last-appended) section before falling back to
	// halving the fully-rendered doc.
	mode := req.ResponseMode
	if mode == "" {
		mode = ResponseModeFacts
	}

	doc := renderDoc(result, mode, rootFingerprintHex(rootDisplay), "")
	for len(doc) > maxChars && len(result.Sections) > 1 {
		result.Sections = result.Sections[:len(result.Sections)-1]
		doc = renderDoc(result, mode, rootFingerprintHex(rootDisplay), "")
	}

	var cursorAlias string
	if mintState != nil {
		payload, err := encodeCursorPayload(toolTag, rootDisplay, req.FilePattern, req.AllowSecrets, mintState)
		if err == nil {
			cursorAlias = r.deps.Cursors.Insert(payload)
		}
	}

	truncation := TruncationNone
	if len(doc) > maxChars {
		truncation = TruncationMaxChars
	}
	if truncatedByTimeout {
		truncation = TruncationTimeout
	}
	result.Budget = Budget{MaxChars: maxChars, UsedChars: len(doc), Truncation: truncation, Truncated: truncation != TruncationNone}
	result.NextCursor = cursorAlias

	doc = renderDoc(result, mode, rootFingerprintHex(rootDisplay), cursorAlias)

	// Final safety net: halving-truncate the rendered doc itself, mirroring
	// runner.rs's `doc = truncate_to_chars(&doc, cur_chars.div_ceil(2))`
	// loop, in case section-popping alone couldn't fit the budget (e.g. a
	// single section already exceeds max_chars).
	for len(doc) > maxChars {
		next := (len(doc) + 1) / 2
		doc = truncateToChars(doc, next)
		if next <= maxChars || next <= 1 {
			break
		}
	}

	return doc, nil
}

func rootFingerprintHex(rootDisplay string) string {
	return fmt.Sprintf("%016x", rootsession.Fingerprint(rootDisplay))
}
