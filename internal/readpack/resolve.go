package readpack

import "strings"

// resolveIntent implements spec §4.15's Auto resolution: the request shape
// (presence of file/pattern/query/question) picks the intent pre-dispatch.
// An explicitly-tagged, non-Auto intent always wins.
func resolveIntent(explicit Intent, req Request) Intent {
	if explicit != "" && explicit != IntentAuto {
		return explicit
	}
	switch {
	case nonEmpty(req.File):
		return IntentFile
	case nonEmpty(req.Pattern):
		return IntentGrep
	case nonEmpty(req.Question):
		return IntentRecall
	case nonEmpty(req.Query):
		return IntentQuery
	default:
		return IntentOnboarding
	}
}

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}
