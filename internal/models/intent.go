package models

import "strings"

// Intent is the classified purpose of a patron message.
type Intent string

const (
	IntentSearchBook  Intent = "search_book"
	IntentCheckStatus Intent = "check_status"
	IntentLibraryInfo Intent = "library_info"
	IntentGreeting    Intent = "greeting"
	IntentOther       Intent = "other"
	IntentAmbiguous   Intent = "ambiguous"
)

// ParseIntent maps a model-produced tag onto a known intent. Unknown tags become IntentOther.
func ParseIntent(tag string) Intent {
	norm := strings.ToLower(strings.TrimSpace(tag))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch Intent(norm) {
	case IntentSearchBook, IntentCheckStatus, IntentLibraryInfo, IntentGreeting, IntentOther, IntentAmbiguous:
		return Intent(norm)
	case "searchbook", "search":
		return IntentSearchBook
	case "checkstatus", "status":
		return IntentCheckStatus
	case "libraryinfo", "info":
		return IntentLibraryInfo
	default:
		return IntentOther
	}
}

// NeedsKeywords reports whether the intent carries a catalog keyword.
func (i Intent) NeedsKeywords() bool {
	return i == IntentSearchBook || i == IntentCheckStatus
}

// IntentResult is produced fresh for every inbound message and never persisted.
// An empty Response asks the router to fill in its own copy.
type IntentResult struct {
	Intent   Intent `json:"intent"`
	Keywords string `json:"keywords"`
	Response string `json:"response"`
}

// FallbackIntent is the neutral result used whenever classification fails.
func FallbackIntent() IntentResult {
	return IntentResult{Intent: IntentOther}
}
