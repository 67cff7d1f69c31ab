// Package platform holds the per-platform extraction profiles. A profile is
// pure configuration: selector fallback chains, URL patterns, role
// heuristics and cleanup rules. The generic extractor consumes a profile and
// never branches on the platform itself, so tuning a platform's selectors
// cannot change control flow.
package platform

import (
	"regexp"
	"time"

	"github.com/sandevgo/chatweave/internal/core"
)

// RoleRule is a single role-inference heuristic. Exactly one of the matcher
// fields is set per rule.
type RoleRule struct {
	// Attr/AttrValue match when the node carries attribute Attr with exactly
	// AttrValue.
	Attr      string
	AttrValue string
	// Class matches when the node's class list contains this class.
	Class string
	// Selector matches when the node has a descendant matching it.
	Selector string
	// TextPrefix matches when the node's text starts with this literal.
	TextPrefix string
	// TextContains matches when the node's text contains this literal.
	TextContains string
}

// Profile configures extraction for one platform. Selectors are fallback
// chains: the extractor tries each in order and keeps the first that yields
// a nonempty result. Missing selectors degrade to empty results, never
// errors.
type Profile struct {
	Platform core.Platform

	BaseURL string
	// HistoryURL is the page listing past conversations; full extraction
	// navigates there when the session is elsewhere.
	HistoryURL string
	// HistoryPathHint is the URL substring that marks "already on the
	// history/conversation area".
	HistoryPathHint string

	// ReadySelectors gate the start of a full extraction run.
	ReadySelectors []string
	// MessageReadySelectors gate each opened conversation.
	MessageReadySelectors []string

	LinkSelectors      []string
	LinkTitleSelectors []string
	ExcludedTitles     []string
	// MaxLinkTitleLen caps the link-text fallback title; 0 means no cap.
	MaxLinkTitleLen int

	MessageSelectors []string
	// MessageFallbackSelectors are a last-ditch structural guess when no
	// message selector matches at all.
	MessageFallbackSelectors []string
	ContentSelectors         []string

	// RoleAttr, when set, names an attribute whose value is the role itself
	// (ChatGPT's data-message-author-role).
	RoleAttr string
	// AssistantRules then UserRules are evaluated in order; a matching user
	// rule wins over a matching assistant rule.
	AssistantRules []RoleRule
	UserRules      []RoleRule

	IDPatterns []*regexp.Regexp

	MinContentLength int
	CleanupPrefixes  []*regexp.Regexp
	CleanupSuffixes  []*regexp.Regexp
	// UIPatterns reject content that is pure page chrome.
	UIPatterns []*regexp.Regexp

	InputSelectors []string

	ReadyWaitTimeout   time.Duration
	MessageWaitTimeout time.Duration
}

// ByPlatform returns the profile for p, or nil for an unknown platform.
func ByPlatform(p core.Platform) *Profile {
	switch p {
	case core.PlatformChatGPT:
		return ChatGPT()
	case core.PlatformClaude:
		return Claude()
	case core.PlatformGemini:
		return Gemini()
	case core.PlatformGrok:
		return Grok()
	}
	return nil
}

// All returns every platform profile in canonical order.
func All() []*Profile {
	return []*Profile{ChatGPT(), Claude(), Gemini(), Grok()}
}
