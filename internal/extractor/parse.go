// Package extractor turns live platform pages into normalized conversation
// records. One generic extractor serves every platform; all per-platform
// knowledge lives in the profile it is constructed with.
package extractor

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/platform"
)

const untitledConversation = "Untitled Conversation"

var fragmentPolicy = bluemonday.UGCPolicy()

// Link is one history-sidebar entry.
type Link struct {
	URL   string
	Title string
}

// ListConversationLinks walks the profile's link selector chains over a page
// snapshot. The first selector yielding any elements wins; links with an
// excluded title are dropped. pageURL resolves relative hrefs.
func ListConversationLinks(doc *goquery.Document, prof *platform.Profile, pageURL string) []Link {
	var nodes *goquery.Selection
	for _, sel := range prof.LinkSelectors {
		found := doc.Find(sel)
		if found.Length() > 0 {
			nodes = found
			break
		}
	}
	if nodes == nil {
		return nil
	}

	var links []Link
	nodes.Each(func(_ int, node *goquery.Selection) {
		href, _ := node.Attr("href")
		url := resolveHref(href, prof.BaseURL, pageURL)
		title := linkTitle(node, prof)
		for _, excluded := range prof.ExcludedTitles {
			if title == excluded {
				return
			}
		}
		links = append(links, Link{URL: url, Title: title})
	})
	return links
}

func resolveHref(href, baseURL, pageURL string) string {
	switch {
	case href == "":
		return pageURL
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "/"):
		return strings.TrimSuffix(baseURL, "/") + href
	default:
		return strings.TrimSuffix(baseURL, "/") + "/" + href
	}
}

func linkTitle(node *goquery.Selection, prof *platform.Profile) string {
	for _, sel := range prof.LinkTitleSelectors {
		el := node.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		title := strings.TrimSpace(el.Text())
		if title == "" {
			title, _ = el.Attr("title")
			title = strings.TrimSpace(title)
		}
		if title != "" {
			return title
		}
	}

	text := strings.TrimSpace(node.Text())
	if text == "" {
		return untitledConversation
	}
	if prof.MaxLinkTitleLen > 0 && len(text) >= prof.MaxLinkTitleLen {
		return untitledConversation
	}
	return text
}

// ExtractMessages parses every message on the page. The element index within
// the matched set, not the kept-message index, derives ids and approximate
// timestamps, so filtered-out elements still consume slots.
func ExtractMessages(doc *goquery.Document, prof *platform.Profile) []core.Message {
	var nodes *goquery.Selection
	for _, sel := range prof.MessageSelectors {
		found := doc.Find(sel)
		if found.Length() > 0 {
			nodes = found
			break
		}
	}
	if nodes == nil {
		for _, sel := range prof.MessageFallbackSelectors {
			found := doc.Find(sel)
			if found.Length() > 0 {
				nodes = found
				break
			}
		}
	}
	if nodes == nil {
		return nil
	}

	now := core.NowMs()
	total := nodes.Length()
	var messages []core.Message
	nodes.Each(func(i int, node *goquery.Selection) {
		content := messageContent(node, prof)
		content = cleanContent(content, prof)
		if len(content) <= prof.MinContentLength || isUIElement(content, prof) {
			return
		}

		ts := nodeTimestamp(node)
		if ts == 0 {
			ts = now - int64(total-i)*1000
		}

		messages = append(messages, core.Message{
			ID:        fmt.Sprintf("%s-msg-%d-%d", prof.Platform, now, i),
			Role:      inferRole(node, prof),
			Content:   content,
			Timestamp: ts,
			Platform:  prof.Platform,
		})
	})
	return messages
}

func inferRole(node *goquery.Selection, prof *platform.Profile) core.Role {
	if prof.RoleAttr != "" {
		if v, ok := node.Attr(prof.RoleAttr); ok && v != "" {
			return core.Role(v)
		}
	}

	role := core.RoleUser
	if matchesAny(node, prof.AssistantRules) {
		role = core.RoleAssistant
	}
	// User rules win ties: a node matching both heuristics is the user's.
	if role == core.RoleAssistant && matchesAny(node, prof.UserRules) {
		role = core.RoleUser
	}
	return role
}

func matchesAny(node *goquery.Selection, rules []platform.RoleRule) bool {
	text := node.Text()
	for _, r := range rules {
		switch {
		case r.Attr != "":
			if v, ok := node.Attr(r.Attr); ok && v == r.AttrValue {
				return true
			}
		case r.Class != "":
			if node.HasClass(r.Class) {
				return true
			}
		case r.Selector != "":
			if node.Find(r.Selector).Length() > 0 {
				return true
			}
		case r.TextPrefix != "":
			if strings.HasPrefix(text, r.TextPrefix) {
				return true
			}
		case r.TextContains != "":
			if strings.Contains(text, r.TextContains) {
				return true
			}
		}
	}
	return false
}

// messageContent runs the content sub-selector chain, then falls back to the
// node's own markup rendered as plain text.
func messageContent(node *goquery.Selection, prof *platform.Profile) string {
	for _, sel := range prof.ContentSelectors {
		el := node.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
	}
	return renderNodeText(node)
}

func renderNodeText(node *goquery.Selection) string {
	markup, err := node.Html()
	if err != nil || strings.TrimSpace(markup) == "" {
		return strings.TrimSpace(node.Text())
	}
	text, err := html2text.FromString(fragmentPolicy.Sanitize(markup), html2text.Options{
		OmitLinks: true,
	})
	if err != nil {
		return strings.TrimSpace(node.Text())
	}
	return strings.TrimSpace(text)
}

func cleanContent(content string, prof *platform.Profile) string {
	content = strings.TrimSpace(content)
	for _, re := range prof.CleanupPrefixes {
		content = re.ReplaceAllString(content, "")
	}
	for _, re := range prof.CleanupSuffixes {
		content = re.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}

func isUIElement(content string, prof *platform.Profile) bool {
	for _, re := range prof.UIPatterns {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// nodeTimestamp reads an explicit time marker off the message node. Zero
// means none found.
func nodeTimestamp(node *goquery.Selection) int64 {
	el := node.Find(`time, .timestamp, [data-timestamp]`).First()
	if el.Length() == 0 {
		return 0
	}

	raw, ok := el.Attr("datetime")
	if !ok || raw == "" {
		raw, _ = el.Attr("data-timestamp")
	}
	if raw == "" {
		raw = strings.TrimSpace(el.Text())
	}
	if raw == "" {
		return 0
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// ConversationID parses the platform-native conversation id out of a URL,
// falling back to a time-based placeholder.
func ConversationID(url string, prof *platform.Profile) string {
	for _, re := range prof.IDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return fmt.Sprintf("unknown-%d", core.NowMs())
}

var tagLanguages = []string{"javascript", "python", "java", "react", "node", "css", "html", "typescript", "sql"}
var tagTopics = []string{"help", "tutorial", "debug", "error", "code", "api", "database", "design"}

// DeriveTags substring-matches the title against the fixed tag vocabulary,
// languages first.
func DeriveTags(title string) []string {
	lower := strings.ToLower(title)
	var tags []string
	for _, lang := range tagLanguages {
		if strings.Contains(lower, lang) {
			tags = append(tags, lang)
		}
	}
	for _, topic := range tagTopics {
		if strings.Contains(lower, topic) {
			tags = append(tags, topic)
		}
	}
	return tags
}

// BuildConversation assembles the normalized record for one parsed page.
// Returns nil when the page yielded no messages.
func BuildConversation(prof *platform.Profile, url, title string, messages []core.Message) *core.Conversation {
	if len(messages) == 0 {
		return nil
	}
	return &core.Conversation{
		ID:        fmt.Sprintf("%s-%s", prof.Platform, ConversationID(url, prof)),
		Title:     title,
		Platform:  prof.Platform,
		URL:       url,
		CreatedAt: messages[0].Timestamp,
		UpdatedAt: messages[len(messages)-1].Timestamp,
		Messages:  messages,
		Tags:      DeriveTags(title),
	}
}
