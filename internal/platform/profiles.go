package platform

import (
	"regexp"
	"time"

	"github.com/sandevgo/chatweave/internal/core"
)

// Selector sets are expected to rot as the platforms restyle their pages;
// keep chains ordered from most specific to most desperate.

func ChatGPT() *Profile {
	return &Profile{
		Platform:        core.PlatformChatGPT,
		BaseURL:         "https://chat.openai.com",
		HistoryURL:      "https://chat.openai.com/",
		HistoryPathHint: "/",
		ReadySelectors: []string{
			`nav`, `.sidebar`, `[data-testid="sidebar"]`,
		},
		MessageReadySelectors: []string{
			`[data-message-author-role]`, `.message`, `[data-testid="conversation-turn"]`,
		},
		LinkSelectors: []string{
			`li[data-testid="conversation-item"] a`,
			`a[href*="/c/"]`,
			`a[href*="/chat/"]`,
			`nav li a`,
		},
		LinkTitleSelectors: []string{
			`.conversation-title`, `.text-sm`, `span`, `div[title]`, `[data-testid="conversation-title"]`,
		},
		ExcludedTitles: []string{"New Chat"},
		MessageSelectors: []string{
			`[data-message-author-role]`, `.message`, `[data-testid="conversation-turn"]`,
		},
		ContentSelectors: []string{
			`.prose`, `.markdown`, `.message-content`, `p`, `.text-base`, `div[data-message-content]`,
		},
		RoleAttr: "data-message-author-role",
		AssistantRules: []RoleRule{
			{Class: "assistant-message"},
			{Selector: `[data-message-author-role="assistant"]`},
			{TextPrefix: "ChatGPT:"},
			{TextPrefix: "Assistant:"},
			{TextPrefix: "AI:"},
		},
		UserRules: []RoleRule{
			{Class: "user-message"},
			{Selector: `[data-message-author-role="user"]`},
			{TextPrefix: "You:"},
			{TextPrefix: "User:"},
			{TextPrefix: "Me:"},
		},
		IDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/c/([a-f0-9-]+)`),
			regexp.MustCompile(`/chat/([a-f0-9-]+)`),
			regexp.MustCompile(`conversation/([a-f0-9-]+)`),
		},
		MinContentLength: 10,
		InputSelectors: []string{
			`#prompt-textarea`, `textarea[data-id]`, `textarea`, `[contenteditable="true"]`,
		},
		ReadyWaitTimeout:   5 * time.Second,
		MessageWaitTimeout: 3 * time.Second,
	}
}

func Claude() *Profile {
	return &Profile{
		Platform:        core.PlatformClaude,
		BaseURL:         "https://claude.ai",
		HistoryURL:      "https://claude.ai/chats",
		HistoryPathHint: "/chat",
		ReadySelectors: []string{
			`[data-testid="chat-input"]`, `.ProseMirror`,
		},
		MessageReadySelectors: []string{
			`[data-testid="message"]`, `.font-user-message`, `.font-claude-message`,
		},
		LinkSelectors: []string{
			`a[href*="/chat/"]`,
		},
		LinkTitleSelectors: []string{
			`.truncate`, `.text-sm`, `.font-medium`,
		},
		ExcludedTitles: []string{"New Chat"},
		MessageSelectors: []string{
			`[data-testid="message"]`,
			`.font-user-message`,
			`.font-claude-message`,
			`[data-is-streaming="false"]`,
			`.group.w-full`,
		},
		ContentSelectors: []string{
			`.prose`, `.whitespace-pre-wrap`, `p`, `div`,
		},
		AssistantRules: []RoleRule{
			{Class: "font-claude-message"},
			{Selector: `.text-claude-orange`},
			{Selector: `[data-testid="claude-message"]`},
			{TextContains: "Claude:"},
		},
		UserRules: []RoleRule{
			{Class: "font-user-message"},
			{Selector: `[data-testid="user-message"]`},
			{Selector: `.bg-human-message`},
		},
		IDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/chat/([a-zA-Z0-9-]+)`),
		},
		MinContentLength: 10,
		InputSelectors: []string{
			`[data-testid="chat-input"]`, `.ProseMirror`, `[contenteditable="true"]`, `textarea`,
		},
		ReadyWaitTimeout:   5 * time.Second,
		MessageWaitTimeout: 3 * time.Second,
	}
}

func Gemini() *Profile {
	return &Profile{
		Platform:        core.PlatformGemini,
		BaseURL:         "https://gemini.google.com",
		HistoryURL:      "https://gemini.google.com/app",
		HistoryPathHint: "/app",
		ReadySelectors: []string{
			`[data-test-id="chat-history"]`, `.conversation-container`,
		},
		MessageReadySelectors: []string{
			`[data-test-id="message"]`, `.message-content`, `.user-message`, `.model-response`,
		},
		LinkSelectors: []string{
			`[data-test-id="chat-history"] a`,
			`.conversation-item a`,
			`.chat-history-item`,
			`a[href*="/chat/"]`,
		},
		LinkTitleSelectors: []string{
			`.conversation-title`, `.chat-title`, `.truncate`, `span`, `div`,
		},
		ExcludedTitles: []string{"New Chat"},
		MessageSelectors: []string{
			`[data-test-id="message"]`,
			`.message-content`,
			`.user-message`,
			`.model-response`,
			`.conversation-turn`,
			`[role="presentation"]`,
		},
		MessageFallbackSelectors: []string{
			`.conversation-container > div`, `main > div > div`,
		},
		ContentSelectors: []string{
			`.message-text`, `.content`, `p`, `div`, `span`,
		},
		AssistantRules: []RoleRule{
			{Class: "model-response"},
			{Class: "assistant-message"},
			{Selector: `.model-response`},
			{Selector: `[data-test-id="model-response"]`},
			{TextContains: "Gemini:"},
		},
		UserRules: []RoleRule{
			{Class: "user-message"},
			{Selector: `.user-message`},
			{Selector: `[data-test-id="user-message"]`},
		},
		IDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/chat/([a-zA-Z0-9-]+)`),
			regexp.MustCompile(`/app/([a-zA-Z0-9]+)`),
		},
		MinContentLength: 10,
		InputSelectors: []string{
			`[data-test-id="chat-input"]`,
			`.chat-input`,
			`textarea[placeholder*="Enter a prompt"]`,
			`textarea`,
			`[contenteditable="true"]`,
		},
		ReadyWaitTimeout:   5 * time.Second,
		MessageWaitTimeout: 3 * time.Second,
	}
}

func Grok() *Profile {
	return &Profile{
		Platform:        core.PlatformGrok,
		BaseURL:         "https://grok.x.com",
		HistoryURL:      "https://grok.x.com/",
		HistoryPathHint: "/grok",
		ReadySelectors: []string{
			`[data-testid="grok-message"]`, `.conversation-item`, `[role="main"]`,
		},
		MessageReadySelectors: []string{
			`[data-testid="grok-message"]`, `.message-content`, `[role="group"]`,
		},
		LinkSelectors: []string{
			`[data-testid="conversation-item"] a`,
			`.conversation-link`,
			`a[href*="/grok/"]`,
			`[role="listitem"] a`,
			`.chat-history-item`,
		},
		LinkTitleSelectors: []string{
			`[data-testid="conversation-title"]`,
			`.conversation-title`,
			`.chat-title`,
			`.truncate`,
			`span[dir="auto"]`,
			`span`,
			`div`,
		},
		ExcludedTitles:  []string{"New Chat", "Start new conversation"},
		MaxLinkTitleLen: 100,
		MessageSelectors: []string{
			`[data-testid="grok-message"]`,
			`[data-testid="user-message"]`,
			`.message-content`,
			`.conversation-turn`,
			`[role="group"]`,
			`.chat-message`,
		},
		MessageFallbackSelectors: []string{
			`[role="main"] > div > div`, `.conversation-container > div`,
		},
		ContentSelectors: []string{
			`[data-testid="message-text"]`,
			`.message-text`,
			`.tweet-text`,
			`[dir="auto"]`,
			`p`,
			`div`,
			`span`,
		},
		AssistantRules: []RoleRule{
			{Attr: "data-testid", AttrValue: "grok-message"},
			{Class: "grok-message"},
			{Class: "assistant-message"},
			{Selector: `[data-testid="grok-message"]`},
			{TextContains: "Grok:"},
		},
		UserRules: []RoleRule{
			{Attr: "data-testid", AttrValue: "user-message"},
			{Class: "user-message"},
			{Selector: `[data-testid="user-message"]`},
		},
		IDPatterns: []*regexp.Regexp{
			regexp.MustCompile(`/grok/([a-zA-Z0-9-]+)`),
		},
		MinContentLength: 10,
		CleanupPrefixes: []*regexp.Regexp{
			regexp.MustCompile(`^(Grok:|You:)\s*`),
		},
		CleanupSuffixes: []*regexp.Regexp{
			regexp.MustCompile(`\s*(Show more|Show less|Copy|Share)\s*$`),
		},
		UIPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(New chat|Start new conversation|Settings|Profile)$`),
			regexp.MustCompile(`(?i)^(Loading|Thinking|Typing)\.\.\.$`),
			regexp.MustCompile(`(?i)^\d+\s*(like|retweet|reply|share)s?$`),
			regexp.MustCompile(`(?i)^(Show more|Show less|Copy|Share|Delete)$`),
		},
		InputSelectors: []string{
			`[data-testid="grok-input"]`,
			`[data-testid="tweet-text-input"]`,
			`.chat-input`,
			`textarea[placeholder*="Ask Grok"]`,
			`textarea`,
			`[contenteditable="true"]`,
		},
		ReadyWaitTimeout:   5 * time.Second,
		MessageWaitTimeout: 3 * time.Second,
	}
}
