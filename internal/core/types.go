package core

import "time"

const (
	AppName = "ChatWeave"
	Version = "0.1.0"
)

// Platform identifies one of the supported AI chat web applications.
type Platform string

const (
	PlatformChatGPT Platform = "chatgpt"
	PlatformClaude  Platform = "claude"
	PlatformGemini  Platform = "gemini"
	PlatformGrok    Platform = "grok"
)

// Platforms lists every supported platform in canonical order.
func Platforms() []Platform {
	return []Platform{PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformGrok}
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformChatGPT, PlatformClaude, PlatformGemini, PlatformGrok:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single normalized chat message scraped from a platform page.
// IDs are time+index based and are NOT globally unique: re-extracting the
// same page produces fresh ids for identical content.
type Message struct {
	ID        string   `json:"id"`
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
	Platform  Platform `json:"platform"`
}

// Conversation is a normalized conversation record. ID is
// "<platform>-<nativeID>" where nativeID is parsed from the page URL, or
// "unknown-<nowMs>" when the URL does not match any known pattern.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Platform  Platform  `json:"platform"`
	URL       string    `json:"url,omitempty"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
	Messages  []Message `json:"messages"`
	Tags      []string  `json:"tags,omitempty"`
}

// SyncStatus is the per-platform bookkeeping record. The stored collection
// always holds exactly one record per known platform.
type SyncStatus struct {
	Platform           Platform `json:"platform"`
	IsConnected        bool     `json:"isConnected"`
	LastSync           *int64   `json:"lastSync"` // unix ms, nil until first sync
	TotalConversations int      `json:"totalConversations"`
	IsExtracting       bool     `json:"isExtracting"`
	ExtractionProgress int      `json:"extractionProgress"` // 0..100
}

// SyncStatusPatch is a partial SyncStatus update. Nil fields are left
// untouched when the patch is applied.
type SyncStatusPatch struct {
	IsConnected        *bool  `json:"isConnected,omitempty"`
	LastSync           *int64 `json:"lastSync,omitempty"`
	TotalConversations *int   `json:"totalConversations,omitempty"`
	IsExtracting       *bool  `json:"isExtracting,omitempty"`
	ExtractionProgress *int   `json:"extractionProgress,omitempty"`
}

func (p SyncStatusPatch) Apply(s *SyncStatus) {
	if p.IsConnected != nil {
		s.IsConnected = *p.IsConnected
	}
	if p.LastSync != nil {
		s.LastSync = p.LastSync
	}
	if p.TotalConversations != nil {
		s.TotalConversations = *p.TotalConversations
	}
	if p.IsExtracting != nil {
		s.IsExtracting = *p.IsExtracting
	}
	if p.ExtractionProgress != nil {
		s.ExtractionProgress = *p.ExtractionProgress
	}
}

// Settings is the process-wide user configuration. Unlike the environment
// config it is user-mutable state and lives in storage.
type Settings struct {
	AutoSync               bool       `json:"autoSync"`
	SyncInterval           int        `json:"syncInterval"` // minutes
	EnabledPlatforms       []Platform `json:"enabledPlatforms"`
	MaxContextLength       int        `json:"maxContextLength"`
	EnableContextInjection bool       `json:"enableContextInjection"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoSync:               true,
		SyncInterval:           30,
		EnabledPlatforms:       Platforms(),
		MaxContextLength:       10000,
		EnableContextInjection: true,
	}
}

func (s Settings) PlatformEnabled(p Platform) bool {
	for _, ep := range s.EnabledPlatforms {
		if ep == p {
			return true
		}
	}
	return false
}

// DefaultSyncStatuses returns the zeroed 4-entry status array seeded at
// install time.
func DefaultSyncStatuses() []SyncStatus {
	platforms := Platforms()
	statuses := make([]SyncStatus, 0, len(platforms))
	for _, p := range platforms {
		statuses = append(statuses, SyncStatus{Platform: p})
	}
	return statuses
}

// NowMs is the clock used for synthesized ids and timestamps. Overridable in
// tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }
