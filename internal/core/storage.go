package core

import "context"

// Storage keys shared by every backend.
const (
	KeyConversations  = "conversations"
	KeySettings       = "settings"
	KeySyncStatus     = "syncStatus"
	KeySetupCompleted = "setupCompleted"
	KeySubscription   = "subscription"
)

// Backend is a minimal asynchronous key/value store over JSON blobs. Get
// returns (nil, nil) for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Name() string
}

// ConversationStore is the typed persistence facade the rest of the process
// talks to. Storage errors never escape it: readers get safe defaults,
// writers get a logged no-op, except ImportData which must reject malformed
// payloads.
type ConversationStore interface {
	Conversations(ctx context.Context) []Conversation
	SaveConversation(ctx context.Context, c Conversation) error
	SaveConversations(ctx context.Context, cs []Conversation) error
	SearchConversations(ctx context.Context, query string) []Conversation
	ConversationsByPlatform(ctx context.Context, p Platform) []Conversation

	SyncStatuses(ctx context.Context) []SyncStatus
	UpdateSyncStatus(ctx context.Context, p Platform, patch SyncStatusPatch) error

	GetSettings(ctx context.Context) Settings
	SaveSettings(ctx context.Context, s Settings) error

	ExportData(ctx context.Context) ([]byte, error)
	ImportData(ctx context.Context, data []byte) error

	IsFirstTime(ctx context.Context) bool
	MarkSetupComplete(ctx context.Context) error

	// SeedDefaults writes default settings, an empty conversation collection
	// and the zeroed status array for any of those keys not yet present.
	// Existing data is never overwritten.
	SeedDefaults(ctx context.Context) error
}
