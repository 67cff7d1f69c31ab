package core

// Inter-context message protocol. Extractors, the orchestrator and the
// transports exchange these structs over the in-process bus; the JSON tags
// mirror the wire shapes used by the HTTP and MCP surfaces.
//
// Commands carry no reply. Queries declare their reply type; the bus makes
// that distinction a compile-time property rather than a runtime convention.

const (
	KindConversationExtracted = "CONVERSATION_EXTRACTED"
	KindRequestContext        = "REQUEST_CONTEXT"
	KindUpdateSyncStatus      = "UPDATE_SYNC_STATUS"
	KindStartExtraction       = "START_EXTRACTION"
	KindAutoSync              = "AUTO_SYNC"
	KindExtractConversations  = "EXTRACT_CONVERSATIONS"
	KindGetStatus             = "GET_STATUS"
	KindPlatformConnected     = "PLATFORM_CONNECTED"
)

// Inbound to the orchestrator.

type ConversationExtracted struct {
	Type         string       `json:"type"`
	Conversation Conversation `json:"conversation"`
}

func NewConversationExtracted(c Conversation) ConversationExtracted {
	return ConversationExtracted{Type: KindConversationExtracted, Conversation: c}
}

type RequestContext struct {
	Type     string   `json:"type"`
	Platform Platform `json:"platform"`
}

func NewRequestContext(p Platform) RequestContext {
	return RequestContext{Type: KindRequestContext, Platform: p}
}

type ContextReply struct {
	Context string `json:"context"`
}

type UpdateSyncStatus struct {
	Type     string          `json:"type"`
	Platform Platform        `json:"platform"`
	Updates  SyncStatusPatch `json:"updates"`
}

func NewUpdateSyncStatus(p Platform, patch SyncStatusPatch) UpdateSyncStatus {
	return UpdateSyncStatus{Type: KindUpdateSyncStatus, Platform: p, Updates: patch}
}

type PlatformConnected struct {
	Type      string   `json:"type"`
	Platform  Platform `json:"platform"`
	URL       string   `json:"url"`
	Timestamp int64    `json:"timestamp"`
}

func NewPlatformConnected(p Platform, url string) PlatformConnected {
	return PlatformConnected{Type: KindPlatformConnected, Platform: p, URL: url, Timestamp: NowMs()}
}

// Outbound from the orchestrator to a platform session.

type StartExtraction struct {
	Type     string   `json:"type"`
	Platform Platform `json:"platform"`
}

func NewStartExtraction(p Platform) StartExtraction {
	return StartExtraction{Type: KindStartExtraction, Platform: p}
}

type AutoSync struct {
	Type string `json:"type"`
}

func NewAutoSync() AutoSync { return AutoSync{Type: KindAutoSync} }

type ExtractConversations struct {
	Type     string   `json:"type"`
	Platform Platform `json:"platform"`
}

func NewExtractConversations(p Platform) ExtractConversations {
	return ExtractConversations{Type: KindExtractConversations, Platform: p}
}

type ExtractReply struct {
	Success       bool           `json:"success"`
	Conversations []Conversation `json:"conversations,omitempty"`
	TotalCount    int            `json:"totalCount"`
	Platform      Platform       `json:"platform"`
	Error         string         `json:"error,omitempty"`
}

type GetStatus struct {
	Type     string   `json:"type"`
	Platform Platform `json:"platform"`
}

func NewGetStatus(p Platform) GetStatus { return GetStatus{Type: KindGetStatus, Platform: p} }

type StatusReply struct {
	IsExtracting       bool     `json:"isExtracting"`
	Progress           int      `json:"progress"`
	TotalConversations int      `json:"totalConversations"`
	Platform           Platform `json:"platform"`
	Connected          bool     `json:"connected"`
}

// Notifications fanned out by the orchestrator after a sync run.

type SyncNotification struct {
	Platform Platform `json:"platform"`
	Success  bool     `json:"success"`
	Total    int      `json:"total"`
	Error    string   `json:"error,omitempty"`
}
