package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/chatweave/internal/bus"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/service/export"
	"github.com/sandevgo/chatweave/internal/service/premium"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/internal/storage/file"
)

type fakeSyncer struct {
	context string
	rearmed int
}

func (f *fakeSyncer) ContextFor(ctx context.Context, p core.Platform) string { return f.context }
func (f *fakeSyncer) SettingsUpdated()                                       { f.rearmed++ }

type fixture struct {
	server  *Server
	store   *storage.Gateway
	bus     *bus.Bus
	syncer  *fakeSyncer
	premium *premium.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)

	store := storage.NewWithBackend(fs)
	b := bus.New(16)
	sy := &fakeSyncer{}
	pm := premium.NewManager(context.Background(), fs)
	ex := export.New(store, pm)

	return &fixture{
		server:  NewServer(0, store, b, sy, ex, pm),
		store:   store,
		bus:     b,
		syncer:  sy,
		premium: pm,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedConversation(t *testing.T) core.Conversation {
	t.Helper()
	c := core.Conversation{
		ID:        "claude-42",
		Title:     "Database design",
		Platform:  core.PlatformClaude,
		CreatedAt: 1000,
		UpdatedAt: 2000,
		Messages: []core.Message{
			{ID: "m1", Role: core.RoleUser, Content: "How should I index this table?", Timestamp: 1000, Platform: core.PlatformClaude},
		},
	}
	require.NoError(t, f.store.SaveConversation(context.Background(), c))
	return c
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Version    string            `json:"version"`
		SyncStatus []core.SyncStatus `json:"syncStatus"`
		IsPremium  bool              `json:"isPremium"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, core.Version, body.Version)
	assert.Len(t, body.SyncStatus, len(core.Platforms()))
	assert.False(t, body.IsPremium)
}

func TestListConversations(t *testing.T) {
	f := newFixture(t)
	f.seedConversation(t)

	rec := f.do(t, http.MethodGet, "/api/v1/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Conversations []core.Conversation `json:"conversations"`
		Total         int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	// Search narrows, platform filters.
	rec = f.do(t, http.MethodGet, "/api/v1/conversations?q=index", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/conversations?q=nomatch", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/conversations?platform=grok", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/conversations?platform=typo", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversation(t *testing.T) {
	f := newFixture(t)
	c := f.seedConversation(t)

	rec := f.do(t, http.MethodGet, "/api/v1/conversations/"+c.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got core.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, c.Title, got.Title)

	rec = f.do(t, http.MethodGet, "/api/v1/conversations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerSync(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sync/claude", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case d := <-f.bus.Receive():
		msg, ok := d.Msg.(core.StartExtraction)
		require.True(t, ok)
		assert.Equal(t, core.PlatformClaude, msg.Platform)
	default:
		t.Fatal("no StartExtraction published")
	}

	rec = f.do(t, http.MethodPost, "/api/v1/sync/copilot", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetContext(t *testing.T) {
	f := newFixture(t)
	f.syncer.context = "Previous conversation context from other AI platforms:\n\n"

	rec := f.do(t, http.MethodGet, "/api/v1/context/gemini", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var reply core.ContextReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, f.syncer.context, reply.Context)
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seedConversation(t)

	rec := f.do(t, http.MethodGet, "/api/v1/export", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// Gated format without premium.
	rec = f.do(t, http.MethodGet, "/api/v1/export?format=csv", "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	_, err := f.premium.ActivateInviteCode(context.Background(), "BETA2025")
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/api/v1/export?format=csv", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rec = f.do(t, http.MethodGet, "/api/v1/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/import", `{"conversations":[]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/import", `{"settings":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var settings core.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.Equal(t, core.DefaultSettings(), settings)

	settings.SyncInterval = 10
	payload, err := json.Marshal(settings)
	require.NoError(t, err)

	rec = f.do(t, http.MethodPut, "/api/v1/settings", string(payload))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.syncer.rearmed, "settings write must re-arm the schedule")
	assert.Equal(t, 10, f.store.GetSettings(context.Background()).SyncInterval)

	rec = f.do(t, http.MethodPut, "/api/v1/settings", `{"enabledPlatforms":["copilot"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutTags(t *testing.T) {
	f := newFixture(t)
	c := f.seedConversation(t)

	rec := f.do(t, http.MethodPut, "/api/v1/conversations/"+c.ID+"/tags", `{"tags":["database","design"]}`)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	_, err := f.premium.ActivateInviteCode(context.Background(), "FAMILY2025")
	require.NoError(t, err)

	rec = f.do(t, http.MethodPut, "/api/v1/conversations/"+c.ID+"/tags", `{"tags":["database","design"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cs := f.store.Conversations(context.Background())
	require.Len(t, cs, 1)
	assert.Equal(t, []string{"database", "design"}, cs[0].Tags)

	rec = f.do(t, http.MethodPut, "/api/v1/conversations/missing/tags", `{"tags":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivatePremiumEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/premium/activate", `{"code":"friends2025"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.premium.IsPremium(context.Background()))

	rec = f.do(t, http.MethodPost, "/api/v1/premium/activate", `{"code":"WRONG"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
