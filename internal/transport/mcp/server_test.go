package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/internal/storage/file"
)

type staticProvider struct{ context string }

func (p staticProvider) ContextFor(ctx context.Context, platform core.Platform) string {
	return p.context
}

func newTestServer(t *testing.T, provider ContextProvider) (*Server, *storage.Gateway) {
	t.Helper()
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)
	store := storage.NewWithBackend(fs)

	require.NoError(t, store.SaveConversation(context.Background(), core.Conversation{
		ID:       "chatgpt-1",
		Title:    "Python generators",
		Platform: core.PlatformChatGPT,
		Messages: []core.Message{
			{ID: "m1", Role: core.RoleUser, Content: "When should I prefer a generator over a list?", Platform: core.PlatformChatGPT},
		},
		UpdatedAt: 1000,
	}))
	require.NoError(t, store.SaveConversation(context.Background(), core.Conversation{
		ID:        "grok-1",
		Title:     "Python typing",
		Platform:  core.PlatformGrok,
		Messages:  []core.Message{{ID: "m2", Role: core.RoleUser, Content: "Explain protocols versus abstract base classes.", Platform: core.PlatformGrok}},
		UpdatedAt: 2000,
	}))

	return NewServer(store, provider), store
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestSearchConversations(t *testing.T) {
	s, _ := newTestServer(t, staticProvider{})

	res, err := s.searchConversations(context.Background(), callRequest(map[string]any{"query": "python"}))
	require.NoError(t, err)

	var hits []searchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &hits))
	assert.Len(t, hits, 2)
}

func TestSearchConversationsPlatformFilter(t *testing.T) {
	s, _ := newTestServer(t, staticProvider{})

	res, err := s.searchConversations(context.Background(), callRequest(map[string]any{
		"query":    "python",
		"platform": "grok",
	}))
	require.NoError(t, err)

	var hits []searchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "grok-1", hits[0].ID)
}

func TestSearchConversationsBadArgs(t *testing.T) {
	s, _ := newTestServer(t, staticProvider{})

	res, err := s.searchConversations(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "missing query must surface as a tool error")

	res, err = s.searchConversations(context.Background(), callRequest(map[string]any{
		"query": "x", "platform": "copilot",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGetCrossContext(t *testing.T) {
	header := "Previous conversation context from other AI platforms:\n\n"
	s, _ := newTestServer(t, staticProvider{context: header})

	res, err := s.getCrossContext(context.Background(), callRequest(map[string]any{"platform": "claude"}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resultText(t, res), header))
}

func TestGetCrossContextEmpty(t *testing.T) {
	s, _ := newTestServer(t, staticProvider{})

	res, err := s.getCrossContext(context.Background(), callRequest(map[string]any{"platform": "claude"}))
	require.NoError(t, err)
	assert.Equal(t, "No cross-platform context available.", resultText(t, res))
}
