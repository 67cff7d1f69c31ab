// Package mcp exposes the conversation archive to local AI clients over the
// Model Context Protocol: a search tool and the cross-platform context
// synthesizer, served on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/pkg/log"
)

// ContextProvider synthesizes the cross-platform context block.
type ContextProvider interface {
	ContextFor(ctx context.Context, p core.Platform) string
}

type Server struct {
	store    core.ConversationStore
	provider ContextProvider
	mcp      *server.MCPServer
}

func NewServer(store core.ConversationStore, provider ContextProvider) *Server {
	s := &Server{store: store, provider: provider}

	s.mcp = server.NewMCPServer(core.AppName, core.Version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(
		mcp.NewTool("search_conversations",
			mcp.WithDescription("Search the synced AI chat history by title and message content"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Case-insensitive search term")),
			mcp.WithString("platform", mcp.Description("Restrict to one platform: chatgpt, claude, gemini or grok")),
		),
		s.searchConversations,
	)
	s.mcp.AddTool(
		mcp.NewTool("get_cross_context",
			mcp.WithDescription("Build the cross-platform context block for a platform, excluding that platform's own conversations"),
			mcp.WithString("platform", mcp.Required(), mcp.Description("Requesting platform: chatgpt, claude, gemini or grok")),
		),
		s.getCrossContext,
	)
	return s
}

// Start serves MCP on stdio until the stream closes. Satisfies srv.Service.
func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("mcp server on stdio")
	if err := server.ServeStdio(s.mcp); err != nil {
		return fmt.Errorf("mcp server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return nil }

// searchResult is the per-hit shape returned to the client; messages are
// summarized to a count to keep replies small.
type searchResult struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Platform core.Platform `json:"platform"`
	URL      string        `json:"url,omitempty"`
	Updated  int64         `json:"updatedAt"`
	Messages int           `json:"messageCount"`
	Tags     []string      `json:"tags,omitempty"`
}

func (s *Server) searchConversations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hits := s.store.SearchConversations(ctx, query)

	if p := core.Platform(req.GetString("platform", "")); p != "" {
		if !p.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown platform %q", p)), nil
		}
		filtered := hits[:0]
		for _, c := range hits {
			if c.Platform == p {
				filtered = append(filtered, c)
			}
		}
		hits = filtered
	}

	results := make([]searchResult, 0, len(hits))
	for _, c := range hits {
		results = append(results, searchResult{
			ID:       c.ID,
			Title:    c.Title,
			Platform: c.Platform,
			URL:      c.URL,
			Updated:  c.UpdatedAt,
			Messages: len(c.Messages),
			Tags:     c.Tags,
		})
	}

	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getCrossContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := core.Platform(raw)
	if !p.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown platform %q", p)), nil
	}

	context := s.provider.ContextFor(ctx, p)
	if context == "" {
		return mcp.NewToolResultText("No cross-platform context available."), nil
	}
	return mcp.NewToolResultText(context), nil
}
