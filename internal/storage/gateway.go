// Package storage provides the persistence gateway: a typed facade over one
// of two interchangeable key/value backends, selected once at startup by
// capability probing.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/storage/file"
	"github.com/sandevgo/chatweave/internal/storage/sqlite"
	"github.com/sandevgo/chatweave/pkg/log"
)

// ExportPayload is the full-fidelity snapshot written by ExportData and
// accepted by ImportData.
type ExportPayload struct {
	Conversations []core.Conversation `json:"conversations"`
	Settings      *core.Settings      `json:"settings,omitempty"`
	SyncStatus    []core.SyncStatus   `json:"syncStatus,omitempty"`
	ExportedAt    int64               `json:"exportedAt"`
	Version       string              `json:"version"`
}

// Gateway implements core.ConversationStore. All read-modify-write sections
// run under one mutex, but the intended write discipline is stronger: every
// conversation and status mutation in the running daemon is funneled through
// the orchestrator goroutine, so the lock only matters for direct CLI use.
type Gateway struct {
	backend core.Backend
	mu      sync.Mutex
}

// New probes for the configured backend and returns the gateway plus a
// cleanup function. Probing happens exactly once; the result is cached for
// the gateway's lifetime.
func New(ctx context.Context, cfg *config.AppConfig) (*Gateway, func() error, error) {
	logger := log.FromCtx(ctx)

	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case "file":
		fs, err := file.New(cfg.GetFileStorePath())
		if err != nil {
			return nil, nil, err
		}
		return &Gateway{backend: fs}, noop, nil

	case "sqlite":
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err != nil {
			return nil, nil, err
		}
		return &Gateway{backend: sqlite.NewKV(db)}, db.Close, nil

	default: // auto
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err == nil {
			return &Gateway{backend: sqlite.NewKV(db)}, db.Close, nil
		}
		logger.Warn().Err(err).Msg("sqlite unavailable, falling back to file store")

		fs, ferr := file.New(cfg.GetFileStorePath())
		if ferr != nil {
			return nil, nil, fmt.Errorf("no usable storage backend: %w", ferr)
		}
		return &Gateway{backend: fs}, noop, nil
	}
}

// NewWithBackend wires an explicit backend, bypassing probing. Used by tests
// and by callers that already own a backend.
func NewWithBackend(b core.Backend) *Gateway {
	return &Gateway{backend: b}
}

// Backend exposes the probed backend for collaborators that persist their
// own keys (the premium manager).
func (g *Gateway) Backend() core.Backend { return g.backend }

func (g *Gateway) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := g.backend.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (g *Gateway) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return g.backend.Set(ctx, key, data)
}

// Conversations returns the stored collection, or an empty slice on any
// storage failure.
func (g *Gateway) Conversations(ctx context.Context) []core.Conversation {
	var cs []core.Conversation
	if _, err := g.getJSON(ctx, core.KeyConversations, &cs); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to get conversations")
		return []core.Conversation{}
	}
	if cs == nil {
		cs = []core.Conversation{}
	}
	return cs
}

// SaveConversation upserts by id: replace wholesale on match, append
// otherwise. At-most-one record per id.
func (g *Gateway) SaveConversation(ctx context.Context, c core.Conversation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cs := g.Conversations(ctx)
	found := false
	for i := range cs {
		if cs[i].ID == c.ID {
			cs[i] = c
			found = true
			break
		}
	}
	if !found {
		cs = append(cs, c)
	}

	if err := g.setJSON(ctx, core.KeyConversations, cs); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("id", c.ID).Msg("failed to save conversation")
		return err
	}
	return nil
}

func (g *Gateway) SaveConversations(ctx context.Context, cs []core.Conversation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cs == nil {
		cs = []core.Conversation{}
	}
	if err := g.setJSON(ctx, core.KeyConversations, cs); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to save conversations")
		return err
	}
	return nil
}

func (g *Gateway) SearchConversations(ctx context.Context, query string) []core.Conversation {
	q := strings.ToLower(query)
	var out []core.Conversation
	for _, c := range g.Conversations(ctx) {
		if strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, c)
			continue
		}
		for _, m := range c.Messages {
			if strings.Contains(strings.ToLower(m.Content), q) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (g *Gateway) ConversationsByPlatform(ctx context.Context, p core.Platform) []core.Conversation {
	var out []core.Conversation
	for _, c := range g.Conversations(ctx) {
		if c.Platform == p {
			out = append(out, c)
		}
	}
	return out
}

// SyncStatuses always returns one entry per known platform; storage
// failures and missing records both degrade to the zeroed default array.
func (g *Gateway) SyncStatuses(ctx context.Context) []core.SyncStatus {
	var statuses []core.SyncStatus
	ok, err := g.getJSON(ctx, core.KeySyncStatus, &statuses)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to get sync status")
		return core.DefaultSyncStatuses()
	}
	if !ok || len(statuses) == 0 {
		return core.DefaultSyncStatuses()
	}

	// Heal the array shape: exactly one record per platform, canonical
	// order, strays dropped.
	byPlatform := make(map[core.Platform]core.SyncStatus, len(statuses))
	for _, s := range statuses {
		byPlatform[s.Platform] = s
	}
	healed := make([]core.SyncStatus, 0, len(core.Platforms()))
	for _, p := range core.Platforms() {
		if s, ok := byPlatform[p]; ok {
			healed = append(healed, s)
		} else {
			healed = append(healed, core.SyncStatus{Platform: p})
		}
	}
	return healed
}

// UpdateSyncStatus applies a partial update to one platform's record. An
// unknown platform is a no-op, not an error.
func (g *Gateway) UpdateSyncStatus(ctx context.Context, p core.Platform, patch core.SyncStatusPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	statuses := g.SyncStatuses(ctx)
	found := false
	for i := range statuses {
		if statuses[i].Platform == p {
			patch.Apply(&statuses[i])
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	if err := g.setJSON(ctx, core.KeySyncStatus, statuses); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("platform", p.String()).Msg("failed to update sync status")
		return err
	}
	return nil
}

func (g *Gateway) GetSettings(ctx context.Context) core.Settings {
	var s core.Settings
	ok, err := g.getJSON(ctx, core.KeySettings, &s)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to get settings")
		return core.DefaultSettings()
	}
	if !ok {
		return core.DefaultSettings()
	}
	return s
}

func (g *Gateway) SaveSettings(ctx context.Context, s core.Settings) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.setJSON(ctx, core.KeySettings, s); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to save settings")
		return err
	}
	return nil
}

// ExportData snapshots conversations, settings and sync status into a
// pretty-printed JSON document.
func (g *Gateway) ExportData(ctx context.Context) ([]byte, error) {
	settings := g.GetSettings(ctx)
	payload := ExportPayload{
		Conversations: g.Conversations(ctx),
		Settings:      &settings,
		SyncStatus:    g.SyncStatuses(ctx),
		ExportedAt:    core.NowMs(),
		Version:       core.Version,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export data: %w", err)
	}
	return data, nil
}

// ImportData restores a snapshot. The payload must carry a JSON array under
// "conversations" or the whole import is rejected; nothing is written
// before validation passes. Missing settings/syncStatus keep current values.
func (g *Gateway) ImportData(ctx context.Context, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid import data format: %w", err)
	}

	rawConvs, ok := raw["conversations"]
	if !ok {
		return fmt.Errorf("invalid import data format: missing conversations")
	}
	var conversations []core.Conversation
	if err := json.Unmarshal(rawConvs, &conversations); err != nil {
		return fmt.Errorf("invalid import data format: conversations is not an array: %w", err)
	}

	var settings *core.Settings
	if rawSettings, ok := raw["settings"]; ok {
		settings = &core.Settings{}
		if err := json.Unmarshal(rawSettings, settings); err != nil {
			return fmt.Errorf("invalid import data format: bad settings: %w", err)
		}
	}

	var statuses []core.SyncStatus
	if rawStatus, ok := raw["syncStatus"]; ok {
		if err := json.Unmarshal(rawStatus, &statuses); err != nil {
			return fmt.Errorf("invalid import data format: bad syncStatus: %w", err)
		}
	}

	if err := g.SaveConversations(ctx, conversations); err != nil {
		return err
	}
	if settings != nil {
		if err := g.SaveSettings(ctx, *settings); err != nil {
			return err
		}
	}
	if len(statuses) > 0 {
		g.mu.Lock()
		err := g.setJSON(ctx, core.KeySyncStatus, statuses)
		g.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// IsFirstTime reports whether setup has never completed. Storage failures
// err on the side of "first time".
func (g *Gateway) IsFirstTime(ctx context.Context) bool {
	var completed bool
	ok, err := g.getJSON(ctx, core.KeySetupCompleted, &completed)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to check first time")
		return true
	}
	return !ok || !completed
}

// SeedDefaults installs the default state for any missing key. Keys that
// already hold data are left untouched, so re-running at every startup is
// safe.
func (g *Gateway) SeedDefaults(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	defaults := []struct {
		key   string
		value any
	}{
		{core.KeySettings, core.DefaultSettings()},
		{core.KeyConversations, []core.Conversation{}},
		{core.KeySyncStatus, core.DefaultSyncStatuses()},
	}
	for _, d := range defaults {
		data, err := g.backend.Get(ctx, d.key)
		if err != nil {
			return fmt.Errorf("failed to probe %s: %w", d.key, err)
		}
		if data != nil {
			continue
		}
		if err := g.setJSON(ctx, d.key, d.value); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) MarkSetupComplete(ctx context.Context) error {
	if err := g.setJSON(ctx, core.KeySetupCompleted, true); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to mark setup complete")
		return err
	}
	return nil
}
