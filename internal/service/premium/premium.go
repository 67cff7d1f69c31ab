// Package premium implements the invite-code subscription gate. State is a
// single record persisted through the storage backend; the manager is
// constructed once and injected wherever a feature check is needed.
package premium

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/pkg/log"
)

// Feature names the individually gated capabilities.
type Feature string

const (
	FeatureAdvancedFiltering   Feature = "advancedFiltering"
	FeatureConversationTagging Feature = "conversationTagging"
	FeatureExportFormats       Feature = "exportFormats"
	FeatureWebDashboard        Feature = "webDashboard"
)

var validInviteCodes = []string{"FAMILY2025", "FRIENDS2025", "BETA2025"}

// Features is the per-capability flag set.
type Features struct {
	AdvancedFiltering   bool `json:"advancedFiltering"`
	ConversationTagging bool `json:"conversationTagging"`
	ExportFormats       bool `json:"exportFormats"`
	WebDashboard        bool `json:"webDashboard"`
}

func allFeatures() Features {
	return Features{
		AdvancedFiltering:   true,
		ConversationTagging: true,
		ExportFormats:       true,
		WebDashboard:        true,
	}
}

// Subscription is the persisted premium record. ExpiresAt is unix ms, zero
// meaning no expiry; invite-code activations never expire.
type Subscription struct {
	IsPremium     bool     `json:"isPremium"`
	HasInviteCode bool     `json:"hasInviteCode"`
	InviteCode    string   `json:"inviteCode,omitempty"`
	Features      Features `json:"features"`
	ExpiresAt     int64    `json:"expiresAt,omitempty"`
}

type Manager struct {
	backend core.Backend

	mu  sync.Mutex
	sub Subscription
}

// NewManager loads the stored subscription; a missing or unreadable record
// degrades to the free tier.
func NewManager(ctx context.Context, backend core.Backend) *Manager {
	m := &Manager{backend: backend}

	data, err := backend.Get(ctx, core.KeySubscription)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to load subscription")
		return m
	}
	if data != nil {
		if err := json.Unmarshal(data, &m.sub); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("discarding malformed subscription record")
			m.sub = Subscription{}
		}
	}
	return m
}

// ValidateInviteCode reports whether code is one of the known invite codes,
// case-insensitively.
func (m *Manager) ValidateInviteCode(code string) bool {
	upper := strings.ToUpper(strings.TrimSpace(code))
	for _, valid := range validInviteCodes {
		if upper == valid {
			return true
		}
	}
	return false
}

// ActivateInviteCode validates and applies an invite code. Invalid codes
// leave the subscription untouched.
func (m *Manager) ActivateInviteCode(ctx context.Context, code string) (bool, error) {
	if !m.ValidateInviteCode(code) {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = Subscription{
		IsPremium:     true,
		HasInviteCode: true,
		InviteCode:    strings.ToUpper(strings.TrimSpace(code)),
		Features:      allFeatures(),
	}
	if err := m.save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ActivatePremium grants a paid subscription expiring one year out.
func (m *Manager) ActivatePremium(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = Subscription{
		IsPremium: true,
		Features:  allFeatures(),
		ExpiresAt: core.NowMs() + 365*24*60*60*1000,
	}
	return m.save(ctx)
}

// HasFeature reports whether the named feature is unlocked.
func (m *Manager) HasFeature(f Feature) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch f {
	case FeatureAdvancedFiltering:
		return m.sub.Features.AdvancedFiltering
	case FeatureConversationTagging:
		return m.sub.Features.ConversationTagging
	case FeatureExportFormats:
		return m.sub.Features.ExportFormats
	case FeatureWebDashboard:
		return m.sub.Features.WebDashboard
	}
	return false
}

// IsPremium reports active premium status. An expired paid subscription is
// downgraded and the downgrade persisted; invite-code activations are
// permanent.
func (m *Manager) IsPremium(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sub.HasInviteCode {
		return true
	}
	if !m.sub.IsPremium {
		return false
	}
	if m.sub.ExpiresAt != 0 && m.sub.ExpiresAt < core.NowMs() {
		m.sub.IsPremium = false
		if err := m.save(ctx); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to persist subscription downgrade")
		}
		return false
	}
	return true
}

// Subscription returns a copy of the current record.
func (m *Manager) Subscription() Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub
}

func (m *Manager) save(ctx context.Context) error {
	data, err := json.Marshal(m.sub)
	if err != nil {
		return fmt.Errorf("failed to encode subscription: %w", err)
	}
	if err := m.backend.Set(ctx, core.KeySubscription, data); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}
