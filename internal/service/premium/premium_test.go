package premium

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/storage/file"
)

func newManager(t *testing.T) (*Manager, core.Backend) {
	t.Helper()
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)
	return NewManager(context.Background(), fs), fs
}

func fixedClock(t *testing.T, ms int64) {
	t.Helper()
	orig := core.NowMs
	core.NowMs = func() int64 { return ms }
	t.Cleanup(func() { core.NowMs = orig })
}

func TestValidateInviteCode(t *testing.T) {
	m, _ := newManager(t)

	tests := []struct {
		code string
		want bool
	}{
		{"FAMILY2025", true},
		{"friends2025", true},
		{" beta2025 ", true},
		{"FAMILY2024", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.ValidateInviteCode(tt.code); got != tt.want {
			t.Errorf("ValidateInviteCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestActivateInviteCode(t *testing.T) {
	m, backend := newManager(t)
	ctx := context.Background()

	ok, err := m.ActivateInviteCode(ctx, "family2025")
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, m.IsPremium(ctx))
	assert.True(t, m.HasFeature(FeatureExportFormats))
	assert.True(t, m.HasFeature(FeatureConversationTagging))
	assert.Equal(t, "FAMILY2025", m.Subscription().InviteCode)

	// A fresh manager over the same backend sees the persisted record.
	m2 := NewManager(ctx, backend)
	assert.True(t, m2.IsPremium(ctx))
}

func TestActivateInviteCodeRejected(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	ok, err := m.ActivateInviteCode(ctx, "NOPE2025")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, m.IsPremium(ctx))
	assert.False(t, m.HasFeature(FeatureExportFormats))
}

func TestActivatePremiumExpiry(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	fixedClock(t, 1_000_000)
	require.NoError(t, m.ActivatePremium(ctx))
	assert.True(t, m.IsPremium(ctx))
	assert.Equal(t, int64(1_000_000+365*24*60*60*1000), m.Subscription().ExpiresAt)

	// Jump past expiry: status drops and the downgrade persists.
	core.NowMs = func() int64 { return 1_000_000 + 366*24*60*60*1000 }
	assert.False(t, m.IsPremium(ctx))
	assert.False(t, m.Subscription().IsPremium)
}

func TestInviteCodeNeverExpires(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	fixedClock(t, 1_000_000)
	ok, err := m.ActivateInviteCode(ctx, "BETA2025")
	require.NoError(t, err)
	require.True(t, ok)

	core.NowMs = func() int64 { return 1_000_000 + 10*365*24*60*60*1000 }
	assert.True(t, m.IsPremium(ctx))
}

func TestFreeTierDefaults(t *testing.T) {
	m, _ := newManager(t)

	assert.False(t, m.IsPremium(context.Background()))
	for _, f := range []Feature{FeatureAdvancedFiltering, FeatureConversationTagging, FeatureExportFormats, FeatureWebDashboard} {
		assert.False(t, m.HasFeature(f), "feature %s must be locked on the free tier", f)
	}
}
