package syncer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/chatweave/internal/bus"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/storage"
	"github.com/sandevgo/chatweave/internal/storage/file"
)

type fakeSession struct {
	mu          sync.Mutex
	fullRuns    int
	recentRuns  int
	extractErr  error
	statusReply core.StatusReply
}

func (s *fakeSession) StartFullExtraction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullRuns++
	return s.extractErr
}

func (s *fakeSession) SyncRecent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentRuns++
	return nil
}

func (s *fakeSession) ExtractAll(ctx context.Context) core.ExtractReply {
	return core.ExtractReply{Success: true, TotalCount: 2, Platform: core.PlatformClaude}
}

func (s *fakeSession) Status(ctx context.Context) core.StatusReply { return s.statusReply }

type fakeNotifier struct {
	mu sync.Mutex
	ns []core.SyncNotification
}

func (n *fakeNotifier) Notify(ctx context.Context, sn core.SyncNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ns = append(n.ns, sn)
}

func (n *fakeNotifier) all() []core.SyncNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.SyncNotification, len(n.ns))
	copy(out, n.ns)
	return out
}

func newTestStore(t *testing.T) *storage.Gateway {
	t.Helper()
	fs, err := file.New(t.TempDir())
	require.NoError(t, err)
	return storage.NewWithBackend(fs)
}

// startOrchestrator runs the consume loop until test end.
func startOrchestrator(t *testing.T, o *Orchestrator) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = o.Start(ctx) }()
	return ctx
}

func connect(t *testing.T, ctx context.Context, b *bus.Bus, p core.Platform) {
	t.Helper()
	require.NoError(t, b.Publish(ctx, core.NewPlatformConnected(p, "https://example.com")))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func makeConv(id string, p core.Platform, title string, updatedAt int64, contents ...string) core.Conversation {
	msgs := make([]core.Message, 0, len(contents))
	for i, c := range contents {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.Message{ID: id + "-m", Role: role, Content: c, Timestamp: updatedAt, Platform: p})
	}
	return core.Conversation{ID: id, Title: title, Platform: p, CreatedAt: updatedAt, UpdatedAt: updatedAt, Messages: msgs}
}

func TestConversationExtractedUpserts(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	o := New(store, b)
	ctx := startOrchestrator(t, o)

	conv := makeConv("claude-1", core.PlatformClaude, "First", 1000, "a question that is long enough")
	require.NoError(t, b.Publish(ctx, core.NewConversationExtracted(conv)))

	waitFor(t, func() bool { return len(store.Conversations(context.Background())) == 1 })

	conv.Title = "Renamed"
	require.NoError(t, b.Publish(ctx, core.NewConversationExtracted(conv)))
	waitFor(t, func() bool {
		cs := store.Conversations(context.Background())
		return len(cs) == 1 && cs[0].Title == "Renamed"
	})
}

func TestPlatformConnectedMarksStatus(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	o := New(store, b)
	ctx := startOrchestrator(t, o)

	connect(t, ctx, b, core.PlatformGemini)

	waitFor(t, func() bool {
		for _, s := range store.SyncStatuses(context.Background()) {
			if s.Platform == core.PlatformGemini && s.IsConnected {
				return true
			}
		}
		return false
	})
}

func TestContextForShape(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"chatgpt-1", core.PlatformChatGPT, "Go slices", 2000,
		"how do slices grow", "append doubles capacity up to a threshold",
	)))
	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"grok-1", core.PlatformGrok, "Rust tips", 1000,
		"what is a borrow checker",
	)))
	// Same platform as the requester, must be excluded.
	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"claude-1", core.PlatformClaude, "Hidden", 3000,
		"must not appear",
	)))

	o := New(store, bus.New(1))
	got := o.ContextFor(ctx, core.PlatformClaude)

	want := "Previous conversation context from other AI platforms:\n\n" +
		"[CHATGPT] Go slices\n" +
		"user: how do slices grow\n" +
		"assistant: append doubles capacity up to a threshold\n" +
		"\n" +
		"[GROK] Rust tips\n" +
		"user: what is a borrow checker\n" +
		"\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "Hidden")
}

func TestContextForOrderingAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		c := makeConv(
			"chatgpt-"+string(rune('a'+i)), core.PlatformChatGPT,
			"Conv", int64(1000+i), "some sufficiently long content",
		)
		require.NoError(t, store.SaveConversation(ctx, c))
	}

	o := New(store, bus.New(1))
	got := o.ContextFor(ctx, core.PlatformClaude)

	// 10 newest of 12, newest first.
	assert.Equal(t, 10, strings.Count(got, "[CHATGPT]"))
}

func TestContextForMessageTruncation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("x", 250)
	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"grok-1", core.PlatformGrok, "Long", 1000, long,
	)))

	o := New(store, bus.New(1))
	got := o.ContextFor(ctx, core.PlatformClaude)
	assert.Contains(t, got, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, got, strings.Repeat("x", 201))
}

func TestContextForHardTruncation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := core.DefaultSettings()
	s.MaxContextLength = 80
	require.NoError(t, store.SaveSettings(ctx, s))
	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"grok-1", core.PlatformGrok, "A very wordy title for a conversation", 1000,
		"a message body that is definitely long enough to blow the budget",
	)))

	o := New(store, bus.New(1))
	got := o.ContextFor(ctx, core.PlatformClaude)

	const marker = "...\n\n[Context truncated]"
	require.True(t, strings.HasSuffix(got, marker))
	assert.Equal(t, 80+len(marker), len(got))
}

func TestContextForTruncatesOnRuneBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// 3-byte runes make both cuts land mid-sequence when sliced by bytes.
	long := strings.Repeat("言", 100)
	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"grok-1", core.PlatformGrok, "Unicode", 1000, long,
	)))

	o := New(store, bus.New(1))
	got := o.ContextFor(ctx, core.PlatformClaude)
	require.True(t, utf8.ValidString(got))
	// 200 is not a multiple of 3, so the cut backs off to 66 whole runes.
	assert.Contains(t, got, strings.Repeat("言", 66)+"...")
	assert.NotContains(t, got, strings.Repeat("言", 67))

	s := core.DefaultSettings()
	s.MaxContextLength = 80
	require.NoError(t, store.SaveSettings(ctx, s))
	got = o.ContextFor(ctx, core.PlatformClaude)
	require.True(t, strings.HasSuffix(got, "...\n\n[Context truncated]"))
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 80+len("...\n\n[Context truncated]"))
}

func TestContextForDisabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := core.DefaultSettings()
	s.EnableContextInjection = false
	require.NoError(t, store.SaveSettings(ctx, s))
	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"grok-1", core.PlatformGrok, "T", 1000, "content long enough to qualify",
	)))

	o := New(store, bus.New(1))
	assert.Empty(t, o.ContextFor(ctx, core.PlatformClaude))
}

func TestContextForNoCrossPlatform(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveConversation(ctx, makeConv(
		"claude-1", core.PlatformClaude, "Own", 1000, "content long enough to qualify",
	)))

	o := New(store, bus.New(1))
	assert.Empty(t, o.ContextFor(ctx, core.PlatformClaude))
}

func TestRequestContextReply(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveConversation(context.Background(), makeConv(
		"grok-1", core.PlatformGrok, "T", 1000, "content long enough to qualify",
	)))
	require.NoError(t, store.MarkSetupComplete(context.Background()))

	b := bus.New(16)
	o := New(store, b)
	ctx := startOrchestrator(t, o)

	reply, err := b.Request(ctx, core.NewRequestContext(core.PlatformClaude))
	require.NoError(t, err)
	ctxReply, ok := reply.(core.ContextReply)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(ctxReply.Context, contextHeader))
}

func TestStartExtractionDispatch(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	sess := &fakeSession{}
	notifier := &fakeNotifier{}
	o := New(store, b, notifier)
	o.RegisterSession(core.PlatformClaude, sess)
	ctx := startOrchestrator(t, o)
	connect(t, ctx, b, core.PlatformClaude)

	require.NoError(t, b.Publish(ctx, core.NewStartExtraction(core.PlatformClaude)))

	waitFor(t, func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return sess.fullRuns == 1
	})
	waitFor(t, func() bool {
		ns := notifier.all()
		return len(ns) == 1 && ns[0].Success && ns[0].Platform == core.PlatformClaude
	})
}

func TestStartExtractionNoSession(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	o := New(store, b)
	ctx := startOrchestrator(t, o)

	require.NoError(t, b.Publish(ctx, core.NewStartExtraction(core.PlatformGrok)))

	// The status record must settle back to not-extracting.
	waitFor(t, func() bool {
		for _, s := range store.SyncStatuses(context.Background()) {
			if s.Platform == core.PlatformGrok {
				return !s.IsExtracting
			}
		}
		return false
	})
}

func TestExtractConversationsQuery(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	sess := &fakeSession{}
	o := New(store, b)
	o.RegisterSession(core.PlatformClaude, sess)
	ctx := startOrchestrator(t, o)
	connect(t, ctx, b, core.PlatformClaude)

	reply, err := b.Request(ctx, core.NewExtractConversations(core.PlatformClaude))
	require.NoError(t, err)
	er, ok := reply.(core.ExtractReply)
	require.True(t, ok)
	assert.True(t, er.Success)
	assert.Equal(t, 2, er.TotalCount)
}

func TestExtractConversationsNotConnected(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	o := New(store, b)
	ctx := startOrchestrator(t, o)

	reply, err := b.Request(ctx, core.NewExtractConversations(core.PlatformGrok))
	require.NoError(t, err)
	er, ok := reply.(core.ExtractReply)
	require.True(t, ok)
	assert.False(t, er.Success)
	assert.NotEmpty(t, er.Error)
}

func TestAutoSyncGating(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	claude := &fakeSession{}
	grok := &fakeSession{}
	o := New(store, b)
	o.RegisterSession(core.PlatformClaude, claude)
	o.RegisterSession(core.PlatformGrok, grok)
	ctx := startOrchestrator(t, o)

	// Only claude is connected; only claude may sync.
	connect(t, ctx, b, core.PlatformClaude)
	require.NoError(t, b.Publish(ctx, core.NewAutoSync()))

	waitFor(t, func() bool {
		claude.mu.Lock()
		defer claude.mu.Unlock()
		return claude.recentRuns == 1
	})
	grok.mu.Lock()
	assert.Zero(t, grok.recentRuns)
	grok.mu.Unlock()
}

func TestAutoSyncDisabled(t *testing.T) {
	store := newTestStore(t)
	s := core.DefaultSettings()
	s.AutoSync = false
	require.NoError(t, store.SaveSettings(context.Background(), s))
	require.NoError(t, store.MarkSetupComplete(context.Background()))

	b := bus.New(16)
	sess := &fakeSession{}
	o := New(store, b)
	o.RegisterSession(core.PlatformClaude, sess)
	ctx := startOrchestrator(t, o)
	connect(t, ctx, b, core.PlatformClaude)

	require.NoError(t, b.Publish(ctx, core.NewAutoSync()))
	time.Sleep(100 * time.Millisecond)

	sess.mu.Lock()
	assert.Zero(t, sess.recentRuns, "auto-sync must be skipped when disabled")
	sess.mu.Unlock()
}

func TestSeedOnFirstRun(t *testing.T) {
	store := newTestStore(t)
	b := bus.New(16)
	o := New(store, b)
	startOrchestrator(t, o)

	// Seeding must persist the defaults, not just rely on read-time
	// fallbacks.
	waitFor(t, func() bool {
		for _, key := range []string{core.KeySettings, core.KeyConversations, core.KeySyncStatus} {
			data, err := store.Backend().Get(context.Background(), key)
			if err != nil || data == nil {
				return false
			}
		}
		return true
	})
	assert.Equal(t, core.DefaultSettings(), store.GetSettings(context.Background()))
}
