// Package syncer hosts the orchestrator: the single consumer of the message
// bus and the single writer to conversation and status storage. Extractors,
// transports and the scheduler all funnel their mutations through its loop,
// which is what makes concurrent extraction runs safe without storage-level
// transactions.
package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/chatweave/internal/bus"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/pkg/log"
)

const contextHeader = "Previous conversation context from other AI platforms:\n\n"

// PlatformSession is a live extractor the orchestrator can command. Sessions
// register at wiring time; a session only receives work after its
// PlatformConnected announcement arrives.
type PlatformSession interface {
	StartFullExtraction(ctx context.Context) error
	SyncRecent(ctx context.Context) error
	ExtractAll(ctx context.Context) core.ExtractReply
	Status(ctx context.Context) core.StatusReply
}

// Notifier receives sync-run outcomes. Implementations must not block the
// caller.
type Notifier interface {
	Notify(ctx context.Context, n core.SyncNotification)
}

type Orchestrator struct {
	store     core.ConversationStore
	bus       *bus.Bus
	notifiers []Notifier

	sessions  map[core.Platform]PlatformSession
	connected map[core.Platform]bool

	// rearm wakes the scheduler after a settings change.
	rearm chan struct{}
}

func New(store core.ConversationStore, b *bus.Bus, notifiers ...Notifier) *Orchestrator {
	return &Orchestrator{
		store:     store,
		bus:       b,
		notifiers: notifiers,
		sessions:  make(map[core.Platform]PlatformSession),
		connected: make(map[core.Platform]bool),
		rearm:     make(chan struct{}, 1),
	}
}

// RegisterSession attaches a live platform session. Call before Start; the
// map is read from the loop goroutine afterwards.
func (o *Orchestrator) RegisterSession(p core.Platform, s PlatformSession) {
	o.sessions[p] = s
}

// Start seeds first-run state and runs the consume loop until ctx ends.
// Satisfies srv.Service.
func (o *Orchestrator) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	o.seed(ctx)

	interval := o.syncInterval(ctx)
	timer := time.NewTimer(interval)
	defer timer.Stop()
	logger.Info().Dur("interval", interval).Msg("orchestrator started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.rearm:
			interval = o.syncInterval(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(interval)
			logger.Info().Dur("interval", interval).Msg("sync schedule re-armed")
		case <-timer.C:
			o.autoSync(ctx)
			timer.Reset(o.syncInterval(ctx))
		case d, ok := <-o.bus.Receive():
			if !ok {
				return nil
			}
			o.handle(ctx, d)
		}
	}
}

func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.bus.Close()
	return nil
}

// SettingsUpdated re-arms the sync schedule after a settings write.
func (o *Orchestrator) SettingsUpdated() {
	select {
	case o.rearm <- struct{}{}:
	default:
	}
}

// seed installs defaults for whatever state is missing. A populated store is
// left alone.
func (o *Orchestrator) seed(ctx context.Context) {
	if err := o.store.SeedDefaults(ctx); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to seed default state")
	}
}

func (o *Orchestrator) handle(ctx context.Context, d bus.Delivery) {
	logger := log.FromCtx(ctx)

	switch msg := d.Msg.(type) {
	case core.ConversationExtracted:
		if err := o.store.SaveConversation(ctx, msg.Conversation); err != nil {
			logger.Error().Err(err).Str("id", msg.Conversation.ID).Msg("failed to save conversation")
		}

	case core.RequestContext:
		d.Reply(core.ContextReply{Context: o.ContextFor(ctx, msg.Platform)})

	case core.UpdateSyncStatus:
		if err := o.store.UpdateSyncStatus(ctx, msg.Platform, msg.Updates); err != nil {
			logger.Error().Err(err).Str("platform", msg.Platform.String()).Msg("failed to update sync status")
		}

	case core.PlatformConnected:
		o.connected[msg.Platform] = true
		connected := true
		if err := o.store.UpdateSyncStatus(ctx, msg.Platform, core.SyncStatusPatch{IsConnected: &connected}); err != nil {
			logger.Error().Err(err).Str("platform", msg.Platform.String()).Msg("failed to mark platform connected")
		}

	case core.StartExtraction:
		o.startExtraction(ctx, msg.Platform)

	case core.AutoSync:
		o.autoSync(ctx)

	case core.ExtractConversations:
		s, ok := o.session(msg.Platform)
		if !ok {
			d.Reply(core.ExtractReply{Platform: msg.Platform, Error: "platform not connected"})
			return
		}
		d.Reply(s.ExtractAll(ctx))

	case core.GetStatus:
		s, ok := o.session(msg.Platform)
		if !ok {
			d.Reply(core.StatusReply{Platform: msg.Platform})
			return
		}
		d.Reply(s.Status(ctx))

	default:
		logger.Warn().Type("msg", d.Msg).Msg("unhandled bus message")
	}
}

func (o *Orchestrator) session(p core.Platform) (PlatformSession, bool) {
	if !o.connected[p] {
		return nil, false
	}
	s, ok := o.sessions[p]
	return s, ok
}

// startExtraction kicks off a full run on the platform's session. The run
// itself happens off the loop goroutine; its outcome fans out to the
// notifiers.
func (o *Orchestrator) startExtraction(ctx context.Context, p core.Platform) {
	logger := log.FromCtx(ctx)

	extracting := true
	progress := 0
	if err := o.store.UpdateSyncStatus(ctx, p, core.SyncStatusPatch{
		IsExtracting:       &extracting,
		ExtractionProgress: &progress,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to mark extraction started")
	}

	s, ok := o.session(p)
	if !ok {
		logger.Warn().Str("platform", p.String()).Msg("no connected session for extraction")
		extracting = false
		_ = o.store.UpdateSyncStatus(ctx, p, core.SyncStatusPatch{IsExtracting: &extracting})
		return
	}

	go func() {
		err := s.StartFullExtraction(ctx)
		n := core.SyncNotification{
			Platform: p,
			Success:  err == nil,
			Total:    len(o.store.ConversationsByPlatform(ctx, p)),
		}
		if err != nil {
			n.Error = err.Error()
			logger.Error().Err(err).Str("platform", p.String()).Msg("extraction run failed")
		}
		o.notify(ctx, n)
	}()
}

// autoSync re-syncs recent conversations on every enabled platform that has
// a connected session.
func (o *Orchestrator) autoSync(ctx context.Context) {
	logger := log.FromCtx(ctx)

	settings := o.store.GetSettings(ctx)
	if !settings.AutoSync {
		return
	}

	for _, p := range settings.EnabledPlatforms {
		s, ok := o.session(p)
		if !ok {
			continue
		}
		go func(p core.Platform, s PlatformSession) {
			if err := s.SyncRecent(ctx); err != nil {
				logger.Warn().Err(err).Str("platform", p.String()).Msg("auto-sync failed")
				o.notify(ctx, core.SyncNotification{Platform: p, Error: err.Error()})
			}
		}(p, s)
	}
}

func (o *Orchestrator) notify(ctx context.Context, n core.SyncNotification) {
	for _, notifier := range o.notifiers {
		notifier.Notify(ctx, n)
	}
}

func (o *Orchestrator) syncInterval(ctx context.Context) time.Duration {
	settings := o.store.GetSettings(ctx)
	minutes := settings.SyncInterval
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

// ContextFor builds the cross-platform context block injected into p's chat
// input: the 10 most recently updated conversations from other platforms,
// each contributing its last 3 messages with content capped at 200 chars.
// Empty when injection is disabled or nothing qualifies.
func (o *Orchestrator) ContextFor(ctx context.Context, p core.Platform) string {
	settings := o.store.GetSettings(ctx)
	if !settings.EnableContextInjection {
		return ""
	}

	var others []core.Conversation
	for _, c := range o.store.Conversations(ctx) {
		if c.Platform != p {
			others = append(others, c)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		return others[i].UpdatedAt > others[j].UpdatedAt
	})
	if len(others) > 10 {
		others = others[:10]
	}
	if len(others) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, c := range others {
		fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(c.Platform.String()), c.Title)

		msgs := c.Messages
		if len(msgs) > 3 {
			msgs = msgs[len(msgs)-3:]
		}
		for _, m := range msgs {
			content := m.Content
			if len(content) > 200 {
				content = truncateRunes(content, 200) + "..."
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
		}
		b.WriteString("\n")
	}

	context := b.String()
	if len(context) > settings.MaxContextLength {
		context = truncateRunes(context, settings.MaxContextLength) + "...\n\n[Context truncated]"
	}
	return context
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
