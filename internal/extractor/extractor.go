package extractor

import (
	"context"
	"fmt"
	"math"
	neturl "net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sandevgo/chatweave/internal/bus"
	"github.com/sandevgo/chatweave/internal/core"
	"github.com/sandevgo/chatweave/internal/page"
	"github.com/sandevgo/chatweave/internal/platform"
	"github.com/sandevgo/chatweave/pkg/log"
)

const (
	// contextSentinel marks an input that already carries injected context.
	contextSentinel = "Previous conversation context"
	contextTrailer  = "\n\n---\n\nBased on the above context from my previous conversations with other AI assistants, please help me with: "

	// perConversationDelay paces the link walk so the page is not hammered.
	perConversationDelay = 500 * time.Millisecond
	// resyncDebounce folds bursts of page-change events into one re-sync.
	resyncDebounce = 2 * time.Second
)

// Extractor drives one platform session. StartFullExtraction, SyncRecent and
// SyncCurrent may run concurrently with the watcher loop; the reentrancy
// guard keeps at most one full run in flight.
type Extractor struct {
	profile *platform.Profile
	session page.Session
	bus     *bus.Bus

	extracting atomic.Bool
	progress   atomic.Int32
	total      atomic.Int32
}

func New(prof *platform.Profile, session page.Session, b *bus.Bus) *Extractor {
	return &Extractor{profile: prof, session: session, bus: b}
}

func (e *Extractor) Platform() core.Platform { return e.profile.Platform }

// Start announces the platform, injects cross-platform context once, then
// watches the page for content changes until ctx ends. Satisfies
// srv.Service.
func (e *Extractor) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx).With().Str("platform", e.profile.Platform.String()).Logger()
	ctx = logger.WithContext(ctx)

	url, err := e.session.URL(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read session url")
		url = e.profile.BaseURL
	}
	if err := e.bus.Publish(ctx, core.NewPlatformConnected(e.profile.Platform, url)); err != nil {
		return fmt.Errorf("failed to announce platform: %w", err)
	}

	if err := e.InjectContext(ctx); err != nil {
		logger.Warn().Err(err).Msg("context injection failed")
	}

	e.watch(ctx)
	return nil
}

func (e *Extractor) Shutdown(ctx context.Context) error {
	return e.session.Close()
}

// watch folds page-change events into debounced single-conversation
// re-syncs.
func (e *Extractor) watch(ctx context.Context) {
	logger := log.FromCtx(ctx)

	debounce := time.NewTimer(resyncDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-e.session.Events():
			if !ok {
				return
			}
			debounce.Reset(resyncDebounce)
		case <-debounce.C:
			if e.extracting.Load() {
				continue
			}
			if err := e.SyncCurrent(ctx); err != nil {
				logger.Warn().Err(err).Msg("change-driven re-sync failed")
			}
		}
	}
}

// StartFullExtraction walks every history link, parses each conversation and
// publishes it. A second call while a run is in flight is a no-op.
func (e *Extractor) StartFullExtraction(ctx context.Context) error {
	if !e.extracting.CompareAndSwap(false, true) {
		return nil
	}
	defer e.extracting.Store(false)

	logger := log.FromCtx(ctx)
	logger.Info().Str("platform", e.profile.Platform.String()).Msg("starting full extraction")

	e.progress.Store(0)
	e.publishStatus(ctx, core.SyncStatusPatch{IsExtracting: ptr(true), ExtractionProgress: ptr(0)})

	links, err := e.runExtraction(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("extraction failed")
		e.publishStatus(ctx, core.SyncStatusPatch{IsExtracting: ptr(false)})
		return err
	}

	now := core.NowMs()
	e.publishStatus(ctx, core.SyncStatusPatch{
		IsExtracting:       ptr(false),
		LastSync:           &now,
		IsConnected:        ptr(true),
		TotalConversations: ptr(len(links)),
	})
	return nil
}

func (e *Extractor) runExtraction(ctx context.Context) ([]Link, error) {
	logger := log.FromCtx(ctx)

	links, err := e.listLinks(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("count", len(links)).Msg("found conversations")
	e.total.Store(int32(len(links)))

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Per-conversation failures never abort the walk.
		if err := e.extractConversation(ctx, link); err != nil {
			logger.Warn().Err(err).Str("title", link.Title).Msg("failed to extract conversation")
		}

		progress := int(math.Round(float64(i+1) / float64(len(links)) * 100))
		e.progress.Store(int32(progress))
		e.publishStatus(ctx, core.SyncStatusPatch{ExtractionProgress: &progress})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(perConversationDelay):
		}
	}
	return links, nil
}

// listLinks navigates to the history page when the session is elsewhere,
// waits for it to settle and snapshots the sidebar.
func (e *Extractor) listLinks(ctx context.Context) ([]Link, error) {
	url, err := e.session.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read url: %w", err)
	}
	if !strings.Contains(urlPath(url), e.profile.HistoryPathHint) {
		if err := e.session.Navigate(ctx, e.profile.HistoryURL); err != nil {
			return nil, fmt.Errorf("failed to open history page: %w", err)
		}
		url = e.profile.HistoryURL
	}

	if err := e.session.WaitFor(ctx, e.profile.ReadySelectors, e.profile.ReadyWaitTimeout); err != nil {
		return nil, fmt.Errorf("history page never settled: %w", err)
	}

	doc, err := e.document(ctx)
	if err != nil {
		return nil, err
	}
	return ListConversationLinks(doc, e.profile, url), nil
}

// extractConversation opens one link, waits for its messages and publishes
// the parsed record. Pages that parse to zero messages are skipped silently.
func (e *Extractor) extractConversation(ctx context.Context, link Link) error {
	current, _ := e.session.URL(ctx)
	if link.URL != "" && link.URL != current {
		if err := e.session.Navigate(ctx, link.URL); err != nil {
			return fmt.Errorf("failed to open conversation: %w", err)
		}
	}
	if err := e.session.WaitFor(ctx, e.profile.MessageReadySelectors, e.profile.MessageWaitTimeout); err != nil {
		return fmt.Errorf("conversation never settled: %w", err)
	}

	doc, err := e.document(ctx)
	if err != nil {
		return err
	}

	conv := BuildConversation(e.profile, link.URL, link.Title, ExtractMessages(doc, e.profile))
	if conv == nil {
		return nil
	}

	if err := e.bus.Publish(ctx, core.NewConversationExtracted(*conv)); err != nil {
		return fmt.Errorf("failed to publish conversation: %w", err)
	}
	log.FromCtx(ctx).Debug().Str("title", conv.Title).Int("messages", len(conv.Messages)).Msg("extracted conversation")
	return nil
}

// SyncRecent re-extracts only the first few history entries.
func (e *Extractor) SyncRecent(ctx context.Context) error {
	links, err := e.listLinks(ctx)
	if err != nil {
		return err
	}
	if len(links) > 3 {
		links = links[:3]
	}
	for _, link := range links {
		if err := e.extractConversation(ctx, link); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("title", link.Title).Msg("failed to sync conversation")
		}
	}
	return nil
}

// SyncCurrent re-extracts whatever conversation the session currently shows.
func (e *Extractor) SyncCurrent(ctx context.Context) error {
	url, err := e.session.URL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read url: %w", err)
	}

	doc, err := e.document(ctx)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Current Conversation"
	}

	conv := BuildConversation(e.profile, url, title, ExtractMessages(doc, e.profile))
	if conv == nil {
		return nil
	}
	return e.bus.Publish(ctx, core.NewConversationExtracted(*conv))
}

// ExtractAll parses the full history and replies with the records instead of
// publishing them.
func (e *Extractor) ExtractAll(ctx context.Context) core.ExtractReply {
	links, err := e.listLinks(ctx)
	if err != nil {
		return core.ExtractReply{Platform: e.profile.Platform, Error: err.Error()}
	}

	var conversations []core.Conversation
	for _, link := range links {
		current, _ := e.session.URL(ctx)
		if link.URL != "" && link.URL != current {
			if err := e.session.Navigate(ctx, link.URL); err != nil {
				continue
			}
		}
		if err := e.session.WaitFor(ctx, e.profile.MessageReadySelectors, e.profile.MessageWaitTimeout); err != nil {
			continue
		}
		doc, err := e.document(ctx)
		if err != nil {
			continue
		}
		if conv := BuildConversation(e.profile, link.URL, link.Title, ExtractMessages(doc, e.profile)); conv != nil {
			conversations = append(conversations, *conv)
		}
	}

	return core.ExtractReply{
		Success:       true,
		Conversations: conversations,
		TotalCount:    len(conversations),
		Platform:      e.profile.Platform,
	}
}

// Status reports the live extraction state of this session.
func (e *Extractor) Status(ctx context.Context) core.StatusReply {
	return core.StatusReply{
		IsExtracting:       e.extracting.Load(),
		Progress:           int(e.progress.Load()),
		TotalConversations: int(e.total.Load()),
		Platform:           e.profile.Platform,
		Connected:          true,
	}
}

// InjectContext asks the orchestrator for cross-platform context and writes
// it into the chat input, once. An input already carrying the sentinel is
// left alone, and a page without any input is not an error.
func (e *Extractor) InjectContext(ctx context.Context) error {
	reply, err := e.bus.Request(ctx, core.NewRequestContext(e.profile.Platform))
	if err != nil {
		return fmt.Errorf("failed to request context: %w", err)
	}
	ctxReply, ok := reply.(core.ContextReply)
	if !ok || strings.TrimSpace(ctxReply.Context) == "" {
		return nil
	}

	selector, current, err := e.session.ReadInput(ctx, e.profile.InputSelectors)
	if err != nil {
		if err == page.ErrNoElement {
			return nil
		}
		return fmt.Errorf("failed to find chat input: %w", err)
	}
	if strings.Contains(current, contextSentinel) {
		return nil
	}

	if err := e.session.WriteInput(ctx, selector, ctxReply.Context+contextTrailer); err != nil {
		return fmt.Errorf("failed to write chat input: %w", err)
	}
	log.FromCtx(ctx).Info().Msg("injected cross-platform context")
	return nil
}

func (e *Extractor) document(ctx context.Context) (*goquery.Document, error) {
	html, err := e.session.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

func (e *Extractor) publishStatus(ctx context.Context, patch core.SyncStatusPatch) {
	if err := e.bus.Publish(ctx, core.NewUpdateSyncStatus(e.profile.Platform, patch)); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to publish status update")
	}
}

// urlPath isolates the path component; the history hint must never match
// the host.
func urlPath(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func ptr[T any](v T) *T { return &v }
