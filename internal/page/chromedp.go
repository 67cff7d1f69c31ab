package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sandevgo/chatweave/internal/config"
	"github.com/sandevgo/chatweave/pkg/log"
	"github.com/sandevgo/chatweave/pkg/retry"
)

const mutationPollInterval = time.Second

var navRetrier = retry.NewDefaultRetrier()

// observerScript installs a MutationObserver that counts childList changes
// under document.body. The Go side polls the counter instead of streaming
// every mutation across the wire.
const observerScript = `(() => {
  if (window.__chatweaveObserver) { return true; }
  window.__chatweaveMutations = 0;
  window.__chatweaveObserver = new MutationObserver((muts) => {
    for (const m of muts) {
      if (m.addedNodes.length > 0) { window.__chatweaveMutations++; }
    }
  });
  window.__chatweaveObserver.observe(document.body, { childList: true, subtree: true });
  return true;
})()`

// Browser owns the chromedp allocator shared by every platform session.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewBrowser(ctx context.Context, cfg *config.AppConfig) (*Browser, error) {
	if cfg.CdpURL != "" {
		allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), cfg.CdpURL)
		log.FromCtx(ctx).Info().Str("cdp_url", cfg.CdpURL).Msg("attached to remote browser")
		return &Browser{allocCtx: allocCtx, allocCancel: cancel}, nil
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.WindowSize(1366, 768),
	}
	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{allocCtx: allocCtx, allocCancel: cancel}, nil
}

func (b *Browser) Close() error {
	b.allocCancel()
	return nil
}

// OpenSession opens a fresh tab on url and starts the mutation watcher.
func (b *Browser) OpenSession(ctx context.Context, url string) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.allocCtx)

	s := &chromeSession{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		events:    make(chan Event, 8),
		done:      make(chan struct{}),
	}

	if err := s.Navigate(ctx, url); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	go s.watch(ctx)
	return s, nil
}

type chromeSession struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	events    chan Event
	done      chan struct{}
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeDeadline(s.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeDeadline applies the caller context's deadline and cancellation to
// the tab context chromedp requires.
func mergeDeadline(tabCtx, callCtx context.Context) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if dl, ok := callCtx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(tabCtx, dl)
	} else {
		runCtx, cancel = context.WithCancel(tabCtx)
	}
	stop := context.AfterFunc(callCtx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) URL(ctx context.Context) (string, error) {
	var u string
	if err := s.run(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return u, nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	// SPA shells intermittently drop the first navigation while they boot
	err := navRetrier.Do(ctx, func() error {
		return s.run(ctx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	})
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Re-arm the observer: navigation wipes page scripts.
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(observerScript, &ok)); err != nil {
		return fmt.Errorf("install observer: %w", err)
	}
	return nil
}

func (s *chromeSession) WaitFor(ctx context.Context, selectors []string, timeout time.Duration) error {
	if len(selectors) == 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	combined := strings.Join(selectors, ", ")
	err := s.run(waitCtx, chromedp.WaitVisible(combined, chromedp.ByQuery))
	if err != nil {
		if waitCtx.Err() != nil {
			return fmt.Errorf("%w: %q after %s", ErrNoElement, combined, timeout)
		}
		return fmt.Errorf("wait for %q: %w", combined, err)
	}
	return nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) ReadInput(ctx context.Context, selectors []string) (string, string, error) {
	for _, sel := range selectors {
		script := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) { return null; }
  return el.tagName === 'TEXTAREA' || el.tagName === 'INPUT' ? el.value : el.textContent;
})()`, sel)
		var current *string
		if err := s.run(ctx, chromedp.Evaluate(script, &current)); err != nil {
			continue
		}
		if current != nil {
			return sel, *current, nil
		}
	}
	return "", "", ErrNoElement
}

func (s *chromeSession) WriteInput(ctx context.Context, selector, text string) error {
	script := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) { return false; }
  if (el.tagName === 'TEXTAREA' || el.tagName === 'INPUT') {
    el.value = %q;
  } else {
    el.textContent = %q;
  }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`, selector, text, text)
	var ok bool
	if err := s.run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("write input %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoElement, selector)
	}
	return nil
}

func (s *chromeSession) Events() <-chan Event {
	return s.events
}

func (s *chromeSession) Close() error {
	close(s.done)
	s.tabCancel()
	return nil
}

// watch polls the in-page mutation counter and emits an Event whenever it
// advanced since the previous poll. Slow consumers drop events; a fresh one
// always follows while the page keeps changing.
func (s *chromeSession) watch(ctx context.Context) {
	defer close(s.events)

	ticker := time.NewTicker(mutationPollInterval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var count int64
		if err := s.run(ctx, chromedp.Evaluate(`window.__chatweaveMutations || 0`, &count)); err != nil {
			continue
		}
		if count > last {
			last = count
			select {
			case s.events <- Event{At: time.Now()}:
			default:
			}
		}
	}
}
