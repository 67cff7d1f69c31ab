// Package page is the binding layer between the extractor and a live
// browser page. The extractor only sees the Session interface; the chromedp
// implementation drives a real Chrome over the DevTools protocol.
package page

import (
	"context"
	"errors"
	"time"
)

// ErrNoElement reports that a bounded wait or input lookup found nothing
// before its deadline. It is the only recoverable error the binding layer
// surfaces per extraction step.
var ErrNoElement = errors.New("page: element not found")

// Event is a discrete page-content notification delivered to the extractor's
// task queue. The binding layer folds raw DOM mutation noise into these.
type Event struct {
	At time.Time
}

// Session is one live platform tab.
type Session interface {
	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)
	// Navigate loads url and waits for the document to settle.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until any of the selectors matches a visible element,
	// or fails with ErrNoElement after timeout.
	WaitFor(ctx context.Context, selectors []string, timeout time.Duration) error
	// HTML snapshots the full document markup.
	HTML(ctx context.Context) (string, error)
	// Click dispatches a click on the first element matching selector.
	Click(ctx context.Context, selector string) error
	// ReadInput finds the first input-like element across the selector chain
	// and returns the matched selector plus its current text. ErrNoElement
	// when nothing matches.
	ReadInput(ctx context.Context, selectors []string) (selector, current string, err error)
	// WriteInput replaces the element's content and fires synthetic
	// input/change events so the page's framework observes the edit.
	WriteInput(ctx context.Context, selector, text string) error
	// Events delivers content-changed notifications. The channel closes when
	// the session closes.
	Events() <-chan Event
	Close() error
}
