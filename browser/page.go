// Package browser is the document-query and browser-control facility the
// console scraper runs on: page navigation, element queries with
// count/text/click/fill, popup detection and bounded waits.
package browser

import (
	"context"
	"errors"
	"time"

	"owner-revenue-scraper/models"
)

var (
	// ErrNotFound is returned when a locator matches no element.
	ErrNotFound = errors.New("element not found")
	// ErrWaitTimeout is returned when a bounded wait expires before its
	// condition held. Callers usually proceed anyway.
	ErrWaitTimeout = errors.New("wait timed out")
)

// Page is a single browser tab or popup window.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)

	// Count returns the number of elements matched by loc.
	Count(ctx context.Context, loc Locator) (int, error)
	// Text returns the rendered text of the first element matched by loc,
	// or ErrNotFound.
	Text(ctx context.Context, loc Locator) (string, error)
	// Click clicks the first element matched by loc, waiting up to timeout
	// for it to appear. Returns ErrNotFound when it never does.
	Click(ctx context.Context, loc Locator, timeout time.Duration) error
	// Fill replaces the value of the first input matched by loc.
	Fill(ctx context.Context, loc Locator, value string, timeout time.Duration) error
	// ClickForPopup clicks loc and waits up to popupWait for a new window
	// opened by this page. It returns a nil Page when none appeared.
	ClickForPopup(ctx context.Context, loc Locator, timeout, popupWait time.Duration) (Page, error)

	// WaitIdle waits until the page has had no network activity for a short
	// quiet period, or until timeout passes.
	WaitIdle(ctx context.Context, timeout time.Duration) error
	Sleep(ctx context.Context, d time.Duration) error

	ScrollBy(ctx context.Context, dy int) error
	ScrollHeight(ctx context.Context) (int64, error)
	Screenshot(ctx context.Context) ([]byte, error)

	Close(ctx context.Context) error
}

// Browser is one launched browser instance with its primary page.
type Browser interface {
	Page() Page
	// Snapshot captures the authentication state of the browser.
	Snapshot(ctx context.Context) (*models.SessionState, error)
	// Restore replays a snapshot into the browser before any navigation.
	Restore(ctx context.Context, state *models.SessionState) error
	Close() error
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
