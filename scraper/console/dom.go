package console

import (
	"context"
	"errors"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/utils"
)

// lookupText reads the text of loc. found is false when nothing matched or
// the read failed; non-NotFound failures are logged at debug.
func lookupText(ctx context.Context, p browser.Page, loc browser.Locator, logger *utils.Logger) (text string, found bool) {
	text, err := p.Text(ctx, loc)
	if err != nil {
		if !errors.Is(err, browser.ErrNotFound) {
			logger.Debug("[dom] read %s: %v", loc, err)
		}
		return "", false
	}
	return text, true
}

// exists reports whether loc currently matches at least one element.
func exists(ctx context.Context, p browser.Page, loc browser.Locator) bool {
	n, err := p.Count(ctx, loc)
	return err == nil && n > 0
}

// tryClick clicks loc and reports whether it succeeded.
func tryClick(ctx context.Context, p browser.Page, loc browser.Locator, timeout time.Duration, logger *utils.Logger) bool {
	if err := p.Click(ctx, loc, timeout); err != nil {
		logger.Debug("[dom] click %s: %v", loc, err)
		return false
	}
	return true
}

// settle waits for network idle up to timeout, then sleeps delay. Either
// wait expiring is not an error.
func settle(ctx context.Context, p browser.Page, timeout, delay time.Duration) error {
	if err := p.WaitIdle(ctx, timeout); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if delay > 0 {
		return p.Sleep(ctx, delay)
	}
	return nil
}

// waitFor polls until loc matches or timeout passes.
func waitFor(ctx context.Context, p browser.Page, loc browser.Locator, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if exists(ctx, p, loc) {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		if err := p.Sleep(ctx, interval); err != nil {
			return false
		}
	}
}
