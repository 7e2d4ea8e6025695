// Package pipeline runs one extraction: launch the browser, restore or
// create the console session, walk the owners and deliver the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/models"
	"owner-revenue-scraper/scraper/console"
	"owner-revenue-scraper/services"
	"owner-revenue-scraper/storage"
	"owner-revenue-scraper/utils"
)

// ErrLoginRejected reports that the console sent a freshly logged-in run
// back to its login page.
var ErrLoginRejected = errors.New("console rejected the fresh login")

// Collector walks the console and returns the run's result set.
type Collector interface {
	Run(ctx context.Context, page browser.Page, month models.TargetMonth) ([]models.ResultItem, error)
}

// Sink delivers the result set.
type Sink interface {
	Deliver(ctx context.Context, items []models.ResultItem) (*models.Payload, error)
}

// Pipeline is the run context. Launcher, Sessions, Auth, Collector and Sink
// are required; Results and Summary are optional.
type Pipeline struct {
	Launcher  browser.Launcher
	Sessions  *storage.SessionStore
	Auth      console.Authenticator
	Collector Collector
	Sink      Sink

	Results storage.ResultWriter
	Summary *services.SummaryService

	Location    *time.Location
	Now         func() time.Time
	LaunchRetry utils.RetryConfig
	Logger      *utils.Logger
}

// Month is the month this run collects, derived once from the clock.
func (p *Pipeline) Month() models.TargetMonth {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return models.PreviousMonth(now(), loc)
}

// Run performs one extraction and returns its summary. The browser is
// closed on every path. A stale saved session is cleared before
// ErrStaleSession is returned, so the next run logs in again. When the run
// logged in itself the same redirect is reported as ErrLoginRejected.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	month := p.Month()
	p.Logger.Info("=== Owner revenue run for %s ===", month)

	b, err := p.launch(ctx)
	if err != nil {
		return nil, err
	}
	defer p.closeBrowser(b)
	page := b.Page()

	state, err := p.Sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	restored := state != nil
	if restored {
		p.Logger.Info("[session] restoring session saved %s", state.CreatedAt.Format(time.RFC3339))
		if err := b.Restore(ctx, state); err != nil {
			return nil, fmt.Errorf("restore session: %w", err)
		}
	} else {
		p.Logger.Info("[session] no saved session, logging in")
		if err := p.login(ctx, b); err != nil {
			return nil, err
		}
	}

	items, err := p.Collector.Run(ctx, page, month)
	if errors.Is(err, console.ErrStaleSession) {
		if cerr := p.Sessions.Clear(context.WithoutCancel(ctx)); cerr != nil {
			p.Logger.Warn("[session] clear session: %v", cerr)
		} else if restored {
			p.Logger.Warn("[session] stale session cleared; run `login` or rerun to authenticate again")
		}
		if !restored {
			return nil, fmt.Errorf("%w: %v", ErrLoginRejected, err)
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("traverse console: %w", err)
	}

	payload, err := p.Sink.Deliver(ctx, items)
	if err != nil {
		return nil, err
	}

	if p.Results != nil {
		if err := p.Results.WriteResults(payload.Items); err != nil {
			p.Logger.Warn("[results] write export: %v", err)
		}
	}

	var summary *models.RunSummary
	if p.Summary != nil {
		summary = p.Summary.Generate(month, payload.Items)
		p.Summary.Print(summary)
	}
	p.Logger.Info("=== Delivered %d item(s) for %s ===", len(payload.Items), month)
	return summary, nil
}

// Login forces a fresh login and saves the resulting session.
func (p *Pipeline) Login(ctx context.Context) error {
	b, err := p.launch(ctx)
	if err != nil {
		return err
	}
	defer p.closeBrowser(b)
	return p.login(ctx, b)
}

func (p *Pipeline) login(ctx context.Context, b browser.Browser) error {
	if err := p.Auth.Login(ctx, b.Page()); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	state, err := b.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot session: %w", err)
	}
	if p.Now != nil {
		state.CreatedAt = p.Now().UTC()
	}
	if err := p.Sessions.Save(ctx, state); err != nil {
		return err
	}
	p.Logger.Info("[session] saved session with %d cookie(s)", len(state.Cookies))
	return nil
}

func (p *Pipeline) launch(ctx context.Context) (browser.Browser, error) {
	var b browser.Browser
	retry := p.LaunchRetry
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	if retry.Logger == nil {
		retry.Logger = p.Logger
	}
	err := retry.Do(ctx, "launch browser", func() error {
		var err error
		b, err = p.Launcher.Launch(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (p *Pipeline) closeBrowser(b browser.Browser) {
	if err := b.Close(); err != nil {
		p.Logger.Debug("close browser: %v", err)
	}
}
