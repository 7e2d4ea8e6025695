package console

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/models"
	"owner-revenue-scraper/services"
	"owner-revenue-scraper/utils"
)

// DefaultLoginPattern matches console URLs that belong to the login surface.
const DefaultLoginPattern = `(?i)/(login|signin|sign-in|auth)([/?#]|$)`

// TraversalOptions tunes the owner/property walk.
type TraversalOptions struct {
	OwnersURL    string
	LoginPattern *regexp.Regexp

	ScrollStep   int
	ScrollPause  time.Duration
	MaxScrolls   int
	IdleTimeout  time.Duration
	ClickTimeout time.Duration
	// PreviewTimeout bounds the click on an owner's preview button.
	PreviewTimeout time.Duration
	// PopupWait is how long to wait for a popup after the preview click
	// before treating the detail as same-page.
	PopupWait  time.Duration
	TabTimeout time.Duration
}

func DefaultTraversalOptions(ownersURL string) TraversalOptions {
	return TraversalOptions{
		OwnersURL:      ownersURL,
		LoginPattern:   regexp.MustCompile(DefaultLoginPattern),
		ScrollStep:     2000,
		ScrollPause:    400 * time.Millisecond,
		MaxScrolls:     20,
		IdleTimeout:    15 * time.Second,
		ClickTimeout:   5 * time.Second,
		PreviewTimeout: 15 * time.Second,
		PopupWait:      5 * time.Second,
		TabTimeout:     5 * time.Second,
	}
}

// Traverser walks the owners listing and reads each property's owner
// revenue for one month.
type Traverser struct {
	sel      Selectors
	opts     TraversalOptions
	calendar *Reconciler
	logger   *utils.Logger
}

func NewTraverser(sel Selectors, opts TraversalOptions, calendar *Reconciler, logger *utils.Logger) *Traverser {
	if opts.LoginPattern == nil {
		opts.LoginPattern = regexp.MustCompile(DefaultLoginPattern)
	}
	return &Traverser{sel: sel, opts: opts, calendar: calendar, logger: logger}
}

// Run collects one ResultItem per property of every owner, all labelled
// with month. It fails with ErrStaleSession when the listing redirects to
// the login surface; every other lookup failure is absorbed.
func (t *Traverser) Run(ctx context.Context, page browser.Page, month models.TargetMonth) ([]models.ResultItem, error) {
	if err := t.openOwners(ctx, page); err != nil {
		return nil, err
	}
	loc, err := page.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("read location: %w", err)
	}
	if t.opts.LoginPattern.MatchString(loc) {
		return nil, fmt.Errorf("%w (landed on %s)", ErrStaleSession, loc)
	}

	rows := browser.Query(t.sel.OwnerRow)
	owners, err := page.Count(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("count owners: %w", err)
	}
	t.logger.Info("[traverse] %d owner(s) listed, collecting %s", owners, month)

	items := make([]models.ResultItem, 0, owners)
	for i := 0; i < owners; i++ {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		owner := models.OwnerRecord{Index: i}
		got, samePage := t.visitOwner(ctx, page, rows.Nth(i), &owner, month)
		items = append(items, got...)

		if samePage && i+1 < owners {
			if err := t.openOwners(ctx, page); err != nil {
				return items, fmt.Errorf("restore owners listing: %w", err)
			}
		}
	}
	t.logger.Info("[traverse] collected %d item(s) from %d owner(s)", len(items), owners)
	return items, nil
}

func (t *Traverser) openOwners(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, t.opts.OwnersURL); err != nil {
		return fmt.Errorf("open owners listing: %w", err)
	}
	if err := settle(ctx, page, t.opts.IdleTimeout, 0); err != nil {
		return err
	}
	t.exhaustScroll(ctx, page)
	return ctx.Err()
}

// exhaustScroll scrolls until the document height stops growing, at most
// MaxScrolls times. It returns the number of scrolls performed.
func (t *Traverser) exhaustScroll(ctx context.Context, page browser.Page) int {
	last, err := page.ScrollHeight(ctx)
	if err != nil {
		t.logger.Debug("[traverse] read scroll height: %v", err)
	}
	for i := 0; i < t.opts.MaxScrolls; i++ {
		if err := page.ScrollBy(ctx, t.opts.ScrollStep); err != nil {
			t.logger.Debug("[traverse] scroll: %v", err)
		}
		if page.Sleep(ctx, t.opts.ScrollPause) != nil {
			return i + 1
		}
		h, err := page.ScrollHeight(ctx)
		if err != nil || h == last {
			return i + 1
		}
		last = h
	}
	t.logger.Debug("[traverse] owners listing still growing after %d scrolls", t.opts.MaxScrolls)
	return t.opts.MaxScrolls
}

// visitOwner opens one owner's detail and reads every property. samePage is
// true when the owners listing was replaced and must be reopened.
func (t *Traverser) visitOwner(ctx context.Context, page browser.Page, row browser.Locator, owner *models.OwnerRecord, month models.TargetMonth) (items []models.ResultItem, samePage bool) {
	if name, found := lookupText(ctx, page, row.Find(t.sel.OwnerNameCell).First(), t.logger); found {
		owner.Name = services.NormaliseText(name)
	}
	log := t.logger.With("owner", owner.Name, "ownerIndex", owner.Index)

	detail, err := t.openDetail(ctx, page, row)
	if err != nil {
		log.Warn("[traverse] skipping owner %q: open preview: %v", owner.Name, err)
		return nil, false
	}
	defer func() {
		if err := detail.Release(context.WithoutCancel(ctx)); err != nil {
			log.Debug("[traverse] close detail: %v", err)
		}
	}()
	log.Debug("[traverse] owner %q opened as %s", owner.Name, detail.Kind)

	dp := detail.Page
	if tryClick(ctx, dp, browser.Query(t.sel.PropertiesTab).First(), t.opts.TabTimeout, log) {
		settle(ctx, dp, t.opts.IdleTimeout, 0)
	}
	t.ensureMonth(ctx, dp, month, owner.Name, "")

	props := browser.Query(t.sel.PropertyRow)
	n, err := dp.Count(ctx, props)
	if err != nil {
		log.Warn("[traverse] count properties of %q: %v", owner.Name, err)
		n = 0
	}
	if n == 0 {
		log.Info("[traverse] owner %q has no properties", owner.Name)
	}

	for j := 0; j < n; j++ {
		if ctx.Err() != nil {
			break
		}
		prop := models.PropertyRecord{Index: j}
		revenue := t.readProperty(ctx, dp, props.Nth(j), &prop, owner.Name, month)
		items = append(items, models.ResultItem{
			Owner:        owner.Name,
			Nickname:     prop.Nickname,
			Month:        month,
			OwnerRevenue: revenue,
		})
		log.Debug("[traverse] %q / %q: %.2f", owner.Name, prop.Nickname, revenue)
	}
	return items, detail.Kind == DetailSamePage
}

func (t *Traverser) openDetail(ctx context.Context, page browser.Page, row browser.Locator) (DetailContext, error) {
	btn := row.Find(t.sel.OwnerPreviewBtn).First()
	popup, err := page.ClickForPopup(ctx, btn, t.opts.PreviewTimeout, t.opts.PopupWait)
	if err != nil {
		return DetailContext{}, err
	}
	if popup != nil {
		settle(ctx, popup, t.opts.IdleTimeout, 0)
		return DetailContext{Kind: DetailPopup, Page: popup}, nil
	}
	settle(ctx, page, t.opts.IdleTimeout, 0)
	return DetailContext{Kind: DetailSamePage, Page: page}, nil
}

func (t *Traverser) readProperty(ctx context.Context, dp browser.Page, row browser.Locator, prop *models.PropertyRecord, owner string, month models.TargetMonth) float64 {
	if tryClick(ctx, dp, row, t.opts.ClickTimeout, t.logger) {
		settle(ctx, dp, t.opts.IdleTimeout, 0)
	}

	if nick, found := lookupText(ctx, dp, row.Find(t.sel.PropertyNickname).First(), t.logger); found && services.NormaliseText(nick) != "" {
		prop.Nickname = services.NormaliseText(nick)
	} else if text, found := lookupText(ctx, dp, row, t.logger); found {
		prop.Nickname = services.FirstLine(text)
	}

	t.ensureMonth(ctx, dp, month, owner, prop.Nickname)
	return t.readRevenue(ctx, dp)
}

// readRevenue finds the owner-revenue label, reads the currency text in its
// container and falls back to the first currency text on the page.
func (t *Traverser) readRevenue(ctx context.Context, dp browser.Page) float64 {
	label := browser.Query(t.sel.OwnerRevenueLabel).First()
	if !exists(ctx, dp, label) {
		t.logger.Debug("[traverse] revenue label not found")
		return 0
	}
	text, found := lookupText(ctx, dp, label.Parent().Find(t.sel.RevenueInContainer).First(), t.logger)
	if !found || services.NormaliseText(text) == "" {
		text, _ = lookupText(ctx, dp, browser.Query(t.sel.RevenueFallback).First(), t.logger)
	}
	return services.ParseMoney(text)
}

func (t *Traverser) ensureMonth(ctx context.Context, dp browser.Page, month models.TargetMonth, owner, property string) {
	if t.calendar.EnsureMonth(ctx, dp, month) {
		return
	}
	_, header, _ := t.calendar.Displayed(ctx, dp)
	t.logger.Warn("[traverse] calendar not aligned to %s for owner %q property %q (header %q); revenue is labelled %s anyway",
		month, owner, property, header, month)
}
