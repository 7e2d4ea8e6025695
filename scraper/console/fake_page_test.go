package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/models"
)

// view is what a fakePage shows at one URL. Keys are Locator.String().
type view struct {
	counts map[string]int
	texts  map[string]string
	// links navigate the page when the keyed element is clicked on this view only.
	links map[string]string
}

// fakePage is a scripted browser.Page.
type fakePage struct {
	mu sync.Mutex

	url   string
	views map[string]*view

	// clickTo navigates this page when the keyed element is clicked.
	clickTo map[string]string
	// popups are opened when the keyed element is clicked.
	popups map[string]*fakePage
	// cal drives the month header and previous-month button when set.
	cal *fakeCalendar

	heightFn func(scrolls int) int64

	clicks    []string
	navs      []string
	fills     map[string]string
	scrolls   int
	closed    bool
	locations []string
}

func newFakePage(url string, views map[string]*view) *fakePage {
	return &fakePage{url: url, views: views, fills: map[string]string{}}
}

type fakeCalendar struct {
	shown      models.TargetMonth
	headerKey  string
	prevKey    string
	prevClicks int
	names      []string
}

func newFakeCalendar(shown models.TargetMonth) *fakeCalendar {
	return &fakeCalendar{
		shown:     shown,
		headerKey: "month [0]",
		prevKey:   "prev [0]",
		names: []string{"", "Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
			"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre"},
	}
}

func (c *fakeCalendar) header() string {
	return fmt.Sprintf("%s %d", c.names[c.shown.Month], c.shown.Year)
}

func (p *fakePage) current() *view {
	if v, ok := p.views[p.url]; ok {
		return v
	}
	return &view{}
}

func (p *fakePage) has(key string) bool {
	v := p.current()
	if v.counts[key] > 0 {
		return true
	}
	if _, ok := v.texts[key]; ok {
		return true
	}
	if _, ok := v.links[key]; ok {
		return true
	}
	if _, ok := p.clickTo[key]; ok {
		return true
	}
	if _, ok := p.popups[key]; ok {
		return true
	}
	if p.cal != nil && (key == p.cal.headerKey || key == p.cal.prevKey) {
		return true
	}
	return false
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navs = append(p.navs, url)
	p.url = url
	p.scrolls = 0
	return ctx.Err()
}

func (p *fakePage) Location(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", fmt.Errorf("target closed")
	}
	if len(p.locations) > 0 {
		p.url = p.locations[0]
		p.locations = p.locations[1:]
	}
	return p.url, nil
}

func (p *fakePage) Count(_ context.Context, loc browser.Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	if n, ok := p.current().counts[key]; ok {
		return n, nil
	}
	if p.has(key) {
		return 1, nil
	}
	return 0, nil
}

func (p *fakePage) Text(_ context.Context, loc browser.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	if p.cal != nil && key == p.cal.headerKey {
		return p.cal.header(), nil
	}
	if s, ok := p.current().texts[key]; ok {
		return s, nil
	}
	return "", browser.ErrNotFound
}

func (p *fakePage) click(key string) error {
	p.clicks = append(p.clicks, key)
	if !p.has(key) {
		return browser.ErrNotFound
	}
	if p.cal != nil && key == p.cal.prevKey {
		p.cal.prevClicks++
		p.cal.shown = p.cal.shown.Prev()
	}
	if to, ok := p.current().links[key]; ok {
		p.url = to
	} else if to, ok := p.clickTo[key]; ok {
		p.url = to
	}
	return nil
}

func (p *fakePage) Click(_ context.Context, loc browser.Locator, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.click(loc.String())
}

func (p *fakePage) Fill(_ context.Context, loc browser.Locator, value string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	if !p.has(key) {
		return browser.ErrNotFound
	}
	p.fills[key] = value
	return nil
}

func (p *fakePage) ClickForPopup(_ context.Context, loc browser.Locator, _, _ time.Duration) (browser.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	if err := p.click(key); err != nil {
		return nil, err
	}
	if popup, ok := p.popups[key]; ok {
		return popup, nil
	}
	return nil, nil
}

func (p *fakePage) WaitIdle(ctx context.Context, _ time.Duration) error { return ctx.Err() }
func (p *fakePage) Sleep(ctx context.Context, _ time.Duration) error    { return ctx.Err() }

func (p *fakePage) ScrollBy(_ context.Context, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	return nil
}

func (p *fakePage) ScrollHeight(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heightFn == nil {
		return 1000, nil
	}
	return p.heightFn(p.scrolls), nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

func (p *fakePage) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) clickCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.clicks {
		if c == key {
			n++
		}
	}
	return n
}

// testSelectors uses short queries so fakePage keys stay readable.
func testSelectors() Selectors {
	sel := DefaultSelectors()
	sel.OwnerRow = "row"
	sel.OwnerPreviewBtn = "btn"
	sel.OwnerNameCell = "name"
	sel.PropertiesTab = "tab"
	sel.PropertyRow = "prop"
	sel.PropertyNickname = "nick"
	sel.MonthHeader = "month"
	sel.PrevMonthBtn = "prev"
	sel.OwnerRevenueLabel = "label"
	sel.RevenueInContainer = "money"
	sel.RevenueFallback = "anymoney"
	sel.EmailInput = "email"
	sel.PasswordInput = "password"
	sel.SubmitButton = "submit"
	sel.SSOProviderButton = "provider"
	sel.SSOProviderText = "provider-text"
	sel.SSOConsentButton = "consent"
	sel.SSOAccountChooser = "account={email}"
	sel.SSOEmailInput = "sso-email"
	sel.SSOPasswordInput = "sso-password"
	sel.SSONextButton = "next"
	return sel
}
