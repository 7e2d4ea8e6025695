package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"owner-revenue-scraper/models"
	"owner-revenue-scraper/utils"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	pollInterval = 100 * time.Millisecond
	idleQuiet    = 500 * time.Millisecond
	popupLoadCap = 15 * time.Second
)

// ChromeLauncher starts a local Chrome/Chromium through chromedp.
type ChromeLauncher struct {
	Headless  bool
	ChromeBin string
	UserAgent string
	Logger    *utils.Logger
}

// Launch starts the browser and opens its primary page.
func (l ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	logger := l.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	chromeBin := l.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s (headless=%v)", chromeBin, l.Headless)

	ua := l.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(ua),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// chromedp logs every unknown CDP event; keep only errors, at debug.
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Debug("[browser] cdp: "+format, args...)
		}),
	)

	primary := newChromePage(tabCtx, cancelTab, logger)
	// the first Run allocates the browser; a timeout on it would kill the
	// process when it fires
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	startCtx, stop := primary.bind(ctx, 60*time.Second)
	defer stop()
	if err := chromedp.Run(startCtx, network.Enable()); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	primary.captureTargetID()

	return &chromeBrowser{
		allocCancel: cancelAlloc,
		primary:     primary,
		logger:      logger,
	}, nil
}

type chromeBrowser struct {
	allocCancel context.CancelFunc
	primary     *chromePage
	logger      *utils.Logger
	closeOnce   sync.Once
}

func (b *chromeBrowser) Page() Page { return b.primary }

func (b *chromeBrowser) Snapshot(ctx context.Context) (*models.SessionState, error) {
	runCtx, stop := b.primary.bind(ctx, 30*time.Second)
	defer stop()

	var cookies []*network.Cookie
	var origin models.OriginStorage
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Evaluate(snapshotScript, &origin),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot session: %w", err)
	}

	state := &models.SessionState{CreatedAt: time.Now().UTC()}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	if origin.Origin != "" && origin.Origin != "null" && len(origin.LocalStorage) > 0 {
		state.Origins = append(state.Origins, origin)
	}
	return state, nil
}

func (b *chromeBrowser) Restore(ctx context.Context, state *models.SessionState) error {
	if state == nil {
		return nil
	}
	runCtx, stop := b.primary.bind(ctx, 30*time.Second)
	defer stop()

	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}

	actions := []chromedp.Action{}
	if len(params) > 0 {
		actions = append(actions, network.SetCookies(params))
	}
	for _, o := range state.Origins {
		script, err := restoreScript(o.Origin, o.LocalStorage)
		if err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	if len(actions) == 0 {
		return nil
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	b.logger.Debug("[browser] Restored %d cookies, %d origins", len(params), len(state.Origins))
	return nil
}

func (b *chromeBrowser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = chromedp.Cancel(b.primary.ctx)
		b.primary.cancel()
		b.allocCancel()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// chromePage is one chromedp target.
type chromePage struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *utils.Logger
	targetID target.ID

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	lastNet  time.Time
}

func newChromePage(ctx context.Context, cancel context.CancelFunc, logger *utils.Logger) *chromePage {
	p := &chromePage{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		inflight: make(map[network.RequestID]struct{}),
		lastNet:  time.Now(),
	}
	chromedp.ListenTarget(ctx, p.onEvent)
	return p
}

func (p *chromePage) captureTargetID() {
	if c := chromedp.FromContext(p.ctx); c != nil && c.Target != nil {
		p.targetID = c.Target.TargetID
	}
}

func (p *chromePage) onEvent(ev interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		p.inflight[e.RequestID] = struct{}{}
		p.lastNet = time.Now()
	case *network.EventLoadingFinished:
		delete(p.inflight, e.RequestID)
		p.lastNet = time.Now()
	case *network.EventLoadingFailed:
		delete(p.inflight, e.RequestID)
		p.lastNet = time.Now()
	}
}

// bind derives a context that carries the page's chromedp target and is
// cancelled when either the caller's ctx ends or timeout elapses.
func (p *chromePage) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) resolve(ctx context.Context, loc Locator, op, arg string) (resolveResult, error) {
	var res resolveResult
	expr, err := buildResolve(loc, op, arg)
	if err != nil {
		return res, err
	}
	runCtx, stop := p.bind(ctx, 10*time.Second)
	defer stop()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &res)); err != nil {
		return res, fmt.Errorf("%s %s: %w", op, loc, err)
	}
	return res, nil
}

// resolveUntil polls op until the locator matches or timeout passes.
func (p *chromePage) resolveUntil(ctx context.Context, loc Locator, op, arg string, timeout time.Duration) (resolveResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		res, err := p.resolve(ctx, loc, op, arg)
		if err == nil && res.Found {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if time.Now().After(deadline) {
			if err != nil {
				return res, err
			}
			return res, fmt.Errorf("%s %s: %w", op, loc, ErrNotFound)
		}
		if err := Sleep(ctx, pollInterval); err != nil {
			return res, err
		}
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	runCtx, stop := p.bind(ctx, 60*time.Second)
	defer stop()
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	runCtx, stop := p.bind(ctx, 10*time.Second)
	defer stop()
	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

func (p *chromePage) Count(ctx context.Context, loc Locator) (int, error) {
	res, err := p.resolve(ctx, loc, "count", "")
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (p *chromePage) Text(ctx context.Context, loc Locator) (string, error) {
	res, err := p.resolve(ctx, loc, "text", "")
	if err != nil {
		return "", err
	}
	if !res.Found {
		return "", fmt.Errorf("text %s: %w", loc, ErrNotFound)
	}
	return res.Text, nil
}

func (p *chromePage) Click(ctx context.Context, loc Locator, timeout time.Duration) error {
	_, err := p.resolveUntil(ctx, loc, "click", "", timeout)
	return err
}

func (p *chromePage) Fill(ctx context.Context, loc Locator, value string, timeout time.Duration) error {
	if _, err := p.resolveUntil(ctx, loc, "focus", "", timeout); err != nil {
		return err
	}
	runCtx, stop := p.bind(ctx, timeout)
	defer stop()
	if err := chromedp.Run(runCtx, chromedp.KeyEvent(value)); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (p *chromePage) ClickForPopup(ctx context.Context, loc Locator, timeout, popupWait time.Duration) (Page, error) {
	opened := make(chan target.ID, 1)
	listenCtx, stopListen := context.WithCancel(p.ctx)
	defer stopListen()

	chromedp.ListenBrowser(listenCtx, func(ev interface{}) {
		e, ok := ev.(*target.EventTargetCreated)
		if !ok || e.TargetInfo == nil || e.TargetInfo.Type != "page" {
			return
		}
		if p.targetID != "" && e.TargetInfo.OpenerID != p.targetID {
			return
		}
		select {
		case opened <- e.TargetInfo.TargetID:
		default:
		}
	})

	if err := p.Click(ctx, loc, timeout); err != nil {
		return nil, err
	}

	wait := time.NewTimer(popupWait)
	defer wait.Stop()
	var id target.ID
	select {
	case id = <-opened:
	case <-wait.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	popupCtx, cancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
	popup := newChromePage(popupCtx, cancel, p.logger)
	popup.targetID = id
	if err := chromedp.Run(popupCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("attach popup %s: %w", id, err)
	}

	readyCtx, stop := popup.bind(ctx, popupLoadCap)
	defer stop()
	if err := chromedp.Run(readyCtx, network.Enable(), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		p.logger.Debug("[browser] popup %s not ready: %v", id, err)
	}
	return popup, nil
}

func (p *chromePage) WaitIdle(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		idle := len(p.inflight) == 0 && time.Since(p.lastNet) >= idleQuiet
		p.mu.Unlock()
		if idle {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrWaitTimeout
		}
		if err := Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

func (p *chromePage) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

func (p *chromePage) ScrollBy(ctx context.Context, dy int) error {
	runCtx, stop := p.bind(ctx, 10*time.Second)
	defer stop()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, 400, 400).
			WithDeltaX(0).
			WithDeltaY(float64(dy)).
			Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (p *chromePage) ScrollHeight(ctx context.Context) (int64, error) {
	runCtx, stop := p.bind(ctx, 10*time.Second)
	defer stop()
	var h int64
	if err := chromedp.Run(runCtx, chromedp.Evaluate(`document.body ? document.body.scrollHeight : 0`, &h)); err != nil {
		return 0, fmt.Errorf("scroll height: %w", err)
	}
	return h, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, stop := p.bind(ctx, 30*time.Second)
	defer stop()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the target. The primary page is closed with its browser.
func (p *chromePage) Close(ctx context.Context) error {
	if p.targetID == "" {
		p.cancel()
		return nil
	}
	runCtx, stop := p.bind(ctx, 10*time.Second)
	defer stop()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.CloseTarget(p.targetID).Do(ctx)
	}))
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
