package console

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"owner-revenue-scraper/browser"
	"owner-revenue-scraper/storage"
	"owner-revenue-scraper/utils"
)

// Authenticator signs the page into the console. On success the browser
// holds an authenticated session ready to be snapshotted.
type Authenticator interface {
	Login(ctx context.Context, page browser.Page) error
}

// Credentials are the login inputs shared by both strategies.
type Credentials struct {
	LoginURL string
	Email    string
	Password string
}

// AuthOptions selects and tunes the login strategy.
type AuthOptions struct {
	UseSSO bool
	// MFAWait is how long SSO login waits for a human approval.
	MFAWait time.Duration
	// AppURLs are the console addresses; returning to any of their hosts
	// ends the SSO flow.
	AppURLs   []string
	Artifacts storage.BlobSink
}

// NewAuthenticator returns the SSO strategy when opts.UseSSO is set and the
// credential-form strategy otherwise.
func NewAuthenticator(sel Selectors, creds Credentials, opts AuthOptions, logger *utils.Logger) Authenticator {
	if opts.UseSSO {
		return NewSSOLogin(sel, creds, opts, logger)
	}
	return NewCredentialLogin(sel, creds, logger)
}

// CredentialLogin fills the console's own email/password form.
type CredentialLogin struct {
	sel    Selectors
	creds  Credentials
	logger *utils.Logger

	FieldTimeout time.Duration
	IdleTimeout  time.Duration
	SettleDelay  time.Duration
}

func NewCredentialLogin(sel Selectors, creds Credentials, logger *utils.Logger) *CredentialLogin {
	return &CredentialLogin{
		sel:          sel,
		creds:        creds,
		logger:       logger,
		FieldTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
		SettleDelay:  1500 * time.Millisecond,
	}
}

// Login navigates to the login URL and submits the credential form. Inputs
// that are absent are skipped, so an already signed-in browser passes
// through untouched.
func (c *CredentialLogin) Login(ctx context.Context, page browser.Page) error {
	c.logger.Info("[login] credential login at %s", c.creds.LoginURL)
	if err := page.Navigate(ctx, c.creds.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := settle(ctx, page, c.IdleTimeout, 0); err != nil {
		return err
	}

	email := browser.Query(c.sel.EmailInput).First()
	if exists(ctx, page, email) {
		if err := page.Fill(ctx, email, c.creds.Email, c.FieldTimeout); err != nil {
			return fmt.Errorf("fill email: %w", err)
		}
	} else {
		c.logger.Debug("[login] no email input")
	}

	password := browser.Query(c.sel.PasswordInput).First()
	if exists(ctx, page, password) {
		if err := page.Fill(ctx, password, c.creds.Password, c.FieldTimeout); err != nil {
			return fmt.Errorf("fill password: %w", err)
		}
	} else {
		c.logger.Debug("[login] no password input")
	}

	submit := browser.Query(c.sel.SubmitButton).First()
	if exists(ctx, page, submit) {
		tryClick(ctx, page, submit, c.FieldTimeout, c.logger)
	}

	if err := settle(ctx, page, c.IdleTimeout, c.SettleDelay); err != nil {
		return err
	}
	c.logger.Info("[login] credential form submitted")
	return nil
}

// SSOLogin signs in through the third-party identity provider, then waits
// for a human to approve any multi-factor prompt.
type SSOLogin struct {
	sel       Selectors
	creds     Credentials
	logger    *utils.Logger
	artifacts storage.BlobSink
	appHosts  map[string]bool

	MFAWait         time.Duration
	PollInterval    time.Duration
	ControlTimeout  time.Duration
	RedirectTimeout time.Duration
	PopupWait       time.Duration
	IdleTimeout     time.Duration
}

func NewSSOLogin(sel Selectors, creds Credentials, opts AuthOptions, logger *utils.Logger) *SSOLogin {
	hosts := map[string]bool{}
	for _, raw := range append([]string{creds.LoginURL}, opts.AppURLs...) {
		if h := hostOf(raw); h != "" {
			hosts[h] = true
		}
	}
	artifacts := opts.Artifacts
	if artifacts == nil {
		artifacts = storage.NopBlobSink{}
	}
	return &SSOLogin{
		sel:             sel,
		creds:           creds,
		logger:          logger,
		artifacts:       artifacts,
		appHosts:        hosts,
		MFAWait:         opts.MFAWait,
		PollInterval:    2 * time.Second,
		ControlTimeout:  15 * time.Second,
		RedirectTimeout: 30 * time.Second,
		PopupWait:       3 * time.Second,
		IdleTimeout:     15 * time.Second,
	}
}

func (s *SSOLogin) Login(ctx context.Context, page browser.Page) error {
	s.logger.Info("[sso] starting provider login at %s", s.creds.LoginURL)
	if err := page.Navigate(ctx, s.creds.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	if err := settle(ctx, page, s.IdleTimeout, 0); err != nil {
		return err
	}
	s.checkpoint(ctx, page, "sso-start")

	provider, err := s.openProvider(ctx, page)
	if err != nil {
		return err
	}
	popup := provider != page
	if popup {
		defer provider.Close(context.WithoutCancel(ctx))
	}

	if !s.waitForProvider(ctx, provider) {
		if s.leftLogin(ctx, page) {
			s.logger.Info("[sso] provider session reused, already back on the console")
			return nil
		}
		s.checkpoint(ctx, provider, "sso-timeout")
		return fmt.Errorf("%w: provider sign-in page never loaded", ErrLoginControl)
	}
	s.checkpoint(ctx, provider, "sso-provider")

	if s.acceptConsent(ctx, provider) {
		if err := settle(ctx, provider, s.IdleTimeout, 0); err != nil {
			return err
		}
	}
	if err := s.identify(ctx, provider); err != nil {
		return err
	}

	s.checkpoint(ctx, provider, "sso-mfa-wait")
	s.logger.Warn("[sso] waiting up to %s for sign-in approval (approve the prompt on your device)", s.MFAWait)
	deadline := time.Now().Add(s.MFAWait)
	for {
		s.acceptConsent(ctx, provider)
		if s.onApp(ctx, page, provider, popup) {
			break
		}
		if time.Now().After(deadline) {
			s.checkpoint(ctx, provider, "sso-timeout")
			return ErrMFATimeout
		}
		if err := provider.Sleep(ctx, s.PollInterval); err != nil {
			return err
		}
	}

	if err := settle(ctx, page, s.IdleTimeout, 0); err != nil {
		return err
	}
	s.logger.Info("[sso] back on the console")
	return nil
}

// openProvider clicks the provider button and returns the page the provider
// flow runs in: a popup when one opened, page otherwise.
func (s *SSOLogin) openProvider(ctx context.Context, page browser.Page) (browser.Page, error) {
	var lastErr error
	for _, q := range []string{s.sel.SSOProviderButton, s.sel.SSOProviderText} {
		loc := browser.Query(q).First()
		if !exists(ctx, page, loc) {
			continue
		}
		popup, err := page.ClickForPopup(ctx, loc, s.ControlTimeout, s.PopupWait)
		if err != nil {
			lastErr = err
			continue
		}
		if popup != nil {
			s.logger.Debug("[sso] provider opened in a popup")
			return popup, nil
		}
		return page, nil
	}
	s.checkpoint(ctx, page, "sso-timeout")
	if lastErr != nil {
		return nil, fmt.Errorf("%w: provider button: %v", ErrLoginControl, lastErr)
	}
	return nil, fmt.Errorf("%w: provider button", ErrLoginControl)
}

func (s *SSOLogin) waitForProvider(ctx context.Context, provider browser.Page) bool {
	deadline := time.Now().Add(s.RedirectTimeout)
	for {
		loc, err := provider.Location(ctx)
		if err == nil {
			if h := hostOf(loc); h != "" && !s.appHosts[h] {
				settle(ctx, provider, s.IdleTimeout, 0)
				return true
			}
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		if provider.Sleep(ctx, s.PollInterval/4) != nil {
			return false
		}
	}
}

// acceptConsent clicks the provider's consent button when one is shown.
func (s *SSOLogin) acceptConsent(ctx context.Context, provider browser.Page) bool {
	consent := browser.Query(s.sel.SSOConsentButton).First()
	if !exists(ctx, provider, consent) {
		return false
	}
	s.logger.Debug("[sso] accepting consent dialog")
	return tryClick(ctx, provider, consent, s.ControlTimeout, s.logger)
}

// identify picks the account or types the email, then the password when
// the provider asks for one.
func (s *SSOLogin) identify(ctx context.Context, provider browser.Page) error {
	chooser := browser.Query(strings.ReplaceAll(s.sel.SSOAccountChooser, "{email}", s.creds.Email)).First()
	next := browser.Query(s.sel.SSONextButton).First()
	password := browser.Query(s.sel.SSOPasswordInput).First()

	if exists(ctx, provider, chooser) {
		s.logger.Info("[sso] choosing account %s", s.creds.Email)
		tryClick(ctx, provider, chooser, s.ControlTimeout, s.logger)
	} else {
		email := browser.Query(s.sel.SSOEmailInput).First()
		if !waitFor(ctx, provider, email, s.ControlTimeout, s.PollInterval/4) {
			s.checkpoint(ctx, provider, "sso-timeout")
			return fmt.Errorf("%w: provider email input", ErrLoginControl)
		}
		if err := provider.Fill(ctx, email, s.creds.Email, s.ControlTimeout); err != nil {
			return fmt.Errorf("fill provider email: %w", err)
		}
		tryClick(ctx, provider, next, s.ControlTimeout, s.logger)
	}

	if !waitFor(ctx, provider, password, s.ControlTimeout, s.PollInterval/4) {
		s.logger.Debug("[sso] provider did not ask for a password")
		return nil
	}
	s.checkpoint(ctx, provider, "sso-password")
	if err := provider.Fill(ctx, password, s.creds.Password, s.ControlTimeout); err != nil {
		return fmt.Errorf("fill provider password: %w", err)
	}
	tryClick(ctx, provider, next, s.ControlTimeout, s.logger)
	return nil
}

// onApp reports whether the flow has returned to the console. In popup mode
// the popup going away counts as done once page is on the console.
func (s *SSOLogin) onApp(ctx context.Context, page, provider browser.Page, popup bool) bool {
	if popup {
		if loc, err := provider.Location(ctx); err == nil && !s.appHosts[hostOf(loc)] {
			return false
		}
	}
	loc, err := page.Location(ctx)
	return err == nil && s.appHosts[hostOf(loc)]
}

// leftLogin reports whether page is on the console but no longer on the
// login path.
func (s *SSOLogin) leftLogin(ctx context.Context, page browser.Page) bool {
	loc, err := page.Location(ctx)
	if err != nil || !s.appHosts[hostOf(loc)] {
		return false
	}
	cur, err1 := url.Parse(loc)
	login, err2 := url.Parse(s.creds.LoginURL)
	return err1 == nil && err2 == nil && cur.Path != login.Path
}

func (s *SSOLogin) checkpoint(ctx context.Context, page browser.Page, name string) {
	if _, nop := s.artifacts.(storage.NopBlobSink); nop {
		return
	}
	shot, err := page.Screenshot(ctx)
	if err != nil {
		s.logger.Debug("[sso] screenshot %s: %v", name, err)
		return
	}
	if err := s.artifacts.Put(ctx, name, shot, "image/png"); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("[sso] store screenshot %s: %v", name, err)
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
