package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jhulett18/threadsrecon/pkg/config"
	"github.com/jhulett18/threadsrecon/pkg/errors"
	"github.com/jhulett18/threadsrecon/pkg/logger"
)

// AuthState is where a session sits in the authentication flow.
type AuthState string

const (
	StateLoggedOut     AuthState = "logged_out"
	StateAnonymous     AuthState = "anonymous"
	StateAuthenticated AuthState = "authenticated"
)

// Authenticator walks a browser session through login or anonymous
// access. Login is idempotent; a second call on an active session is a
// success no-op.
type Authenticator struct {
	s      Session
	cfg    *config.ScraperConfig
	log    logger.Logger
	state  AuthState
	settle time.Duration
}

// NewAuthenticator returns an authenticator in the logged-out state.
func NewAuthenticator(s Session, cfg *config.ScraperConfig, log logger.Logger) *Authenticator {
	return &Authenticator{
		s:      s,
		cfg:    cfg,
		log:    log.WithField("component", "auth"),
		state:  StateLoggedOut,
		settle: 2 * time.Second,
	}
}

// State returns the current authentication state.
func (a *Authenticator) State() AuthState {
	return a.state
}

// IsAuthenticated reports whether follower collection is available.
func (a *Authenticator) IsAuthenticated() bool {
	return a.state == StateAuthenticated
}

// Login authenticates with the given credentials, or activates
// anonymous access when either credential is empty.
func (a *Authenticator) Login(ctx context.Context, username, password string) error {
	if a.state != StateLoggedOut {
		return nil
	}
	if username == "" || password == "" {
		return a.loginAnonymous(ctx)
	}
	return a.loginWithCredentials(ctx, username, password)
}

func (a *Authenticator) loginAnonymous(ctx context.Context) error {
	a.log.Info("Attempting anonymous access")

	if err := a.s.Navigate(ctx, a.cfg.BaseURL+"/login/"); err != nil {
		return err
	}
	if err := settle(ctx, a.settle); err != nil {
		return err
	}
	a.acceptCookies(ctx)

	clicked, err := a.clickByText(ctx, "a[href='/nonconsent/'] span", "Use without a profile", true)
	if err != nil || !clicked {
		a.s.Screenshot(ctx, "use_without_profile_error.png")
		if err == nil {
			err = errors.New(errors.ErrorTypeMissingElement, a.cfg.BaseURL+"/login/",
				"'Use without a profile' control not found, the page may be unavailable")
		}
		return err
	}

	if err := a.s.WaitReady(ctx, "body", a.cfg.Timeouts.PageLoad); err != nil {
		return err
	}

	a.state = StateAnonymous
	a.log.Info("Anonymous access active")
	return nil
}

func (a *Authenticator) loginWithCredentials(ctx context.Context, username, password string) error {
	a.log.WithField("username", username).Info("Attempting login")

	fail := func(err error) error {
		a.s.Screenshot(ctx, "login_error.png")
		return err
	}

	if err := a.s.Navigate(ctx, a.cfg.BaseURL+"/login/?show_choice_screen=false"); err != nil {
		return fail(err)
	}
	if err := settle(ctx, a.settle); err != nil {
		return err
	}
	a.acceptCookies(ctx)

	clicked, err := a.clickByText(ctx, "div", "Log in", false)
	if err != nil {
		return fail(err)
	}
	if !clicked {
		return fail(errors.New(errors.ErrorTypeMissingElement, a.cfg.BaseURL+"/login/",
			"login control not found, the server might be slow or unresponsive"))
	}

	if err := a.s.WaitReady(ctx, "input[placeholder='Username, phone or email']", a.cfg.Timeouts.ElementWait); err != nil {
		return fail(err)
	}
	if err := a.s.SendKeys(ctx, "input[placeholder='Username, phone or email']", username); err != nil {
		return fail(err)
	}
	if err := settle(ctx, a.settle/2); err != nil {
		return err
	}
	// Trailing newline submits the form.
	if err := a.s.SendKeys(ctx, "input[placeholder='Password']", password+"\n"); err != nil {
		return fail(err)
	}

	landmark := "svg[aria-label='Search'], svg[aria-label='Home'], input[placeholder='Search']"
	if err := a.s.WaitReady(ctx, landmark, a.cfg.Timeouts.PageLoad); err != nil {
		return fail(a.classifyLoginFailure(ctx))
	}

	a.state = StateAuthenticated
	a.log.Info("Login successful")
	return nil
}

// classifyLoginFailure inspects the post-submit URL for the markers the
// site uses for each account-state failure.
func (a *Authenticator) classifyLoginFailure(ctx context.Context) error {
	url, err := a.s.CurrentURL(ctx)
	if err != nil {
		url = ""
	}
	switch {
	case strings.Contains(url, "checkpoint_required"):
		return errors.New(errors.ErrorTypeCheckpoint, url,
			"account requires additional verification, log in manually first")
	case strings.Contains(url, "login_challenge"):
		return errors.New(errors.ErrorTypeChallenge, url,
			"suspicious login attempt detected, verify the account manually")
	case strings.Contains(url, "blocked"):
		return errors.New(errors.ErrorTypeBlocked, url,
			"account has been temporarily blocked, try again later")
	default:
		return errors.New(errors.ErrorTypeAuth, url,
			"login failed, check the credentials and try again")
	}
}

// acceptCookies dismisses the consent popup if present. Best-effort:
// a missing popup or failed click is logged and ignored.
func (a *Authenticator) acceptCookies(ctx context.Context) {
	if a.cfg.Browser.SkipConsent {
		return
	}
	clicked, err := a.clickByText(ctx, "div", "Allow all cookies", true)
	if err != nil || !clicked {
		a.log.Debug("Cookie consent popup not dismissed")
		a.s.Screenshot(ctx, "accept_cookies_error.png")
	}
}

// clickByText clicks the first element matching selector whose text
// equals (or contains, when exact is false) text. Returns whether an
// element was clicked. Needed because CSS cannot select on text
// content.
func (a *Authenticator) clickByText(ctx context.Context, selector, text string, exact bool) (bool, error) {
	op := "includes"
	if exact {
		op = "matches"
	}
	script := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll(%q)) {
			const t = el.textContent.trim();
			const hit = %q === "matches" ? t === %q : t.includes(%q);
			if (hit) { el.click(); return true; }
		}
		return false;
	})()`, selector, op, text, text)
	var clicked bool
	if err := a.s.ExecuteScript(ctx, script, &clicked); err != nil {
		return false, err
	}
	return clicked, nil
}
