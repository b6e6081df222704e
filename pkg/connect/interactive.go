package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/eculver/connect-flows/pkg/browser"
)

// InteractiveLogin logs in through the instance's login form in a controlled
// browser and returns the session cookie.
type InteractiveLogin struct {
	instance string
	homeURL  string
	username string
	password string
	config   browser.Config
	launcher browser.Launcher
}

// NewInteractiveLogin returns an InteractiveLogin for instance. A nil launcher
// uses go-rod and a nil endpoint uses DefaultEndpoint.
func NewInteractiveLogin(instance, username, password string, cfg browser.Config, launcher browser.Launcher, endpoint EndpointFunc) *InteractiveLogin {
	if launcher == nil {
		launcher = browser.NewRodLauncher()
	}
	if endpoint == nil {
		endpoint = DefaultEndpoint
	}

	return &InteractiveLogin{
		instance: instance,
		homeURL:  newEndpoints(endpoint, instance).home(),
		username: username,
		password: password,
		config:   cfg,
		launcher: launcher,
	}
}

func (l *InteractiveLogin) Strategy() AuthStrategy {
	return FormBased
}

// AcquireCredential drives the login form. The browser it launches is closed
// on every return path.
func (l *InteractiveLogin) AcquireCredential(ctx context.Context) (string, error) {
	b, err := l.launcher.Launch(ctx, l.config)
	if err != nil {
		return "", opError("login", l.instance, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.FromContext(ctx).Debug("Failed to close browser", "instance", l.instance, "error", err)
		}
	}()

	page, err := b.Open(ctx, l.homeURL)
	if err != nil {
		return "", opError("login", l.instance, err)
	}

	if err := l.fillForm(ctx, page); err != nil {
		return "", opError("login", l.instance, err)
	}

	raceCtx, cancel := withOptionalTimeout(ctx, l.config.LoginTimeout)
	defer cancel()

	ok, err := submit(raceCtx, page)
	if err != nil {
		return "", opError("login", l.instance, err)
	}
	if !ok {
		return "", opError("login", l.instance, ErrInvalidCredentials)
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return "", opError("login", l.instance, fmt.Errorf("read cookies: %w", err))
	}
	for _, c := range cookies {
		if c.Name == SessionCookie && c.Value != "" {
			log.FromContext(ctx).Debug("Session cookie found", "instance", l.instance, "domain", c.Domain)
			return c.Value, nil
		}
	}

	return "", opError("login", l.instance, ErrCredentialNotFound)
}

func (l *InteractiveLogin) fillForm(ctx context.Context, page browser.Page) error {
	waitCtx, cancel := withOptionalTimeout(ctx, l.config.ElementTimeout)
	defer cancel()

	log.FromContext(ctx).Debug("Waiting for login form", "instance", l.instance, "url", l.homeURL)
	if err := page.WaitVisible(waitCtx, usernameSelector); err != nil {
		return fmt.Errorf("wait for login form: %w", err)
	}

	if err := page.Input(ctx, usernameSelector, l.username); err != nil {
		return fmt.Errorf("type username: %w", err)
	}
	if err := page.Input(ctx, passwordSelector, l.password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}
	return nil
}

type signal struct {
	success bool
	err     error
}

// submit clicks the login button and races the navigation reaching network
// idle (success) against the failure marker showing up in the body. The first
// signal to resolve decides; the other wait is cancelled. A signal that fails
// to resolve does not decide unless both fail.
func submit(ctx context.Context, page browser.Page) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	waitIdle := page.WaitNavigationIdle(ctx)
	if err := page.Click(ctx, loginButtonSelector); err != nil {
		return false, fmt.Errorf("click login: %w", err)
	}

	signals := make(chan signal, 2)
	go func() {
		signals <- signal{success: true, err: waitIdle()}
	}()
	go func() {
		signals <- signal{success: false, err: page.WaitText(ctx, "body", failureMarker)}
	}()

	var firstErr error
	for range 2 {
		s := <-signals
		if s.err == nil {
			return s.success, nil
		}
		if firstErr == nil {
			firstErr = s.err
		}
	}
	return false, fmt.Errorf("wait for login outcome: %w", firstErr)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
