// Package browser describes the small slice of browser automation the
// interactive login needs, and provides a go-rod backed implementation.
package browser

import (
	"context"
	"time"
)

// Config controls how a browser is launched.
type Config struct {
	// ChromiumPath overrides the browser binary. Empty means go-rod looks one up
	// (or downloads it).
	ChromiumPath string `yaml:"chromium_path"`
	Headless     bool   `yaml:"headless"`

	// ElementTimeout bounds the wait for the login form. Zero waits forever.
	ElementTimeout time.Duration `yaml:"element_timeout"`
	// LoginTimeout bounds the wait for the login outcome after submitting.
	// Zero waits forever.
	LoginTimeout time.Duration `yaml:"login_timeout"`
}

// DefaultConfig returns a headless configuration with no deadlines.
func DefaultConfig() Config {
	return Config{Headless: true}
}

// Cookie is a cookie read from the browser for the current page.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// Launcher starts a browser. Every Browser it returns must be closed by the caller.
type Launcher interface {
	Launch(ctx context.Context, cfg Config) (Browser, error)
}

// Browser is a running, controlled browser instance.
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
	Close() error
}

// Page is a single tab. All waits return when ctx is done.
type Page interface {
	// WaitVisible blocks until the element matching selector is visible.
	WaitVisible(ctx context.Context, selector string) error
	Input(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// WaitNavigationIdle arms a wait for the next navigation to reach network
	// idle. Call it before the action that navigates, then call the returned
	// function to block.
	WaitNavigationIdle(ctx context.Context) func() error
	// WaitText blocks until the element matching selector contains text.
	WaitText(ctx context.Context, selector, text string) error
	Cookies(ctx context.Context) ([]Cookie, error)
}
