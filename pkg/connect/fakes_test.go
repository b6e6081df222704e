package connect

import (
	"context"
	"sync"

	"github.com/eculver/connect-flows/pkg/browser"
)

type loginOutcome int

const (
	outcomeNavigates loginOutcome = iota
	outcomeShowsMarker
	outcomeHangs
)

type fakeLauncher struct {
	browser   *fakeBrowser
	launchErr error
	launches  int
	lastCfg   browser.Config
}

func (l *fakeLauncher) Launch(ctx context.Context, cfg browser.Config) (browser.Browser, error) {
	l.launches++
	l.lastCfg = cfg
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.browser, nil
}

type fakeBrowser struct {
	page      *fakePage
	openErr   error
	openedURL string
	closes    int
}

func (b *fakeBrowser) Open(ctx context.Context, url string) (browser.Page, error) {
	b.openedURL = url
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closes++
	return nil
}

type fakePage struct {
	outcome        loginOutcome
	formMissing    bool
	waitVisibleErr error
	inputErr       error
	clickErr       error
	cookies        []browser.Cookie
	cookiesErr     error

	mu        sync.Mutex
	inputs    map[string]string
	clicked   []string
	cancelled chan string
}

func newFakePage(outcome loginOutcome, cookies ...browser.Cookie) *fakePage {
	return &fakePage{
		outcome:   outcome,
		cookies:   cookies,
		inputs:    make(map[string]string),
		cancelled: make(chan string, 2),
	}
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	if p.formMissing {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.waitVisibleErr
}

func (p *fakePage) Input(ctx context.Context, selector, text string) error {
	if p.inputErr != nil {
		return p.inputErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs[selector] = text
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	if p.clickErr != nil {
		return p.clickErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *fakePage) WaitNavigationIdle(ctx context.Context) func() error {
	return func() error {
		if p.outcome == outcomeNavigates {
			return nil
		}
		<-ctx.Done()
		p.cancelled <- "navigation"
		return ctx.Err()
	}
}

func (p *fakePage) WaitText(ctx context.Context, selector, text string) error {
	if p.outcome == outcomeShowsMarker && selector == "body" && text == failureMarker {
		return nil
	}
	<-ctx.Done()
	p.cancelled <- "marker"
	return ctx.Err()
}

func (p *fakePage) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return p.cookies, p.cookiesErr
}

func newFakeLauncher(page *fakePage) *fakeLauncher {
	return &fakeLauncher{browser: &fakeBrowser{page: page}}
}
