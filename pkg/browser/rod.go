package browser

import (
	"context"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher launches Chromium through go-rod.
type RodLauncher struct{}

// NewRodLauncher returns a Launcher backed by go-rod.
func NewRodLauncher() *RodLauncher {
	return &RodLauncher{}
}

func (RodLauncher) Launch(ctx context.Context, cfg Config) (Browser, error) {
	l := launcher.New().Context(ctx).Headless(cfg.Headless).Leakless(true)
	if cfg.ChromiumPath != "" {
		l = l.Bin(cfg.ChromiumPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger := log.FromContext(ctx)
	logger.Debug("Browser launched", "headless", cfg.Headless, "bin", cfg.ChromiumPath, "control_url", controlURL)

	return &rodBrowser{browser: b, launcher: l, controlURL: controlURL, logger: logger}, nil
}

type rodBrowser struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	controlURL string
	logger     *log.Logger
}

func (b *rodBrowser) Open(ctx context.Context, url string) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return &rodPage{page: page}, nil
}

// Close shuts the browser down, kills its process group and removes the
// temporary profile directory.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	b.logger.Debug("Browser closed")
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", selector, err)
	}
	return el, nil
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (p *rodPage) Input(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) WaitNavigationIdle(ctx context.Context) func() error {
	wait := p.page.Context(ctx).WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	return func() error {
		wait()
		return ctx.Err()
	}
}

func (p *rodPage) WaitText(ctx context.Context, selector, text string) error {
	_, err := p.page.Context(ctx).ElementR(selector, regexp.QuoteMeta(text))
	return err
}

func (p *rodPage) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := p.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}
	return cookies, nil
}
