package automation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// RodDriver is a Driver backed by a Chrome process it launched itself.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// RodFactory returns a DriverFactory that launches a new browser per walk.
func RodFactory(opts Options) DriverFactory {
	return func(ctx context.Context) (Driver, error) {
		return LaunchRod(ctx, opts)
	}
}

// LaunchRod starts a browser process with a single blank tab. ctx bounds the
// launch itself, including fetching a browser when none is installed, the
// process then lives until Close.
func LaunchRod(ctx context.Context, opts Options) (*RodDriver, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox).
		Set(flags.Flag("window-size"), "1366,768").
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if opts.BrowserBin != "" {
		l = l.Bin(opts.BrowserBin)
	}

	controlUrl, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	// Cleanup blocks until the process exits, so it always comes after Kill
	teardown := func() {
		l.Kill()
		l.Cleanup()
	}

	// each call binds its own context to the page
	browser := rod.New().ControlURL(controlUrl)
	err = browser.Connect()
	if err != nil {
		teardown()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		teardown()
		return nil, fmt.Errorf("create page: %w", err)
	}
	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: browserUserAgent})
	if err != nil {
		_ = browser.Close()
		teardown()
		return nil, fmt.Errorf("set user agent: %w", err)
	}

	return &RodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
	}, nil
}

func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	return d.page.Context(ctx).Navigate(url)
}

func (d *RodDriver) WaitLoad(ctx context.Context) error {
	page := d.page.Context(ctx)
	err := page.WaitLoad()
	if err != nil {
		return err
	}
	// the frontend is a single page app, a loaded document is not a rendered one
	return page.WaitStable(500 * time.Millisecond)
}

func (d *RodDriver) HTML(ctx context.Context) (string, error) {
	return d.page.Context(ctx).HTML()
}

// textPattern matches the element text with any run of whitespace in place
// of the whitespace in text.
func textPattern(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	return `^\s*` + strings.Join(fields, `\s+`) + `\s*$`
}

func (d *RodDriver) element(ctx context.Context, target Target) (*rod.Element, error) {
	page := d.page.Context(ctx)
	if target.Text == "" {
		return page.Element(target.Selector)
	}
	return page.ElementR(target.Selector, textPattern(target.Text))
}

func (d *RodDriver) Click(ctx context.Context, target Target) error {
	el, err := d.element(ctx, target)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) Reveal(ctx context.Context, target Target) error {
	el, err := d.element(ctx, target)
	if err != nil {
		return err
	}
	err = el.ScrollIntoView()
	if err != nil {
		return err
	}
	_, err = el.WaitInteractable()
	return err
}

func (d *RodDriver) Type(ctx context.Context, target Target, text string) error {
	el, err := d.element(ctx, target)
	if err != nil {
		return err
	}
	err = el.Focus()
	if err != nil {
		return err
	}
	// the first inserted character replaces the selection
	err = el.SelectAllText()
	if err != nil {
		return err
	}
	if text == "" {
		return el.Input("")
	}

	page := d.page.Context(ctx)
	for _, r := range text {
		err = page.InsertText(string(r))
		if err != nil {
			return err
		}
		jitteredSleep(ctx, 30*time.Millisecond, 80*time.Millisecond)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (d *RodDriver) SelectOption(ctx context.Context, selector, option string) error {
	el, err := d.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Select([]string{option}, true, rod.SelectorTypeText)
}

func (d *RodDriver) Close() error {
	var errs []error
	if d.page != nil {
		errs = append(errs, d.page.Close())
	}
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
	return errors.Join(errs...)
}
