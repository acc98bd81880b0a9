// Package fetch provides the two Pager implementations: a chromedp-driven
// headless browser for sites that render listings client-side, and a
// colly-based static pager for plain HTML listings.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
)

const defaultOpTimeout = 45 * time.Second

// Browser pages through a listing inside one headless Chrome tab. One
// Browser serves one crawl session; it is not safe for concurrent use.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
}

func NewBrowser(ctx context.Context, headless bool) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(shared.RandomUserAgent()),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("headless", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser process up front so a broken Chrome install
	// fails here instead of mid-crawl.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Browser{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     defaultOpTimeout,
	}, nil
}

func (b *Browser) Open(ctx context.Context, url string) error {
	log.Info().Str("url", url).Msg("Navigating")
	return b.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Page waits for waitFor to become visible, idles briefly so lazy content
// settles, and returns the page HTML.
func (b *Browser) Page(ctx context.Context, waitFor string) (string, error) {
	var html string
	err := b.run(ctx,
		chromedp.WaitVisible(waitFor, chromedp.ByQuery),
		chromedp.Sleep(settleDelay()),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	if html == "" {
		return "", fmt.Errorf("empty page content")
	}
	return html, nil
}

func (b *Browser) HasNext(ctx context.Context, selector string) (bool, error) {
	var found bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", selector)
	if err := b.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// Next clicks the next-page control, then polls the location until it
// differs from the one observed before the click. Not observing a change
// within the op timeout is a failure: returning the same page would make
// the session re-evaluate cards it already has.
func (b *Browser) Next(ctx context.Context, selector string) error {
	var before string
	if err := b.run(ctx, chromedp.Location(&before)); err != nil {
		return err
	}

	if err := b.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("clicking next control: %w", err)
	}

	deadline := time.Now().Add(b.timeout)
	for time.Now().Before(deadline) {
		var current string
		if err := b.run(ctx, chromedp.Location(&current)); err != nil {
			return err
		}
		if current != "" && current != before {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}

	return fmt.Errorf("page did not change after clicking %q", selector)
}

func (b *Browser) Close(ctx context.Context) error {
	b.cancel()
	b.allocCancel()
	return nil
}

func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// settleDelay mirrors the human-ish pause between page load and read.
func settleDelay() time.Duration {
	return time.Duration(1500+rand.Intn(1000)) * time.Millisecond
}
