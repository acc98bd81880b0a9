package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/abdur-rab-khan/aladdin-bot/internal/shared"
)

// StaticPager pages through server-rendered listings with plain HTTP
// requests. Pagination follows the next control's href instead of
// clicking it.
type StaticPager struct {
	collector *colly.Collector

	currentURL string
	html       string
}

func NewStaticPager(timeout time.Duration) *StaticPager {
	c := colly.NewCollector(
		colly.UserAgent(shared.RandomUserAgent()),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       1 * time.Second,
		RandomDelay: 1 * time.Second,
	})

	p := &StaticPager{collector: c}
	c.OnResponse(func(r *colly.Response) {
		p.html = string(r.Body)
		p.currentURL = r.Request.URL.String()
	})
	return p
}

func (p *StaticPager) Open(ctx context.Context, url string) error {
	return p.fetch(url)
}

func (p *StaticPager) Page(ctx context.Context, waitFor string) (string, error) {
	if p.html == "" {
		return "", fmt.Errorf("no page loaded")
	}

	// The static equivalent of waiting for the selector: the content is
	// either in the response or never will be.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return "", err
	}
	if doc.Find(waitFor).Length() == 0 {
		return "", fmt.Errorf("selector %q not present on page", waitFor)
	}

	return p.html, nil
}

func (p *StaticPager) HasNext(ctx context.Context, selector string) (bool, error) {
	_, ok, err := p.nextHref(selector)
	return ok, err
}

func (p *StaticPager) Next(ctx context.Context, selector string) error {
	href, ok, err := p.nextHref(selector)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no next control matching %q", selector)
	}

	target, err := shared.ResolveURL(p.currentURL, href)
	if err != nil {
		return err
	}

	before := p.currentURL
	if err := p.fetch(target); err != nil {
		return err
	}
	if p.currentURL == before {
		return fmt.Errorf("pagination did not change page from %q", before)
	}
	return nil
}

func (p *StaticPager) Close(ctx context.Context) error {
	p.collector.Wait()
	return nil
}

func (p *StaticPager) fetch(url string) error {
	p.html = ""
	if err := p.collector.Visit(url); err != nil {
		return err
	}
	if p.html == "" {
		return fmt.Errorf("empty response from %q", url)
	}
	return nil
}

func (p *StaticPager) nextHref(selector string) (string, bool, error) {
	if p.html == "" {
		return "", false, fmt.Errorf("no page loaded")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return "", false, err
	}

	href, ok := doc.Find(selector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false, nil
	}
	return href, true, nil
}
