// Package extract selects listing cards and their fields out of fetched
// page HTML using the site profile's CSS selectors.
package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

// ErrNoContainer means the page carried no product container, which a
// session reads as "no more results".
var ErrNoContainer = errors.New("product container not found")

// attrFields maps card fields read from attributes instead of text.
var attrFields = map[string]string{
	sites.FieldImage: "src",
	sites.FieldURL:   "href",
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Extract returns one RawCard per listing card found in html. Cards with
// no selectable fields at all are dropped here; deciding whether a card
// is complete is the normalizer's job.
func (e *Engine) Extract(html string, profile sites.Profile) ([]product.RawCard, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	container := doc.Find(profile.Container).First()
	if container.Length() == 0 {
		return nil, ErrNoContainer
	}

	var cards []product.RawCard
	container.Find(profile.Card).Each(func(_ int, sel *goquery.Selection) {
		raw := cardFields(sel, profile)
		if len(raw) > 0 {
			cards = append(cards, raw)
		}
	})

	return cards, nil
}

func cardFields(sel *goquery.Selection, profile sites.Profile) product.RawCard {
	raw := product.RawCard{}

	for field, selectors := range profile.Fields {
		if attr, ok := attrFields[field]; ok {
			if val, found := firstAttr(sel, selectors, attr); found {
				raw[field] = val
			}
			continue
		}
		if val, found := firstText(sel, selectors); found {
			raw[field] = val
		}
	}

	return raw
}

// firstText tries each selector in order and returns the first non-empty
// trimmed text.
func firstText(sel *goquery.Selection, selectors []string) (string, bool) {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text, true
		}
	}
	return "", false
}

func firstAttr(sel *goquery.Selection, selectors []string, attr string) (string, bool) {
	for _, s := range selectors {
		if val, ok := sel.Find(s).First().Attr(attr); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val), true
		}
	}
	return "", false
}
