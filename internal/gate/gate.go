// Package gate decides whether a normalized product is worth surfacing:
// price ceiling first, then the dedup cache, then the deal-quality
// classifier. Evaluation is read-only so it is idempotent and safe to
// re-run.
package gate

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/retry"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

// VerdictBestDeal is the only classifier verdict that passes the gate.
const VerdictBestDeal = "Best Deal"

// ReasonDuplicate marks rejections caused by the dedup cache; callers
// key metrics off it.
const ReasonDuplicate = "already surfaced"

// Classifier is the external deal-quality model; the verdict string is
// opaque to us beyond the accept value.
type Classifier interface {
	Classify(ctx context.Context, p product.Product) (string, error)
}

// DupChecker answers whether a URL has already been surfaced.
type DupChecker interface {
	Exists(ctx context.Context, url string) bool
}

type Decision struct {
	Accepted bool
	Reason   string
}

func accept() Decision              { return Decision{Accepted: true} }
func reject(reason string) Decision { return Decision{Reason: reason} }

type Gate struct {
	ceilings   map[string]int
	dups       DupChecker
	classifier Classifier
	retry      retry.Policy
}

// New builds a gate. ceilings may be nil, in which case the built-in
// per-category table applies.
func New(ceilings map[string]int, dups DupChecker, classifier Classifier, policy retry.Policy) *Gate {
	return &Gate{
		ceilings:   ceilings,
		dups:       dups,
		classifier: classifier,
		retry:      policy,
	}
}

// Evaluate runs the three checks in cost order. The price ceiling is
// checked first because it is free and rejects most listings; a discount
// price exactly at the ceiling passes. Registration of accepted URLs is
// the caller's job.
func (g *Gate) Evaluate(ctx context.Context, p product.Product) Decision {
	if p.DiscountPrice > g.ceilingFor(p.Category) {
		return reject("over price ceiling")
	}

	if g.dups.Exists(ctx, p.URL) {
		return reject(ReasonDuplicate)
	}

	verdict, err := retry.Do(ctx, g.retry, "classify", func(ctx context.Context) (string, error) {
		return g.classifier.Classify(ctx, p)
	})
	if err != nil {
		log.Warn().Err(err).Str("url", p.URL).Msg("Classifier unavailable, rejecting")
		return reject("classifier unavailable")
	}

	if verdict != VerdictBestDeal {
		return reject("classifier verdict: " + verdict)
	}

	return accept()
}

func (g *Gate) ceilingFor(category string) int {
	if c, ok := g.ceilings[category]; ok {
		return c
	}
	return sites.CeilingFor(category)
}
