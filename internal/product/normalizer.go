package product

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

var (
	colorsRegex        = regexp.MustCompile(`(?i)\b(blue|green|white|red|black|yellow|pink|purple|orange|brown|gray|grey|navy blue|light|dark)\b`)
	numbersRegex       = regexp.MustCompile(`\d+`)
	unwantedCharsRegex = regexp.MustCompile(`[(){}|\[\],.\-_/:;!?@#%^&*=+'"<>\\$]`)
	multiSpaceRegex    = regexp.MustCompile(`\s+`)
)

// Normalize maps one raw card into a Product using the site's parsing
// profile. A card missing any mandatory field, or whose price or URL do
// not parse, is discarded: ok is false and no partial record escapes.
// Missing DOM fields reflect that card's layout, not a transient fault,
// so there is nothing to retry.
func Normalize(profile sites.Profile, category string, raw RawCard) (Product, bool) {
	p := Product{
		Site:     profile.Site,
		Category: category,
	}

	for _, field := range profile.Required {
		if strings.TrimSpace(raw[field]) == "" {
			return Product{}, false
		}
	}

	canonical, ok := RewriteAffiliateURL(profile, raw[sites.FieldURL])
	if !ok {
		return Product{}, false
	}
	p.URL = canonical

	price, ok := parsePrice(profile, raw[sites.FieldPrice])
	if !ok {
		return Product{}, false
	}
	p.Price = price

	if discount, ok := parsePrice(profile, raw[sites.FieldDiscount]); ok {
		if discount > price {
			return Product{}, false
		}
		p.DiscountPrice = discount
	} else {
		p.DiscountPrice = price
	}

	if rating, ok := parseRating(raw[sites.FieldRating]); ok {
		p.Rating = rating
	}

	p.Name = strings.TrimSpace(raw[sites.FieldName])
	p.ImageURL = strings.TrimSpace(raw[sites.FieldImage])

	return p, true
}

// parsePrice strips the profile's currency symbols and separators and
// converts the remainder to a whole-rupee amount.
func parsePrice(profile sites.Profile, text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	for _, sym := range profile.CurrencyTrim {
		text = strings.ReplaceAll(text, sym, "")
	}
	text = strings.TrimSpace(text)

	val, err := strconv.ParseFloat(text, 64)
	if err != nil || val <= 0 {
		return 0, false
	}
	return int(val), true
}

// parseRating accepts either a bare number or phrases like "4.3 out of 5
// stars". All supported sites rate on a 0-5 scale.
func parseRating(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}

	first := strings.Fields(text)[0]
	val, err := strconv.ParseFloat(first, 64)
	if err != nil || val < 0 || val > 5 {
		return 0, false
	}
	return val, true
}

// RewriteAffiliateURL turns a raw listing href into the canonical
// affiliate-tagged URL for the profile's site. An href the rule cannot
// match fails the rewrite.
func RewriteAffiliateURL(profile sites.Profile, rawHref string) (string, bool) {
	rawHref = strings.TrimSpace(rawHref)
	if rawHref == "" || profile.Affiliate.Template == "" {
		return "", false
	}

	decoded, err := url.QueryUnescape(rawHref)
	if err != nil {
		decoded = rawHref
	}

	if profile.Affiliate.StripQuery {
		if i := strings.IndexByte(decoded, '?'); i >= 0 {
			decoded = decoded[:i]
		}
	}

	value := decoded
	if profile.Affiliate.Pattern != "" {
		re, err := affiliatePattern(profile.Affiliate.Pattern)
		if err != nil {
			return "", false
		}
		m := re.FindStringSubmatch(decoded)
		if len(m) < 2 {
			return "", false
		}
		value = m[1]
	}

	return fmt.Sprintf(profile.Affiliate.Template, value), true
}

var (
	affiliateMu  sync.RWMutex
	affiliateRes = make(map[string]*regexp.Regexp)
)

// affiliatePattern compiles a rule's pattern once; the pattern set is
// static profile data, so the cache never grows past the site count.
func affiliatePattern(pattern string) (*regexp.Regexp, error) {
	affiliateMu.RLock()
	re, ok := affiliateRes[pattern]
	affiliateMu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	affiliateMu.Lock()
	affiliateRes[pattern] = re
	affiliateMu.Unlock()
	return re, nil
}

// NormalizeName strips colors, numbers and punctuation from a product
// name, leaving a compact phrase for notification tags.
func NormalizeName(name string) string {
	name = colorsRegex.ReplaceAllString(name, " ")
	name = numbersRegex.ReplaceAllString(name, " ")
	name = unwantedCharsRegex.ReplaceAllString(name, " ")
	name = multiSpaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
