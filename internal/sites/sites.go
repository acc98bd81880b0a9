// Package sites holds the per-site crawl profiles: CSS selectors, currency
// formats and affiliate rewrite rules. Supporting a new marketplace means
// adding a Profile here, not new code paths.
package sites

type Site string

const (
	Amazon   Site = "amazon"
	Flipkart Site = "flipkart"
	Myntra   Site = "myntra"
	Ajio     Site = "ajio"
)

// Card field names, shared by the extractor and the normalizer.
const (
	FieldName     = "product_name"
	FieldPrice    = "product_price"
	FieldDiscount = "product_discount"
	FieldRating   = "product_rating"
	FieldImage    = "product_image"
	FieldURL      = "product_url"
)

// AffiliateRule rewrites a raw listing href into the canonical, tagged URL.
// Pattern (when set) is a regexp with one capture group applied to the
// decoded href; otherwise the href itself (optionally query-stripped) fills
// the template.
type AffiliateRule struct {
	Pattern    string
	StripQuery bool
	Template   string
}

type Profile struct {
	Site       Site
	BaseURL    string
	Container  string
	Card       string
	NextButton string
	// Fields maps a card field to its selector alternatives, tried in order.
	Fields map[string][]string
	// Required lists fields beyond price/url that must parse for a card
	// to become a Product.
	Required []string
	// CurrencyTrim lists the symbols and separators stripped from price text.
	CurrencyTrim []string
	Affiliate    AffiliateRule
	// NeedsBrowser marks sites that render listings client-side.
	NeedsBrowser bool
}

var profiles = map[Site]Profile{
	Amazon: {
		Site:       Amazon,
		BaseURL:    "https://www.amazon.in",
		Container:  ".s-main-slot.s-result-list",
		Card:       "div.a-section.a-spacing-base",
		NextButton: "a.s-pagination-next",
		Fields: map[string][]string{
			FieldName:     {"h2.a-size-base-plus.a-spacing-none"},
			FieldPrice:    {"span.a-price.a-text-price span.a-offscreen"},
			FieldDiscount: {"span.a-price-whole", "span#priceblock_ourprice"},
			FieldRating:   {"span.a-icon-alt"},
			FieldImage:    {"img.s-image"},
			FieldURL:      {"a.a-link-normal.s-line-clamp-2.s-link-style.a-text-normal", "a.a-link-normal"},
		},
		CurrencyTrim: []string{"₹", ","},
		Affiliate: AffiliateRule{
			Pattern:  `/dp/([a-zA-Z0-9]{10})`,
			Template: "https://www.amazon.in/dp/%s/?tag=aladdinloot3-21",
		},
		NeedsBrowser: true,
	},
	Flipkart: {
		Site:       Flipkart,
		BaseURL:    "https://www.flipkart.com",
		Container:  "div._1AtVbE",
		Card:       "div._2kHMtA",
		NextButton: "a._1LKTO3",
		Fields: map[string][]string{
			FieldName:     {"span.VU-ZEz", "span._35KyD6"},
			FieldPrice:    {"div._3I9_wc", "div._3auQ3N"},
			FieldDiscount: {"div.Nx9bqj", "div._30jeq3"},
			FieldRating:   {"div.XQDdHH", "div._6er70b"},
			FieldImage:    {"div._8id3KM img", "div.vU5WPQ img"},
			FieldURL:      {"a._1fQZEK", "a._2rpwqI"},
		},
		CurrencyTrim: []string{"₹", ","},
		Affiliate: AffiliateRule{
			StripQuery: true,
			Template:   "https://www.flipkart.com%s?affid=admitad&affExtParam1=298614",
		},
		NeedsBrowser: true,
	},
	Myntra: {
		Site:       Myntra,
		BaseURL:    "https://www.myntra.com",
		Container:  "ul.results-base",
		Card:       "li.product-base",
		NextButton: "li.pagination-next",
		Fields: map[string][]string{
			FieldName:     {"h4.product-product"},
			FieldPrice:    {"span.product-strike"},
			FieldDiscount: {"span.product-discountedPrice", "div.product-price span"},
			FieldRating:   {"div.product-ratingsContainer span"},
			FieldImage:    {"div.product-imageSliderContainer img"},
			FieldURL:      {"a[data-refreshpage]", "a"},
		},
		// Myntra titles come from the brand element; a card without one
		// is a placeholder tile, not a product.
		Required:     []string{FieldName},
		CurrencyTrim: []string{"Rs.", "₹", ","},
		Affiliate: AffiliateRule{
			StripQuery: true,
			Template:   "https://www.myntra.com/%s?utm_source=admitad&utm_medium=affiliate",
		},
		NeedsBrowser: true,
	},
	Ajio: {
		Site:       Ajio,
		BaseURL:    "https://www.ajio.com",
		Container:  "div.item-list",
		Card:       "div.item.rilrtl-products-list__item",
		NextButton: "a.rilrtl-button.ic-toparw",
		Fields: map[string][]string{
			FieldName:     {"div.nameCls"},
			FieldPrice:    {"span.orginal-price"},
			FieldDiscount: {"span.price strong"},
			FieldRating:   {"p._3I65V"},
			FieldImage:    {"img.rilrtl-lazy-img"},
			FieldURL:      {"a.rilrtl-products-list__link"},
		},
		Required:     []string{FieldName},
		CurrencyTrim: []string{"₹", "Rs.", ","},
		Affiliate: AffiliateRule{
			StripQuery: true,
			Template:   "https://www.ajio.com%s?tag=aladdinschirage-21",
		},
		NeedsBrowser: true,
	},
}

func Lookup(s Site) (Profile, bool) {
	p, ok := profiles[s]
	return p, ok
}

func All() []Site {
	return []Site{Amazon, Flipkart, Myntra, Ajio}
}

// DefaultCeiling applies to categories missing from PriceCeilings.
const DefaultCeiling = 2500

// PriceCeilings is the per-category maximum acceptable discounted price,
// in rupees.
var PriceCeilings = map[string]int{
	"jeans":          2200,
	"t-shirt":        2500,
	"shirt":          2500,
	"cargo":          1800,
	"footwear":       2500,
	"jacket":         2500,
	"shorts":         1200,
	"pyjama":         1000,
	"sweatshirts":    1800,
	"track-pant":     1500,
	"trouser":        2000,
	"casual-shoes":   2500,
	"formal-shoes":   2500,
	"sports-shoes":   2500,
	"sneakers":       2500,
	"ladies-kurta":   1800,
	"ladies-handbag": 2000,
	"saree":          2500,
	"lehenga-choli":  2500,
	"wallet":         1200,
	"belt":           1000,
	"watches":        2500,
	"sunglasses":     1500,
	"perfume":        2000,
}

// ProductsPerCategory caps how many deals a single category contributes to
// one notification batch.
var ProductsPerCategory = map[string]int{
	"jeans":          8,
	"t-shirt":        8,
	"shirt":          8,
	"cargo":          3,
	"footwear":       3,
	"jacket":         4,
	"shorts":         3,
	"pyjama":         4,
	"sweatshirts":    4,
	"track-pant":     4,
	"trouser":        4,
	"casual-shoes":   4,
	"formal-shoes":   4,
	"sports-shoes":   4,
	"sneakers":       5,
	"ladies-kurta":   4,
	"ladies-handbag": 3,
	"saree":          5,
	"lehenga-choli":  4,
	"wallet":         4,
	"belt":           4,
	"watches":        5,
	"sunglasses":     3,
	"perfume":        4,
}

// CategoryEmoji decorates notification titles.
var CategoryEmoji = map[string]string{
	"jeans":          "👖",
	"t-shirt":        "👕",
	"shirt":          "👔",
	"cargo":          "👖",
	"footwear":       "🩴",
	"jacket":         "🧥",
	"shorts":         "🩳",
	"pyjama":         "🩲",
	"sweatshirts":    "👕",
	"track-pant":     "🩳",
	"trouser":        "👖",
	"casual-shoes":   "👟",
	"formal-shoes":   "👞",
	"sports-shoes":   "👟",
	"sneakers":       "👟",
	"ladies-kurta":   "👗",
	"ladies-handbag": "👜",
	"saree":          "👗",
	"lehenga-choli":  "👗",
	"wallet":         "👛",
	"belt":           "👔",
	"watches":        "⌚",
	"sunglasses":     "🕶️",
	"perfume":        "🧴",
}

func CeilingFor(category string) int {
	if c, ok := PriceCeilings[category]; ok {
		return c
	}
	return DefaultCeiling
}

// DefaultProductCount applies to categories missing from ProductsPerCategory.
const DefaultProductCount = 4

// ProductCountFor is the per-session accepted-product cap for a category.
func ProductCountFor(category string) int {
	if n, ok := ProductsPerCategory[category]; ok {
		return n
	}
	return DefaultProductCount
}
