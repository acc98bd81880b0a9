package product

import (
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

// Product is the canonical listing record. It is built once by Normalize
// and never mutated afterwards; URL is the identity key for deduplication.
type Product struct {
	Site          sites.Site `json:"site"`
	Category      string     `json:"category"`
	Name          string     `json:"name,omitempty"`
	Price         int        `json:"price"`
	DiscountPrice int        `json:"discount_price"`
	Rating        float64    `json:"rating,omitempty"`
	URL           string     `json:"url"`
	ImageURL      string     `json:"image_url,omitempty"`
}

// DiscountPercent is how much of the original price the buyer saves.
func (p Product) DiscountPercent() int {
	if p.Price <= 0 {
		return 0
	}
	return (p.Price - p.DiscountPrice) * 100 / p.Price
}

// RawCard is the unparsed field set extracted off one listing card.
type RawCard map[string]string
