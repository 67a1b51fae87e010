// Package record defines the extracted item model shared across subsystems.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one validated item extracted from a product page.
type Record struct {
	ShopName     string    `json:"shop_name"`
	SKU          string    `json:"sku,omitempty"`
	Name         string    `json:"name"`
	PriceRegular float64   `json:"price_regular"`
	PricePromo   float64   `json:"price_promo,omitempty"`
	ScrapeTime   time.Time `json:"scrape_time"`
	URL          string    `json:"url"`
}

// Validate enforces the required-field contract. Items failing validation are
// dropped by the engine, never fatal to a run.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ShopName) == "" {
		return fmt.Errorf("record: shop_name is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record: name is required")
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("record: url is required")
	}
	if r.PriceRegular <= 0 {
		return fmt.Errorf("record: price_regular must be positive, got %v", r.PriceRegular)
	}
	return nil
}

// Field returns the string form of a named field. It backs composite-key
// deduplication; unknown names yield the empty string so key construction
// degrades instead of failing.
func (r Record) Field(name string) string {
	switch name {
	case "shop_name":
		return r.ShopName
	case "sku", "article":
		return r.SKU
	case "name":
		return r.Name
	case "price_regular":
		return formatPrice(r.PriceRegular)
	case "price_promo":
		return formatPrice(r.PricePromo)
	case "scrape_time":
		return r.ScrapeTime.Format(time.RFC3339)
	case "url":
		return r.URL
	default:
		return ""
	}
}

// FieldNames lists the persisted columns in canonical order.
func FieldNames() []string {
	return []string{"shop_name", "sku", "name", "price_regular", "price_promo", "scrape_time", "url"}
}

func formatPrice(p float64) string {
	if p == 0 {
		return ""
	}
	if p == float64(int64(p)) {
		return strconv.FormatInt(int64(p), 10)
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
