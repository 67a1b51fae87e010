package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	nonPriceRe = regexp.MustCompile(`[^\d.,]`)
)

// cleanText collapses whitespace runs and trims the result.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// extractPrice pulls a price value out of display text such as "$129.95" or
// "1.299,00". Returns 0 when no parseable number is present.
func extractPrice(text string) float64 {
	if text == "" {
		return 0
	}
	cleaned := nonPriceRe.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	// Keep only the last separator as the decimal point; the rest are
	// thousand separators.
	if strings.Count(cleaned, ".") > 1 {
		parts := strings.Split(cleaned, ".")
		cleaned = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return price
}
