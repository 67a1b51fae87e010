package parser

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pricecrawl/pricecrawl/internal/record"
)

const knifecenterBaseURL = "https://www.knifecenter.com"

// KnifecenterParser extracts product listings from knifecenter.com pages.
type KnifecenterParser struct {
	baseURL string
	logger  *zap.Logger
}

func newKnifecenterParser(logger *zap.Logger) (Parser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnifecenterParser{baseURL: knifecenterBaseURL, logger: logger}, nil
}

// Name reports the shop this parser targets.
func (p *KnifecenterParser) Name() string { return "knifecenter" }

// ParsePage extracts all listing items found in the page content.
func (p *KnifecenterParser) ParsePage(htmlContent, pageURL string) ([]record.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", pageURL, err)
	}

	now := time.Now().UTC()
	var items []record.Record
	doc.Find("div.listing_item").Each(func(_ int, sel *goquery.Selection) {
		items = append(items, p.parseItem(sel, now))
	})
	return items, nil
}

func (p *KnifecenterParser) parseItem(sel *goquery.Selection, scrapedAt time.Time) record.Record {
	sku := sel.Find("div.purchase-row a[data-sku]").First().AttrOr("data-sku", "")
	priceText := sel.Find("span.our_price").First().Text()

	link := sel.Find("a.product_name").First()
	itemURL := link.AttrOr("href", "")
	if itemURL != "" {
		itemURL = resolveURL(p.baseURL, itemURL)
	}

	name := ""
	link.ChildrenFiltered("div").Each(func(_ int, div *goquery.Selection) {
		if div.HasClass("image-container") || name != "" {
			return
		}
		name = cleanText(div.Text())
	})

	return record.Record{
		ShopName:     p.Name(),
		SKU:          cleanText(sku),
		Name:         name,
		PriceRegular: extractPrice(priceText),
		ScrapeTime:   scrapedAt,
		URL:          itemURL,
	}
}

// DiscoverLinks finds further URLs to crawl on the page: category "all" links
// when present, otherwise product grid links plus the next pagination page.
// Category links take precedence because a catalog page links to every
// sub-category and carries no products of its own.
func (p *KnifecenterParser) DiscoverLinks(htmlContent, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html of %s: %w", pageURL, err)
	}

	var links []string
	doc.Find("a.all").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			links = append(links, resolveURL(pageURL, href))
		}
	})
	if len(links) > 0 {
		p.logger.Info("found category links", zap.Int("count", len(links)), zap.String("url", pageURL))
		return links, nil
	}

	doc.Find("div.grid-style1__item > a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			links = append(links, resolveURL(pageURL, href))
		}
	})
	if len(links) > 0 {
		p.logger.Info("found product links", zap.Int("count", len(links)), zap.String("url", pageURL))
	}

	if next := doc.Find("a.next").First().AttrOr("href", ""); next != "" {
		nextURL := resolveURL(pageURL, next)
		p.logger.Info("found next page", zap.String("url", nextURL))
		links = append(links, nextURL)
	}
	return links, nil
}

// resolveURL joins href against base, tolerating malformed input by
// returning href unchanged.
func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
