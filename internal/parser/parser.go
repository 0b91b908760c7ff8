// Package parser extracts product data from rendered storefront HTML.
package parser

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ggstore/ggcrawl/internal/catalog"
	"github.com/ggstore/ggcrawl/internal/urlutil"
)

// ErrParse indicates a required field is missing from the rendered HTML.
// The parser fails loudly rather than returning a partial record so the
// caller can log the failure instead of persisting a corrupt product.
var ErrParse = errors.New("parse failed")

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

	priceDigitsRe = regexp.MustCompile(`[\d][\d,.]*`)
	jsonPriceRe   = regexp.MustCompile(`"price"\s*:\s*"?\$?([\d,.]+)`)
	jsonImageRe   = regexp.MustCompile(`"src"\s*:\s*"([^"]*cdn\\?/shop\\?/[^"]+)"`)
	collectionRe  = regexp.MustCompile(`/collections/([^/"'?\s&]+)`)
)

// Parser extracts listings and product records from GGStore markup.
type Parser struct {
	baseURL *url.URL
}

// New builds a Parser; baseURL resolves relative links.
func New(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	return &Parser{baseURL: u}, nil
}

// ListingURLs returns the absolute product detail URLs found in rendered
// listing HTML, in page order, with exact-URL duplicates removed.
func (p *Parser) ListingURLs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find(`a[href*="/products/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.Contains(href, "/products/") {
			return
		}
		abs := p.absolute(href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls, nil
}

// Product extracts a full product record from detail-page HTML. The name is
// required; price and category are optional. Image URLs are canonicalized
// and deduplicated by canonical URL, preserving order of appearance, and the
// first image is the main one.
func (p *Parser) Product(html, pageURL string) (catalog.Product, error) {
	id, err := urlutil.ProductID(pageURL)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("derive product id: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return catalog.Product{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	name := extractName(doc)
	if name == "" {
		return catalog.Product{}, fmt.Errorf("%w: product name not found in %s", ErrParse, pageURL)
	}

	product := catalog.Product{
		ID:       id,
		Name:     name,
		URL:      pageURL,
		Price:    extractPrice(doc, html),
		Category: extractCategory(doc, html),
	}

	for i, imgURL := range p.imageURLs(doc, html) {
		product.Images = append(product.Images, catalog.ProductImage{
			Filename:    imageFilename(id, i+1, imgURL),
			OriginalURL: imgURL,
		})
	}
	return product, nil
}

func (p *Parser) absolute(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := p.baseURL.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}

func extractName(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if name := strings.TrimSpace(content); name != "" {
			return name
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return trimSiteSuffix(title)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// trimSiteSuffix drops the "| Site Name" or "– Site Name" tail storefront
// themes append to the document title.
func trimSiteSuffix(title string) string {
	for _, sep := range []string{"|", "–"} {
		if idx := strings.Index(title, sep); idx >= 0 {
			title = title[:idx]
		}
	}
	return strings.TrimSpace(title)
}

func extractPrice(doc *goquery.Document, html string) *string {
	var raw string
	doc.Find(`span[class*="price"], [data-price]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v, ok := sel.Attr("data-price"); ok && priceDigitsRe.MatchString(v) {
			raw = v
			return false
		}
		if text := sel.Text(); priceDigitsRe.MatchString(text) {
			raw = text
			return false
		}
		return true
	})
	if raw == "" {
		if m := jsonPriceRe.FindStringSubmatch(html); m != nil {
			raw = m[1]
		}
	}

	digits := priceDigitsRe.FindString(raw)
	if digits == "" {
		return nil
	}
	price := "$" + digits
	return &price
}

// extractCategory infers the category from the first /collections/<slug>
// reference in the document. Breadcrumbs render before the product JSON on
// this storefront, so document order gives breadcrumbs precedence. The
// catch-all "all" collection does not count as a category.
func extractCategory(doc *goquery.Document, html string) *string {
	var slug string
	doc.Find(`a[href*="/collections/"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		m := collectionRe.FindStringSubmatch(href)
		if m == nil || strings.EqualFold(m[1], "all") {
			return true
		}
		slug = m[1]
		return false
	})
	if slug == "" {
		for _, m := range collectionRe.FindAllStringSubmatch(html, -1) {
			if !strings.EqualFold(m[1], "all") {
				slug = m[1]
				break
			}
		}
	}
	if slug == "" {
		return nil
	}
	category := strings.ToUpper(strings.ReplaceAll(slug, "-", " "))
	return &category
}

// imageURLs collects candidate CDN image URLs from srcset/src/data-src
// attributes and embedded product JSON, canonicalizes each, and dedupes by
// canonical URL while preserving order of first appearance.
func (p *Parser) imageURLs(doc *goquery.Document, html string) []string {
	var candidates []string

	doc.Find("[srcset], [src], [data-src]").Each(func(_ int, sel *goquery.Selection) {
		if srcset, ok := sel.Attr("srcset"); ok {
			for _, entry := range strings.Split(srcset, ",") {
				fields := strings.Fields(strings.TrimSpace(entry))
				if len(fields) > 0 {
					candidates = append(candidates, fields[0])
				}
			}
		}
		if src, ok := sel.Attr("src"); ok {
			candidates = append(candidates, src)
		}
		if src, ok := sel.Attr("data-src"); ok {
			candidates = append(candidates, src)
		}
	})
	for _, m := range jsonImageRe.FindAllStringSubmatch(html, -1) {
		candidates = append(candidates, strings.ReplaceAll(m[1], `\/`, "/"))
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, raw := range candidates {
		if !isProductImage(raw) {
			continue
		}
		canonical, err := urlutil.CanonicalImageURL(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		urls = append(urls, canonical)
	}
	return urls
}

func isProductImage(raw string) bool {
	if raw == "" || !strings.Contains(raw, "cdn/shop/") {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// imageFilename builds the on-disk name {product_id}_{two-digit index}{ext},
// keeping the URL's extension when it is a known image type.
func imageFilename(productID string, index int, imgURL string) string {
	ext := ".jpg"
	if u, err := url.Parse(imgURL); err == nil {
		candidate := strings.ToLower(path.Ext(u.Path))
		for _, known := range imageExtensions {
			if candidate == known {
				ext = candidate
				break
			}
		}
	}
	return fmt.Sprintf("%s_%02d%s", productID, index, ext)
}
