// Package urlutil normalizes storefront and CDN URLs.
package urlutil

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
)

// ErrInvalidURL indicates the input is not a recognizable storefront or CDN URL.
var ErrInvalidURL = errors.New("invalid url")

// Query parameters the CDN uses to serve size-limited variants. Stripping
// them yields the original-resolution asset; everything else (notably the
// cache-busting "v" parameter) is preserved.
var sizeParams = []string{"width", "height"}

// CanonicalImageURL converts a raw CDN image URL into its canonical form:
// absolute, https, and without size-limiting query parameters. The result is
// stable, so it doubles as a dedup key. Idempotent.
func CanonicalImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidURL)
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.Contains(u.Path, "/cdn/shop/") {
		return "", fmt.Errorf("%w: %q has no cdn/shop path", ErrInvalidURL, raw)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	q := u.Query()
	for _, p := range sizeParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}

// ProductID derives the stable product identifier from a detail-page URL.
// Shopify detail URLs end in /products/<handle>; the handle is the ID. For
// any other shape the last non-empty path segment is used.
func ProductID(productURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(productURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	segments := splitPath(u.Path)
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %q has no path segments", ErrInvalidURL, productURL)
	}
	for i, seg := range segments {
		if seg == "products" && i+1 < len(segments) {
			return segments[i+1], nil
		}
	}
	return segments[len(segments)-1], nil
}

func splitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
