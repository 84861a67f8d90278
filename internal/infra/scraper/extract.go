package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Product is one tile found on a listing page.
type Product struct {
	Name     string
	ImageURL string
}

// tile selectors, tried in order; the first that matches anything wins
var tileSelectors = []string{".product-tile", ".product", ".s-product-card", ".s-result-item"}

const fallbackTileSelector = "div[data-testid]"

var imageSelectors = []string{"img.product-image", "img.productImage", "img"}

// ExtractProducts finds product tiles and their image URLs. Tiles without a usable
// image are dropped. Relative URLs resolve against base.
func ExtractProducts(doc *goquery.Document, base *url.URL) (products []Product, selector string) {
	tiles, selector := findTiles(doc)
	tiles.Each(func(_ int, tile *goquery.Selection) {
		src := imageSource(tile)
		if src == "" || isDecoration(src) {
			return
		}
		if base != nil {
			if u, err := base.Parse(src); err == nil {
				src = u.String()
			}
		}
		products = append(products, Product{Name: productName(tile), ImageURL: src})
	})
	return products, selector
}

func findTiles(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range tileSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found, sel
		}
	}
	return doc.Find(fallbackTileSelector), fallbackTileSelector
}

func imageSource(tile *goquery.Selection) string {
	var img *goquery.Selection
	for _, sel := range imageSelectors {
		if found := tile.Find(sel).First(); found.Length() > 0 {
			img = found
			break
		}
	}
	if img == nil {
		return ""
	}
	for _, attr := range []string{"src", "data-src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return firstSrcsetURL(img.AttrOr("srcset", ""))
}

// firstSrcsetURL returns the URL of the first srcset candidate.
func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func isDecoration(src string) bool {
	lower := strings.ToLower(src)
	return strings.Contains(lower, "icon") || strings.Contains(lower, "logo") || strings.Contains(lower, ".svg")
}

func productName(tile *goquery.Selection) string {
	if link := tile.Find("a.product-title").First(); link.Length() > 0 {
		if name := cleanProductName(link.Text()); name != "" {
			return name
		}
	}
	return cleanProductName(tile.Text())
}
