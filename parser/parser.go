package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ItemSelector matches the link of each result card on a search page.
const ItemSelector = "article.grid-article a.grid-link[href]"

// ExtractLinks returns the absolute item URLs found in markup, in document order.
// Empty or unparseable markup yields an empty slice.
func ExtractLinks(baseURL, markup string) []string {
	links := []string{}
	if strings.TrimSpace(markup) == "" {
		return links
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return links
	}

	base := strings.TrimSuffix(baseURL, "/")
	doc.Find(ItemSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		links = append(links, base+href)
	})
	return links
}

// NormalizeQuery trims surrounding whitespace from a search query.
func NormalizeQuery(query string) string {
	return strings.TrimSpace(query)
}
