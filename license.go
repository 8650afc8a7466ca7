package topicfy

import (
	"net/url"
	"strings"
)

// StockDomains are stock photo sites. Their previews are watermarked and
// never depict the actual announcement, so they are dropped from every pool.
var StockDomains = []string{
	"shutterstock",
	"gettyimages",
	"istockphoto",
	"adobestock",
	"depositphotos",
	"dreamstime",
	"123rf",
	"alamy",
	"bigstockphoto",
	"stocksy",
	"pond5",
	"canstockphoto",
	"vectorstock",
	"freepik",
}

// StockURLPatterns are URL path segments that indicate stock photo pages.
var StockURLPatterns = []string{
	"/stock-photo",
	"/stock-image",
	"/editorial-image",
	"/premium-photo",
}

// IsStockURL reports whether rawURL is hosted on a stock agency (built-in or
// extra) or points at a stock photo page.
func IsStockURL(rawURL string, extra []string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	if host != "" {
		for _, d := range StockDomains {
			if strings.Contains(host, d) {
				return true
			}
		}
		for _, d := range extra {
			if d != "" && strings.Contains(host, strings.ToLower(d)) {
				return true
			}
		}
	}
	path := strings.ToLower(parsed.Path)
	for _, p := range StockURLPatterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
