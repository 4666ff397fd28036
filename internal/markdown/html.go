package markdown

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jmgilman/go/errors"
)

// postProcessHTML applies the link rules to rendered HTML: relative <img>
// sources left in raw HTML are resolved against base, and external links open
// in a new tab. It returns the body's inner HTML.
func postProcessHTML(rendered string, base AssetBase) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to parse rendered html")
	}

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if IsRelative(src) {
			s.SetAttr("src", base.Resolve(src))
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isExternal(href) {
			s.SetAttr("target", "_blank")
			s.SetAttr("rel", "noopener noreferrer")
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to serialize html")
	}
	return strings.TrimSpace(out), nil
}

func isExternal(href string) bool {
	h := strings.ToLower(href)
	return strings.HasPrefix(h, "http://") || strings.HasPrefix(h, "https://")
}
