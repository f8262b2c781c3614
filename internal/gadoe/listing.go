package gadoe

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "gaenroll/internal/errors"
)

// ExtractFilenames pulls candidate CSV filenames out of a directory
// listing page. The portal serves plain anchor lists; hrefs may be bare
// filenames or full paths, so only the final path element is kept.
// Document order is preserved for the resolver's tie-breaking.
func ExtractFilenames(listing []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(listing))
	if err != nil {
		return nil, apperrors.NewParsingError("failed to parse directory listing", err)
	}

	var filenames []string
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		name := path.Base(u.Path)
		if strings.EqualFold(path.Ext(name), ".csv") {
			filenames = append(filenames, name)
		}
	})

	return filenames, nil
}
