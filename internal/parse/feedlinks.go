package parse

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/mmcdole/gofeed/extensions"
)

// feedLinks carries the feed-level <link rel="..."> targets that the
// feed parser library does not surface: the PubSubHubbub hub, the
// payment (Flattr) link, the license link and a feed-moved location.
type feedLinks struct {
	Hub         string
	Flattr      string
	License     string
	NewLocation string
}

// scanFeedLinks tokenizes the raw document and collects feed-level link
// relations. Links inside items/entries are ignored. The scan is
// best-effort: malformed XML simply terminates it.
func scanFeedLinks(content []byte) feedLinks {
	var links feedLinks

	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.Strict = false

	itemDepth := 0
	inNewLocation := false

	for {
		token, err := decoder.Token()
		if err != nil {
			return links
		}

		switch t := token.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			switch name {
			case "item", "entry":
				itemDepth++
			case "link":
				if itemDepth > 0 {
					break
				}
				var rel, href string
				for _, attr := range t.Attr {
					switch strings.ToLower(attr.Name.Local) {
					case "rel":
						rel = attr.Value
					case "href":
						href = attr.Value
					}
				}
				if href == "" {
					break
				}
				switch rel {
				case "hub":
					if links.Hub == "" {
						links.Hub = href
					}
				case "payment":
					if links.Flattr == "" {
						links.Flattr = href
					}
				case "license":
					if links.License == "" {
						links.License = href
					}
				}
			case "newlocation", "new-location":
				inNewLocation = itemDepth == 0
			}
		case xml.EndElement:
			switch strings.ToLower(t.Name.Local) {
			case "item", "entry":
				if itemDepth > 0 {
					itemDepth--
				}
			case "newlocation", "new-location":
				inNewLocation = false
			}
		case xml.CharData:
			if inNewLocation && links.NewLocation == "" {
				if value := strings.TrimSpace(string(t)); value != "" {
					links.NewLocation = value
				}
			}
		}
	}
}

// extLink returns the href of the first extension link with the given
// rel attribute, as parsed from atom:link elements inside RSS items.
func extLink(exts ext.Extensions, rel string) string {
	if exts == nil {
		return ""
	}
	for _, link := range exts["atom"]["link"] {
		if link.Attrs["rel"] == rel && link.Attrs["href"] != "" {
			return link.Attrs["href"]
		}
	}
	return ""
}
