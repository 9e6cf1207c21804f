package catalog

import (
	"encoding/xml"
	"io"
	"strconv"
	"time"

	"github.com/stkaddons/addonmgr/pkg/logger"
)

// ParseNews extracts the addons listing URL from the news feed document.
// The feed points at the listing through an include element:
//
//	<news><include file="https://.../addons.xml"/></news>
func ParseNews(r io.Reader) (url string, err error) {
	dec := xml.NewDecoder(r)
	for {
		tok, er := dec.Token()
		if er == io.EOF {
			break
		}
		if er != nil {
			err = er
			return
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "include" {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Local == "file" && attr.Value != "" {
				url = attr.Value
				return
			}
		}
	}
	err = ErrNoIncludeElement
	return
}

// ParseListing decodes the addons listing into catalog entries.
//
// The parse is forward compatible: unknown elements and attributes are
// ignored. An element missing its id, category or download URL is dropped
// with a warning instead of failing the whole document, as are entries
// without the approved status bit. When the listing carries several
// revisions of one ID only the highest survives; result order follows the
// first appearance of each ID in the document.
func ParseListing(r io.Reader, l logger.Logger) ([]Entry, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	dec := xml.NewDecoder(r)
	var (
		order   []string
		entries = make(map[string]Entry)
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		category := Category(se.Name.Local)
		if !category.Valid() {
			continue
		}
		e, ok := parseEntry(category, se.Attr, l)
		if !ok {
			continue
		}
		if !e.Approved() {
			continue
		}
		prev, have := entries[e.ID]
		if have && prev.Revision >= e.Revision {
			continue
		}
		if !have {
			order = append(order, e.ID)
		}
		entries[e.ID] = e
	}
	out := make([]Entry, 0, len(order))
	for _, id := range order {
		out = append(out, entries[id])
	}
	return out, nil
}

func parseEntry(category Category, attrs []xml.Attr, l logger.Logger) (e Entry, ok bool) {
	e.Category = category
	for _, attr := range attrs {
		v := attr.Value
		switch attr.Name.Local {
		case "id":
			e.ID = v
		case "name":
			e.Name = v
		case "revision":
			e.Revision, _ = strconv.Atoi(v)
		case "status":
			e.Status, _ = strconv.Atoi(v)
		case "rating":
			e.Rating, _ = strconv.ParseFloat(v, 64)
		case "date":
			secs, er := strconv.ParseInt(v, 10, 64)
			if er == nil && secs > 0 {
				e.Updated = time.Unix(secs, 0).UTC()
			}
		case "file":
			e.DownloadURL = v
		case "size":
			e.Size, _ = strconv.ParseInt(v, 10, 64)
		case "format":
			e.Format, _ = strconv.Atoi(v)
		case "designer":
			e.Designer = v
		}
	}
	switch {
	case e.ID == "":
		l.Warning("catalog: dropping %s element without id", category)
	case e.DownloadURL == "":
		l.Warning("catalog: dropping %q, no download url", e.ID)
	default:
		ok = true
	}
	return
}
