package addonlib

import (
	"encoding/xml"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/catalog"
)

// InstalledFileName is the installed listing the game client reads
// from the addon root.
const InstalledFileName = "addons_installed.xml"

// CatalogNamespace is the xmlns of both the catalog and the installed
// listing.
const CatalogNamespace = "https://online.supertuxkart.net/"

// ExportInstalled writes the installed listing the game client expects
// at path. Each record becomes one element named after its category,
// enriched with catalog metadata where the current catalog still
// carries the identifier. Ordering matches the game's convention:
// karts first, then tracks, then arenas, by identifier within a
// category.
func ExportInstalled(fs afero.Fs, path string, installed []InstalledEntry, entries []catalog.Entry) error {
	meta := make(map[string]catalog.Entry, len(entries))
	for _, e := range entries {
		meta[e.ID] = e
	}
	sorted := make([]InstalledEntry, len(installed))
	copy(sorted, installed)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if pa, pb := categoryRank(a.Category), categoryRank(b.Category); pa != pb {
			return pa < pb
		}
		return a.ID < b.ID
	})

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	root := xml.StartElement{
		Name: xml.Name{Local: "addons"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: CatalogNamespace}},
	}
	err = enc.EncodeToken(root)
	for _, ie := range sorted {
		if err != nil {
			break
		}
		err = encodeInstalled(enc, ie, meta)
	}
	if err == nil {
		err = enc.EncodeToken(root.End())
	}
	if err == nil {
		err = enc.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodeInstalled(enc *xml.Encoder, ie InstalledEntry, meta map[string]catalog.Entry) error {
	attrs := []xml.Attr{
		attr("id", ie.ID),
		attr("installed", "true"),
		attr("installed-revision", strconv.Itoa(ie.Revision)),
		attr("size", strconv.FormatInt(ie.Size, 10)),
	}
	if e, ok := meta[ie.ID]; ok {
		attrs = append(attrs,
			attr("name", e.Name),
			attr("designer", e.Designer),
			attr("status", strconv.Itoa(e.Status)),
			attr("date", strconv.FormatInt(e.Updated.Unix(), 10)),
		)
	}
	el := xml.StartElement{Name: xml.Name{Local: string(ie.Category)}, Attr: attrs}
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func categoryRank(c catalog.Category) int {
	switch c {
	case catalog.CategoryKart:
		return 0
	case catalog.CategoryTrack:
		return 1
	}
	return 2
}
