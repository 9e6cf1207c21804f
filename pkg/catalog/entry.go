// Package catalog retrieves and parses the remote addon catalog published
// by the addon server. The catalog is a two-step document: a news feed
// whose include element points at the actual addons listing.
package catalog

import "time"

// Category of an addon entry. Arenas live alongside tracks on disk
// but are reported as their own category by the catalog.
type Category string

const (
	CategoryTrack Category = "track"
	CategoryArena Category = "arena"
	CategoryKart  Category = "kart"
)

// Valid reports whether c is one of the categories the catalog publishes.
func (c Category) Valid() bool {
	switch c {
	case CategoryTrack, CategoryArena, CategoryKart:
		return true
	}
	return false
}

// Dir returns the addon-root subdirectory content of this category
// installs into. Arenas share the tracks subtree.
func (c Category) Dir() string {
	if c == CategoryKart {
		return "karts"
	}
	return "tracks"
}

// Status bits carried by the catalog's status attribute.
const (
	// StatusApproved marks an entry as approved for distribution.
	// Entries without this bit never reach the selection stage.
	StatusApproved = 0x1
	// StatusFeatured marks an entry as featured by the catalog editors.
	StatusFeatured = 0x80
)

// Entry is one addon's metadata as published by a single catalog fetch.
// Entries are immutable once parsed; a later fetch may carry a new Entry
// for the same ID with a higher Revision.
type Entry struct {
	// ID is the stable addon identifier.
	ID string `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Category is one of track, arena or kart.
	Category Category `json:"category"`
	// Revision increases monotonically per ID.
	Revision int `json:"revision"`
	// Rating is the average user rating, 0..5.
	Rating float64 `json:"rating"`
	// Updated is the last-updated timestamp.
	Updated time.Time `json:"updated"`
	// DownloadURL points at the addon zip.
	DownloadURL string `json:"download_url"`
	// Size is the expected zip size in bytes, 0 if the catalog
	// did not report one.
	Size int64 `json:"size"`
	// Format is the content format marker used for compatibility
	// checks. Track formats up to 5 are no longer loadable.
	Format int `json:"format"`
	// Status is the raw status bitmask.
	Status int `json:"status"`
	// Designer is the credited author, informational only.
	Designer string `json:"designer"`
}

// Approved reports whether the entry carries the approved status bit.
func (e *Entry) Approved() bool {
	return e.Status&StatusApproved != 0
}

// Featured reports whether the entry carries the featured status bit.
func (e *Entry) Featured() bool {
	return e.Status&StatusFeatured != 0
}

// FileName returns the last path element of the download URL.
func (e *Entry) FileName() string {
	url := e.DownloadURL
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}
