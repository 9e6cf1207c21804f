package catalog

import "errors"

var (
	ErrCatalogUnavailable = errors.New("addon catalog is unavailable, no remote copy could be fetched and no cached copy exists")
	ErrNoIncludeElement   = errors.New("news feed carries no include element pointing at the addons listing")
)
