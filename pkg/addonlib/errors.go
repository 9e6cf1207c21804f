package addonlib

import "errors"

var (
	ErrSizeMismatch     = errors.New("downloaded size does not match the catalog size")
	ErrRangeNotHonored  = errors.New("server ignored the requested byte range")
	ErrStoreClosed      = errors.New("installed-state store is closed")
	ErrDuplicateTask    = errors.New("more than one task targets the same addon identifier")
	ErrArchiveTraversal = errors.New("archive member escapes the install directory")
)
