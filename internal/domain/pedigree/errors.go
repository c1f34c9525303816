package pedigree

import "errors"

var (
	ErrChartNotFound      = errors.New("chart not found")
	ErrSlugTaken          = errors.New("slug already used")
	ErrInvalidSlug        = errors.New("invalid slug")
	ErrInvalidGenerations = errors.New("invalid generation count")
	ErrNotOwner           = errors.New("not owner")
	ErrBrokenTree         = errors.New("chart tree references missing person")
)
