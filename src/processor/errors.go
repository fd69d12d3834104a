package processor

import "errors"

var (
	ErrEmptyTable           = errors.New("table has no rows")
	ErrMissingColumn        = errors.New("missing required column")
	ErrInvalidMonth         = errors.New("month value cannot be parsed")
	ErrDuplicateMonth       = errors.New("duplicate month within route")
	ErrInconsistentAircraft = errors.New("aircraft type is not constant within route")
	ErrInconsistentSeats    = errors.New("seat configuration is not constant within aircraft type")
)
