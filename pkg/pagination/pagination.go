package pagination

import "strconv"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	// MaxLimit caps how many rows any page may request.
	MaxLimit = 100
)

// Params are offset pagination inputs shared by public and admin listings.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize applies defaults and bounds.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows skipped for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// FromQuery parses page/limit query values, ignoring malformed numbers.
func FromQuery(page, limit string) Params {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return Params{Page: p, Limit: l}.Normalize()
}

// Page is the envelope returned for paginated listings.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}
