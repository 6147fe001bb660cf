package models

import "strconv"

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// PageParams is a 1-indexed page request
type PageParams struct {
	Page  int
	Limit int
}

// ParsePageParams reads page/limit query values, falling back to page 1 and the
// default size for missing, malformed or out of range input.
func ParsePageParams(page, limit string) PageParams {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	params := PageParams{Page: p, Limit: l}
	params.Normalize()
	return params
}

func (p *PageParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > MaxPageSize {
		p.Limit = DefaultPageSize
	}
}

func (p PageParams) Skip() int64 {
	return int64((p.Page - 1) * p.Limit)
}

// Pagination is the pagination object of list responses
type Pagination struct {
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
	Pages       int    `json:"pages"`
	Total       int64  `json:"total"`
	UnreadCount *int64 `json:"unreadCount,omitempty"`
}

func NewPagination(params PageParams, total int64) Pagination {
	pages := 0
	if params.Limit > 0 {
		pages = int((total + int64(params.Limit) - 1) / int64(params.Limit))
	}
	return Pagination{
		Page:  params.Page,
		Limit: params.Limit,
		Pages: pages,
		Total: total,
	}
}
