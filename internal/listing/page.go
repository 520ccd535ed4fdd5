package listing

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PageRequest struct {
	Page     int
	PageSize int
}

type PageResult struct {
	Items      []Listing `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

func normalizePageRequest(in PageRequest) PageRequest {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return PageRequest{Page: page, PageSize: size}
}

// Paginate slices items for req. A page past the end is empty.
func Paginate(items []Listing, req PageRequest) PageResult {
	req = normalizePageRequest(req)
	res := PageResult{
		Items:    []Listing{},
		Page:     req.Page,
		PageSize: req.PageSize,
		Total:    len(items),
	}
	if res.Total > 0 {
		res.TotalPages = int(math.Ceil(float64(res.Total) / float64(req.PageSize)))
	}
	start := (req.Page - 1) * req.PageSize
	if start >= len(items) {
		return res
	}
	end := min(start+req.PageSize, len(items))
	res.Items = items[start:end]
	return res
}
