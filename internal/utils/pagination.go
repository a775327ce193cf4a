package utils

import (
	"math"
	"strconv"
)

const MaxPageLimit = 100

// Pagination is a normalized page request.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// Paginate clamps page to >= 1 and applies defaultLimit when limit <= 0.
// Pages too large to address are clamped to the last addressable one.
func Paginate(page, limit, defaultLimit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	// keeps (page-1)*limit from overflowing into a negative offset
	if maxPage := math.MaxInt/max(limit, 1) + 1; page > maxPage {
		page = maxPage
	}
	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// TotalPages is ceil(count/limit).
func TotalPages(count, limit int) int {
	if count <= 0 || limit <= 0 {
		return 0
	}
	return (count + limit - 1) / limit
}

// QueryInt reads an integer query value, returning 0 when absent or malformed.
func QueryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
