// Package catalog turns a raw snapshot of published content into a bounded,
// sorted page. Everything here is a pure function of its inputs; fetching and
// caching live in the service layer.
package catalog

import (
	"slices"
	"strings"
	"time"
)

// Entry is anything the pipeline can search, filter, window and rank.
type Entry interface {
	SearchText() []string
	Field(name string) string
	Timestamp() (time.Time, bool)
	ViewCount() int
}

// SortKey selects the ordering applied after filtering.
type SortKey string

const (
	// SortNone keeps the snapshot order as returned by the store.
	SortNone SortKey = ""
	// SortRecent orders by creation time, newest first. Entries without a
	// timestamp go last.
	SortRecent SortKey = "recent"
	// SortPopular orders by view count, highest first.
	SortPopular SortKey = "popular"
)

// All is the sentinel filter value that imposes no constraint.
const All = "all"

// Listing page sizes.
const (
	CatalogPageSize = 20
	ListPageSize    = 10
	PopularTopN     = 10
)

// Params is the full set of caller-chosen pipeline inputs.
type Params struct {
	Search   string
	Filters  map[string]string
	Window   Window
	Now      time.Time
	Sort     SortKey
	TopN     int
	PageSize int
	Page     int
}

// Page is one slice of the filtered, sorted result.
type Page[T Entry] struct {
	Items      []T    `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	FilterKey  string `json:"filter_key"`
}

// Run applies window, search, categorical filters, sort, top-N truncation and
// pagination, in that order.
func Run[T Entry](entries []T, p Params) Page[T] {
	p = p.normalized()

	ranked := Rank(Filter(entries, p), p.Sort)
	if p.TopN > 0 && len(ranked) > p.TopN {
		ranked = ranked[:p.TopN]
	}

	return Page[T]{
		Items:      Paginate(ranked, p.Page, p.PageSize),
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      len(ranked),
		TotalPages: TotalPages(len(ranked), p.PageSize),
		FilterKey:  p.Fingerprint(),
	}
}

// Filter retains entries inside the window that match the search term and
// every categorical filter. Input order is preserved.
func Filter[T Entry](entries []T, p Params) []T {
	term := strings.ToLower(strings.TrimSpace(p.Search))
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if !p.Window.Contains(e, now) {
			continue
		}
		if term != "" && !matchesTerm(e, term) {
			continue
		}
		if !matchesFilters(e, p.Filters) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchesTerm(e Entry, term string) bool {
	for _, field := range e.SearchText() {
		if field != "" && strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func matchesFilters(e Entry, filters map[string]string) bool {
	for field, want := range filters {
		if isUnconstrained(want) {
			continue
		}
		if e.Field(field) != want {
			return false
		}
	}
	return true
}

func isUnconstrained(v string) bool {
	return v == "" || v == All
}

// Rank returns a stably sorted copy of entries. Equal keys keep input order.
func Rank[T Entry](entries []T, key SortKey) []T {
	out := slices.Clone(entries)
	switch key {
	case SortPopular:
		slices.SortStableFunc(out, func(a, b T) int {
			return max(b.ViewCount(), 0) - max(a.ViewCount(), 0)
		})
	case SortRecent:
		slices.SortStableFunc(out, func(a, b T) int {
			ta, okA := a.Timestamp()
			tb, okB := b.Timestamp()
			switch {
			case okA && okB:
				return tb.Compare(ta)
			case okA:
				return -1
			case okB:
				return 1
			}
			return 0
		})
	}
	return out
}

// Paginate returns the 1-based page of entries. Pages past the end are empty,
// never clamped.
func Paginate[T Entry](entries []T, page, size int) []T {
	if page < 1 || size < 1 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(entries) {
		return []T{}
	}
	end := min(start+size, len(entries))
	return entries[start:end]
}

// TotalPages is ceil(n / size); zero entries means zero pages.
func TotalPages(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

func (p Params) normalized() Params {
	if p.PageSize <= 0 {
		p.PageSize = CatalogPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}
