package catalog

import (
	"hash/fnv"
	"slices"
	"strconv"
	"strings"
)

// Fingerprint identifies the filter parameters of p: search term, categorical
// filters, window, sort and top-N. Page and page size are not part of it.
func (p Params) Fingerprint() string {
	h := fnv.New64a()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}

	write(strings.ToLower(strings.TrimSpace(p.Search)))
	keys := make([]string, 0, len(p.Filters))
	for k, v := range p.Filters {
		if !isUnconstrained(v) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		write(k + "=" + p.Filters[k])
	}
	write(p.Window.String())
	write(string(p.Sort))
	write(strconv.Itoa(p.TopN))

	return strconv.FormatUint(h.Sum64(), 36)
}

// ResolvePage returns the page to show for a request. Whenever the caller's
// previous filter key differs from the current parameters the page resets
// to 1, so a filter change never lands on a stale page.
func ResolvePage(requested int, previousKey string, p Params) int {
	if previousKey != "" && previousKey != p.Fingerprint() {
		return 1
	}
	if requested < 1 {
		return 1
	}
	return requested
}
