// Package page computes page windows and sibling-page links for list
// endpoints.
package page

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultSize is the number of slots returned per page.
const DefaultSize = 10

// Page describes one window over a collection of Total slots.
type Page struct {
	Number     int
	TotalPages int
	Size       int
	Total      int
	// Start and End bound the slot range [Start, End) of this page.
	Start int
	End   int
}

// Paginate clamps requested into [1, TotalPages] and returns the window.
// An empty collection yields page 1 of 0 with an empty range.
func Paginate(total, requested, size int) Page {
	if size <= 0 {
		size = DefaultSize
	}
	if total < 0 {
		total = 0
	}
	lastPage := (total + size - 1) / size

	number := requested
	if number > lastPage {
		number = lastPage
	}
	if number < 1 {
		number = 1
	}

	start := (number - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	return Page{
		Number:     number,
		TotalPages: lastPage,
		Size:       size,
		Total:      total,
		Start:      start,
		End:        end,
	}
}

// Links returns the firstPage/prevPage and nextPage/lastPage links for p
// under /{resource}/.
func Links(resource string, p Page) map[string]string {
	links := map[string]string{}
	if p.Number > 1 {
		links["firstPage"] = URL(resource, 1)
		links["prevPage"] = URL(resource, p.Number-1)
	}
	if p.Number < p.TotalPages {
		links["nextPage"] = URL(resource, p.Number+1)
		links["lastPage"] = URL(resource, p.TotalPages)
	}
	return links
}

// URL returns the list URL for page n of resource.
func URL(resource string, n int) string {
	return fmt.Sprintf("/%s/?page=%d", resource, n)
}

// ParsePage reads a page query value. Leading whitespace and a leading
// integer prefix are accepted ("3abc" is page 3), and values beyond the int
// range saturate. Anything that does not start with an integer, or parses
// to 0, is page 1.
func ParsePage(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	digits := raw[:end]
	n, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) {
		// Out of range pages still clamp in Paginate.
		if digits[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil || n == 0 {
		return 1
	}
	return n
}
