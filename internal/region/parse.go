package region

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// boundsRegex matches one dimension of a region literal, e.g. `0:10` or `-5:5`.
var boundsRegex = regexp.MustCompile(`^\s*(-?\d+)\s*:\s*(-?\d+)\s*$`)

// Parse reads a region literal of the form "[b0:e0,b1:e1,...]" where each
// dimension is the half-open range [b, e). The end must not precede the begin.
func Parse(raw string) (Region, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Region{}, fmt.Errorf("region literal cannot be empty")
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return Region{}, fmt.Errorf("region literal %q must be enclosed in brackets", raw)
	}
	body := s[1 : len(s)-1]
	if strings.TrimSpace(body) == "" {
		return Region{}, fmt.Errorf("region literal %q has no dimensions", raw)
	}

	dims := strings.Split(body, ",")
	begin := make(Coord, len(dims))
	end := make(Coord, len(dims))
	for i, dim := range dims {
		matches := boundsRegex.FindStringSubmatch(dim)
		if matches == nil {
			return Region{}, fmt.Errorf("invalid bounds %q in dimension %d", dim, i)
		}
		b, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return Region{}, fmt.Errorf("dimension %d: %w", i, err)
		}
		e, err := strconv.ParseInt(matches[2], 10, 64)
		if err != nil {
			return Region{}, fmt.Errorf("dimension %d: %w", i, err)
		}
		if e < b {
			return Region{}, fmt.Errorf("dimension %d: end %d precedes begin %d", i, e, b)
		}
		begin[i], end[i] = b, e
	}
	return FromBounds(begin, end)
}
