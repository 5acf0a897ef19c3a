package relocator

import (
	"regexp"
	"strconv"
	"strings"
)

// Trim holds crop margins in points, in LaTeX order (left bottom right top).
type Trim struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

var (
	number = `(\d+(?:\.\d+)?)(?:bp|pt)?`
	// trim=10 20 30 40, trim={10 20 30 40}, trim = 1.5bp 0 0 2bp
	trimPattern = regexp.MustCompile(`trim\s*=\s*\{?\s*` + number + `\s+` + number + `\s+` + number + `\s+` + number + `\s*\}?`)
	clipPattern = regexp.MustCompile(`^clip(?:\s*=\s*true)?$`)
)

// ParseTrim extracts the trim margins from an option string such as
// "[width=3cm,trim=10 20 30 40,clip]".
func ParseTrim(params string) (Trim, bool) {
	m := trimPattern.FindStringSubmatch(params)
	if m == nil {
		return Trim{}, false
	}
	values := make([]float64, 4)
	for i := range values {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return Trim{}, false
		}
		values[i] = v
	}
	return Trim{Left: values[0], Bottom: values[1], Right: values[2], Top: values[3]}, true
}

// IsZero reports whether no margin would be removed.
func (t Trim) IsZero() bool {
	return t.Left == 0 && t.Bottom == 0 && t.Right == 0 && t.Top == 0
}

// StripTrim removes the trim= and clip keys from a single bracketed option
// group and keeps the remaining keys in order. An option group left empty is
// dropped entirely.
func StripTrim(params string) string {
	if !strings.HasPrefix(params, "[") || !strings.HasSuffix(params, "]") || strings.Contains(params, "][") {
		return params
	}

	var kept []string
	for _, item := range splitOptions(params[1 : len(params)-1]) {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
		case clipPattern.MatchString(item):
		case trimPattern.MatchString(item) && strings.HasPrefix(item, "trim"):
		default:
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "[" + strings.Join(kept, ",") + "]"
}

// splitOptions splits a key=value list on commas outside braces.
func splitOptions(s string) []string {
	var items []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				items = append(items, s[start:i])
				start = i + 1
			}
		}
	}
	return append(items, s[start:])
}
