package grid

import "sort"

// specialRowOrder lists the zone rows that always sort last, in this order:
// quarantine, returns, temporary, void.
var specialRowOrder = map[string]int{"Q": 0, "R": 1, "T": 2, "V": 3}

// IsSpecialRow reports whether label is one of the trailing zone rows.
func IsSpecialRow(label string) bool {
	_, ok := specialRowOrder[label]
	return ok
}

// SortRows orders row labels: regular rows lexicographically first, then the
// special rows in the fixed order Q, R, T, V. The input is not modified and
// duplicates are removed.
func SortRows(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool {
		a, aSpecial := specialRowOrder[out[i]]
		b, bSpecial := specialRowOrder[out[j]]
		switch {
		case aSpecial && bSpecial:
			return a < b
		case aSpecial != bSpecial:
			return bSpecial
		default:
			return out[i] < out[j]
		}
	})
	return out
}
