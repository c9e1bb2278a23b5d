package status

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// SearchThreshold is the minimum Jaro-Winkler similarity for a name match.
const SearchThreshold = 0.8

// FilterPending keeps statuses still awaiting approval or role.
func FilterPending(in []Status) []Status {
	out := make([]Status, 0, len(in))
	for _, s := range in {
		if s.State == Pending {
			out = append(out, s)
		}
	}
	return out
}

// SearchByName keeps universities whose name contains query or is close to
// it under Jaro-Winkler, best matches first.
func SearchByName(in []Status, query string) []Status {
	metric := metrics.NewJaroWinkler()
	metric.CaseSensitive = false
	query = strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		s     Status
		score float64
	}
	var hits []scored
	for _, s := range in {
		name := strings.ToLower(s.Info.Name)
		score := strutil.Similarity(query, name, metric)
		if strings.Contains(name, query) {
			score = 1
		}
		if score >= SearchThreshold {
			hits = append(hits, scored{s, score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]Status, len(hits))
	for i, h := range hits {
		out[i] = h.s
	}
	return out
}
