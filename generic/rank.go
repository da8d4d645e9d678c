package generic

import "sort"

// RankCounts flattens a frequency table into buckets ordered by count
// descending, ties broken by key ascending (earlier weekday, earlier hour).
func RankCounts(counts map[int]int) []Count {
	ranked := make([]Count, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, Count{Key: k, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	return ranked
}

// TopCounts returns at most n leading buckets of ranked.
func TopCounts(ranked []Count, n int) []Count {
	if len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}
