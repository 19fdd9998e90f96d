// internal/reconcile/sets.go
package reconcile

import (
	"sort"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

type courseSet map[int64]catalog.Course

// subtract returns a − b.
func subtract(a, b courseSet) courseSet {
	out := make(courseSet)
	for id, c := range a {
		if _, ok := b[id]; !ok {
			out[id] = c
		}
	}
	return out
}

// sortedIDs returns the set's course ids in ascending order, so mutation
// loops run in a deterministic order.
func sortedIDs(s courseSet) []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// dedupeLevels drops zero and duplicate level ids. A zero id means "no
// level" in billing payloads and must never reach a query.
func dedupeLevels(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// unionLevels merges extra ids into ids, deduplicated.
func unionLevels(ids []int64, extra ...int64) []int64 {
	return dedupeLevels(append(append([]int64{}, ids...), extra...))
}

// withoutLevel returns ids minus every occurrence of drop.
func withoutLevel(ids []int64, drop int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range dedupeLevels(ids) {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
