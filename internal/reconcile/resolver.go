// internal/reconcile/resolver.go
package reconcile

import (
	"context"
	"fmt"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

// Resolver maps a set of membership levels to the set of published courses
// they unlock. The same access-grant intent can live in the billing
// subsystem either as a level-wide page restriction or as a course-authored
// backward pointer on the level, so both sources are queried and unioned;
// neither overrides the other.
type Resolver struct {
	billing billing.Service
	catalog catalog.Service
}

func NewResolver(billingSvc billing.Service, catalogSvc catalog.Service) *Resolver {
	return &Resolver{billing: billingSvc, catalog: catalogSvc}
}

// Resolve returns the deduplicated published courses bound to levelIDs.
// An empty level set short-circuits to an empty result with no queries.
// Candidates from either source that point at a missing or unpublished
// course are discarded: a stale index row is an expected steady-state
// possibility, not an error.
func (r *Resolver) Resolve(ctx context.Context, levelIDs []int64) ([]catalog.Course, error) {
	levelIDs = dedupeLevels(levelIDs)
	if len(levelIDs) == 0 {
		return nil, nil
	}

	pageIDs, err := r.billing.RestrictedPageIDs(ctx, levelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query restricted pages: %w", err)
	}

	boundIDs, err := r.billing.BoundCourseIDs(ctx, levelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query bound courses: %w", err)
	}

	seen := make(map[int64]struct{}, len(pageIDs)+len(boundIDs))
	candidates := make([]int64, 0, len(pageIDs)+len(boundIDs))
	for _, id := range append(pageIDs, boundIDs...) {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// CoursesByIDs drops ids that are not courses at all, which also
	// filters restriction rows pointing at ordinary pages.
	courses, err := r.catalog.CoursesByIDs(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to validate candidate courses: %w", err)
	}

	published := courses[:0]
	for _, c := range courses {
		if c.Published {
			published = append(published, c)
		}
	}
	return published, nil
}
