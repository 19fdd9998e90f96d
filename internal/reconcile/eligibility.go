// internal/reconcile/eligibility.go
package reconcile

import "github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"

// gatedSet keeps only the courses membership gating applies to. Public and
// free courses are stripped from both sides of a diff, so a course that
// turns free between two events is neither spuriously enrolled nor
// spuriously unenrolled.
func gatedSet(courses []catalog.Course) courseSet {
	out := make(courseSet, len(courses))
	for _, c := range courses {
		if c.Gated() {
			out[c.ID] = c
		}
	}
	return out
}
