// internal/reconcile/attribution_test.go
package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

func TestEnrollmentCompletedTagsIndividualWithoutLevels(t *testing.T) {
	engine, _, fc := newTestEngine()
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	e := fc.enrolled(7, 10, catalog.StatusCompleted, "")

	err := engine.EnrollmentCompleted(context.Background(), e.ID, 7, 10)
	require.NoError(t, err)

	assert.Equal(t, catalog.SourceIndividual, fc.enrollment(7, 10).Source)
	assert.Zero(t, fc.enrollment(7, 10).LevelID)
}

func TestEnrollmentCompletedTagsMembershipWhenAnyLevelHeld(t *testing.T) {
	// The user holds a level, so the enrollment is membership-attributed
	// even though nothing proves the level granted this course.
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessFullWebsite)
	fb.hold(7, 5)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	e := fc.enrolled(7, 10, catalog.StatusCompleted, "")

	err := engine.EnrollmentCompleted(context.Background(), e.ID, 7, 10)
	require.NoError(t, err)

	got := fc.enrollment(7, 10)
	assert.Equal(t, catalog.SourceMembership, got.Source)
	assert.Equal(t, int64(5), got.LevelID)
}

func TestEnrollmentCompletedMembersOnlySkipsBillingLookup(t *testing.T) {
	fb := newFakeBilling()
	fc := newFakeCatalog()
	engine := NewEngine(fb, fc, StaticCapabilities{Catalog: true, Bundles: true}, Config{MembersOnly: true}, zap.NewNop())
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	e := fc.enrolled(7, 10, catalog.StatusCompleted, "")

	err := engine.EnrollmentCompleted(context.Background(), e.ID, 7, 10)
	require.NoError(t, err)

	assert.Equal(t, catalog.SourceMembership, fc.enrollment(7, 10).Source)
	assert.Zero(t, fc.enrollment(7, 10).LevelID, "members-only tagging carries no specific level")
}

func TestEnrollmentCompletedAbsorbsMissingEnrollment(t *testing.T) {
	engine, _, fc := newTestEngine()

	err := engine.EnrollmentCompleted(context.Background(), 999, 7, 10)
	require.NoError(t, err, "a record deleted before attribution is not an error")
	assert.Equal(t, 1, fc.sourceCalls)
}

func TestEnrollmentCompletedIgnoresMalformedEvents(t *testing.T) {
	engine, _, fc := newTestEngine()
	e := fc.enrolled(7, 10, catalog.StatusCompleted, "")

	require.NoError(t, engine.EnrollmentCompleted(context.Background(), 0, 7, 10))
	require.NoError(t, engine.EnrollmentCompleted(context.Background(), e.ID, 0, 10))

	assert.Zero(t, fc.sourceCalls)
}
