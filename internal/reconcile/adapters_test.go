// internal/reconcile/adapters_test.go
package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

func TestCheckoutEnrollsUnionOfHeldAndPurchased(t *testing.T) {
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessSingleCourse)
	fb.addLevel(7, billing.AccessSingleCourse)
	fb.hold(1, 5)
	fb.bindPages(5, 10)
	fb.bindPages(7, 11)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.addCourse(catalog.Course{ID: 11, Published: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)

	order := OrderRef{Valid: true, OrderID: 900, OrderCode: "ord-900", UserID: 1, LevelID: 7}
	require.NoError(t, engine.CheckoutCompleted(context.Background(), 1, 7, order))

	// The already-held course stays put; the purchased one lands with
	// full traceability.
	assert.Zero(t, fc.cancelCalls)
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 10).Status)

	bought := fc.enrollment(1, 11)
	require.NotNil(t, bought)
	assert.Equal(t, catalog.StatusCompleted, bought.Status)
	assert.Equal(t, catalog.SourceMembership, bought.Source)
	assert.Equal(t, int64(7), bought.LevelID)
	assert.Equal(t, int64(900), bought.OrderID)
	assert.Equal(t, "ord-900", bought.OrderCode)
}

func TestCheckoutBundleCascade(t *testing.T) {
	// The purchased level grants bundle 30 (members 20, 21) and,
	// independently, course 21. The cascade enrolls 21 but not 20.
	engine, fb, fc := newTestEngine()
	fb.addLevel(7, billing.AccessSingleCourse)
	fb.bindPages(7, 30)
	fb.bindCourses(7, 21)
	fc.addBundle(30, 20, 21)
	fc.addCourse(catalog.Course{ID: 20, Published: true})
	fc.addCourse(catalog.Course{ID: 21, Published: true})

	require.NoError(t, engine.CheckoutCompleted(context.Background(), 1, 7, OrderRef{}))

	require.NotNil(t, fc.enrollment(1, 30))
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 30).Status)
	require.NotNil(t, fc.enrollment(1, 21))
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 21).Status)
	assert.Nil(t, fc.enrollment(1, 20), "no independent access, no cascade")
}

func TestCheckoutNoopOnMalformedEvent(t *testing.T) {
	engine, fb, fc := newTestEngine()

	require.NoError(t, engine.CheckoutCompleted(context.Background(), 0, 7, OrderRef{}))
	require.NoError(t, engine.CheckoutCompleted(context.Background(), 1, 0, OrderRef{}))

	assert.Zero(t, fb.queries)
	assert.Zero(t, fc.mutations())
}

func TestOrderRefundedKeepsCourseGrantedByOtherLevel(t *testing.T) {
	// Levels 5 and 9 both bind course 10. Refunding the level-5 order
	// must not unenroll while level 9 is still held.
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessSingleCourse)
	fb.addLevel(9, billing.AccessSingleCourse)
	fb.hold(1, 5, 9)
	fb.bindPages(5, 10)
	fb.bindPages(9, 10)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)

	order := OrderRef{Valid: true, OrderID: 50, UserID: 1, LevelID: 5}
	require.NoError(t, engine.OrderRefunded(context.Background(), order))

	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 10).Status)
	assert.Zero(t, fc.cancelCalls)
}

func TestOrderRefundedRevokesLastGrantingLevel(t *testing.T) {
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessSingleCourse)
	fb.hold(1, 5)
	fb.bindPages(5, 10)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)

	order := OrderRef{Valid: true, OrderID: 50, UserID: 1, LevelID: 5}
	require.NoError(t, engine.OrderRefunded(context.Background(), order))

	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 10).Status)
}

func TestOrderRefundedNoopWithoutOrder(t *testing.T) {
	engine, fb, fc := newTestEngine()

	require.NoError(t, engine.OrderRefunded(context.Background(), OrderRef{}))

	assert.Zero(t, fb.queries)
	assert.Zero(t, fc.mutations())
}

func TestLevelChangedCancellationWithoutReplacement(t *testing.T) {
	engine, fb, fc := newTestEngine()
	fb.bindPages(5, 10)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)

	// Level id 0 means cancelled with no replacement.
	require.NoError(t, engine.LevelChanged(context.Background(), 1, 0, []int64{5}))

	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 10).Status)
}

func TestLevelChangedNoopWithoutLevels(t *testing.T) {
	engine, fb, fc := newTestEngine()

	require.NoError(t, engine.LevelChanged(context.Background(), 1, 0, nil))

	assert.Zero(t, fb.queries)
	assert.Zero(t, fc.mutations())
}

func TestBatchSweepIsolatesFailingUser(t *testing.T) {
	// Three users swept from level 5 to level 7. User 2's only course
	// mutation fails; users 1 and 3 must still be fully reconciled.
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessSingleCourse)
	fb.addLevel(7, billing.AccessSingleCourse)
	fb.bindPages(5, 10)
	fb.bindPages(7, 11)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.addCourse(catalog.Course{ID: 11, Published: true})

	for _, userID := range []int64{1, 2, 3} {
		fb.hold(userID, 7)
		fc.enrolled(userID, 10, catalog.StatusCompleted, catalog.SourceMembership)
	}
	fc.failCancelFor[2] = errors.New("cancel primitive exploded")

	err := engine.LevelsChangedBatch(context.Background(), []MemberChange{
		{UserID: 1, OldLevelIDs: []int64{5}},
		{UserID: 2, OldLevelIDs: []int64{5}},
		{UserID: 3, OldLevelIDs: []int64{5}},
	})
	require.NoError(t, err)

	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 10).Status)
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(2, 10).Status, "failed cancel leaves record as-is")
	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(3, 10).Status)
	for _, userID := range []int64{1, 2, 3} {
		require.NotNil(t, fc.enrollment(userID, 11), "user %d must gain the new course", userID)
		assert.Equal(t, catalog.StatusCompleted, fc.enrollment(userID, 11).Status)
	}
}

func TestBatchSweepSkipsZeroUser(t *testing.T) {
	engine, fb, fc := newTestEngine()

	err := engine.LevelsChangedBatch(context.Background(), []MemberChange{{UserID: 0, OldLevelIDs: []int64{5}}})
	require.NoError(t, err)

	assert.Zero(t, fb.queries)
	assert.Zero(t, fc.mutations())
}

func TestMembershipCancelledFullWebsite(t *testing.T) {
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessFullWebsite)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.addCourse(catalog.Course{ID: 11, Published: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)
	fc.enrolled(1, 11, catalog.StatusActive, catalog.SourceIndividual)

	require.NoError(t, engine.MembershipCancelled(context.Background(), 1, 5))

	// The admin-initiated path is a pure revoke: attribution does not
	// shield records here, unlike the generic diff path.
	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 10).Status)
	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 11).Status)
}

func TestMembershipCancelledKeepsFreeAndPublicCourses(t *testing.T) {
	// The full revoke only reaches gated courses; enrollments in free or
	// public courses are outside membership gating and survive.
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessFullWebsite)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.addCourse(catalog.Course{ID: 11, Published: true, Free: true})
	fc.addCourse(catalog.Course{ID: 12, Published: true, Public: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)
	fc.enrolled(1, 11, catalog.StatusCompleted, catalog.SourceMembership)
	fc.enrolled(1, 12, catalog.StatusActive, catalog.SourceIndividual)

	require.NoError(t, engine.MembershipCancelled(context.Background(), 1, 5))

	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 10).Status)
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 11).Status)
	assert.Equal(t, catalog.StatusActive, fc.enrollment(1, 12).Status)
}

func TestMembershipCancelledCategoryWise(t *testing.T) {
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessCategoryWise, 70)
	fc.addCourse(catalog.Course{ID: 10, Published: true, CategoryIDs: []int64{70}})
	fc.addCourse(catalog.Course{ID: 11, Published: true, CategoryIDs: []int64{80}})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)
	fc.enrolled(1, 11, catalog.StatusCompleted, catalog.SourceMembership)

	require.NoError(t, engine.MembershipCancelled(context.Background(), 1, 5))

	assert.Equal(t, catalog.StatusCancelled, fc.enrollment(1, 10).Status)
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 11).Status)
}

func TestMembershipCancelledSingleCourseFallsBackToDiff(t *testing.T) {
	engine, fb, fc := newTestEngine()
	fb.addLevel(5, billing.AccessSingleCourse)
	fb.addLevel(9, billing.AccessSingleCourse)
	fb.hold(1, 5, 9)
	fb.bindCourses(5, 10)
	fb.bindCourses(9, 10)
	fc.addCourse(catalog.Course{ID: 10, Published: true})
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)

	require.NoError(t, engine.MembershipCancelled(context.Background(), 1, 5))

	// Level 9 still grants course 10, so the generic diff keeps it.
	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 10).Status)
}

func TestMembershipCancelledUnknownLevelNoop(t *testing.T) {
	engine, _, fc := newTestEngine()
	fc.enrolled(1, 10, catalog.StatusCompleted, catalog.SourceMembership)

	require.NoError(t, engine.MembershipCancelled(context.Background(), 1, 404))

	assert.Equal(t, catalog.StatusCompleted, fc.enrollment(1, 10).Status)
}
