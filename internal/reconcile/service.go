// internal/reconcile/service.go
package reconcile

import "context"

// Service is the set of event-callback entry points the engine exposes to
// the billing and catalog subsystems. Entry points absorb collaborator
// failures per course and per user; only whole-input failures (a dead
// collaborator, an unresolvable user) surface as errors, and even those are
// logged and swallowed at the webhook boundary.
type Service interface {
	// Reconcile diffs the course sets bound to the old and new level sets
	// and applies the minimal enroll/unenroll operations, unenrolls first.
	Reconcile(ctx context.Context, t Transition) (*Result, error)

	// CheckoutCompleted enrolls the buyer into every course granted by the
	// union of the purchased level and the levels already held. A purchase
	// never removes access, so there is no unenroll branch.
	CheckoutCompleted(ctx context.Context, userID, levelID int64, order OrderRef) error

	// LevelChanged reconciles one user after a single level change.
	// newLevelID of 0 means cancelled with no replacement.
	LevelChanged(ctx context.Context, userID, newLevelID int64, cancelledLevelIDs []int64) error

	// LevelsChangedBatch reconciles every user in a billing-cycle sweep
	// independently; one user's failure never blocks the rest.
	LevelsChangedBatch(ctx context.Context, changes []MemberChange) error

	// OrderRefunded reconciles as if the refunded level were the only one
	// removed: access survives wherever another held level still grants it.
	OrderRefunded(ctx context.Context, order OrderRef) error

	// MembershipCancelled is the admin-initiated full revoke. It unenrolls
	// directly from the set computed from the cancelled level's access
	// model, bypassing the generic diff.
	MembershipCancelled(ctx context.Context, userID, levelID int64) error

	// EnrollmentCompleted is the attribution tagger, invoked after any
	// enrollment completes, including ones created outside this engine.
	EnrollmentCompleted(ctx context.Context, enrollmentID, userID, courseID int64) error
}
