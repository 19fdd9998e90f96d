// internal/reconcile/adapters.go
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

// CheckoutCompleted handles a finished level purchase. The purchased level
// is unioned with the user's current holdings and every course that union
// grants is enrolled; nothing is ever unenrolled on a purchase.
func (e *Engine) CheckoutCompleted(ctx context.Context, userID, levelID int64, order OrderRef) error {
	if !e.caps.CatalogAvailable(ctx) {
		return nil
	}
	if userID == 0 || levelID == 0 {
		return nil
	}

	held, err := e.billing.LevelsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load held levels: %w", err)
	}
	target := unionLevels(levelIDsOf(held), levelID)

	granted, err := e.resolveGated(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to resolve purchased access: %w", err)
	}

	meta := catalog.SourceMeta{LevelID: levelID}
	if order.Valid {
		meta.OrderID = order.OrderID
		meta.OrderCode = order.OrderCode
	}

	var enrolled []int64
	for _, id := range sortedIDs(granted) {
		ids, err := e.grant(ctx, userID, granted[id], granted, meta)
		if err != nil {
			e.log.Error("granting purchased enrollment",
				zap.Int64("user_id", userID),
				zap.Int64("level_id", levelID),
				zap.Int64("course_id", id),
				zap.Error(err))
			continue
		}
		enrolled = append(enrolled, ids...)
	}

	e.log.Info("checkout reconciled",
		zap.Int64("user_id", userID),
		zap.Int64("level_id", levelID),
		zap.Int64s("enrolled", enrolled))
	return nil
}

// LevelChanged handles a single user's level change. The cancelled levels
// come from the change event itself; a new level id of 0 means the
// membership ended with no replacement.
func (e *Engine) LevelChanged(ctx context.Context, userID, newLevelID int64, cancelledLevelIDs []int64) error {
	if !e.caps.CatalogAvailable(ctx) {
		return nil
	}
	if userID == 0 {
		return nil
	}

	old := dedupeLevels(cancelledLevelIDs)
	var next []int64
	if newLevelID != 0 {
		next = []int64{newLevelID}
	}
	if len(old) == 0 && len(next) == 0 {
		return nil
	}

	_, err := e.Reconcile(ctx, Transition{UserID: userID, OldLevelIDs: old, NewLevelIDs: next})
	return err
}

// LevelsChangedBatch handles a billing-cycle sweep that changed many
// users' levels in one call. Each user is reconciled independently against
// holdings queried fresh at call time; a failure for one user is logged
// and the sweep moves on.
func (e *Engine) LevelsChangedBatch(ctx context.Context, changes []MemberChange) error {
	if !e.caps.CatalogAvailable(ctx) {
		return nil
	}

	for _, change := range changes {
		if change.UserID == 0 {
			continue
		}

		held, err := e.billing.LevelsForUser(ctx, change.UserID)
		if err != nil {
			e.log.Error("loading held levels during sweep",
				zap.Int64("user_id", change.UserID),
				zap.Error(err))
			continue
		}

		t := Transition{
			UserID:      change.UserID,
			OldLevelIDs: change.OldLevelIDs,
			NewLevelIDs: levelIDsOf(held),
		}
		if _, err := e.Reconcile(ctx, t); err != nil {
			e.log.Error("reconciling user during sweep",
				zap.Int64("user_id", change.UserID),
				zap.Error(err))
		}
	}
	return nil
}

// OrderRefunded handles a refund of one level purchase. The question it
// answers is "would the user still have access without this level": the
// refunded level is diffed against the user's remaining holdings, so a
// course another held level also grants stays enrolled.
func (e *Engine) OrderRefunded(ctx context.Context, order OrderRef) error {
	if !e.caps.CatalogAvailable(ctx) {
		return nil
	}
	if !order.Valid || order.UserID == 0 || order.LevelID == 0 {
		return nil
	}

	held, err := e.billing.LevelsForUser(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to load held levels: %w", err)
	}
	remaining := withoutLevel(levelIDsOf(held), order.LevelID)

	_, err = e.Reconcile(ctx, Transition{
		UserID:      order.UserID,
		OldLevelIDs: []int64{order.LevelID},
		NewLevelIDs: remaining,
	})
	return err
}

// MembershipCancelled is the admin-initiated full revoke. It computes the
// revoke set from the cancelled level's access model and unenrolls
// directly, bypassing the generic diff: this path is a pure revoke,
// independent of whatever other levels the user holds.
func (e *Engine) MembershipCancelled(ctx context.Context, userID, levelID int64) error {
	if !e.caps.CatalogAvailable(ctx) {
		return nil
	}
	if userID == 0 || levelID == 0 {
		return nil
	}

	level, err := e.billing.GetLevel(ctx, levelID)
	if errors.Is(err, billing.ErrLevelNotFound) {
		e.log.Warn("cancelled level no longer exists",
			zap.Int64("user_id", userID),
			zap.Int64("level_id", levelID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cancelled level: %w", err)
	}

	enrollments, err := e.catalog.ActiveEnrollments(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load enrollments: %w", err)
	}

	var targets []int64
	switch level.AccessModel {
	case billing.AccessFullWebsite:
		for _, enr := range enrollments {
			targets = append(targets, enr.CourseID)
		}
	case billing.AccessCategoryWise:
		inCategories, err := e.catalog.CourseIDsInCategories(ctx, level.CategoryIDs)
		if err != nil {
			return fmt.Errorf("failed to load category courses: %w", err)
		}
		categorySet := make(map[int64]struct{}, len(inCategories))
		for _, id := range inCategories {
			categorySet[id] = struct{}{}
		}
		for _, enr := range enrollments {
			if _, ok := categorySet[enr.CourseID]; ok {
				targets = append(targets, enr.CourseID)
			}
		}
	default:
		// Course-specific levels have no blanket revoke shape; fall back
		// to the generic diff against the user's remaining holdings.
		held, err := e.billing.LevelsForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load held levels: %w", err)
		}
		_, err = e.Reconcile(ctx, Transition{
			UserID:      userID,
			OldLevelIDs: []int64{levelID},
			NewLevelIDs: withoutLevel(levelIDsOf(held), levelID),
		})
		return err
	}

	// Free and public courses are outside membership gating and stay
	// enrolled even on a full revoke.
	courses, err := e.catalog.CoursesByIDs(ctx, targets)
	if err != nil {
		return fmt.Errorf("failed to load revoke candidates: %w", err)
	}

	var unenrolled []int64
	for _, courseID := range sortedIDs(gatedSet(courses)) {
		if err := e.catalog.CancelEnrollment(ctx, userID, courseID); err != nil {
			if errors.Is(err, catalog.ErrNotEnrolled) {
				continue
			}
			e.log.Error("revoking enrollment on membership cancellation",
				zap.Int64("user_id", userID),
				zap.Int64("level_id", levelID),
				zap.Int64("course_id", courseID),
				zap.Error(err))
			continue
		}
		unenrolled = append(unenrolled, courseID)
	}

	e.log.Info("membership cancellation reconciled",
		zap.Int64("user_id", userID),
		zap.Int64("level_id", levelID),
		zap.String("access_model", string(level.AccessModel)),
		zap.Int64s("unenrolled", unenrolled))
	return nil
}

func levelIDsOf(levels []billing.Level) []int64 {
	ids := make([]int64, 0, len(levels))
	for _, l := range levels {
		ids = append(ids, l.ID)
	}
	return ids
}
