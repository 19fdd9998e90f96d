// internal/reconcile/attribution.go
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

// EnrollmentCompleted tags a finished enrollment as membership-granted or
// individually purchased, so later revoke logic knows which records the
// membership diff may touch. The enrollment is membership-attributed on a
// members-only install, or whenever the user holds any active level.
//
// The "holds any level at all" heuristic is deliberately coarse: a course
// bought individually by a user who separately holds an unrelated level is
// tagged membership. That matches the upstream behavior and is kept until
// the business rule is settled; see DESIGN.md.
func (e *Engine) EnrollmentCompleted(ctx context.Context, enrollmentID, userID, courseID int64) error {
	if !e.caps.CatalogAvailable(ctx) {
		return nil
	}
	if enrollmentID == 0 || userID == 0 {
		return nil
	}

	source := catalog.SourceIndividual
	meta := catalog.SourceMeta{}

	if e.cfg.MembersOnly {
		source = catalog.SourceMembership
	} else {
		held, err := e.billing.LevelsForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load held levels: %w", err)
		}
		if len(held) > 0 {
			source = catalog.SourceMembership
			meta.LevelID = held[0].ID
		}
	}

	err := e.catalog.SetEnrollmentSource(ctx, enrollmentID, source, meta)
	if errors.Is(err, catalog.ErrEnrollmentNotFound) {
		// The record vanished between the callback firing and now; the
		// next qualifying event re-derives everything from current truth.
		e.log.Warn("enrollment gone before attribution",
			zap.Int64("enrollment_id", enrollmentID),
			zap.Int64("user_id", userID),
			zap.Int64("course_id", courseID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to set enrollment source: %w", err)
	}

	e.log.Debug("enrollment attributed",
		zap.Int64("enrollment_id", enrollmentID),
		zap.Int64("user_id", userID),
		zap.Int64("course_id", courseID),
		zap.String("source", string(source)))
	return nil
}
