// internal/reconcile/engine.go
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

// Engine keeps a user's enrollments consistent with the courses their held
// membership levels grant. Every operation is safe to repeat: the engine
// keeps no state of its own and re-derives the target from current truth on
// each call.
type Engine struct {
	billing  billing.Service
	catalog  catalog.Service
	caps     Capabilities
	resolver *Resolver
	cfg      Config
	log      *zap.Logger
	tracer   trace.Tracer
}

// NewEngine creates a reconciliation engine bound to the two external
// subsystem surfaces.
func NewEngine(billingSvc billing.Service, catalogSvc catalog.Service, caps Capabilities, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		billing:  billingSvc,
		catalog:  catalogSvc,
		caps:     caps,
		resolver: NewResolver(billingSvc, catalogSvc),
		cfg:      cfg,
		log:      logger,
		tracer:   otel.Tracer("tutorpress/reconcile"),
	}
}

// Reconcile computes the enroll/unenroll delta between the course sets
// bound to the old and new level sets and applies it. Unenrolls run before
// enrolls; a course bound on both sides never appears in either branch. A
// failure on one course is logged and the loop continues with the next.
func (e *Engine) Reconcile(ctx context.Context, t Transition) (*Result, error) {
	if !e.caps.CatalogAvailable(ctx) {
		e.log.Debug("course catalog unavailable, skipping reconcile", zap.Int64("user_id", t.UserID))
		return &Result{}, nil
	}

	runID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "reconcile.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int64("user.id", t.UserID),
			attribute.Int("levels.old", len(t.OldLevelIDs)),
			attribute.Int("levels.new", len(t.NewLevelIDs)),
		),
	)
	defer span.End()

	oldCourses, err := e.resolveGated(ctx, t.OldLevelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve old level set: %w", err)
	}
	newCourses, err := e.resolveGated(ctx, t.NewLevelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve new level set: %w", err)
	}

	toRevoke := subtract(oldCourses, newCourses)
	toGrant := subtract(newCourses, oldCourses)

	meta := catalog.SourceMeta{}
	if ids := dedupeLevels(t.NewLevelIDs); len(ids) == 1 {
		meta.LevelID = ids[0]
	}

	result := &Result{}
	for _, id := range sortedIDs(toRevoke) {
		revoked, err := e.revoke(ctx, t.UserID, id)
		if err != nil {
			e.log.Error("revoking enrollment",
				zap.String("run_id", runID),
				zap.Int64("user_id", t.UserID),
				zap.Int64("course_id", id),
				zap.Error(err))
			continue
		}
		if revoked {
			result.Unenrolled = append(result.Unenrolled, id)
		}
	}
	for _, id := range sortedIDs(toGrant) {
		granted, err := e.grant(ctx, t.UserID, toGrant[id], newCourses, meta)
		if err != nil {
			e.log.Error("granting enrollment",
				zap.String("run_id", runID),
				zap.Int64("user_id", t.UserID),
				zap.Int64("course_id", id),
				zap.Error(err))
			continue
		}
		result.Enrolled = append(result.Enrolled, granted...)
	}

	span.SetAttributes(
		attribute.Int("courses.enrolled", len(result.Enrolled)),
		attribute.Int("courses.unenrolled", len(result.Unenrolled)),
	)
	e.log.Info("reconciled user",
		zap.String("run_id", runID),
		zap.Int64("user_id", t.UserID),
		zap.Int64s("enrolled", result.Enrolled),
		zap.Int64s("unenrolled", result.Unenrolled))

	return result, nil
}

func (e *Engine) resolveGated(ctx context.Context, levelIDs []int64) (courseSet, error) {
	courses, err := e.resolver.Resolve(ctx, levelIDs)
	if err != nil {
		return nil, err
	}
	return gatedSet(courses), nil
}

// revoke cancels the user's membership-granted enrollment in a course.
// It reports whether anything was actually cancelled: not-enrolled and
// already-cancelled states are idempotent no-ops, and an enrollment the
// learner bought individually always survives this path.
func (e *Engine) revoke(ctx context.Context, userID, courseID int64) (bool, error) {
	enrollment, err := e.catalog.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, catalog.ErrNotEnrolled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !enrollment.Enrolled() {
		return false, nil
	}
	if enrollment.Source == catalog.SourceIndividual {
		return false, nil
	}

	if err := e.catalog.CancelEnrollment(ctx, userID, courseID); err != nil {
		if errors.Is(err, catalog.ErrNotEnrolled) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// grant enrolls the user into a course, completes the enrollment
// immediately (membership access is granted in full, unlike progress
// tracked individual purchases), stamps attribution, and fans out into
// bundle members. It returns every course id it actually enrolled,
// cascade included; an already-granting enrollment is a no-op.
func (e *Engine) grant(ctx context.Context, userID int64, course catalog.Course, granted courseSet, meta catalog.SourceMeta) ([]int64, error) {
	created, err := e.enrollCompleted(ctx, userID, course.ID, meta)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}

	enrolled := []int64{course.ID}
	if course.Kind == catalog.KindBundle && e.caps.BundlesAvailable(ctx) {
		enrolled = append(enrolled, e.cascade(ctx, userID, course.ID, granted, meta)...)
	}
	return enrolled, nil
}

// enrollCompleted is the low-level grant primitive: enroll, complete,
// attribute.
func (e *Engine) enrollCompleted(ctx context.Context, userID, courseID int64, meta catalog.SourceMeta) (bool, error) {
	existing, err := e.catalog.GetEnrollment(ctx, userID, courseID)
	if err == nil && existing.Enrolled() {
		return false, nil
	}
	if err != nil && !errors.Is(err, catalog.ErrNotEnrolled) {
		return false, err
	}

	enrollment, err := e.catalog.Enroll(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	if err := e.catalog.SetEnrollmentStatus(ctx, enrollment.ID, catalog.StatusCompleted); err != nil {
		return false, err
	}
	if err := e.catalog.SetEnrollmentSource(ctx, enrollment.ID, catalog.SourceMembership, meta); err != nil {
		return false, err
	}
	return true, nil
}

// cascade enrolls the user into the members of a just-granted bundle, but
// only where the user's target level set independently grants the member
// course. Bundles inside bundles are not unwound further.
func (e *Engine) cascade(ctx context.Context, userID, bundleID int64, granted courseSet, meta catalog.SourceMeta) []int64 {
	memberIDs, err := e.catalog.BundleCourseIDs(ctx, bundleID)
	if err != nil {
		e.log.Error("listing bundle members",
			zap.Int64("user_id", userID),
			zap.Int64("bundle_id", bundleID),
			zap.Error(err))
		return nil
	}

	var enrolled []int64
	for _, memberID := range memberIDs {
		member, ok := granted[memberID]
		if !ok {
			continue
		}
		if member.Kind == catalog.KindBundle {
			continue
		}
		created, err := e.enrollCompleted(ctx, userID, memberID, meta)
		if err != nil {
			e.log.Error("cascading bundle enrollment",
				zap.Int64("user_id", userID),
				zap.Int64("bundle_id", bundleID),
				zap.Int64("course_id", memberID),
				zap.Error(err))
			continue
		}
		if created {
			enrolled = append(enrolled, memberID)
		}
	}
	return enrolled
}
