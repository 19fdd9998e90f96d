// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// service implements the Service interface over the catalog subsystem's
// Postgres tables.
type service struct {
	db       *sql.DB
	notifier Notifier
	log      *zap.Logger
}

// NewService creates a new catalog service instance. notifier may be nil
// when no enrollment-completed callback is configured.
func NewService(db *sql.DB, notifier Notifier, logger *zap.Logger) Service {
	return &service{db: db, notifier: notifier, log: logger}
}

// GetCourse retrieves a course and its categories.
func (s *service) GetCourse(ctx context.Context, id int64) (*Course, error) {
	query := `
		SELECT id, title, kind, published, is_public, is_free, created_at, updated_at
		FROM courses
		WHERE id = $1
	`
	course := &Course{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&course.ID,
		&course.Title,
		&course.Kind,
		&course.Published,
		&course.Public,
		&course.Free,
		&course.CreatedAt,
		&course.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course %d: %w", id, err)
	}

	course.CategoryIDs, err = s.courseCategories(ctx, id)
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *service) courseCategories(ctx context.Context, courseID int64) ([]int64, error) {
	query := `
		SELECT category_id
		FROM course_categories
		WHERE course_id = $1
		ORDER BY category_id
	`
	rows, err := s.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query course categories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CoursesByIDs returns the courses that exist among ids. Unknown ids are
// dropped, never reported as errors: a stale binding pointing at a deleted
// course is an expected steady-state possibility.
func (s *service) CoursesByIDs(ctx context.Context, ids []int64) ([]Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, title, kind, published, is_public, is_free, created_at, updated_at
		FROM courses
		WHERE id = ANY($1)
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Kind, &c.Published, &c.Public, &c.Free, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// CourseIDsInCategories returns published course ids in the categories.
func (s *service) CourseIDsInCategories(ctx context.Context, categoryIDs []int64) ([]int64, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT c.id
		FROM courses c
		JOIN course_categories cc ON cc.course_id = c.id
		WHERE cc.category_id = ANY($1) AND c.published
		ORDER BY c.id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(categoryIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query category courses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan course id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BundleCourseIDs returns the member courses of a bundle.
func (s *service) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	course, err := s.GetCourse(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if course.Kind != KindBundle {
		return nil, ErrNotBundle
	}

	query := `
		SELECT course_id
		FROM bundle_courses
		WHERE bundle_id = $1
		ORDER BY position, course_id
	`
	rows, err := s.db.QueryContext(ctx, query, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bundle courses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bundle course id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetEnrollment returns the user's enrollment in a course.
func (s *service) GetEnrollment(ctx context.Context, userID, courseID int64) (*Enrollment, error) {
	query := `
		SELECT id, user_id, course_id, status, source, level_id, order_id, order_code, created_at, updated_at
		FROM enrollments
		WHERE user_id = $1 AND course_id = $2
	`
	e := &Enrollment{}
	var source sql.NullString
	var orderCode sql.NullString
	var levelID, orderID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, userID, courseID).Scan(
		&e.ID, &e.UserID, &e.CourseID, &e.Status, &source,
		&levelID, &orderID, &orderCode, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	e.Source = EnrollmentSource(source.String)
	e.LevelID = levelID.Int64
	e.OrderID = orderID.Int64
	e.OrderCode = orderCode.String
	return e, nil
}

// ActiveEnrollments returns the user's granting enrollments.
func (s *service) ActiveEnrollments(ctx context.Context, userID int64) ([]Enrollment, error) {
	query := `
		SELECT id, user_id, course_id, status, source, level_id, order_id, order_code, created_at, updated_at
		FROM enrollments
		WHERE user_id = $1 AND status IN ('active', 'completed')
		ORDER BY course_id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []Enrollment
	for rows.Next() {
		var e Enrollment
		var source, orderCode sql.NullString
		var levelID, orderID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &source,
			&levelID, &orderID, &orderCode, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		e.Source = EnrollmentSource(source.String)
		e.LevelID = levelID.Int64
		e.OrderID = orderID.Int64
		e.OrderCode = orderCode.String
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// Enroll creates an enrollment in active status, or returns the existing
// record when one already grants access.
func (s *service) Enroll(ctx context.Context, userID, courseID int64) (*Enrollment, error) {
	existing, err := s.GetEnrollment(ctx, userID, courseID)
	if err == nil && existing.Enrolled() {
		return existing, nil
	}
	if err != nil && err != ErrNotEnrolled {
		return nil, err
	}

	if existing != nil {
		// Reactivate a previously cancelled record rather than inserting
		// a duplicate user-course row.
		if err := s.SetEnrollmentStatus(ctx, existing.ID, StatusActive); err != nil {
			return nil, err
		}
		existing.Status = StatusActive
		s.notifyCompleted(ctx, existing)
		return existing, nil
	}

	query := `
		INSERT INTO enrollments (user_id, course_id, status)
		VALUES ($1, $2, 'active')
		RETURNING id, created_at, updated_at
	`
	e := &Enrollment{UserID: userID, CourseID: courseID, Status: StatusActive}
	if err := s.db.QueryRowContext(ctx, query, userID, courseID).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	s.notifyCompleted(ctx, e)
	return e, nil
}

func (s *service) notifyCompleted(ctx context.Context, e *Enrollment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.EnrollmentCompleted(ctx, e); err != nil {
		s.log.Warn("enrollment-completed callback failed",
			zap.Int64("enrollment_id", e.ID),
			zap.Int64("user_id", e.UserID),
			zap.Int64("course_id", e.CourseID),
			zap.Error(err))
	}
}

// SetEnrollmentStatus transitions an enrollment's status.
func (s *service) SetEnrollmentStatus(ctx context.Context, enrollmentID int64, status EnrollmentStatus) error {
	query := `
		UPDATE enrollments
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	res, err := s.db.ExecContext(ctx, query, status, enrollmentID)
	if err != nil {
		return fmt.Errorf("failed to update enrollment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// CancelEnrollment flips the user's enrollment in a course to cancelled.
func (s *service) CancelEnrollment(ctx context.Context, userID, courseID int64) error {
	query := `
		UPDATE enrollments
		SET status = 'cancelled', updated_at = NOW()
		WHERE user_id = $1 AND course_id = $2 AND status IN ('active', 'completed')
	`
	res, err := s.db.ExecContext(ctx, query, userID, courseID)
	if err != nil {
		return fmt.Errorf("failed to cancel enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotEnrolled
	}
	return nil
}

// SetEnrollmentSource records attribution and traceability metadata.
func (s *service) SetEnrollmentSource(ctx context.Context, enrollmentID int64, source EnrollmentSource, meta SourceMeta) error {
	query := `
		UPDATE enrollments
		SET source = $1, level_id = NULLIF($2, 0), order_id = NULLIF($3, 0), order_code = NULLIF($4, ''), updated_at = NOW()
		WHERE id = $5
	`
	res, err := s.db.ExecContext(ctx, query, source, meta.LevelID, meta.OrderID, meta.OrderCode, enrollmentID)
	if err != nil {
		return fmt.Errorf("failed to set enrollment source: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}
