// internal/catalog/service.go
package catalog

import (
	"context"
	"errors"
)

var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrNotEnrolled        = errors.New("user is not enrolled in course")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrNotBundle          = errors.New("course is not a bundle")
)

// Service is the query and enrollment-primitive surface of the course
// catalog subsystem. The reconciliation engine mutates enrollments only
// through these primitives, never through direct storage writes.
type Service interface {
	// GetCourse returns one course with its categories loaded.
	GetCourse(ctx context.Context, id int64) (*Course, error)

	// CoursesByIDs returns the courses that exist among ids, silently
	// dropping unknown ids. The result order follows ascending id.
	CoursesByIDs(ctx context.Context, ids []int64) ([]Course, error)

	// CourseIDsInCategories returns published course ids belonging to any
	// of the given categories.
	CourseIDsInCategories(ctx context.Context, categoryIDs []int64) ([]int64, error)

	// BundleCourseIDs returns the member course ids of a bundle.
	BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error)

	// GetEnrollment returns the user's enrollment in a course, or
	// ErrNotEnrolled when no record exists.
	GetEnrollment(ctx context.Context, userID, courseID int64) (*Enrollment, error)

	// ActiveEnrollments returns the user's enrollments that currently
	// grant access (active or completed).
	ActiveEnrollments(ctx context.Context, userID int64) ([]Enrollment, error)

	// Enroll creates an enrollment in active status. Enrolling a user who
	// already holds a granting record returns that record unchanged.
	Enroll(ctx context.Context, userID, courseID int64) (*Enrollment, error)

	// SetEnrollmentStatus transitions an enrollment's status.
	SetEnrollmentStatus(ctx context.Context, enrollmentID int64, status EnrollmentStatus) error

	// CancelEnrollment flips the user's enrollment in a course to
	// cancelled. Cancelling a non-enrolled user returns ErrNotEnrolled.
	CancelEnrollment(ctx context.Context, userID, courseID int64) error

	// SetEnrollmentSource records the enrollment's attribution and
	// traceability metadata.
	SetEnrollmentSource(ctx context.Context, enrollmentID int64, source EnrollmentSource, meta SourceMeta) error
}
