// internal/catalog/domain.go
package catalog

import "time"

// CourseKind distinguishes a plain course from a bundle (a course whose
// content is itself a list of member courses).
type CourseKind string

const (
	KindCourse CourseKind = "course"
	KindBundle CourseKind = "bundle"
)

// Course is a catalog entry. Courses are owned by the catalog subsystem;
// the reconciliation engine only reads them.
type Course struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Kind        CourseKind `json:"kind"`
	Published   bool       `json:"published"`
	Public      bool       `json:"public"`
	Free        bool       `json:"free"`
	CategoryIDs []int64    `json:"category_ids,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Gated reports whether membership rules apply to the course at all.
// Public and free courses are never enrolled or unenrolled by the engine.
func (c Course) Gated() bool {
	return !c.Public && !c.Free
}

// EnrollmentStatus is the lifecycle state of an enrollment record.
type EnrollmentStatus string

const (
	StatusActive    EnrollmentStatus = "active"
	StatusCompleted EnrollmentStatus = "completed"
	StatusCancelled EnrollmentStatus = "cancelled"
)

// EnrollmentSource records how an enrollment came to exist. Membership
// reconciliation never revokes an individual-attributed record through the
// generic diff path.
type EnrollmentSource string

const (
	SourceMembership EnrollmentSource = "membership"
	SourceIndividual EnrollmentSource = "individual"
)

// SourceMeta carries the traceability fields stamped alongside an
// enrollment's source attribution.
type SourceMeta struct {
	LevelID   int64  `json:"level_id,omitempty"`
	OrderID   int64  `json:"order_id,omitempty"`
	OrderCode string `json:"order_code,omitempty"`
}

// Enrollment is a user-course relation. Enrollments are never physically
// deleted by the engine; revocation is a status flip to cancelled.
type Enrollment struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	CourseID  int64            `json:"course_id"`
	Status    EnrollmentStatus `json:"status"`
	Source    EnrollmentSource `json:"source,omitempty"`
	LevelID   int64            `json:"level_id,omitempty"`
	OrderID   int64            `json:"order_id,omitempty"`
	OrderCode string           `json:"order_code,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Enrolled reports whether the record currently grants access. Membership
// grants land as completed immediately, so both active and completed count.
func (e Enrollment) Enrolled() bool {
	return e.Status == StatusActive || e.Status == StatusCompleted
}

// EnrollmentCompletedEvent is delivered to the enrollment-completed
// callback after an enrollment reaches a granted state.
type EnrollmentCompletedEvent struct {
	EventID      string `json:"event_id"`
	EnrollmentID int64  `json:"enrollment_id"`
	UserID       int64  `json:"user_id"`
	CourseID     int64  `json:"course_id"`
}
