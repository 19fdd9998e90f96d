// internal/billing/domain.go
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccessModel describes how a membership level grants course access.
type AccessModel string

const (
	// AccessFullWebsite unlocks every gated course on the site.
	AccessFullWebsite AccessModel = "full_website"
	// AccessCategoryWise unlocks the courses in the level's bound categories.
	AccessCategoryWise AccessModel = "category_wise"
	// AccessSingleCourse binds the level to one specific course or bundle.
	AccessSingleCourse AccessModel = "single_course"
)

// Level is a paid membership tier. Levels are owned by the billing
// subsystem; this engine only ever reads them.
type Level struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	AccessModel AccessModel `json:"access_model"`
	CategoryIDs []int64     `json:"category_ids,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Order is a billing transaction for a level purchase. Orders carry the
// traceability fields the engine stamps onto membership enrollments.
type Order struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	UserID    int64           `json:"user_id"`
	LevelID   int64           `json:"level_id"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// MetaBoundCourseID is the level attribute key used by course-authored
// backward pointers ("this level unlocks course N"). The resolver unions
// this reverse index with the canonical restriction table.
const MetaBoundCourseID = "bound_course_id"
