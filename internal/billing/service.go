// internal/billing/service.go
package billing

import (
	"context"
	"errors"
)

var (
	ErrLevelNotFound = errors.New("membership level not found")
	ErrOrderNotFound = errors.New("order not found")
)

// Service is the read-only query surface of the membership-billing
// subsystem. The reconciliation engine consumes it and never writes
// through it.
type Service interface {
	// GetLevel returns one level with its bound categories loaded.
	GetLevel(ctx context.Context, id int64) (*Level, error)

	// LevelsForUser returns the levels the user actively holds right now.
	LevelsForUser(ctx context.Context, userID int64) ([]Level, error)

	// RestrictedPageIDs returns the page ids from the canonical
	// level-to-restricted-page table for the given levels. The ids are not
	// guaranteed to be courses; callers validate them against the catalog.
	RestrictedPageIDs(ctx context.Context, levelIDs []int64) ([]int64, error)

	// BoundCourseIDs returns candidate course ids from the reverse
	// "bound course id" attribute index for the given levels. Entries may
	// point at deleted or unpublished courses; callers validate.
	BoundCourseIDs(ctx context.Context, levelIDs []int64) ([]int64, error)

	// GetOrder returns one order by id.
	GetOrder(ctx context.Context, id int64) (*Order, error)
}
