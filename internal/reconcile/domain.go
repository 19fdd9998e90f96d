// internal/reconcile/domain.go
package reconcile

import "context"

// Transition is the normalized input of one reconciliation: a user and the
// level sets before and after the triggering event. It is built fresh per
// event and never persisted.
type Transition struct {
	UserID      int64   `json:"user_id"`
	OldLevelIDs []int64 `json:"old_level_ids"`
	NewLevelIDs []int64 `json:"new_level_ids"`
}

// Result reports which courses one reconciliation actually touched. The
// caller does not need to act on it; it exists for logging and telemetry.
type Result struct {
	Enrolled   []int64 `json:"enrolled"`
	Unenrolled []int64 `json:"unenrolled"`
}

// OrderRef is the defensively-decoded form of the maybe-absent order value
// billing events carry. Valid is false when the event had no usable order;
// the other fields are only meaningful when Valid is true.
type OrderRef struct {
	Valid     bool   `json:"valid"`
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	UserID    int64  `json:"user_id"`
	LevelID   int64  `json:"level_id"`
}

// MemberChange is one user's entry in a bulk level-change sweep: the levels
// the user held before the sweep, as reported by the billing subsystem.
// Current holdings are queried fresh at reconcile time.
type MemberChange struct {
	UserID      int64   `json:"user_id"`
	OldLevelIDs []int64 `json:"old_level_ids"`
}

// Capabilities answers whether the external collaborators are available at
// all. Every entry point checks it first and no-ops when the catalog is
// gone, doing nothing rather than partially reconciling.
type Capabilities interface {
	CatalogAvailable(ctx context.Context) bool
	BundlesAvailable(ctx context.Context) bool
}

// StaticCapabilities is a fixed-answer Capabilities, configured once at
// composition time.
type StaticCapabilities struct {
	Catalog bool
	Bundles bool
}

func (c StaticCapabilities) CatalogAvailable(context.Context) bool { return c.Catalog }
func (c StaticCapabilities) BundlesAvailable(context.Context) bool { return c.Bundles }

// Config carries the install-wide toggles the engine consults.
type Config struct {
	// MembersOnly marks an install where every enrollment is membership
	// driven; the attribution tagger then never tags individual.
	MembersOnly bool
}
