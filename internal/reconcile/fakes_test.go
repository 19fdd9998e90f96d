// internal/reconcile/fakes_test.go
package reconcile

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

// fakeBilling is an in-memory billing.Service.
type fakeBilling struct {
	levels  map[int64]billing.Level
	held    map[int64][]int64 // user -> level ids
	pages   map[int64][]int64 // level -> restriction-table page ids
	bound   map[int64][]int64 // level -> reverse-index course ids
	orders  map[int64]billing.Order
	queries int
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		levels: make(map[int64]billing.Level),
		held:   make(map[int64][]int64),
		pages:  make(map[int64][]int64),
		bound:  make(map[int64][]int64),
		orders: make(map[int64]billing.Order),
	}
}

func (f *fakeBilling) addLevel(id int64, model billing.AccessModel, categoryIDs ...int64) {
	f.levels[id] = billing.Level{ID: id, AccessModel: model, CategoryIDs: categoryIDs}
}

// bindPages registers restriction-table rows for a level.
func (f *fakeBilling) bindPages(levelID int64, pageIDs ...int64) {
	f.pages[levelID] = append(f.pages[levelID], pageIDs...)
}

// bindCourses registers reverse-index entries for a level.
func (f *fakeBilling) bindCourses(levelID int64, courseIDs ...int64) {
	f.bound[levelID] = append(f.bound[levelID], courseIDs...)
}

func (f *fakeBilling) hold(userID int64, levelIDs ...int64) {
	f.held[userID] = append(f.held[userID], levelIDs...)
}

func (f *fakeBilling) GetLevel(ctx context.Context, id int64) (*billing.Level, error) {
	l, ok := f.levels[id]
	if !ok {
		return nil, billing.ErrLevelNotFound
	}
	return &l, nil
}

func (f *fakeBilling) LevelsForUser(ctx context.Context, userID int64) ([]billing.Level, error) {
	var levels []billing.Level
	for _, id := range f.held[userID] {
		if l, ok := f.levels[id]; ok {
			levels = append(levels, l)
		} else {
			levels = append(levels, billing.Level{ID: id})
		}
	}
	return levels, nil
}

func (f *fakeBilling) RestrictedPageIDs(ctx context.Context, levelIDs []int64) ([]int64, error) {
	f.queries++
	return collect(f.pages, levelIDs), nil
}

func (f *fakeBilling) BoundCourseIDs(ctx context.Context, levelIDs []int64) ([]int64, error) {
	f.queries++
	return collect(f.bound, levelIDs), nil
}

func (f *fakeBilling) GetOrder(ctx context.Context, id int64) (*billing.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, billing.ErrOrderNotFound
	}
	return &o, nil
}

func collect(m map[int64][]int64, keys []int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, k := range keys {
		for _, v := range m[k] {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type userCourse struct {
	userID   int64
	courseID int64
}

// fakeCatalog is an in-memory catalog.Service with per-course failure
// injection and mutation counters.
type fakeCatalog struct {
	courses     map[int64]catalog.Course
	bundles     map[int64][]int64
	enrollments map[userCourse]*catalog.Enrollment
	nextID      int64

	failEnroll    map[int64]error // course id -> injected error
	failCancel    map[int64]error // course id -> injected error
	failCancelFor map[int64]error // user id -> injected error

	enrollCalls int
	cancelCalls int
	statusCalls int
	sourceCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		courses:       make(map[int64]catalog.Course),
		bundles:       make(map[int64][]int64),
		enrollments:   make(map[userCourse]*catalog.Enrollment),
		failEnroll:    make(map[int64]error),
		failCancel:    make(map[int64]error),
		failCancelFor: make(map[int64]error),
	}
}

func (f *fakeCatalog) addCourse(c catalog.Course) {
	if c.Kind == "" {
		c.Kind = catalog.KindCourse
	}
	f.courses[c.ID] = c
}

func (f *fakeCatalog) addBundle(id int64, memberIDs ...int64) {
	f.addCourse(catalog.Course{ID: id, Kind: catalog.KindBundle, Published: true})
	f.bundles[id] = memberIDs
}

// enrolled seeds an existing enrollment record.
func (f *fakeCatalog) enrolled(userID, courseID int64, status catalog.EnrollmentStatus, source catalog.EnrollmentSource) *catalog.Enrollment {
	f.nextID++
	e := &catalog.Enrollment{
		ID:       f.nextID,
		UserID:   userID,
		CourseID: courseID,
		Status:   status,
		Source:   source,
	}
	f.enrollments[userCourse{userID, courseID}] = e
	return e
}

func (f *fakeCatalog) enrollment(userID, courseID int64) *catalog.Enrollment {
	return f.enrollments[userCourse{userID, courseID}]
}

func (f *fakeCatalog) mutations() int {
	return f.enrollCalls + f.cancelCalls + f.statusCalls + f.sourceCalls
}

func (f *fakeCatalog) GetCourse(ctx context.Context, id int64) (*catalog.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, catalog.ErrCourseNotFound
	}
	return &c, nil
}

func (f *fakeCatalog) CoursesByIDs(ctx context.Context, ids []int64) ([]catalog.Course, error) {
	var out []catalog.Course
	for _, id := range ids {
		if c, ok := f.courses[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) CourseIDsInCategories(ctx context.Context, categoryIDs []int64) ([]int64, error) {
	want := make(map[int64]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		want[id] = struct{}{}
	}
	var out []int64
	for _, c := range f.courses {
		if !c.Published {
			continue
		}
		for _, cat := range c.CategoryIDs {
			if _, ok := want[cat]; ok {
				out = append(out, c.ID)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *fakeCatalog) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	c, ok := f.courses[bundleID]
	if !ok {
		return nil, catalog.ErrCourseNotFound
	}
	if c.Kind != catalog.KindBundle {
		return nil, catalog.ErrNotBundle
	}
	return f.bundles[bundleID], nil
}

func (f *fakeCatalog) GetEnrollment(ctx context.Context, userID, courseID int64) (*catalog.Enrollment, error) {
	e, ok := f.enrollments[userCourse{userID, courseID}]
	if !ok {
		return nil, catalog.ErrNotEnrolled
	}
	copied := *e
	return &copied, nil
}

func (f *fakeCatalog) ActiveEnrollments(ctx context.Context, userID int64) ([]catalog.Enrollment, error) {
	var out []catalog.Enrollment
	for key, e := range f.enrollments {
		if key.userID == userID && e.Enrolled() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (f *fakeCatalog) Enroll(ctx context.Context, userID, courseID int64) (*catalog.Enrollment, error) {
	if err := f.failEnroll[courseID]; err != nil {
		return nil, err
	}
	f.enrollCalls++

	key := userCourse{userID, courseID}
	if e, ok := f.enrollments[key]; ok {
		if !e.Enrolled() {
			e.Status = catalog.StatusActive
		}
		copied := *e
		return &copied, nil
	}

	f.nextID++
	e := &catalog.Enrollment{
		ID:        f.nextID,
		UserID:    userID,
		CourseID:  courseID,
		Status:    catalog.StatusActive,
		CreatedAt: time.Now(),
	}
	f.enrollments[key] = e
	copied := *e
	return &copied, nil
}

func (f *fakeCatalog) SetEnrollmentStatus(ctx context.Context, enrollmentID int64, status catalog.EnrollmentStatus) error {
	f.statusCalls++
	for _, e := range f.enrollments {
		if e.ID == enrollmentID {
			e.Status = status
			return nil
		}
	}
	return catalog.ErrEnrollmentNotFound
}

func (f *fakeCatalog) CancelEnrollment(ctx context.Context, userID, courseID int64) error {
	if err := f.failCancel[courseID]; err != nil {
		return err
	}
	if err := f.failCancelFor[userID]; err != nil {
		return err
	}

	e, ok := f.enrollments[userCourse{userID, courseID}]
	if !ok || !e.Enrolled() {
		return catalog.ErrNotEnrolled
	}
	f.cancelCalls++
	e.Status = catalog.StatusCancelled
	return nil
}

func (f *fakeCatalog) SetEnrollmentSource(ctx context.Context, enrollmentID int64, source catalog.EnrollmentSource, meta catalog.SourceMeta) error {
	f.sourceCalls++
	for _, e := range f.enrollments {
		if e.ID == enrollmentID {
			e.Source = source
			e.LevelID = meta.LevelID
			e.OrderID = meta.OrderID
			e.OrderCode = meta.OrderCode
			return nil
		}
	}
	return catalog.ErrEnrollmentNotFound
}

// newTestEngine wires an engine over fresh fakes with everything enabled.
func newTestEngine() (*Engine, *fakeBilling, *fakeCatalog) {
	fb := newFakeBilling()
	fc := newFakeCatalog()
	engine := NewEngine(fb, fc, StaticCapabilities{Catalog: true, Bundles: true}, Config{}, zap.NewNop())
	return engine, fb, fc
}
