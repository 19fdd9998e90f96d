// internal/clients/catalog_client.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/catalog"
)

// CatalogClient implements catalog.Service over the catalog API.
type CatalogClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "catalog",
			Timeout: 30 * time.Second,
			// Not-enrolled and not-found sentinels are the reconciler's
			// normal idempotency answers; they must not open the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, catalog.ErrCourseNotFound) ||
					errors.Is(err, catalog.ErrNotEnrolled) ||
					errors.Is(err, catalog.ErrEnrollmentNotFound)
			},
		}),
	}
}

func (c *CatalogClient) GetCourse(ctx context.Context, id int64) (*catalog.Course, error) {
	course := &catalog.Course{}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/courses/%d", c.baseURL, id), nil, course, catalog.ErrCourseNotFound)
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (c *CatalogClient) CoursesByIDs(ctx context.Context, ids []int64) ([]catalog.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var courses []catalog.Course
	url := fmt.Sprintf("%s/courses?ids=%s", c.baseURL, joinIDs(ids))
	if err := c.do(ctx, http.MethodGet, url, nil, &courses, nil); err != nil {
		return nil, err
	}
	return courses, nil
}

func (c *CatalogClient) CourseIDsInCategories(ctx context.Context, categoryIDs []int64) ([]int64, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	url := fmt.Sprintf("%s/courses?category_ids=%s", c.baseURL, joinIDs(categoryIDs))
	if err := c.do(ctx, http.MethodGet, url, nil, &ids, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *CatalogClient) BundleCourseIDs(ctx context.Context, bundleID int64) ([]int64, error) {
	var ids []int64
	url := fmt.Sprintf("%s/courses/%d/bundle-items", c.baseURL, bundleID)
	if err := c.do(ctx, http.MethodGet, url, nil, &ids, catalog.ErrCourseNotFound); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *CatalogClient) GetEnrollment(ctx context.Context, userID, courseID int64) (*catalog.Enrollment, error) {
	enrollment := &catalog.Enrollment{}
	url := fmt.Sprintf("%s/users/%d/enrollments/%d", c.baseURL, userID, courseID)
	if err := c.do(ctx, http.MethodGet, url, nil, enrollment, catalog.ErrNotEnrolled); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (c *CatalogClient) ActiveEnrollments(ctx context.Context, userID int64) ([]catalog.Enrollment, error) {
	var enrollments []catalog.Enrollment
	url := fmt.Sprintf("%s/users/%d/enrollments", c.baseURL, userID)
	if err := c.do(ctx, http.MethodGet, url, nil, &enrollments, nil); err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (c *CatalogClient) Enroll(ctx context.Context, userID, courseID int64) (*catalog.Enrollment, error) {
	enrollment := &catalog.Enrollment{}
	url := fmt.Sprintf("%s/users/%d/enrollments", c.baseURL, userID)
	body := map[string]int64{"course_id": courseID}
	if err := c.do(ctx, http.MethodPost, url, body, enrollment, nil); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (c *CatalogClient) SetEnrollmentStatus(ctx context.Context, enrollmentID int64, status catalog.EnrollmentStatus) error {
	url := fmt.Sprintf("%s/enrollments/%d/status", c.baseURL, enrollmentID)
	body := map[string]catalog.EnrollmentStatus{"status": status}
	return c.do(ctx, http.MethodPatch, url, body, nil, catalog.ErrEnrollmentNotFound)
}

func (c *CatalogClient) CancelEnrollment(ctx context.Context, userID, courseID int64) error {
	url := fmt.Sprintf("%s/users/%d/enrollments/%d", c.baseURL, userID, courseID)
	return c.do(ctx, http.MethodDelete, url, nil, nil, catalog.ErrNotEnrolled)
}

func (c *CatalogClient) SetEnrollmentSource(ctx context.Context, enrollmentID int64, source catalog.EnrollmentSource, meta catalog.SourceMeta) error {
	url := fmt.Sprintf("%s/enrollments/%d/source", c.baseURL, enrollmentID)
	body := struct {
		Source catalog.EnrollmentSource `json:"source"`
		Meta   catalog.SourceMeta       `json:"meta"`
	}{Source: source, Meta: meta}
	return c.do(ctx, http.MethodPatch, url, body, nil, catalog.ErrEnrollmentNotFound)
}

func (c *CatalogClient) do(ctx context.Context, method, url string, body, out interface{}, notFound error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, doJSON(ctx, c.http, method, url, body, out, notFound)
	})
	return err
}
