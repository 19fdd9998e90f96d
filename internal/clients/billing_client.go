// internal/clients/billing_client.go
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/billing"
)

// BillingClient implements billing.Service over the billing query API.
type BillingClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewBillingClient(baseURL string) *BillingClient {
	return &BillingClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "billing",
			Timeout: 30 * time.Second,
			// Not-found sentinels are expected answers, not service
			// failures; they must not open the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, billing.ErrLevelNotFound) ||
					errors.Is(err, billing.ErrOrderNotFound)
			},
		}),
	}
}

func (c *BillingClient) GetLevel(ctx context.Context, id int64) (*billing.Level, error) {
	level := &billing.Level{}
	err := c.get(ctx, fmt.Sprintf("%s/levels/%d", c.baseURL, id), level, billing.ErrLevelNotFound)
	if err != nil {
		return nil, err
	}
	return level, nil
}

func (c *BillingClient) LevelsForUser(ctx context.Context, userID int64) ([]billing.Level, error) {
	var levels []billing.Level
	err := c.get(ctx, fmt.Sprintf("%s/users/%d/levels", c.baseURL, userID), &levels, nil)
	if err != nil {
		return nil, err
	}
	return levels, nil
}

func (c *BillingClient) RestrictedPageIDs(ctx context.Context, levelIDs []int64) ([]int64, error) {
	if len(levelIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	url := fmt.Sprintf("%s/levels/pages?level_ids=%s", c.baseURL, joinIDs(levelIDs))
	if err := c.get(ctx, url, &ids, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *BillingClient) BoundCourseIDs(ctx context.Context, levelIDs []int64) ([]int64, error) {
	if len(levelIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	url := fmt.Sprintf("%s/levels/bound-courses?level_ids=%s", c.baseURL, joinIDs(levelIDs))
	if err := c.get(ctx, url, &ids, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *BillingClient) GetOrder(ctx context.Context, id int64) (*billing.Order, error) {
	order := &billing.Order{}
	err := c.get(ctx, fmt.Sprintf("%s/orders/%d", c.baseURL, id), order, billing.ErrOrderNotFound)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (c *BillingClient) get(ctx context.Context, url string, out interface{}, notFound error) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, doJSON(ctx, c.http, http.MethodGet, url, nil, out, notFound)
	})
	return err
}
