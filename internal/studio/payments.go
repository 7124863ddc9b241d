package studio

import (
	"context"
	"net/http"

	"github.com/virail/studio/internal/model"
)

const (
	plansPath        = "/api/v1/payments/plans"
	subscriptionPath = "/api/v1/payments/subscription"
	usageLimitsPath  = "/api/v1/usage/limits"
)

// Plans lists the purchasable plans.
func (c *Client) Plans(ctx context.Context) ([]model.Plan, error) {
	var out struct {
		Plans []model.Plan `json:"plans"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: plansPath}, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// Subscription returns the caller's current subscription.
func (c *Client) Subscription(ctx context.Context) (*model.Subscription, error) {
	var out model.Subscription
	if err := c.do(ctx, request{method: http.MethodGet, path: subscriptionPath}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe moves the caller onto the given plan.
func (c *Client) Subscribe(ctx context.Context, planID string) (*model.Subscription, error) {
	req, err := jsonRequest(http.MethodPost, subscriptionPath, map[string]string{"plan_id": planID})
	if err != nil {
		return nil, err
	}

	var out model.Subscription
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelSubscription cancels the caller's subscription at the end of the period.
func (c *Client) CancelSubscription(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, path: subscriptionPath}, nil)
}

// UsageLimits returns quota consumption for the current billing period.
func (c *Client) UsageLimits(ctx context.Context) (*model.UsageLimits, error) {
	var out model.UsageLimits
	if err := c.do(ctx, request{method: http.MethodGet, path: usageLimitsPath}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
