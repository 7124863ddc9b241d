package model

import "time"

// User is the authenticated Studio account.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Credentials are sent to the login and register endpoints.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name,omitempty"`
}

// AuthResponse is returned by a successful login or register call.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// Plan is a purchasable subscription tier.
type Plan struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	PriceCents    int64  `json:"price_cents" yaml:"price_cents"`
	Currency      string `json:"currency" yaml:"currency"`
	Interval      string `json:"interval" yaml:"interval"`
	AnalysesLimit int    `json:"analyses_limit" yaml:"analyses_limit"`
}

// Subscription is the caller's current plan binding.
type Subscription struct {
	PlanID           string    `json:"plan_id" yaml:"plan_id"`
	Status           string    `json:"status" yaml:"status"`
	CurrentPeriodEnd time.Time `json:"current_period_end" yaml:"current_period_end"`
	CancelAtEnd      bool      `json:"cancel_at_period_end" yaml:"cancel_at_period_end"`
}

// UsageLimits reports quota consumption for the current billing period.
type UsageLimits struct {
	Analyses           Usage     `json:"analyses" yaml:"analyses"`
	CompetitorAnalyses Usage     `json:"competitor_analyses" yaml:"competitor_analyses"`
	ResetsAt           time.Time `json:"resets_at" yaml:"resets_at"`
}

// Usage is a used/limit pair. A negative Limit means unlimited.
type Usage struct {
	Used  int `json:"used" yaml:"used"`
	Limit int `json:"limit" yaml:"limit"`
}

// Exhausted reports whether no further units are available.
func (u Usage) Exhausted() bool {
	return u.Limit >= 0 && u.Used >= u.Limit
}

// Remaining returns the units left, or -1 when unlimited.
func (u Usage) Remaining() int {
	if u.Limit < 0 {
		return -1
	}
	return max(u.Limit-u.Used, 0)
}
