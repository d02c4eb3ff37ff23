package membership

import (
	"context"
	"math"
	"time"
)

// Interval is a subscription billing interval.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Context is the viewer's eligibility for member pricing, resolved once per
// request and treated as read-only input everywhere else.
type Context struct {
	IsSubscribed    bool
	BillingInterval Interval
	// IsLocked and DaysUntilUnlock gate service access for new members.
	// They do not affect cart pricing.
	IsLocked        bool
	DaysUntilUnlock int
}

// Record is a stored subscription row.
type Record struct {
	CustomerID      string
	Active          bool
	BillingInterval Interval
	UnlocksAt       *time.Time
}

// FromRecord derives the membership context for a stored subscription at now.
func FromRecord(r Record, now time.Time) Context {
	if !r.Active {
		return Context{}
	}
	c := Context{
		IsSubscribed:    true,
		BillingInterval: r.BillingInterval,
	}
	if r.UnlocksAt != nil && now.Before(*r.UnlocksAt) {
		c.IsLocked = true
		c.DaysUntilUnlock = int(math.Ceil(r.UnlocksAt.Sub(now).Hours() / 24))
	}
	return c
}

// Source resolves the membership context of a customer. An unknown or empty
// customer id resolves to a non-subscriber without error.
type Source interface {
	Lookup(ctx context.Context, customerID string) (Context, error)
}

// Repository loads subscription records.
type Repository interface {
	// FindByCustomer returns (nil, nil) when the customer has no record.
	FindByCustomer(ctx context.Context, customerID string) (*Record, error)
}

// RepoSource implements Source on top of a Repository.
type RepoSource struct {
	repo Repository
	now  func() time.Time
}

// NewRepoSource creates a RepoSource backed by the given Repository.
func NewRepoSource(repo Repository) *RepoSource {
	return &RepoSource{repo: repo, now: time.Now}
}

// Lookup implements Source.
func (s *RepoSource) Lookup(ctx context.Context, customerID string) (Context, error) {
	if customerID == "" {
		return Context{}, nil
	}
	rec, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		return Context{}, err
	}
	if rec == nil {
		return Context{}, nil
	}
	return FromRecord(*rec, s.now()), nil
}
