// Package plan defines subscription plans, discount windows and user
// subscriptions.
package plan

import "time"

// Interval is the billing cadence of a plan.
type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// ValidInterval reports whether i names a supported billing interval.
func ValidInterval(i Interval) bool {
	return i == IntervalMonthly || i == IntervalYearly
}

// Plan is a purchasable subscription tier.
type Plan struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	PriceCents    int64     `json:"price_cents" db:"price_cents"`
	Interval      Interval  `json:"interval" db:"interval"`
	DownloadLimit int       `json:"download_limit" db:"download_limit"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DiscountWindow lowers a plan's price by a percentage while open.
type DiscountWindow struct {
	ID       string    `json:"id" db:"id"`
	PlanID   string    `json:"plan_id" db:"plan_id"`
	Percent  int       `json:"percent" db:"percent"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`
}

// Open reports whether the window covers the given instant.
func (w DiscountWindow) Open(at time.Time) bool {
	return !at.Before(w.StartsAt) && at.Before(w.EndsAt)
}

// EffectivePrice returns the plan price after applying the best discount
// window open at the given instant.
func EffectivePrice(p Plan, windows []DiscountWindow, at time.Time) int64 {
	best := 0
	for _, w := range windows {
		if w.PlanID == p.ID && w.Open(at) && w.Percent > best {
			best = w.Percent
		}
	}
	if best <= 0 {
		return p.PriceCents
	}
	if best > 100 {
		best = 100
	}
	return p.PriceCents - p.PriceCents*int64(best)/100
}

// Subscription records a user's purchase of a plan at a point-in-time
// effective price.
type Subscription struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	PlanID         string    `json:"plan_id" db:"plan_id"`
	PricePaidCents int64     `json:"price_paid_cents" db:"price_paid_cents"`
	Active         bool      `json:"active" db:"active"`
	StartedAt      time.Time `json:"started_at" db:"started_at"`
	CanceledAt     *time.Time `json:"canceled_at,omitempty" db:"canceled_at"`
}
