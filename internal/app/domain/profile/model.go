// Package profile defines identity profiles and their roles.
package profile

import (
	"strings"
	"time"
)

// Role classifies what a profile may do within the marketplace.
type Role string

const (
	RoleUser        Role = "user"
	RoleContributor Role = "contributor"
	RoleAdmin       Role = "admin"
)

// ParseRole normalizes a raw role string to a Role. Unknown or empty
// values fall back to RoleUser so a malformed row can never grant
// privileges it does not name.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleContributor:
		return RoleContributor
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Tier ranks contributors for payout and badge purposes.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// ValidTier reports whether t names a known contributor tier.
func ValidTier(t Tier) bool {
	switch t {
	case TierBronze, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// Profile is the persisted record describing an authenticated identity.
// The zero ApplicationDate means no contributor application is on file.
type Profile struct {
	ID                 string     `json:"id" db:"id"`
	Role               Role       `json:"role" db:"role"`
	ContributorTier    *Tier      `json:"contributor_tier,omitempty" db:"contributor_tier"`
	ApplicationDate    *time.Time `json:"application_date,omitempty" db:"application_date"`
	ApplicationMessage string     `json:"application_message,omitempty" db:"application_message"`
	PortfolioURL       string     `json:"portfolio_url,omitempty" db:"portfolio_url"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// HasPendingApplication reports whether an application was submitted but
// not yet decided.
func (p Profile) HasPendingApplication() bool {
	return p.Role == RoleUser && p.ApplicationDate != nil
}
