// Package asset defines contributor-submitted media assets and their
// moderation lifecycle.
package asset

import (
	"strings"
	"time"
)

// Status is the moderation state of an asset. Assets enter the catalog
// as pending and leave that state exactly once; approved and rejected
// are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus normalizes a raw status string.
func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusApproved:
		return StatusApproved, true
	case StatusRejected:
		return StatusRejected, true
	}
	return "", false
}

// Kind is the media type of an asset.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindModel Kind = "3d"
)

// ValidKind reports whether k names a supported media kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindImage, KindVideo, KindModel:
		return true
	}
	return false
}

// Asset is a contributor submission awaiting or past moderation.
type Asset struct {
	ID             string    `json:"id" db:"id"`
	ContributorID  string    `json:"contributor_id" db:"contributor_id"`
	Title          string    `json:"title" db:"title"`
	Kind           Kind      `json:"kind" db:"kind"`
	Status         Status    `json:"status" db:"status"`
	RejectedReason *string   `json:"rejected_reason,omitempty" db:"rejected_reason"`
	StoragePath    string    `json:"storage_path" db:"storage_path"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
