package models

import "time"

// BountyState is the bounty's position in the cleanup lifecycle.
// A rejected verification is not a resting state: the bounty returns
// to open so another claimant may attempt the cleanup.
type BountyState string

const (
	BountyOpen             BountyState = "open"
	BountyClaimed          BountyState = "claimed"
	BountyCleanupSubmitted BountyState = "cleanup_submitted"
	BountyVerified         BountyState = "verified"
)

// Bounty represents one reported waste site open for cleanup.
type Bounty struct {
	ID         string  `json:"id" gorm:"primaryKey"`
	Slug       string  `json:"slug" gorm:"index"`
	ReporterID string  `json:"reporter_id" gorm:"index;not null"`
	Latitude   float64 `json:"latitude" gorm:"not null"`
	Longitude  float64 `json:"longitude" gorm:"not null"`

	// Manual place hint for when automatic resolution fails.
	PlaceCity   string `json:"place_city,omitempty"`
	PlaceRegion string `json:"place_region,omitempty"`

	PointValue int64       `json:"point_value" gorm:"default:100"`
	State      BountyState `json:"state" gorm:"index;default:'open'"`
	ClaimantID *string     `json:"claimant_id,omitempty" gorm:"index"`

	ReportPhotoURL   string `json:"report_photo_url" gorm:"not null"`
	ReportProvenance string `json:"report_provenance" gorm:"not null"`
	BeforePhotoURL   string `json:"before_photo_url,omitempty"`
	BeforeProvenance string `json:"before_provenance,omitempty"`
	AfterPhotoURL    string `json:"after_photo_url,omitempty"`
	AfterProvenance  string `json:"after_provenance,omitempty"`

	// Newline-separated reasons from failed verifications.
	RejectionReasons string `json:"rejection_reasons,omitempty" gorm:"type:text"`
	RejectionCount   int    `json:"rejection_count" gorm:"default:0"`

	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated field (not stored in DB)
	DistanceKm float64 `json:"distance_km,omitempty" gorm:"-"`
}

// VerificationJob queues a submitted cleanup for the external
// verification engine. A bounty accumulates one job per attempt.
type VerificationJob struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	BountyID  string     `json:"bounty_id" gorm:"index;not null"`
	Status    string     `json:"status" gorm:"index;default:'pending'"` // pending, sent, done
	Attempts  int        `json:"attempts" gorm:"default:0"`
	LastError string     `json:"last_error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

const (
	VerificationPending = "pending"
	VerificationSent    = "sent"
	VerificationDone    = "done"
)
