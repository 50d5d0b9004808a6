package models

import "time"

// SyncedReport records the outcome of one offline-queued submission.
// The fingerprint is content-derived on the client, so redelivering an
// already-accepted batch is safely ignorable.
type SyncedReport struct {
	Fingerprint string     `json:"fingerprint" gorm:"primaryKey"`
	ReporterID  string     `json:"reporter_id" gorm:"index;not null"`
	Filename    string     `json:"filename"`
	Status      string     `json:"status" gorm:"not null"` // accepted, rejected
	Reason      string     `json:"reason,omitempty"`
	BountyID    *string    `json:"bounty_id,omitempty" gorm:"index"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	ReceivedAt  time.Time  `json:"received_at" gorm:"autoCreateTime"`
}

const (
	SyncAccepted = "accepted"
	SyncRejected = "rejected"
)
