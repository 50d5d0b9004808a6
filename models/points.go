package models

import "time"

// PointAward is one ledger entry. Redemption lives in an external
// service; this ledger only records what the lifecycle hands out.
type PointAward struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	BountyID  string    `json:"bounty_id" gorm:"index"`
	Points    int64     `json:"points" gorm:"not null"`
	Reason    string    `json:"reason"` // e.g. "bounty_reported", "bounty_cleaned"
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// UserScore tracks running totals per user (denormalized for the
// leaderboard).
type UserScore struct {
	UserID           string    `json:"user_id" gorm:"primaryKey"`
	TotalPoints      int64     `json:"total_points" gorm:"default:0"`
	BountiesReported int64     `json:"bounties_reported" gorm:"default:0"`
	BountiesCleaned  int64     `json:"bounties_cleaned" gorm:"default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
