package models

import "time"

// ChatScopeType names the kind of record a message thread hangs off.
const (
	ScopeBounty = "bounty"
	ScopeClan   = "clan"
)

// ChatMessage is one entry in an append-only, role-gated message log.
type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ScopeType string    `json:"scope_type" gorm:"index:idx_chat_scope;not null"`
	ScopeID   string    `json:"scope_id" gorm:"index:idx_chat_scope;not null"`
	SenderID  string    `json:"sender_id" gorm:"index;not null"`
	Text      string    `json:"text" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Clan is a named community group with a designated leader who may
// moderate the clan's message thread.
type Clan struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	Slug      string    `json:"slug" gorm:"index"`
	LeaderID  string    `json:"leader_id" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type ClanMember struct {
	ID       string    `json:"id" gorm:"primaryKey"`
	ClanID   string    `json:"clan_id" gorm:"uniqueIndex:idx_clan_member;not null"`
	UserID   string    `json:"user_id" gorm:"uniqueIndex:idx_clan_member;not null"`
	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}
