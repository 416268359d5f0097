package model

import "time"

// LinkingCode is a short-lived one-time code pairing an account with a LINE
// user. A code starts with Used=false, flips to Used=true on redemption, or
// expires and is removed by the daily sweep. At most one unissued code exists per user;
// issuing a new one deletes the old.
type LinkingCode struct {
	Code             string `gorm:"primaryKey"`
	UserID           string `gorm:"index"`
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Used             bool `gorm:"default:false"`
	UsedAt           *time.Time
	LinkedLineUserID string
}

// PendingLineUser is a LINE account that added the bot as a friend but has
// not redeemed a linking code yet.
type PendingLineUser struct {
	LineUserID  string `gorm:"primaryKey"`
	DisplayName string
	PictureURL  string
	AddedAt     time.Time
}
