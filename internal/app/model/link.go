package model

import "time"

// LinkRecord is one allocated short link. Apart from Clicks, every field is
// fixed at creation.
type LinkRecord struct {
	Code        string       `json:"shortcode" gorm:"primaryKey;size:16"`
	OriginalURL string       `json:"originalUrl" gorm:"type:text;not null"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"not null"`
	ExpiresAt   time.Time    `json:"expiresAt" gorm:"not null;index"`
	Clicks      []ClickEvent `json:"clicks" gorm:"foreignKey:LinkCode;references:Code"`
}

// TableName keeps the table name stable regardless of the Go type name.
func (LinkRecord) TableName() string { return "links" }

// Clone returns a deep copy so callers cannot mutate a store's click log.
func (r LinkRecord) Clone() LinkRecord {
	out := r
	out.Clicks = make([]ClickEvent, len(r.Clicks))
	copy(out.Clicks, r.Clicks)
	return out
}

// ExpiredAt reports whether the link no longer resolves at now.
func (r LinkRecord) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
