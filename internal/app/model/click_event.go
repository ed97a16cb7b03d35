package model

import "time"

const (
	DefaultClickSource   = "Direct / Unknown"
	DefaultClickLocation = "Unknown"
)

// ClickEvent is one successful resolution of a short code.
type ClickEvent struct {
	ID        uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	LinkCode  string    `json:"-" gorm:"size:16;not null;index"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
	Source    string    `json:"source,omitempty" gorm:"type:text"`
	Location  string    `json:"location,omitempty" gorm:"type:text"`
}

func (ClickEvent) TableName() string { return "link_clicks" }

// DisplaySource returns the referrer, or the placeholder used when none was sent.
func (e ClickEvent) DisplaySource() string {
	if e.Source == "" {
		return DefaultClickSource
	}
	return e.Source
}

// DisplayLocation returns the coarse location, or "Unknown".
func (e ClickEvent) DisplayLocation() string {
	if e.Location == "" {
		return DefaultClickLocation
	}
	return e.Location
}
