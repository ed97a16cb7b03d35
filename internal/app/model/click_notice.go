package model

import "time"

// ClickNotice is the payload published on the click stream after a click has
// been recorded in the LinkStore.
type ClickNotice struct {
	ID        string    `json:"id"`
	LinkCode  string    `json:"link_code"`
	Source    string    `json:"source,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-logger"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
