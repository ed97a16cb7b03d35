package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sifan077/SnapLink/internal/app/model"
)

// Row statuses reported by POST /api/links.
const (
	RowCreated = "created"
	RowInvalid = "invalid"
	RowSkipped = "skipped"
	RowFailed  = "failed"
)

var errValidityType = errors.New("validity must be a number or a string")

// Validity accepts either a JSON number or a JSON string and keeps the raw
// text for the validator.
type Validity string

func (v *Validity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Validity(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errValidityType
	}
	*v = Validity(n.String())
	return nil
}

// CreateLinkItem is one row of a create batch.
type CreateLinkItem struct {
	OriginalURL string   `json:"originalUrl"`
	Validity    Validity `json:"validity,omitempty"`
	Shortcode   string   `json:"shortcode,omitempty"`
}

// CreateLinksRequest represents the request body for creating links.
type CreateLinksRequest struct {
	Links []CreateLinkItem `json:"links"`
}

// ClickResponse is one click as shown in statistics.
type ClickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	Shortcode   string          `json:"shortcode"`
	ShortURL    string          `json:"shortUrl"`
	OriginalURL string          `json:"originalUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	Expired     bool            `json:"expired"`
	ClickCount  int             `json:"clickCount"`
	Clicks      []ClickResponse `json:"clicks"`
}

// RowResponse reports what happened to one row of a create batch.
type RowResponse struct {
	Row    int           `json:"row"`
	Status string        `json:"status"`
	Link   *LinkResponse `json:"link,omitempty"`
	Errors []string      `json:"errors,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func newLinkResponse(link model.LinkRecord, baseURL string, now time.Time) LinkResponse {
	clicks := make([]ClickResponse, len(link.Clicks))
	for i, c := range link.Clicks {
		clicks[i] = ClickResponse{
			Timestamp: c.Timestamp,
			Source:    c.DisplaySource(),
			Location:  c.DisplayLocation(),
		}
	}
	return LinkResponse{
		Shortcode:   link.Code,
		ShortURL:    strings.TrimRight(baseURL, "/") + "/" + link.Code,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		Expired:     link.ExpiredAt(now),
		ClickCount:  len(link.Clicks),
		Clicks:      clicks,
	}
}
