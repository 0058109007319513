// Package models provides domain models for the closing notifier.
package models

import (
	"encoding/json"
	"strings"
)

// ClientRecord is one SISU client/transaction entity. Only ClientID is
// guaranteed; every other field may be absent.
type ClientRecord struct {
	ClientID           int64   `json:"client_id"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	Email              *string `json:"email"`
	ForecastedClosedDt *string `json:"forecasted_closed_dt"` // "Thu, 18 Sep 2025 00:00:00 GMT", ISO, ...
	StatusCode         *string `json:"status_code"`
	PipelineStatus     *string `json:"pipeline_status"`
}

// UnmarshalJSON accepts the list endpoint's "id" key when "client_id" is absent
// and tolerates null names.
func (c *ClientRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClientID           int64   `json:"client_id"`
		ID                 int64   `json:"id"`
		FirstName          *string `json:"first_name"`
		LastName           *string `json:"last_name"`
		Email              *string `json:"email"`
		ForecastedClosedDt *string `json:"forecasted_closed_dt"`
		StatusCode         *string `json:"status_code"`
		PipelineStatus     *string `json:"pipeline_status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = ClientRecord{
		ClientID:           raw.ClientID,
		FirstName:          deref(raw.FirstName),
		LastName:           deref(raw.LastName),
		Email:              raw.Email,
		ForecastedClosedDt: raw.ForecastedClosedDt,
		StatusCode:         raw.StatusCode,
		PipelineStatus:     raw.PipelineStatus,
	}
	if c.ClientID == 0 {
		c.ClientID = raw.ID
	}
	return nil
}

// DisplayName joins first and last name with a single space.
func (c ClientRecord) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
