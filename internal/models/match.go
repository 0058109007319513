package models

// ClosingMatch is a ClientRecord that passed the closing-window filter.
type ClosingMatch struct {
	BuyerName   string  `json:"name"`
	Email       *string `json:"email"`
	ClosingDate string  `json:"closingDate"` // original string, for display
	DaysUntil   int     `json:"daysUntil"`
}

// EmailOr returns the match's email or fallback when absent.
func (m ClosingMatch) EmailOr(fallback string) string {
	if m.Email == nil || *m.Email == "" {
		return fallback
	}
	return *m.Email
}
