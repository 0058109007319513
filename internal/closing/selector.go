package closing

import (
	"time"

	"sisu-notifier/internal/models"
)

// UnknownBuyer is the display name used when a record has neither first nor last name.
const UnknownBuyer = "Unknown buyer"

// SelectMatches keeps the records whose closing date lies within windowDays of
// now. Records without a parseable date are skipped. Input order is preserved.
func SelectMatches(records []models.ClientRecord, windowDays int, now time.Time) []models.ClosingMatch {
	matches := make([]models.ClosingMatch, 0)
	for _, rec := range records {
		if rec.ForecastedClosedDt == nil {
			continue
		}
		days, ok := DaysUntil(rec.ForecastedClosedDt, now)
		if !ok || days < 0 || days > windowDays {
			continue
		}

		name := rec.DisplayName()
		if name == "" {
			name = UnknownBuyer
		}
		matches = append(matches, models.ClosingMatch{
			BuyerName:   name,
			Email:       rec.Email,
			ClosingDate: *rec.ForecastedClosedDt,
			DaysUntil:   days,
		})
	}
	return matches
}

// SelectMatches is SelectMatches evaluated against the evaluator's clock.
func (e Evaluator) SelectMatches(records []models.ClientRecord, windowDays int) []models.ClosingMatch {
	return SelectMatches(records, windowDays, e.Now())
}
