package report

import "fmt"

// Urgency is a coarse presentation band derived from the days until closing.
// It never affects which records are selected.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
)

// UrgencyFor returns the band for a single offset: <=2 high, 3-5 medium, >5 low.
func UrgencyFor(days int) Urgency {
	switch {
	case days <= 2:
		return UrgencyHigh
	case days <= 5:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func (u Urgency) String() string {
	switch u {
	case UrgencyHigh:
		return "high"
	case UrgencyMedium:
		return "medium"
	default:
		return "low"
	}
}

// Marker returns the visual marker shown next to each item.
func (u Urgency) Marker() string {
	switch u {
	case UrgencyHigh:
		return "🚨"
	case UrgencyMedium:
		return "⚠️"
	default:
		return "🏠"
	}
}

// SubjectPrefix returns the emphasis placed in front of the subject line.
func (u Urgency) SubjectPrefix() string {
	if u == UrgencyHigh {
		return "🚨 URGENT: "
	}
	return u.Marker() + " "
}

// DayPhrase renders an offset for humans.
func DayPhrase(days int) string {
	switch days {
	case 0:
		return "TODAY"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
