package deadline

import (
	"strings"
	"time"

	"careerprep/pkg/constants"
)

const (
	clockLayout     = "3:04 PM"
	monthDayLayout  = "Jan 2 at 3:04 PM"
	shortDateLayout = "Jan 2, 2006"
	fullDateLayout  = "Monday, January 2, 2006 at 3:04 PM"
)

// Formatted is a deadline rendered for display
type Formatted struct {
	Text         string    `json:"text"`
	Urgency      Urgency   `json:"urgency"`
	FullDate     string    `json:"full_date"`
	RelativeText string    `json:"relative_text"`
	Due          time.Time `json:"due"`
	Timezone     string    `json:"timezone"`
	Degraded     bool      `json:"degraded,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// FormatWithContext renders a timestamp with wording chosen by its urgency tier.
func (c *Classifier) FormatWithContext(timestamp string) Formatted {
	parsed := c.ToLocal(timestamp)
	now := c.reference(parsed)
	due := parsed.Time

	urgency := UrgencyNormal
	if strings.TrimSpace(timestamp) != "" {
		urgency = ClassifyUrgency(due, now)
	}
	relative := RelativeText(due, now)

	var text string
	switch urgency {
	case UrgencyOverdue:
		text = relative
	case UrgencyUrgent:
		text = "Due " + due.Format(clockLayout) + " today"
	case UrgencySoon:
		text = due.Format(monthDayLayout)
	default:
		text = due.Format(shortDateLayout)
	}

	return Formatted{
		Text:         text,
		Urgency:      urgency,
		FullDate:     due.Format(fullDateLayout),
		RelativeText: relative,
		Due:          due,
		Timezone:     c.Timezone(),
		Degraded:     parsed.Degraded,
		Reason:       parsed.Reason,
	}
}

// CalculateBusinessDeadline adds days to today and moves a weekend result to
// the following Monday, pinned to 17:00 local. The weekend shift is applied once.
func (c *Classifier) CalculateBusinessDeadline(days int) time.Time {
	target := c.Now().AddDate(0, 0, days)

	switch target.Weekday() {
	case time.Saturday:
		target = target.AddDate(0, 0, 2)
	case time.Sunday:
		target = target.AddDate(0, 0, 1)
	}

	y, m, d := target.Date()
	return time.Date(y, m, d, constants.BusinessDayEndHour, 0, 0, 0, c.loc)
}
