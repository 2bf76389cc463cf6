package deadline

import (
	"fmt"
	"strings"
	"time"

	"careerprep/pkg/constants"
)

// Urgency is the tier a deadline falls into relative to now
type Urgency string

const (
	UrgencyOverdue Urgency = "overdue"
	UrgencyUrgent  Urgency = "urgent"  // within 24 hours
	UrgencySoon    Urgency = "soon"    // within 72 hours
	UrgencyNormal  Urgency = "normal"
)

// ClassifyUrgency buckets the hours remaining until due.
func ClassifyUrgency(due, now time.Time) Urgency {
	hoursUntil := due.Sub(now).Hours()

	switch {
	case hoursUntil < 0:
		return UrgencyOverdue
	case hoursUntil <= constants.UrgentWindowHours:
		return UrgencyUrgent
	case hoursUntil <= constants.SoonWindowHours:
		return UrgencySoon
	default:
		return UrgencyNormal
	}
}

// ClassifyDueDate classifies a raw timestamp. A missing due date is normal;
// an unparseable one is evaluated as "now".
func (c *Classifier) ClassifyDueDate(timestamp string) Urgency {
	if strings.TrimSpace(timestamp) == "" {
		return UrgencyNormal
	}
	parsed := c.ToLocal(timestamp)
	return ClassifyUrgency(parsed.Time, c.reference(parsed))
}

// reference is the "now" a parsed deadline is measured against. A degraded
// parse already holds now, so it is reused rather than re-read.
func (c *Classifier) reference(parsed Parsed) time.Time {
	if parsed.Degraded {
		return parsed.Time
	}
	return c.Now()
}

// RelativeText phrases due relative to now, e.g. "Due in 3 hours" or
// "Overdue by 2 days". Calendar days are taken in due's location.
func RelativeText(due, now time.Time) string {
	now = now.In(due.Location())
	diff := due.Sub(now)

	switch {
	case sameDay(due, now):
		hours := int(diff.Hours())
		minutes := int(diff.Minutes())
		if diff < 0 {
			if hours == 0 {
				return fmt.Sprintf("Overdue by %d minutes", abs(minutes))
			}
			return fmt.Sprintf("Overdue by %d hours", abs(hours))
		}
		if hours == 0 {
			return fmt.Sprintf("Due in %d minutes", minutes)
		}
		return fmt.Sprintf("Due in %d hours", hours)

	case sameDay(due, now.AddDate(0, 0, 1)):
		return "Due tomorrow at " + due.Format(clockLayout)

	case sameDay(due, now.AddDate(0, 0, -1)):
		return "Overdue by 1 day"
	}

	days := wholeDays(due, now)
	if days < 0 {
		return fmt.Sprintf("Overdue by %d days", abs(days))
	}
	return fmt.Sprintf("Due in %d days", days)
}

// RelativeText phrases a parsed deadline against the classifier's clock.
func (c *Classifier) RelativeText(due time.Time) string {
	return RelativeText(due.In(c.loc), c.Now())
}

// wholeDays counts the full days from now to due on the wall clock of due's
// location, truncated toward zero. A day spanning a DST change still counts
// as one day.
func wholeDays(due, now time.Time) int {
	dy, dm, dd := due.Date()
	ny, nm, nd := now.Date()
	days := int(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC).Sub(time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)).Hours() / 24)

	switch {
	case days > 0 && clock(due) < clock(now):
		days--
	case days < 0 && clock(due) > clock(now):
		days++
	}
	return days
}

// clock is the wall-clock offset of t from its local midnight.
func clock(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
