package deadline

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"careerprep/pkg/constants"
)

// Provider is a calendar an event can be exported to
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
	ProviderApple   Provider = "apple"
)

const (
	calendarTimestampLayout = "20060102T150405Z"
	googleCalendarURL       = "https://calendar.google.com/calendar/render"
	outlookCalendarURL      = "https://outlook.live.com/calendar/0/deeplink/compose"
	icsProductID            = "-//CareerPrep//Deadlines//EN"
	icsContentType          = "text/calendar;charset=utf-8"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// CalendarEvent is a point-in-time event to export. A zero End means one hour
// after Start.
type CalendarEvent struct {
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
}

// ICSFile is a downloadable calendar file
type ICSFile struct {
	FileName    string
	ContentType string
	Content     string
}

// BuildCalendarURL returns an "add to calendar" link. Google and Outlook get a
// query-string URL; Apple gets a data: URL embedding the ICS text.
func (c *Classifier) BuildCalendarURL(event CalendarEvent, provider Provider) (string, error) {
	start := event.Start.UTC()
	end := event.End.UTC()
	if event.End.IsZero() {
		end = start.Add(constants.DefaultEventDuration)
	}

	switch provider {
	case ProviderGoogle:
		params := url.Values{}
		params.Set("action", "TEMPLATE")
		params.Set("text", event.Title)
		params.Set("dates", start.Format(calendarTimestampLayout)+"/"+end.Format(calendarTimestampLayout))
		params.Set("details", event.Description)
		params.Set("location", event.Location)
		return googleCalendarURL + "?" + params.Encode(), nil

	case ProviderOutlook:
		params := url.Values{}
		params.Set("path", "/calendar/action/compose")
		params.Set("rru", "addevent")
		params.Set("subject", event.Title)
		params.Set("startdt", start.Format(calendarTimestampLayout))
		params.Set("enddt", end.Format(calendarTimestampLayout))
		params.Set("body", event.Description)
		params.Set("location", event.Location)
		return outlookCalendarURL + "?" + params.Encode(), nil

	case ProviderApple:
		content := c.renderICS(event.Title, event.Description, event.Location, start, end)
		return "data:text/calendar;charset=utf8," + encodeURIComponent(content), nil
	}

	return "", fmt.Errorf("unknown calendar provider %q", provider)
}

// DownloadICS builds the deadline file offered for download. The event opens a
// reminder window one day before due and closes at due itself.
func (c *Classifier) DownloadICS(title string, due time.Time, description string) ICSFile {
	start := due.Add(-constants.ReminderWindow)

	return ICSFile{
		FileName:    SanitizeFileName(title) + "_deadline.ics",
		ContentType: icsContentType,
		Content:     c.renderICS(title, description, "", start, due),
	}
}

// SanitizeFileName replaces anything but ASCII letters and digits with an
// underscore and lower-cases the result.
func SanitizeFileName(title string) string {
	return strings.ToLower(unsafeFileChars.ReplaceAllString(title, "_"))
}

func (c *Classifier) renderICS(title, description, location string, start, end time.Time) string {
	cal := ics.NewCalendar()
	cal.SetProductId(icsProductID)
	cal.SetMethod(ics.MethodPublish)

	event := cal.AddEvent(uuid.New().String() + "@careerprep")
	event.SetDtStampTime(c.now().UTC())
	event.SetStartAt(start.UTC())
	event.SetEndAt(end.UTC())
	event.SetSummary(title)
	if description != "" {
		event.SetDescription(description)
	}
	if location != "" {
		event.SetLocation(location)
	}

	return cal.Serialize()
}

// encodeURIComponent escapes like the browser function of the same name, with
// spaces as %20 rather than +.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
