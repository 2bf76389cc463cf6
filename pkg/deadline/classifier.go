// Package deadline turns UTC deadline timestamps into timezone-local urgency
// tiers, human-readable relative text and calendar exports.
//
// Every operation is a pure computation over the injected clock. Invalid input
// never produces an error: it degrades to "now" and reports why on the result.
package deadline

import (
	"os"
	"strings"
	"time"
	_ "time/tzdata"
)

// Classifier evaluates deadlines in a single timezone against a clock.
type Classifier struct {
	loc *time.Location
	now func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock replaces time.Now as the reference clock.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		c.now = now
	}
}

// NewClassifier builds a classifier for the IANA zone tz. An empty tz resolves
// the runtime zone; an unknown zone falls back to UTC.
func NewClassifier(tz string, opts ...Option) *Classifier {
	if tz == "" {
		tz = ResolveLocalTimezone()
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	c := &Classifier{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timezone returns the IANA name the classifier evaluates in.
func (c *Classifier) Timezone() string {
	return c.loc.String()
}

// Location returns the classifier's zone.
func (c *Classifier) Location() *time.Location {
	return c.loc
}

// Now returns the reference time in the classifier's zone.
func (c *Classifier) Now() time.Time {
	return c.now().In(c.loc)
}

// ResolveLocalTimezone reports the runtime's timezone identifier. TZ wins when
// it names a loadable zone; otherwise the process-local zone is used, and UTC
// when the runtime cannot name it.
func ResolveLocalTimezone() string {
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}

// Parsed is a deadline converted to local time. Degraded is set when the input
// could not be parsed and Time holds the fallback "now".
type Parsed struct {
	Time     time.Time
	Degraded bool
	Reason   string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToLocal parses an ISO-8601 timestamp and converts it to the classifier's zone.
// Timestamps without an offset are read as UTC.
func (c *Classifier) ToLocal(timestamp string) Parsed {
	value := strings.TrimSpace(timestamp)
	if value == "" {
		return Parsed{Time: c.Now(), Degraded: true, Reason: "empty timestamp"}
	}

	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return Parsed{Time: t.In(c.loc)}
		}
	}

	return Parsed{Time: c.Now(), Degraded: true, Reason: "unparseable timestamp " + value}
}
