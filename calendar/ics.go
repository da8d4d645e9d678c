// Package calendar renders sessions as an iCalendar feed so the timeline can be
// subscribed to from any calendar client.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/warp/lesson-engine/lessons"
)

// ProductID identifies the generator in the PRODID property.
const ProductID = "-//warp//lesson-engine//EN"

// floatingLayout writes wall-clock times without a zone. Session times are
// naive, so the client shows them in its own local time unchanged.
const floatingLayout = "20060102T150405"

// uidDomain suffixes session ids to build globally unique UIDs.
const uidDomain = "lesson-engine"

// Export serializes sessions into a VCALENDAR named name. stamp is written as
// DTSTAMP on every event.
func Export(sessions []lessons.Session, name string, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, s := range sessions {
		ev := cal.AddEvent(s.ID + "@" + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetProperty(ical.ComponentPropertyDtStart, s.Start.Format(floatingLayout))
		ev.SetProperty(ical.ComponentPropertyDtEnd, s.End.Format(floatingLayout))
		ev.SetSummary(summary(s))
		if s.Location != "" {
			ev.SetLocation(s.Location)
		}
		ev.SetDescription(description(s))
		if s.Color != "" {
			ev.SetProperty(ical.ComponentProperty("COLOR"), s.Color)
		}
	}
	return cal.Serialize()
}

func summary(s lessons.Session) string {
	if s.PersonName == "" {
		return s.Title
	}
	return fmt.Sprintf("%s (%s)", s.Title, s.PersonName)
}

func description(s lessons.Session) string {
	var b strings.Builder
	if s.PersonGrade != "" {
		fmt.Fprintf(&b, "Grade: %s\n", s.PersonGrade)
	}
	fmt.Fprintf(&b, "Price: %s", s.Price.StringFixed(2))
	if s.Description != "" {
		b.WriteString("\n")
		b.WriteString(s.Description)
	}
	return b.String()
}
