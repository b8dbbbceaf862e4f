package dispatcher

import (
	"time"

	"github.com/dustin/go-humanize"

	"zuppa/internal/store"
	"zuppa/internal/timeform"
	"zuppa/internal/transport"
)

const messageTitle = "Reminder"

// Render builds the outbound message for a reminder.
//
// The event time is decoration: when the stored value parses, the line shows
// an absolute UTC time plus a relative phrase; when it does not, the raw
// stored text is shown instead; when it is empty, the line is omitted. None
// of these cases may block delivery of the message body.
func Render(r store.Reminder, now time.Time) transport.Message {
	msg := transport.Message{
		Title: messageTitle,
		Body:  r.Message,
	}

	if r.EventAt == "" {
		return msg
	}

	eventAt, err := timeform.ParseStored(r.EventAt)
	if err != nil {
		msg.EventLine = "Event time: " + r.EventAt
		return msg
	}

	msg.EventLine = "Event: " + eventAt.Format("Mon, 02 Jan 2006 15:04 MST") +
		" (" + humanize.RelTime(eventAt, now, "ago", "from now") + ")"
	return msg
}
