package timeform

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		wall    string
		offset  int
		lead    int
		eventAt string
		dueAt   string
	}{
		// The reference example: UTC-5 client reports +300.
		{name: "west of utc", wall: "2023-10-27T14:30", offset: 300, lead: 30, eventAt: "2023-10-27T19:30:00Z", dueAt: "2023-10-27T19:00:00Z"},
		// East of UTC the browser reports a negative offset.
		{name: "east of utc", wall: "2023-10-27T14:30", offset: -60, lead: 15, eventAt: "2023-10-27T13:30:00Z", dueAt: "2023-10-27T13:15:00Z"},
		{name: "utc client", wall: "2024-01-01T00:00", offset: 0, lead: 0, eventAt: "2024-01-01T00:00:00Z", dueAt: "2024-01-01T00:00:00Z"},
		{name: "lead crosses midnight", wall: "2024-03-10T00:10", offset: 0, lead: 30, eventAt: "2024-03-10T00:10:00Z", dueAt: "2024-03-09T23:40:00Z"},
		{name: "offset crosses date line", wall: "2024-06-15T23:30", offset: 720, lead: 0, eventAt: "2024-06-16T11:30:00Z", dueAt: "2024-06-16T11:30:00Z"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			due, event, err := Normalize(tt.wall, tt.offset, tt.lead)
			if err != nil {
				t.Fatalf("Normalize(%q, %d, %d) error: %v", tt.wall, tt.offset, tt.lead, err)
			}
			wantEvent, _ := time.Parse(time.RFC3339, tt.eventAt)
			wantDue, _ := time.Parse(time.RFC3339, tt.dueAt)
			if !event.Equal(wantEvent) {
				t.Fatalf("eventAt = %v, want %v", event, wantEvent)
			}
			if !due.Equal(wantDue) {
				t.Fatalf("dueAt = %v, want %v", due, wantDue)
			}
			if got := event.Sub(due); got != time.Duration(tt.lead)*time.Minute {
				t.Fatalf("eventAt - dueAt = %v, want %d minutes", got, tt.lead)
			}
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		wall   string
		offset int
		lead   int
	}{
		{name: "empty", wall: "", offset: 0, lead: 0},
		{name: "date only", wall: "2023-10-27", offset: 0, lead: 0},
		{name: "with seconds", wall: "2023-10-27T14:30:00", offset: 0, lead: 0},
		{name: "garbage", wall: "tomorrow at noon", offset: 0, lead: 0},
		{name: "offset too far west", wall: "2023-10-27T14:30", offset: 1441, lead: 0},
		{name: "offset too far east", wall: "2023-10-27T14:30", offset: -1441, lead: 0},
		{name: "negative lead", wall: "2023-10-27T14:30", offset: 0, lead: -1},
		{name: "absurd lead", wall: "2023-10-27T14:30", offset: 0, lead: 600 * 24 * 60},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize(tt.wall, tt.offset, tt.lead)
			if err == nil {
				t.Fatalf("Normalize(%q, %d, %d) succeeded, want error", tt.wall, tt.offset, tt.lead)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("error %v is not ErrInvalidInput", err)
			}
		})
	}
}
