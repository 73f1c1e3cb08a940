package calendar

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_Valid(t *testing.T) {
	email := "someone@example.com"
	event, err := NewEvent(EventInput{
		Title:       "Test Title",
		Description: "Test Description",
		StartTime:   "2025-07-01T10:00:00",
		EndTime:     "2025-07-01T11:00:00",
		Recurrence:  "weekly",
		Email:       &email,
	})
	require.NoError(t, err)

	assert.Equal(t, "Test Title", event.Title)
	assert.Equal(t, "Test Description", event.Description)
	assert.Equal(t, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), event.StartTime)
	assert.Equal(t, time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC), event.EndTime)
	assert.Equal(t, RecurrenceWeekly, event.Recurrence)
	assert.Equal(t, &email, event.Email)
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err, "generated id should be a uuid")
}

func TestNewEvent_Defaults(t *testing.T) {
	event, err := NewEvent(EventInput{
		Title:     "Title",
		StartTime: "2025-07-01T10:00:00",
		EndTime:   "2025-07-01T11:00:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "", event.Description)
	assert.Equal(t, RecurrenceNone, event.Recurrence)
	assert.Nil(t, event.Email)
}

func TestNewEvent_KeepsSuppliedId(t *testing.T) {
	event, err := NewEvent(EventInput{
		ID:        "fixed-id",
		Title:     "Title",
		StartTime: "2025-07-01T10:00:00",
		EndTime:   "2025-07-01T11:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", event.ID)
}

func TestNewEvent_GeneratesDistinctIds(t *testing.T) {
	in := EventInput{Title: "Title", StartTime: "2025-07-01T10:00:00", EndTime: "2025-07-01T11:00:00"}
	first, err := NewEvent(in)
	require.NoError(t, err)
	second, err := NewEvent(in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestNewEvent_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		input   EventInput
		message string
	}{
		{
			name:    "missing title",
			input:   EventInput{StartTime: "2025-07-01T10:00:00", EndTime: "2025-07-01T11:00:00"},
			message: "title, start time and end time are required",
		},
		{
			name:    "blank title",
			input:   EventInput{Title: "   ", StartTime: "2025-07-01T10:00:00", EndTime: "2025-07-01T11:00:00"},
			message: "title, start time and end time are required",
		},
		{
			name:    "missing start",
			input:   EventInput{Title: "Title", EndTime: "2025-07-01T11:00:00"},
			message: "title, start time and end time are required",
		},
		{
			name:    "missing end",
			input:   EventInput{Title: "Title", StartTime: "2025-07-01T10:00:00"},
			message: "title, start time and end time are required",
		},
		{
			name:    "invalid start",
			input:   EventInput{Title: "Title", StartTime: "invalid-time", EndTime: "2025-07-01T11:00:00"},
			message: "start time and end time must be valid ISO 8601 datetime strings",
		},
		{
			name:    "invalid end",
			input:   EventInput{Title: "Title", StartTime: "2025-07-01T10:00:00", EndTime: "another-invalid-time"},
			message: "start time and end time must be valid ISO 8601 datetime strings",
		},
		{
			name:    "start after end",
			input:   EventInput{Title: "Title", StartTime: "2025-07-01T11:00:00", EndTime: "2025-07-01T10:00:00"},
			message: "start must precede end",
		},
		{
			name:    "start equal to end",
			input:   EventInput{Title: "Title", StartTime: "2025-07-01T10:00:00", EndTime: "2025-07-01T10:00:00"},
			message: "start must precede end",
		},
		{
			name:    "unknown recurrence",
			input:   EventInput{Title: "Title", StartTime: "2025-07-01T10:00:00", EndTime: "2025-07-01T11:00:00", Recurrence: "yearly"},
			message: "recurrence must be one of",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := NewEvent(tc.input)

			assert.Nil(t, event)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestNewEvent_NormalizesTimes(t *testing.T) {
	offsetStart := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC).In(time.Local)
	expectedOffsetStart := time.Date(offsetStart.Year(), offsetStart.Month(), offsetStart.Day(), offsetStart.Hour(), offsetStart.Minute(), 0, 0, time.UTC)

	testCases := []struct {
		name  string
		start string
		want  time.Time
	}{
		{"canonical", "2025-07-01T10:00:00", time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)},
		{"microseconds are kept", "2025-07-01T10:00:00.123456", time.Date(2025, 7, 1, 10, 0, 0, 123456000, time.UTC)},
		{"finer precision is truncated to microseconds", "2025-07-01T10:00:00.123456789", time.Date(2025, 7, 1, 10, 0, 0, 123456000, time.UTC)},
		{"space separator", "2025-07-01 10:00:00", time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)},
		{"without seconds", "2025-07-01T10:00", time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)},
		{"date only", "2025-07-01", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"offset converted to local wall clock", "2025-07-01T08:00:00Z", expectedOffsetStart},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := NewEvent(EventInput{Title: "Title", StartTime: tc.start, EndTime: "2025-07-03T00:00:00"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, event.StartTime)
			assert.Equal(t, FormatTime(tc.want), event.Record().StartTime)
		})
	}
}

func TestNewEvent_SubSecondOrdering(t *testing.T) {
	event, err := NewEvent(EventInput{Title: "Blink", StartTime: "2025-07-01T10:00:00.2", EndTime: "2025-07-01T10:00:00.8"})
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01T10:00:00.200000", event.Record().StartTime)
	assert.Equal(t, "2025-07-01T10:00:00.800000", event.Record().EndTime)

	_, err = NewEvent(EventInput{Title: "Blink", StartTime: "2025-07-01T10:00:00.8", EndTime: "2025-07-01T10:00:00.2"})
	assert.True(t, IsValidationError(err))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "2025-07-01T10:00:00", FormatTime(time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-07-01T10:00:00.050000", FormatTime(time.Date(2025, 7, 1, 10, 0, 0, 50000000, time.UTC)))
}

func TestEvent_RecordRoundTrip(t *testing.T) {
	email := "someone@example.com"
	inputs := []EventInput{
		{Title: "Meeting", Description: "Project X", StartTime: "2025-07-02T09:30:00", EndTime: "2025-07-02T10:30:00"},
		{Title: "Standup", StartTime: "2025-07-02T09:00:00", EndTime: "2025-07-02T09:15:00", Recurrence: "daily", Email: &email},
		{Title: "Review", StartTime: "2025-07-02T09:00:00.999", EndTime: "2025-07-03T09:00:00", Recurrence: "monthly"},
	}

	for _, in := range inputs {
		t.Run(in.Title, func(t *testing.T) {
			original, err := NewEvent(in)
			require.NoError(t, err)

			record := original.Record()
			assert.Equal(t, original.ID, record.ID)
			assert.Equal(t, string(original.Recurrence), record.Recurrence)

			recreated, err := EventFromRecord(record)
			require.NoError(t, err)
			assert.Equal(t, *original, recreated)
			assert.Equal(t, record, recreated.Record())
		})
	}
}

func TestEventFromRecord_TrustsStoredRecords(t *testing.T) {
	// inverted times and an unknown rule are not re-validated
	event, err := EventFromRecord(Record{
		ID:         "stored",
		Title:      "",
		StartTime:  "2025-07-01T11:00:00",
		EndTime:    "2025-07-01T10:00:00",
		Recurrence: "yearly",
	})
	require.NoError(t, err)
	assert.Equal(t, Recurrence("yearly"), event.Recurrence)

	event, err = EventFromRecord(Record{ID: "legacy", Title: "Legacy", StartTime: "2025-07-01T10:00:00", EndTime: "2025-07-01T11:00:00"})
	require.NoError(t, err)
	assert.Equal(t, RecurrenceNone, event.Recurrence)

	_, err = EventFromRecord(Record{ID: "broken", Title: "Broken", StartTime: "nope", EndTime: "2025-07-01T11:00:00"})
	assert.Error(t, err)
}
