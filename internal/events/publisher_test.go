package events

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderReturnsCopy(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), AppointmentEvent{Type: AppointmentCreated, AppointmentID: "a1"}))
	require.NoError(t, r.Publish(context.Background(), AppointmentEvent{Type: AppointmentCancelled, AppointmentID: "a1"}))

	got := r.Events()
	require.Len(t, got, 2)
	got[0].Type = "mutated"
	assert.Equal(t, AppointmentCreated, r.Events()[0].Type)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), AppointmentEvent{}))
	assert.NoError(t, p.Close())
}

func TestAppointmentEventJSON(t *testing.T) {
	at := time.Date(2025, 6, 10, 4, 30, 0, 0, time.UTC)
	body, err := json.Marshal(AppointmentEvent{
		Type:            AppointmentNoShow,
		AppointmentID:   "a1",
		DoctorID:        "d1",
		PatientID:       "p1",
		Status:          "no_show",
		AppointmentDate: at,
		OccurredAt:      at,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "appointment.no_show",
		"appointmentId": "a1",
		"doctorId": "d1",
		"patientId": "p1",
		"status": "no_show",
		"appointmentDate": "2025-06-10T04:30:00Z",
		"occurredAt": "2025-06-10T04:30:00Z"
	}`, string(body))
}
