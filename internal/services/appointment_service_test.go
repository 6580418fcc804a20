package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ehospital-server/internal/events"
	"ehospital-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAppointment_SecondBookingOfSameSlotConflicts(t *testing.T) {
	f := newFixture(t)
	slot := ist(2025, 6, 10, 10, 0)

	first := f.book(t, slot)
	assert.Equal(t, models.StatusScheduled, first.Status)
	assert.Empty(t, first.Notes)

	_, err := f.svc.Create(context.Background(), f.patient2ID, CreateAppointmentInput{
		DoctorID:      f.doctor.ID,
		AppointmentAt: slot.Format(time.RFC3339),
		Reason:        "Headache",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var count int64
	require.NoError(t, f.db.Model(&models.Appointment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateAppointment_DifferentMinuteIsNotAConflict(t *testing.T) {
	f := newFixture(t)

	first := f.book(t, ist(2025, 6, 10, 10, 0))
	assert.Equal(t, models.StatusScheduled, first.Status)

	conflict, err := f.svc.Conflicts.HasConflict(context.Background(), f.doctor.ID, ist(2025, 6, 10, 10, 30))
	require.NoError(t, err)
	assert.False(t, conflict)

	second := f.bookFor(t, f.patient2ID, ist(2025, 6, 10, 10, 30))
	assert.Equal(t, models.StatusScheduled, second.Status)
}

func TestCreateAppointment_RejectsPastWithoutWriting(t *testing.T) {
	f := newFixture(t)
	yesterday := f.now.AddDate(0, 0, -1)

	_, err := f.svc.Create(context.Background(), f.patientID, CreateAppointmentInput{
		DoctorID:      f.doctor.ID,
		AppointmentAt: yesterday.Format(time.RFC3339),
		Reason:        "Checkup",
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	var count int64
	require.NoError(t, f.db.Model(&models.Appointment{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.events.Events())
}

func TestCreateAppointment_RejectsCurrentInstant(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.patientID, CreateAppointmentInput{
		DoctorID:      f.doctor.ID,
		AppointmentAt: f.now.Format(time.RFC3339),
		Reason:        "Checkup",
	})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestCreateAppointment_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor models.Identity
		in    CreateAppointmentInput
		kind  ErrorKind
	}{
		{
			name:  "missing reason",
			actor: f.patientID,
			in:    CreateAppointmentInput{DoctorID: f.doctor.ID, Date: "2025-06-10", Time: "10:00", Reason: "  "},
			kind:  KindValidation,
		},
		{
			name:  "missing time",
			actor: f.patientID,
			in:    CreateAppointmentInput{DoctorID: f.doctor.ID, Date: "2025-06-10", Reason: "Checkup"},
			kind:  KindValidation,
		},
		{
			name:  "malformed date",
			actor: f.patientID,
			in:    CreateAppointmentInput{DoctorID: f.doctor.ID, Date: "10/06/2025", Time: "10:00", Reason: "Checkup"},
			kind:  KindValidation,
		},
		{
			name:  "malformed rfc3339",
			actor: f.patientID,
			in:    CreateAppointmentInput{DoctorID: f.doctor.ID, AppointmentAt: "tomorrow", Reason: "Checkup"},
			kind:  KindValidation,
		},
		{
			name:  "patient without doctor",
			actor: f.patientID,
			in:    CreateAppointmentInput{Date: "2025-06-10", Time: "10:00", Reason: "Checkup"},
			kind:  KindValidation,
		},
		{
			name:  "unknown doctor",
			actor: f.patientID,
			in:    CreateAppointmentInput{DoctorID: "00000000-0000-0000-0000-000000000000", Date: "2025-06-10", Time: "10:00", Reason: "Checkup"},
			kind:  KindNotFound,
		},
		{
			name:  "doctor without patient",
			actor: f.doctorID,
			in:    CreateAppointmentInput{Date: "2025-06-10", Time: "10:00", Reason: "Checkup"},
			kind:  KindValidation,
		},
		{
			name:  "admin without doctor",
			actor: f.adminID,
			in:    CreateAppointmentInput{PatientID: f.patient.ID, Date: "2025-06-10", Time: "10:00", Reason: "Checkup"},
			kind:  KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.actor, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestCreateAppointment_DateAndTimeUseServiceLocation(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Create(context.Background(), f.doctorID, CreateAppointmentInput{
		PatientID: f.patient.ID,
		Date:      "2025-06-10",
		Time:      "10:00",
		Reason:    "Walk-in",
		Notes:     "Referred by GP",
	})
	require.NoError(t, err)
	assert.True(t, a.AppointmentDate.Equal(ist(2025, 6, 10, 10, 0)))
	assert.Equal(t, f.doctor.ID, a.DoctorID)
	assert.Equal(t, f.patient.ID, a.PatientID)
	assert.Equal(t, "Referred by GP", a.Notes)
}

func TestCreateAppointment_UnavailableDoctor(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&models.Doctor{}).Where("id = ?", f.doctor.ID).Update("is_available", false).Error)

	_, err := f.svc.Create(context.Background(), f.patientID, CreateAppointmentInput{
		DoctorID: f.doctor.ID,
		Date:     "2025-06-10",
		Time:     "10:00",
		Reason:   "Checkup",
	})
	assert.Equal(t, KindValidation, KindOf(err))
}

type neverConflicts struct{}

func (neverConflicts) HasConflict(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func TestCreateAppointment_StorageRaceSurfacesAsConflict(t *testing.T) {
	f := newFixture(t)
	slot := ist(2025, 6, 10, 10, 0)
	f.book(t, slot)

	// a request that passed the check before the first insert committed
	f.svc.Conflicts = neverConflicts{}
	_, err := f.svc.Create(context.Background(), f.patient2ID, CreateAppointmentInput{
		DoctorID:      f.doctor.ID,
		AppointmentAt: slot.Format(time.RFC3339),
		Reason:        "Headache",
	})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCreateAppointment_CancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t)
	slot := ist(2025, 6, 10, 10, 0)

	first := f.book(t, slot)
	_, err := f.svc.Cancel(context.Background(), f.patientID, first.ID, "")
	require.NoError(t, err)

	second := f.bookFor(t, f.patient2ID, slot)
	assert.Equal(t, models.StatusScheduled, second.Status)
}

func TestCreateAppointment_PublishesEvent(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	published := f.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.AppointmentCreated, published[0].Type)
	assert.Equal(t, a.ID, published[0].AppointmentID)
	assert.Equal(t, string(models.StatusScheduled), published[0].Status)
}

func TestComplete_OnlyFromScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	done, err := f.svc.Complete(ctx, f.doctorID, a.ID, "Prescribed rest")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, "Completion Notes: Prescribed rest", done.Notes)

	_, err = f.svc.Complete(ctx, f.doctorID, a.ID, "again")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	stored, err := f.svc.Get(ctx, f.adminID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, "Completion Notes: Prescribed rest", stored.Notes)
	assert.Nil(t, stored.SlotKey)
}

func TestCancel_CompletedAppointmentIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	_, err := f.svc.Complete(ctx, f.doctorID, a.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.doctorID, a.ID, "Patient called")
	require.Error(t, err)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	stored, err := f.svc.Get(ctx, f.doctorID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	terminal := []models.AppointmentStatus{models.StatusCompleted, models.StatusCancelled, models.StatusNoShow}
	for i, status := range terminal {
		a := f.insert(t, f.patient, ist(2025, 6, 11+i, 10, 0), status)

		_, err := f.svc.Complete(ctx, f.doctorID, a.ID, "")
		assert.Equal(t, KindInvalidTransition, KindOf(err), status)
		_, err = f.svc.Cancel(ctx, f.doctorID, a.ID, "")
		assert.Equal(t, KindInvalidTransition, KindOf(err), status)
		_, err = f.svc.MarkNoShow(ctx, f.doctorID, a.ID, "")
		assert.Equal(t, KindInvalidTransition, KindOf(err), status)
		_, err = f.svc.ConfirmPayment(ctx, a.ID)
		assert.Equal(t, KindInvalidTransition, KindOf(err), status)
	}
}

func TestNotesAreAppendOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, f.doctorID, CreateAppointmentInput{
		PatientID: f.patient.ID,
		Date:      "2025-06-10",
		Time:      "10:00",
		Reason:    "Follow-up",
		Notes:     "Bring previous reports",
	})
	require.NoError(t, err)
	before := a.Notes

	cancelled, err := f.svc.Cancel(ctx, f.patientID, a.ID, "Travelling")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cancelled.Notes, before))
	assert.Equal(t, "Bring previous reports\n\nCancellation Reason: Travelling", cancelled.Notes)
}

func TestAppendNote(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		note     string
		want     string
	}{
		{"empty existing", "", "Fever", "Completion Notes: Fever"},
		{"appends block", "Initial", "Fever", "Initial\n\nCompletion Notes: Fever"},
		{"blank note keeps notes", "Initial", "   ", "Initial"},
		{"blank note on empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendNote(tt.existing, CompletionNotesLabel, tt.note)
			assert.Equal(t, tt.want, got)
			assert.True(t, strings.HasPrefix(got, tt.existing))
		})
	}
}

func TestMarkNoShow(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	got, err := f.svc.MarkNoShow(context.Background(), f.doctorID, a.ID, "Did not answer phone")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, got.Status)
	assert.Equal(t, "No-Show Notes: Did not answer phone", got.Notes)
}

func TestTransitionsRefreshUpdatedAt(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	f.now = f.now.Add(2 * time.Hour)
	got, err := f.svc.Cancel(context.Background(), f.patientID, a.ID, "")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(f.now), "updated_at %v, want %v", got.UpdatedAt, f.now)

	var stored models.Appointment
	require.NoError(t, f.db.First(&stored, "id = ?", a.ID).Error)
	assert.True(t, stored.UpdatedAt.Equal(f.now))
}

func TestTransitionAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	_, err := f.svc.Complete(ctx, f.patientID, a.ID, "")
	assert.Equal(t, KindForbidden, KindOf(err), "patients cannot complete")

	_, err = f.svc.Cancel(ctx, f.patient2ID, a.ID, "")
	assert.Equal(t, KindForbidden, KindOf(err), "other patients cannot cancel")

	otherDoctor := f.register(t, "Allison", "Cameron", models.RoleDoctor)
	_, err = f.svc.MarkNoShow(ctx, otherDoctor, a.ID, "")
	assert.Equal(t, KindForbidden, KindOf(err), "other doctors cannot mark no-show")

	_, err = f.svc.Complete(ctx, f.adminID, a.ID, "")
	assert.NoError(t, err, "admins can complete")
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	confirmed, err := f.svc.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, models.StatusScheduled, confirmed.Status)

	again, err := f.svc.ConfirmPayment(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, again.ConfirmedAt.Equal(*confirmed.ConfirmedAt))

	_, err = f.svc.ConfirmPayment(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestGetAppointment_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, ist(2025, 6, 10, 10, 0))

	for _, actor := range []models.Identity{f.patientID, f.doctorID, f.adminID} {
		got, err := f.svc.Get(ctx, actor, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
	}

	_, err := f.svc.Get(ctx, f.patient2ID, a.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.Get(ctx, f.adminID, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListAppointments_ScopesAndFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, ist(2025, 6, 10, 10, 0))
	f.book(t, ist(2025, 6, 12, 11, 0))
	other := f.bookFor(t, f.patient2ID, ist(2025, 6, 20, 9, 0))
	_, err := f.svc.Cancel(ctx, f.patient2ID, other.ID, "Feeling better")
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, f.patientID, ListFilter{Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, mine.TotalItems)
	assert.Equal(t, PatientAppointmentsPageSize, mine.PageSize)
	require.Len(t, mine.Items, 2)
	assert.True(t, mine.Items[0].AppointmentDate.After(mine.Items[1].AppointmentDate), "newest first")

	doctors, err := f.svc.List(ctx, f.doctorID, ListFilter{Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, doctors.TotalItems)
	assert.Equal(t, DoctorAppointmentsPageSize, doctors.PageSize)

	cancelled, err := f.svc.List(ctx, f.doctorID, ListFilter{Status: "cancelled", Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, cancelled.TotalItems)

	ranged, err := f.svc.List(ctx, f.adminID, ListFilter{DateFrom: "2025-06-10", DateTo: "2025-06-12", Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, ranged.TotalItems)

	byName, err := f.svc.List(ctx, f.doctorID, ListFilter{Search: "WILSON", Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, byName.TotalItems)

	byNotes, err := f.svc.List(ctx, f.doctorID, ListFilter{Search: "feeling", Page: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, byNotes.TotalItems)
}

func TestListAppointments_SearchHonoursCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.book(t, ist(2025, 6, 10, 10, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.List(ctx, f.adminID, ListFilter{Search: "cuddy", Page: 1})
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestListAppointments_MalformedFiltersAreIgnoredWithWarnings(t *testing.T) {
	f := newFixture(t)
	f.book(t, ist(2025, 6, 10, 10, 0))

	list, err := f.svc.List(context.Background(), f.doctorID, ListFilter{
		Status:   "pending",
		DateFrom: "10-06-2025",
		DateTo:   "soon",
		Page:     99,
	})
	require.NoError(t, err)
	assert.Len(t, list.Warnings, 3)
	assert.EqualValues(t, 1, list.TotalItems)
	assert.Equal(t, 1, list.Page.Page, "page past the end clamps to the last page")
}
