package services

import (
	"context"
	"testing"

	"ehospital-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasConflict(t *testing.T) {
	f := newFixture(t)
	checker := NewConflictChecker(f.db)
	ctx := context.Background()

	f.insert(t, f.patient, ist(2025, 6, 10, 10, 0), models.StatusScheduled)
	f.insert(t, f.patient, ist(2025, 6, 10, 11, 0), models.StatusCancelled)
	f.insert(t, f.patient, ist(2025, 6, 10, 12, 0), models.StatusCompleted)

	tests := []struct {
		name     string
		doctorID string
		hour     int
		minute   int
		want     bool
	}{
		{"exact scheduled slot", f.doctor.ID, 10, 0, true},
		{"half hour later", f.doctor.ID, 10, 30, false},
		{"one minute later", f.doctor.ID, 10, 1, false},
		{"cancelled slot", f.doctor.ID, 11, 0, false},
		{"completed slot", f.doctor.ID, 12, 0, false},
		{"other doctor", "00000000-0000-0000-0000-000000000000", 10, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.HasConflict(ctx, tt.doctorID, ist(2025, 6, 10, tt.hour, tt.minute))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasConflict_IgnoresRepresentationOfInstant(t *testing.T) {
	f := newFixture(t)
	slot := ist(2025, 6, 10, 10, 0)
	f.insert(t, f.patient, slot, models.StatusScheduled)

	got, err := NewConflictChecker(f.db).HasConflict(context.Background(), f.doctor.ID, slot.UTC())
	require.NoError(t, err)
	assert.True(t, got)

	got, err = NewConflictChecker(f.db).HasConflict(context.Background(), f.doctor.ID, slot.In(mustLocation("America/New_York")))
	require.NoError(t, err)
	assert.True(t, got)
}
