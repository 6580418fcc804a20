package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	tests := map[string]int{
		"":    1,
		"1":   1,
		"7":   7,
		"0":   1,
		"-3":  1,
		"two": 1,
		"2.5": 1,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParsePage(raw), "raw %q", raw)
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		total     int64
		size      int
		wantPage  int
		wantPages int
	}{
		{"empty result has one page", 3, 0, 10, 1, 1},
		{"exact multiple", 2, 20, 10, 2, 2},
		{"partial last page", 3, 21, 10, 3, 3},
		{"past the end", 9, 21, 10, 3, 3},
		{"below one", 0, 5, 10, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pages := ClampPage(tt.page, tt.total, tt.size)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPages, pages)
		})
	}
}

func TestPaginate(t *testing.T) {
	f := newFixture(t)
	for day := 10; day < 22; day++ {
		f.book(t, ist(2025, 6, day, 10, 0))
	}

	list, err := f.svc.List(context.Background(), f.patientID, ListFilter{Page: 2})
	assert.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.Page.Page)
	assert.Equal(t, 2, list.TotalPages)
	assert.True(t, list.HasPrevious)
	assert.False(t, list.HasNext)
	assert.True(t, list.Items[0].AppointmentDate.Equal(ist(2025, 6, 11, 10, 0)))
}
