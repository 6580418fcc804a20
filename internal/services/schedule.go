package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ehospital-server/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Working hours shown on the weekly calendar, start hours inclusive.
const (
	GridFirstHour = 9
	GridLastHour  = 17
	daysPerWeek   = 7
)

// TimeSlot is one row of the weekly calendar.
type TimeSlot struct {
	Hour    int    `json:"hour"`
	Label   string `json:"label"`
	Display string `json:"display"`
}

// GridCell holds the appointments starting within one hour of one day.
type GridCell struct {
	Hour         int                  `json:"hour"`
	Appointments []models.Appointment `json:"appointments"`
}

// GridDay is one column of the weekly calendar. Appointments of that day that
// start outside working hours go to OutOfHours so no appointment is dropped.
type GridDay struct {
	Name       string               `json:"name"`
	Date       models.Date          `json:"date"`
	IsToday    bool                 `json:"isToday"`
	Cells      []GridCell           `json:"cells"`
	OutOfHours []models.Appointment `json:"outOfHours"`
}

// WeekTotals counts the appointments of the displayed week.
type WeekTotals struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Scheduled int `json:"scheduled"`
}

// WeekGrid is a doctor's week laid out as days by hours.
type WeekGrid struct {
	WeekStart models.Date `json:"weekStart"`
	WeekEnd   models.Date `json:"weekEnd"`
	PrevWeek  models.Date `json:"prevWeek"`
	NextWeek  models.Date `json:"nextWeek"`
	TimeSlots []TimeSlot  `json:"timeSlots"`
	Days      []GridDay   `json:"days"`
	Totals    WeekTotals  `json:"totals"`
}

// ParseReferenceDate reads a YYYY-MM-DD date in loc, falling back to the
// current day when raw is empty or malformed.
func ParseReferenceDate(raw string, now time.Time, loc *time.Location) time.Time {
	if d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), loc); err == nil {
		return d
	}
	return startOfDay(now.In(loc))
}

// WeekStart returns midnight of the Monday of the week containing d.
func WeekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return startOfDay(d).AddDate(0, 0, -offset)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// BuildWeekGrid places appointments into the week beginning at weekStart.
// Appointments outside the week are ignored; every appointment inside it
// lands in exactly one cell or out-of-hours list.
func BuildWeekGrid(weekStart, today time.Time, appointments []models.Appointment) WeekGrid {
	loc := weekStart.Location()
	weekStart = WeekStart(weekStart)
	today = startOfDay(today.In(loc))

	grid := WeekGrid{
		WeekStart: models.Date{Time: weekStart},
		WeekEnd:   models.Date{Time: weekStart.AddDate(0, 0, daysPerWeek-1)},
		PrevWeek:  models.Date{Time: weekStart.AddDate(0, 0, -daysPerWeek)},
		NextWeek:  models.Date{Time: weekStart.AddDate(0, 0, daysPerWeek)},
		TimeSlots: timeSlots(),
		Days:      make([]GridDay, daysPerWeek),
	}

	for i := range grid.Days {
		day := weekStart.AddDate(0, 0, i)
		cells := make([]GridCell, 0, GridLastHour-GridFirstHour+1)
		for hour := GridFirstHour; hour <= GridLastHour; hour++ {
			cells = append(cells, GridCell{Hour: hour, Appointments: []models.Appointment{}})
		}
		grid.Days[i] = GridDay{
			Name:       day.Weekday().String(),
			Date:       models.Date{Time: day},
			IsToday:    day.Equal(today),
			Cells:      cells,
			OutOfHours: []models.Appointment{},
		}
	}

	for _, a := range appointments {
		local := a.AppointmentDate.In(loc)
		idx := dayIndex(weekStart, local)
		if idx < 0 {
			continue
		}

		day := &grid.Days[idx]
		hour := local.Hour()
		if hour >= GridFirstHour && hour <= GridLastHour {
			cell := &day.Cells[hour-GridFirstHour]
			cell.Appointments = append(cell.Appointments, a)
		} else {
			day.OutOfHours = append(day.OutOfHours, a)
		}

		grid.Totals.Total++
		switch a.Status {
		case models.StatusCompleted:
			grid.Totals.Completed++
		case models.StatusScheduled:
			grid.Totals.Scheduled++
		}
	}
	return grid
}

// dayIndex returns the 0-based day of t within the week, or -1 when outside.
func dayIndex(weekStart, t time.Time) int {
	for i := 0; i < daysPerWeek; i++ {
		from := weekStart.AddDate(0, 0, i)
		if !t.Before(from) && t.Before(from.AddDate(0, 0, 1)) {
			return i
		}
	}
	return -1
}

func timeSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, GridLastHour-GridFirstHour+1)
	for hour := GridFirstHour; hour <= GridLastHour; hour++ {
		display := hour % 12
		if display == 0 {
			display = 12
		}
		suffix := "AM"
		if hour >= 12 {
			suffix = "PM"
		}
		slots = append(slots, TimeSlot{
			Hour:    hour,
			Label:   fmt.Sprintf("%02d:00", hour),
			Display: fmt.Sprintf("%d:00 %s", display, suffix),
		})
	}
	return slots
}

// ScheduleService loads a doctor's week and builds the calendar grid.
type ScheduleService struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Location *time.Location
	Now      func() time.Time
}

// NewScheduleService creates a new ScheduleService.
func NewScheduleService(db *gorm.DB, loc *time.Location, log *zap.Logger) *ScheduleService {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleService{DB: db, Log: log, Location: loc, Now: time.Now}
}

// WeekGrid builds the grid for the week containing the date in rawDate.
func (s *ScheduleService) WeekGrid(ctx context.Context, doctor *models.Doctor, rawDate string) (*WeekGrid, error) {
	now := s.Now()
	start := WeekStart(ParseReferenceDate(rawDate, now, s.Location))
	end := start.AddDate(0, 0, daysPerWeek)

	var appointments []models.Appointment
	err := s.DB.WithContext(ctx).
		Preload("Patient.User").
		Where("doctor_id = ? AND appointment_date >= ? AND appointment_date < ?", doctor.ID, start.UTC(), end.UTC()).
		Order("appointment_date asc").
		Find(&appointments).Error
	if err != nil {
		s.Log.Error("schedule.week.load_failed", zap.String("doctorId", doctor.ID), zap.Error(err))
		return nil, InternalError(err)
	}

	grid := BuildWeekGrid(start, now, appointments)
	return &grid, nil
}
