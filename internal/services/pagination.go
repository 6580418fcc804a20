package services

import (
	"strconv"

	"gorm.io/gorm"
)

// Page sizes used by the list views.
const (
	DoctorAppointmentsPageSize  = 15
	PatientAppointmentsPageSize = 10
	AdminPageSize               = 10
)

// Page is one page of a listing plus enough metadata to render pager links.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// ParsePage reads a raw page parameter. Anything that is not a positive
// integer becomes the first page.
func ParsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// ClampPage keeps page within [1, totalPages]; an empty result still has one page.
func ClampPage(page int, total int64, size int) (clamped int, totalPages int) {
	totalPages = int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages
}

// paginate counts query, clamps page, and loads that page ordered by order.
// Preloads are applied to the page load only; count queries must stay plain.
func paginate[T any](query *gorm.DB, order string, page, size int, preloads ...string) (Page[T], error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Page[T]{}, err
	}

	page, totalPages := ClampPage(page, total, size)

	items := make([]T, 0, size)
	if total > 0 {
		find := query.Session(&gorm.Session{})
		for _, p := range preloads {
			find = find.Preload(p)
		}
		err := find.
			Order(order).
			Limit(size).
			Offset((page - 1) * size).
			Find(&items).Error
		if err != nil {
			return Page[T]{}, err
		}
	}

	return Page[T]{
		Items:       items,
		Page:        page,
		PageSize:    size,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}
