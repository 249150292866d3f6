package service

import (
	"context"
	"sort"

	"vacation-rental-api/internal/domain"
)

// Overlaps [a.Start,a.End) 与 [b.Start,b.End) 是否相交；全局唯一的冲突判定
func Overlaps(a, b domain.DateRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Availability 只看 pending/confirmed 预订
type Availability struct {
	bookings domain.BookingRepository
}

func NewAvailability(bookings domain.BookingRepository) *Availability {
	return &Availability{bookings: bookings}
}

func (a *Availability) IsAvailable(ctx context.Context, propertyID string, r domain.DateRange) (bool, error) {
	active, err := a.bookings.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return false, err
	}
	for i := range active {
		if !active[i].Status.Active() {
			continue
		}
		if Overlaps(active[i].Range(), r) {
			return false, nil
		}
	}
	return true, nil
}

// OccupiedRanges 公共日历，按开始日期排序
func (a *Availability) OccupiedRanges(ctx context.Context, propertyID string) ([]domain.DateRange, error) {
	active, err := a.bookings.ListActiveByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DateRange, 0, len(active))
	for i := range active {
		if active[i].Status.Active() {
			out = append(out, active[i].Range())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
