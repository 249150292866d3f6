package domain

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// ActiveStatuses 占用日期的状态
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s BookingStatus) Active() bool { return s == StatusPending || s == StatusConfirmed }

func (s BookingStatus) Terminal() bool { return s == StatusCancelled || s == StatusCompleted }

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	PropertyID   string        `gorm:"size:36;not null;index:idx_bookings_property_status" json:"propertyId"`
	UserID       string        `gorm:"size:36;not null;index" json:"userId"`
	CheckInDate  time.Time     `gorm:"not null" json:"checkInDate"`
	CheckOutDate time.Time     `gorm:"not null" json:"checkOutDate"`
	Guests       int           `gorm:"not null" json:"guests"`
	TotalPrice   float64       `gorm:"not null" json:"totalPrice"`
	Status       BookingStatus `gorm:"size:16;not null;default:pending;index:idx_bookings_property_status" json:"status"`
	CreatedAt    time.Time     `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Booker   *Booker   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (b *Booking) Range() DateRange { return DateRange{Start: b.CheckInDate, End: b.CheckOutDate} }

type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	FindByID(ctx context.Context, id string) (*Booking, error)
	ListActiveByProperty(ctx context.Context, propertyID string) ([]Booking, error)
	// ListByUser 附带房源（含已下架）
	ListByUser(ctx context.Context, userID string) ([]Booking, error)
	// ListByProperty 附带房源和下单人摘要
	ListByProperty(ctx context.Context, propertyID string) ([]Booking, error)
	// UpdateStatus 仅当当前状态为 from 时更新，返回是否命中
	UpdateStatus(ctx context.Context, id string, from, to BookingStatus) (bool, error)
}

// DateRange 半开区间 [Start, End)，按天
type DateRange struct {
	Start time.Time
	End   time.Time
}

const dayLayout = "2006-01-02"

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{r.Start.Format(dayLayout), r.End.Format(dayLayout)})
}

// Nights ceil(小时/24)
func (r DateRange) Nights() int {
	return int(math.Ceil(r.End.Sub(r.Start).Hours() / 24))
}

// Day 截断到日，统一为 UTC 零点
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay 支持 2006-01-02 与 RFC3339
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
