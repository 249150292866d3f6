package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vacation-rental-api/internal/domain"
)

type BookingRepo struct{ db *gorm.DB }

func NewBookingRepo(db *gorm.DB) *BookingRepo { return &BookingRepo{db: db} }

// 已下架房源的历史预订仍需展示房源信息
func withArchivedProperty(db *gorm.DB) *gorm.DB { return db.Unscoped() }

func bookerSummary(db *gorm.DB) *gorm.DB {
	return db.Unscoped().Select("id", "name", "email")
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	if err := r.db.WithContext(ctx).Omit("Property", "Booker").Create(b).Error; err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *BookingRepo) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).Preload("Property", withArchivedProperty).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &b, nil
}

func (r *BookingRepo) ListActiveByProperty(ctx context.Context, propertyID string) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND status IN ?", propertyID, domain.ActiveStatuses).
		Order("check_in_date asc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return out, nil
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	out := []domain.Booking{}
	err := r.db.WithContext(ctx).
		Preload("Property", withArchivedProperty).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return out, nil
}

func (r *BookingRepo) ListByProperty(ctx context.Context, propertyID string) ([]domain.Booking, error) {
	out := []domain.Booking{}
	err := r.db.WithContext(ctx).
		Preload("Property", withArchivedProperty).
		Preload("Booker", bookerSummary).
		Where("property_id = ?", propertyID).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list property bookings: %w", err)
	}
	return out, nil
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("update booking status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

var _ domain.BookingRepository = (*BookingRepo)(nil)
