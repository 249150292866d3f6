package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vacation-rental-api/internal/domain"
)

type PropertyRepo struct{ db *gorm.DB }

func NewPropertyRepo(db *gorm.DB) *PropertyRepo { return &PropertyRepo{db: db} }

func (r *PropertyRepo) List(ctx context.Context) ([]domain.Property, error) {
	props := []domain.Property{}
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&props).Error; err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return props, nil
}

func (r *PropertyRepo) FindByID(ctx context.Context, id string) (*domain.Property, error) {
	var p domain.Property
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find property: %w", err)
	}
	return &p, nil
}

func (r *PropertyRepo) Create(ctx context.Context, p *domain.Property) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create property: %w", err)
	}
	return nil
}

func (r *PropertyRepo) Update(ctx context.Context, p *domain.Property) error {
	res := r.db.WithContext(ctx).Model(p).Select("*").Omit("id", "created_at", "deleted_at").Updates(p)
	if res.Error != nil {
		return fmt.Errorf("update property: %w", res.Error)
	}
	return nil
}

// Delete 同一事务内：取消活跃预订 + 软删房源
func (r *PropertyRepo) Delete(ctx context.Context, id string) (int64, error) {
	var cancelled int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Booking{}).
			Where("property_id = ? AND status IN ?", id, domain.ActiveStatuses).
			Update("status", domain.StatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		cancelled = res.RowsAffected
		return tx.Where("id = ?", id).Delete(&domain.Property{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete property: %w", err)
	}
	return cancelled, nil
}

var _ domain.PropertyRepository = (*PropertyRepo)(nil)
