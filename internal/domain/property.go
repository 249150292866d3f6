package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const DefaultPropertyImage = "https://via.placeholder.com/400x250?text=Vivienda"

type Property struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Title         string         `gorm:"size:100;not null" json:"title" validate:"required,max=100"`
	Description   string         `gorm:"type:text;not null" json:"description" validate:"required,min=20"`
	Location      string         `gorm:"size:191;not null" json:"location" validate:"required"`
	PricePerNight float64        `gorm:"not null" json:"pricePerNight" validate:"gt=0"`
	Bedrooms      int            `gorm:"not null" json:"bedrooms" validate:"min=1"`
	Bathrooms     int            `gorm:"not null" json:"bathrooms" validate:"min=1"`
	Guests        int            `gorm:"not null" json:"guests" validate:"min=1"`
	ImageURL      string         `gorm:"size:512" json:"imageUrl"`
	ImageHandle   string         `gorm:"size:255" json:"-"`
	OwnerID       *string        `gorm:"size:36;index" json:"owner,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// PropertyPatch 部分更新，nil 表示不修改
type PropertyPatch struct {
	Title         *string
	Description   *string
	Location      *string
	PricePerNight *float64
	Bedrooms      *int
	Bathrooms     *int
	Guests        *int
	OwnerID       *string
}

func (p PropertyPatch) ApplyTo(dst *Property) {
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Location != nil {
		dst.Location = *p.Location
	}
	if p.PricePerNight != nil {
		dst.PricePerNight = *p.PricePerNight
	}
	if p.Bedrooms != nil {
		dst.Bedrooms = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		dst.Bathrooms = *p.Bathrooms
	}
	if p.Guests != nil {
		dst.Guests = *p.Guests
	}
	if p.OwnerID != nil {
		owner := *p.OwnerID
		dst.OwnerID = &owner
	}
}

type PropertyRepository interface {
	List(ctx context.Context) ([]Property, error)
	FindByID(ctx context.Context, id string) (*Property, error)
	Create(ctx context.Context, p *Property) error
	Update(ctx context.Context, p *Property) error
	// Delete 软删房源并取消其活跃预订，返回被取消的数量
	Delete(ctx context.Context, id string) (int64, error)
}
