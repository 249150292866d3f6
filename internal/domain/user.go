package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type User struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Email        string         `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Name         string         `gorm:"size:64;not null" json:"name"`
	PasswordHash string         `gorm:"size:100;not null" json:"-"`
	Role         Role           `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Booker 预订列表里展示的下单人，只带姓名和邮箱
type Booker struct {
	ID    string `gorm:"primaryKey;size:36" json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (Booker) TableName() string { return "users" }

type UserFilter struct {
	Offset      int
	Limit       int
	Q           string
	WithDeleted bool
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, f UserFilter) ([]User, int64, error)
	UpdateRole(ctx context.Context, id string, role Role) error
	SoftDelete(ctx context.Context, id string) (bool, error)
}

// Credentials 口令哈希与令牌签发
type Credentials interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) bool
	IssueToken(id Identity) (string, error)
	VerifyToken(token string) (Identity, error)
}

// Identity 令牌里携带的身份
type Identity struct {
	UserID string
	Role   Role
}
