// Package policy 访问控制的唯一判定点，纯函数，不触碰存储。
package policy

import "vacation-rental-api/internal/domain"

// Principal 当前请求的认证主体
type Principal struct {
	ID   string
	Role domain.Role
}

func (p Principal) IsAdmin() bool { return p.Role == domain.RoleAdmin }

// Resource 房源/预订的归属关系
type Resource struct {
	OwnerID  *string // 房源 owner，nil 表示无主
	BookerID string  // 预订人，房源资源为空
}

func ForProperty(p *domain.Property) Resource {
	if p == nil {
		return Resource{}
	}
	return Resource{OwnerID: p.OwnerID}
}

func ForBooking(b *domain.Booking, p *domain.Property) Resource {
	r := ForProperty(p)
	if b != nil {
		r.BookerID = b.UserID
	}
	return r
}

func (r Resource) ownedBy(p Principal) bool {
	return r.OwnerID != nil && p.ID != "" && *r.OwnerID == p.ID
}

func (r Resource) bookedBy(p Principal) bool {
	return r.BookerID != "" && p.ID != "" && r.BookerID == p.ID
}

// CanView admin / owner / 预订人
func CanView(p Principal, r Resource) bool {
	return p.IsAdmin() || r.ownedBy(p) || r.bookedBy(p)
}

// CanMutate admin / owner；无主资源只允许 admin
func CanMutate(p Principal, r Resource) bool {
	return p.IsAdmin() || r.ownedBy(p)
}

// CanCancel 预订人也可以取消自己的预订
func CanCancel(p Principal, r Resource) bool {
	return CanView(p, r)
}

func CanCreateProperty(p Principal) bool { return p.IsAdmin() }

func CanManageUsers(p Principal) bool { return p.IsAdmin() }
