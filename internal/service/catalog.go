package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"vacation-rental-api/internal/core/cache"
	"vacation-rental-api/internal/core/lock"
	"vacation-rental-api/internal/core/media"
	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/policy"
	"vacation-rental-api/pkg/utils"
)

const (
	keyAllProperties  = "properties:all"
	keyPropertyPrefix = "property:"
)

type CatalogOptions struct {
	PlaceholderURL string
	StorageTimeout time.Duration
	MediaTimeout   time.Duration
	CacheTTL       time.Duration
	// Locker 须与 BookingService 共用，删除房源时阻止并发下单
	Locker      lock.Locker
	LockTimeout time.Duration
}

// CatalogService 房源目录；读走两级缓存，写后失效
type CatalogService struct {
	properties domain.PropertyRepository
	users      domain.UserRepository
	media      media.Store
	cache      *cache.Cache // 可为 nil
	validate   *validator.Validate
	log        *zap.Logger
	opts       CatalogOptions
}

func NewCatalogService(
	properties domain.PropertyRepository,
	users domain.UserRepository,
	store media.Store,
	c *cache.Cache,
	log *zap.Logger,
	opts CatalogOptions,
) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PlaceholderURL == "" {
		opts.PlaceholderURL = domain.DefaultPropertyImage
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewKeyedMutex()
	}
	return &CatalogService{
		properties: properties,
		users:      users,
		media:      store,
		cache:      c,
		validate:   newValidator(),
		log:        log,
		opts:       opts,
	}
}

// PropertyInput 创建房源的请求字段
type PropertyInput struct {
	Title         string
	Description   string
	Location      string
	PricePerNight float64
	Bedrooms      int
	Bathrooms     int
	Guests        int
	OwnerID       *string
}

type propertyList struct {
	Items []domain.Property `json:"items"`
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Property, error) {
	load := func(ctx context.Context) (*propertyList, error) {
		sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
		defer cancel()
		items, err := s.properties.List(sctx)
		if err != nil {
			return nil, err
		}
		return &propertyList{Items: items}, nil
	}

	var (
		out *propertyList
		err error
	)
	if s.cache != nil {
		out, err = cache.GetOrLoadJSON(s.cache, ctx, keyAllProperties, s.opts.CacheTTL, load)
	} else {
		out, err = load(ctx)
	}
	if err != nil {
		return nil, storageErr("list properties", err)
	}
	if out == nil || out.Items == nil {
		return []domain.Property{}, nil
	}
	return out.Items, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Property, error) {
	if !utils.ValidID(id) {
		return nil, domain.InvalidIdentifier("property")
	}
	load := func(ctx context.Context) (*domain.Property, error) {
		sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
		defer cancel()
		return s.properties.FindByID(sctx, id)
	}

	var (
		p   *domain.Property
		err error
	)
	if s.cache != nil {
		p, err = cache.GetOrLoadJSON(s.cache, ctx, keyPropertyPrefix+id, s.opts.CacheTTL, load)
	} else {
		p, err = load(ctx)
	}
	if err != nil {
		return nil, storageErr("load property", err)
	}
	if p == nil {
		return nil, domain.NotFound("property")
	}
	return p, nil
}

// Create 仅管理员；校验通过后才上传图片，落库失败回滚图片
func (s *CatalogService) Create(ctx context.Context, p policy.Principal, in PropertyInput, img *media.Upload) (*domain.Property, error) {
	if !policy.CanCreateProperty(p) {
		return nil, domain.Forbidden("only admins can create properties")
	}

	prop := &domain.Property{
		ID:            utils.NewID(),
		Title:         in.Title,
		Description:   in.Description,
		Location:      in.Location,
		PricePerNight: in.PricePerNight,
		Bedrooms:      in.Bedrooms,
		Bathrooms:     in.Bathrooms,
		Guests:        in.Guests,
		OwnerID:       in.OwnerID,
	}
	trimProperty(prop)
	if err := s.validateProperty(ctx, prop); err != nil {
		return nil, err
	}

	stored, err := s.storeImage(ctx, img)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		prop.ImageURL, prop.ImageHandle = stored.URL, stored.Handle
	} else {
		prop.ImageURL = s.opts.PlaceholderURL
	}

	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	if err := s.properties.Create(sctx, prop); err != nil {
		s.releaseImage(prop.ImageHandle)
		return nil, storageErr("create property", err)
	}

	s.invalidate(ctx, prop.ID)
	s.log.Info("property created", zap.String("property_id", prop.ID), zap.String("by", p.ID))
	return prop, nil
}

// Update 部分更新；只有管理员能改 owner，换图成功后删除旧图
func (s *CatalogService) Update(ctx context.Context, p policy.Principal, id string, patch domain.PropertyPatch, img *media.Upload) (*domain.Property, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutate(p, policy.ForProperty(existing)) {
		return nil, domain.Forbidden("only the property owner or an admin can modify this property")
	}
	if patch.OwnerID != nil && !p.IsAdmin() && !sameOwner(patch.OwnerID, existing.OwnerID) {
		return nil, domain.Forbidden("only admins can change the property owner")
	}

	merged := *existing
	patch.ApplyTo(&merged)
	trimProperty(&merged)
	if err := s.validateProperty(ctx, &merged); err != nil {
		return nil, err
	}

	stored, err := s.storeImage(ctx, img)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		merged.ImageURL, merged.ImageHandle = stored.URL, stored.Handle
	}

	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	if err := s.properties.Update(sctx, &merged); err != nil {
		if stored != nil {
			s.releaseImage(stored.Handle)
		}
		return nil, storageErr("update property", err)
	}
	if stored != nil && existing.ImageHandle != "" {
		s.releaseImage(existing.ImageHandle)
	}

	s.invalidate(ctx, merged.ID)
	return &merged, nil
}

// Delete 软删房源并级联取消活跃预订
func (s *CatalogService) Delete(ctx context.Context, p policy.Principal, id string) error {
	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanMutate(p, policy.ForProperty(existing)) {
		return domain.Forbidden("only the property owner or an admin can delete this property")
	}

	unlock, err := lockProperty(ctx, s.opts.Locker, s.opts.LockTimeout, existing.ID)
	if err != nil {
		return err
	}
	defer unlock()

	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	cancelled, err := s.properties.Delete(sctx, existing.ID)
	if err != nil {
		return storageErr("delete property", err)
	}
	s.releaseImage(existing.ImageHandle)
	s.invalidate(ctx, existing.ID)
	s.log.Info("property deleted",
		zap.String("property_id", existing.ID),
		zap.String("by", p.ID),
		zap.Int64("cancelled_bookings", cancelled),
	)
	return nil
}

func sameOwner(next, current *string) bool {
	n, c := "", ""
	if next != nil {
		n = *next
	}
	if current != nil {
		c = *current
	}
	return n == c
}

// find 直接查库，写路径不读缓存
func (s *CatalogService) find(ctx context.Context, id string) (*domain.Property, error) {
	if !utils.ValidID(id) {
		return nil, domain.InvalidIdentifier("property")
	}
	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	p, err := s.properties.FindByID(sctx, id)
	if err != nil {
		return nil, storageErr("load property", err)
	}
	if p == nil {
		return nil, domain.NotFound("property")
	}
	return p, nil
}

func (s *CatalogService) validateProperty(ctx context.Context, prop *domain.Property) error {
	var extra []domain.FieldError
	if prop.OwnerID != nil {
		switch owner := *prop.OwnerID; {
		case owner == "":
			prop.OwnerID = nil
		case !utils.ValidID(owner):
			extra = append(extra, domain.FieldError{Field: "owner", Rule: "uuid", Message: "must be a valid user id"})
		default:
			sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
			u, err := s.users.FindByID(sctx, owner)
			cancel()
			if err != nil {
				return storageErr("load owner", err)
			}
			if u == nil {
				extra = append(extra, domain.FieldError{Field: "owner", Rule: "exists", Message: "must reference an existing user"})
			}
		}
	}
	return validateStruct(s.validate, prop, extra...)
}

func (s *CatalogService) storeImage(ctx context.Context, img *media.Upload) (*media.Stored, error) {
	if img == nil {
		return nil, nil
	}
	if s.media == nil {
		return nil, domain.Internal("store image", errors.New("media store not configured"))
	}
	mctx, cancel := withTimeout(ctx, s.opts.MediaTimeout)
	defer cancel()
	stored, err := s.media.Store(mctx, *img)
	if errors.Is(err, media.ErrUnsupportedType) {
		return nil, domain.Validation(domain.FieldError{Field: "image", Rule: "image", Message: "must be a jpg, png, gif or webp image"})
	}
	if err != nil {
		return nil, domain.Internal("store image", err)
	}
	return &stored, nil
}

// releaseImage 尽力删除，失败只记日志
func (s *CatalogService) releaseImage(handle string) {
	if handle == "" || s.media == nil {
		return
	}
	ctx, cancel := withTimeout(context.Background(), s.opts.MediaTimeout)
	defer cancel()
	if err := s.media.Delete(ctx, handle); err != nil {
		s.log.Warn("release image failed", zap.String("handle", handle), zap.Error(err))
	}
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, keyAllProperties, keyPropertyPrefix+id)
}

func trimProperty(p *domain.Property) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Location = strings.TrimSpace(p.Location)
}
