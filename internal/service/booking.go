package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"vacation-rental-api/internal/core/lock"
	"vacation-rental-api/internal/core/metrics"
	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/policy"
	"vacation-rental-api/pkg/utils"
)

type BookingOptions struct {
	StorageTimeout time.Duration
	LockTimeout    time.Duration
	Now            func() time.Time // 测试注入
}

// BookingService 预订生命周期；同一房源的 检查+写入 在房源锁内串行
type BookingService struct {
	bookings     domain.BookingRepository
	properties   domain.PropertyRepository
	availability *Availability
	locker       lock.Locker
	log          *zap.Logger
	opts         BookingOptions
}

func NewBookingService(
	bookings domain.BookingRepository,
	properties domain.PropertyRepository,
	availability *Availability,
	locker lock.Locker,
	log *zap.Logger,
	opts BookingOptions,
) *BookingService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if availability == nil {
		availability = NewAvailability(bookings)
	}
	return &BookingService{
		bookings:     bookings,
		properties:   properties,
		availability: availability,
		locker:       locker,
		log:          log,
		opts:         opts,
	}
}

type CreateBookingInput struct {
	PropertyID string
	CheckIn    time.Time
	CheckOut   time.Time
	Guests     int
}

func (s *BookingService) Create(ctx context.Context, p policy.Principal, in CreateBookingInput) (*domain.Booking, error) {
	b, err := s.create(ctx, p, in)
	switch {
	case err == nil:
		metrics.BookingCreated(metrics.OutcomeCreated)
	case errors.Is(err, domain.ErrBookingConflict):
		metrics.BookingCreated(metrics.OutcomeConflict)
	case domain.KindOf(err) == domain.KindServer:
		metrics.BookingCreated(metrics.OutcomeError)
	default:
		metrics.BookingCreated(metrics.OutcomeRejected)
	}
	return b, err
}

func (s *BookingService) create(ctx context.Context, p policy.Principal, in CreateBookingInput) (*domain.Booking, error) {
	if p.ID == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	if !utils.ValidID(in.PropertyID) {
		return nil, domain.InvalidIdentifier("property")
	}
	if in.Guests < 1 {
		return nil, domain.Validation(domain.FieldError{Field: "guests", Rule: "min", Message: "must be at least 1"})
	}

	r := domain.DateRange{Start: domain.Day(in.CheckIn), End: domain.Day(in.CheckOut)}
	if !r.Start.Before(r.End) {
		return nil, domain.ErrInvalidRange
	}
	if r.Start.Before(domain.Day(s.opts.Now())) {
		return nil, domain.ErrPastDate
	}

	prop, err := s.findProperty(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if in.Guests > prop.Guests {
		return nil, domain.ErrCapacityExceeded
	}

	unlock, err := lockProperty(ctx, s.locker, s.opts.LockTimeout, prop.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()

	// 锁内重读：等锁期间房源可能已被删除或修改
	prop, err = s.properties.FindByID(sctx, prop.ID)
	if err != nil {
		return nil, storageErr("reload property", err)
	}
	if prop == nil {
		return nil, domain.NotFound("property")
	}
	if in.Guests > prop.Guests {
		return nil, domain.ErrCapacityExceeded
	}

	ok, err := s.availability.IsAvailable(sctx, prop.ID, r)
	if err != nil {
		return nil, storageErr("check availability", err)
	}
	if !ok {
		return nil, domain.ErrBookingConflict
	}

	b := &domain.Booking{
		ID:           utils.NewID(),
		PropertyID:   prop.ID,
		UserID:       p.ID,
		CheckInDate:  r.Start,
		CheckOutDate: r.End,
		Guests:       in.Guests,
		TotalPrice:   float64(r.Nights()) * prop.PricePerNight,
		Status:       domain.StatusPending,
	}
	if err := s.bookings.Create(sctx, b); err != nil {
		return nil, storageErr("create booking", err)
	}
	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("property_id", b.PropertyID),
		zap.String("user_id", b.UserID),
		zap.Int("nights", r.Nights()),
	)
	return b, nil
}

// lockProperty 预订写入和房源删除共用同一把锁
func lockProperty(ctx context.Context, locker lock.Locker, timeout time.Duration, propertyID string) (func(), error) {
	lctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	unlock, err := locker.Lock(lctx, "property:"+propertyID)
	metrics.LockWait(time.Since(start))
	if err != nil {
		return nil, domain.Internal("acquire property lock", err)
	}
	return unlock, nil
}

// Cancel 预订人、房东或管理员可取消
func (s *BookingService) Cancel(ctx context.Context, p policy.Principal, bookingID string) (*domain.Booking, error) {
	b, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !policy.CanCancel(p, policy.ForBooking(b, b.Property)) {
		return nil, domain.Forbidden("not allowed to cancel this booking")
	}
	return s.transition(ctx, b, domain.StatusCancelled)
}

// SetStatus 仅房东或管理员
func (s *BookingService) SetStatus(ctx context.Context, p policy.Principal, bookingID, status string) (*domain.Booking, error) {
	b, err := s.findBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutate(p, policy.ForBooking(b, b.Property)) {
		return nil, domain.Forbidden("only the property owner or an admin can change booking status")
	}
	next, err := domain.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, b, next)
}

func (s *BookingService) transition(ctx context.Context, b *domain.Booking, next domain.BookingStatus) (*domain.Booking, error) {
	from := b.Status
	if !from.CanTransitionTo(next) {
		return nil, domain.ErrInvalidTransition
	}

	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	ok, err := s.bookings.UpdateStatus(sctx, b.ID, from, next)
	if err != nil {
		return nil, storageErr("update booking status", err)
	}
	if !ok {
		// 并发下状态已被改写
		return nil, domain.ErrInvalidTransition
	}

	metrics.BookingTransition(string(from), string(next))
	s.log.Info("booking status changed",
		zap.String("booking_id", b.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)

	updated, err := s.bookings.FindByID(sctx, b.ID)
	if err != nil || updated == nil {
		b.Status = next
		return b, nil
	}
	return updated, nil
}

func (s *BookingService) ListForUser(ctx context.Context, p policy.Principal) ([]domain.Booking, error) {
	if p.ID == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	list, err := s.bookings.ListByUser(sctx, p.ID)
	if err != nil {
		return nil, storageErr("list user bookings", err)
	}
	return list, nil
}

// ListForProperty 房东或管理员查看某房源的全部预订
func (s *BookingService) ListForProperty(ctx context.Context, p policy.Principal, propertyID string) ([]domain.Booking, error) {
	if !utils.ValidID(propertyID) {
		return nil, domain.InvalidIdentifier("property")
	}
	prop, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if !policy.CanView(p, policy.ForProperty(prop)) {
		return nil, domain.Forbidden("only the property owner or an admin can list its bookings")
	}

	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	list, err := s.bookings.ListByProperty(sctx, propertyID)
	if err != nil {
		return nil, storageErr("list property bookings", err)
	}
	return list, nil
}

// OccupiedDates 公开日历；房源不存在时返回空列表
func (s *BookingService) OccupiedDates(ctx context.Context, propertyID string) ([]domain.DateRange, error) {
	if !utils.ValidID(propertyID) {
		return nil, domain.InvalidIdentifier("property")
	}
	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	out, err := s.availability.OccupiedRanges(sctx, propertyID)
	if err != nil {
		return nil, storageErr("list occupied dates", err)
	}
	return out, nil
}

func (s *BookingService) findProperty(ctx context.Context, id string) (*domain.Property, error) {
	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	prop, err := s.properties.FindByID(sctx, id)
	if err != nil {
		return nil, storageErr("load property", err)
	}
	if prop == nil {
		return nil, domain.NotFound("property")
	}
	return prop, nil
}

func (s *BookingService) findBooking(ctx context.Context, id string) (*domain.Booking, error) {
	if !utils.ValidID(id) {
		return nil, domain.InvalidIdentifier("booking")
	}
	sctx, cancel := withTimeout(ctx, s.opts.StorageTimeout)
	defer cancel()
	b, err := s.bookings.FindByID(sctx, id)
	if err != nil {
		return nil, storageErr("load booking", err)
	}
	if b == nil {
		return nil, domain.NotFound("booking")
	}
	return b, nil
}
