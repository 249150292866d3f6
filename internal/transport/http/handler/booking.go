package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/service"
	"vacation-rental-api/internal/transport/http/ez"
	mdw "vacation-rental-api/internal/transport/http/middleware"
)

type BookingHandler struct {
	bookings *service.BookingService
	log      *zap.Logger
}

func NewBookingHandler(bookings *service.BookingService, l *zap.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, log: l}
}

func (BookingHandler) Priority() int { return 30 }

type createBookingReq struct {
	PropertyID   string `json:"propertyId"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
	Guests       int    `json:"guests"`
}

// toInput 一次性收集所有格式错误
func (r createBookingReq) toInput() (service.CreateBookingInput, error) {
	var fields []domain.FieldError
	in := service.CreateBookingInput{PropertyID: strings.TrimSpace(r.PropertyID), Guests: r.Guests}

	if in.PropertyID == "" {
		fields = append(fields, domain.FieldError{Field: "propertyId", Rule: "required", Message: "is required"})
	}
	parse := func(field, v string, dst *time.Time) {
		if strings.TrimSpace(v) == "" {
			fields = append(fields, domain.FieldError{Field: field, Rule: "required", Message: "is required"})
			return
		}
		t, err := domain.ParseDay(v)
		if err != nil {
			fields = append(fields, domain.FieldError{Field: field, Rule: "date", Message: "must be a date (YYYY-MM-DD)"})
			return
		}
		*dst = t
	}
	parse("checkInDate", r.CheckInDate, &in.CheckIn)
	parse("checkOutDate", r.CheckOutDate, &in.CheckOut)
	if r.Guests < 1 {
		fields = append(fields, domain.FieldError{Field: "guests", Rule: "min", Message: "must be at least 1"})
	}
	if len(fields) > 0 {
		return in, domain.Validation(fields...)
	}
	return in, nil
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *BookingHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[createBookingReq, *domain.Booking]{
		Method: http.MethodPost,
		Path:   "/bookings",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *createBookingReq) (*domain.Booking, error) {
			input, err := in.toInput()
			if err != nil {
				return nil, err
			}
			return h.bookings.Create(c.Request.Context(), mdw.Principal(c), input)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Booking]{
		Method: http.MethodGet,
		Path:   "/bookings/my",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Booking, error) {
			return h.bookings.ListForUser(c.Request.Context(), mdw.Principal(c))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Booking]{
		Method: http.MethodGet,
		Path:   "/bookings/property/:propertyId",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Booking, error) {
			return h.bookings.ListForProperty(c.Request.Context(), mdw.Principal(c), c.Param("propertyId"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.DateRange]{
		Method: http.MethodGet,
		Path:   "/bookings/property/:propertyId/occupied-dates",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.DateRange, error) {
			return h.bookings.OccupiedDates(c.Request.Context(), c.Param("propertyId"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Booking]{
		Method: http.MethodPut,
		Path:   "/bookings/:id/cancel",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Booking, error) {
			return h.bookings.Cancel(c.Request.Context(), mdw.Principal(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[statusReq, *domain.Booking]{
		Method: http.MethodPut,
		Path:   "/bookings/:id/status",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *statusReq) (*domain.Booking, error) {
			return h.bookings.SetStatus(c.Request.Context(), mdw.Principal(c), c.Param("id"), in.Status)
		},
	})
}
