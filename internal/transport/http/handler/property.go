package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vacation-rental-api/internal/core/media"
	"vacation-rental-api/internal/domain"
	"vacation-rental-api/internal/service"
	"vacation-rental-api/internal/transport/http/ez"
	mdw "vacation-rental-api/internal/transport/http/middleware"
)

type PropertyHandler struct {
	catalog *service.CatalogService
	log     *zap.Logger
}

func NewPropertyHandler(catalog *service.CatalogService, l *zap.Logger) *PropertyHandler {
	return &PropertyHandler{catalog: catalog, log: l}
}

func (PropertyHandler) Priority() int { return 20 }

// propertyReq JSON 与 multipart 共用；指针区分未提供
type propertyReq struct {
	Title         *string  `json:"title" form:"title"`
	Description   *string  `json:"description" form:"description"`
	Location      *string  `json:"location" form:"location"`
	PricePerNight *float64 `json:"pricePerNight" form:"pricePerNight"`
	Bedrooms      *int     `json:"bedrooms" form:"bedrooms"`
	Bathrooms     *int     `json:"bathrooms" form:"bathrooms"`
	Guests        *int     `json:"guests" form:"guests"`
	Owner         *string  `json:"owner" form:"owner"`
}

func (r propertyReq) patch() domain.PropertyPatch {
	return domain.PropertyPatch{
		Title:         r.Title,
		Description:   r.Description,
		Location:      r.Location,
		PricePerNight: r.PricePerNight,
		Bedrooms:      r.Bedrooms,
		Bathrooms:     r.Bathrooms,
		Guests:        r.Guests,
		OwnerID:       r.Owner,
	}
}

func (r propertyReq) input() service.PropertyInput {
	var in service.PropertyInput
	var p domain.Property
	r.patch().ApplyTo(&p)
	in.Title, in.Description, in.Location = p.Title, p.Description, p.Location
	in.PricePerNight, in.Bedrooms, in.Bathrooms, in.Guests = p.PricePerNight, p.Bedrooms, p.Bathrooms, p.Guests
	in.OwnerID = p.OwnerID
	return in
}

type deletedOut struct {
	ID string `json:"id"`
}

func (h *PropertyHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.log)

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Property]{
		Method: http.MethodGet,
		Path:   "/properties",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Property, error) {
			return h.catalog.List(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Property]{
		Method: http.MethodGet,
		Path:   "/properties/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Property, error) {
			return h.catalog.Get(c.Request.Context(), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[propertyReq, *domain.Property]{
		Method: http.MethodPost,
		Path:   "/properties",
		Binder: ez.BindForm,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *propertyReq) (*domain.Property, error) {
			img, closeImg, err := imageUpload(c)
			if err != nil {
				return nil, err
			}
			defer closeImg()
			return h.catalog.Create(c.Request.Context(), mdw.Principal(c), in.input(), img)
		},
	})

	ez.RegisterAction(e, ez.Action[propertyReq, *domain.Property]{
		Method: http.MethodPut,
		Path:   "/properties/:id",
		Binder: ez.BindForm,
		Auth:   true,
		Handler: func(c *gin.Context, in *propertyReq) (*domain.Property, error) {
			img, closeImg, err := imageUpload(c)
			if err != nil {
				return nil, err
			}
			defer closeImg()
			return h.catalog.Update(c.Request.Context(), mdw.Principal(c), c.Param("id"), in.patch(), img)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, deletedOut]{
		Method: http.MethodDelete,
		Path:   "/properties/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (deletedOut, error) {
			id := c.Param("id")
			if err := h.catalog.Delete(c.Request.Context(), mdw.Principal(c), id); err != nil {
				return deletedOut{}, err
			}
			return deletedOut{ID: id}, nil
		},
	})
}

// imageUpload 读取可选的 image 文件字段；非 multipart 请求视为未上传
func imageUpload(c *gin.Context) (*media.Upload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, noop, nil
	}
	fh, err := c.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, domain.Validation(domain.FieldError{Field: "image", Rule: "file", Message: "could not read uploaded file"})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, domain.Internal("open uploaded file", err)
	}
	return &media.Upload{Filename: fh.Filename, Body: f}, func() { _ = f.Close() }, nil
}
