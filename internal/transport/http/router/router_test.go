package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vacation-rental-api/internal/core/auth"
	"vacation-rental-api/internal/core/config"
	"vacation-rental-api/internal/core/database"
	"vacation-rental-api/internal/core/lock"
	"vacation-rental-api/internal/core/media"
	"vacation-rental-api/internal/core/metrics"
	"vacation-rental-api/internal/repo"
	"vacation-rental-api/internal/service"
	"vacation-rental-api/internal/transport/http/handler"
)

type env struct {
	api   *gin.Engine
	admin *gin.Engine
	users *service.UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWith(t, nil, service.BookingOptions{})
}

func newEnvWith(t *testing.T, locker lock.Locker, bopts service.BookingOptions) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics.Register()

	dir := t.TempDir()
	db, err := database.NewGorm(database.Opts{
		Driver: "sqlite", DSN: "file:" + filepath.Join(dir, "api.db") + "?_busy_timeout=5000",
		MaxOpenConns: 1, LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	store, err := media.NewDiskStore(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)

	creds := auth.NewService(auth.NewJWTer("router-secret", "rental-test", time.Hour), bcrypt.MinCost)
	userRepo, propRepo, bookingRepo := repo.NewUserRepo(db), repo.NewPropertyRepo(db), repo.NewBookingRepo(db)

	users := service.NewUserService(userRepo, creds, nil, 5*time.Second)
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	catalog := service.NewCatalogService(propRepo, userRepo, store, nil, nil, service.CatalogOptions{Locker: locker})
	bookings := service.NewBookingService(bookingRepo, propRepo, service.NewAvailability(bookingRepo), locker, nil, bopts)

	reg := NewRegistry(
		handler.NewAuthHandler(users, nil),
		handler.NewPropertyHandler(catalog, nil),
		handler.NewBookingHandler(bookings, nil),
		handler.NewAdminHandler(users, nil),
	)
	d := Deps{
		HTTP:       config.HTTP{RequestTimeoutSec: 10, MaxBodyMB: 1, MaxConcurrent: 50},
		Auth:       users,
		Registry:   reg,
		UploadsDir: store.Dir,
		UploadsURL: "/uploads",
	}
	return &env{api: NewAPIEngine(d), admin: NewAdminEngine(d), users: users}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send(t, h, req, token)
}

func send(t *testing.T, h http.Handler, req *http.Request, token string) (int, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (e *env) register(t *testing.T, name, email string) (token, id string) {
	t.Helper()
	status, res := do(t, e.api, http.MethodPost, "/api/auth/register", "", gin.H{"name": name, "email": email, "password": "secret1"})
	require.Equal(t, http.StatusCreated, status, res.Msg)
	out := decode[struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}](t, res.Data)
	return out.Token, out.User.ID
}

func (e *env) adminToken(t *testing.T) string {
	t.Helper()
	_, err := e.users.EnsureAdmin(context.Background(), "Root", "root@example.com", "rootpass")
	require.NoError(t, err)
	status, res := do(t, e.api, http.MethodPost, "/api/auth/login", "", gin.H{"email": "root@example.com", "password": "rootpass"})
	require.Equal(t, http.StatusOK, status)
	return decode[struct {
		Token string `json:"token"`
	}](t, res.Data).Token
}

func multipartProperty(t *testing.T, fields map[string]string, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG fake"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/properties", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type propertyOut struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Owner    string `json:"owner"`
}

type bookingOut struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	TotalPrice float64 `json:"totalPrice"`
}

func TestBookingFlow(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(t)
	alice, aliceID := e.register(t, "Alice", "alice@example.com")
	bob, _ := e.register(t, "Bob", "bob@example.com")

	fields := map[string]string{
		"title": "Casa del Mar", "description": "Sea view house with two bedrooms",
		"location": "Valencia", "pricePerNight": "100", "bedrooms": "2", "bathrooms": "1", "guests": "4",
		"owner": aliceID,
	}

	status, _ := send(t, e.api, multipartProperty(t, fields, "front.png"), bob)
	require.Equal(t, http.StatusForbidden, status)

	status, res := send(t, e.api, multipartProperty(t, fields, "front.png"), admin)
	require.Equal(t, http.StatusCreated, status, res.Msg)
	prop := decode[propertyOut](t, res.Data)
	assert.True(t, strings.HasPrefix(prop.ImageURL, "/uploads/"))
	assert.Equal(t, aliceID, prop.Owner)

	t.Run("StaticImage", func(t *testing.T) {
		w := httptest.NewRecorder()
		e.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, prop.ImageURL, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("PublicCatalog", func(t *testing.T) {
		status, res := do(t, e.api, http.MethodGet, "/api/properties", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]propertyOut](t, res.Data), 1)

		status, _ = do(t, e.api, http.MethodGet, "/api/properties/not-an-id", "", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		status, _ = do(t, e.api, http.MethodGet, "/api/properties/00000000-0000-0000-0000-000000000000", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("ValidationFields", func(t *testing.T) {
		status, res := do(t, e.api, http.MethodPost, "/api/properties", admin, gin.H{"title": "Loft", "description": "short"})
		require.Equal(t, http.StatusBadRequest, status)
		out := decode[struct {
			Fields []struct {
				Field string `json:"field"`
			} `json:"fields"`
		}](t, res.Data)
		assert.Len(t, out.Fields, 6)
	})

	var booking bookingOut
	t.Run("CreateAndConflict", func(t *testing.T) {
		body := gin.H{"propertyId": prop.ID, "checkInDate": "2099-02-01", "checkOutDate": "2099-02-04", "guests": 2}

		status, _ := do(t, e.api, http.MethodPost, "/api/bookings", "", body)
		assert.Equal(t, http.StatusUnauthorized, status)
		status, _ = do(t, e.api, http.MethodPost, "/api/bookings", "garbage", body)
		assert.Equal(t, http.StatusUnauthorized, status)

		status, res := do(t, e.api, http.MethodPost, "/api/bookings", bob, body)
		require.Equal(t, http.StatusCreated, status, res.Msg)
		booking = decode[bookingOut](t, res.Data)
		assert.Equal(t, 300.0, booking.TotalPrice)
		assert.Equal(t, "pending", booking.Status)

		body["checkInDate"] = "2099-02-03T00:00:00Z"
		body["checkOutDate"] = "2099-02-06"
		status, res = do(t, e.api, http.MethodPost, "/api/bookings", alice, body)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, 409, res.Code)

		status, _ = do(t, e.api, http.MethodPost, "/api/bookings", alice, gin.H{"propertyId": prop.ID, "checkInDate": "tomorrow", "guests": 9})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("OccupiedDates", func(t *testing.T) {
		status, res := do(t, e.api, http.MethodGet, "/api/bookings/property/"+prop.ID+"/occupied-dates", "", nil)
		require.Equal(t, http.StatusOK, status)
		ranges := decode[[]map[string]string](t, res.Data)
		require.Len(t, ranges, 1)
		assert.Equal(t, map[string]string{"start": "2099-02-01", "end": "2099-02-04"}, ranges[0])
	})

	t.Run("OwnerViews", func(t *testing.T) {
		status, _ := do(t, e.api, http.MethodGet, "/api/bookings/property/"+prop.ID, bob, nil)
		assert.Equal(t, http.StatusForbidden, status)
		status, res := do(t, e.api, http.MethodGet, "/api/bookings/property/"+prop.ID, alice, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]bookingOut](t, res.Data), 1)

		status, res = do(t, e.api, http.MethodGet, "/api/bookings/my", bob, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]bookingOut](t, res.Data), 1)
	})

	t.Run("StatusAndCancel", func(t *testing.T) {
		path := "/api/bookings/" + booking.ID
		status, _ := do(t, e.api, http.MethodPut, path+"/status", bob, gin.H{"status": "confirmed"})
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = do(t, e.api, http.MethodPut, path+"/status", alice, gin.H{"status": "bogus"})
		assert.Equal(t, http.StatusBadRequest, status)
		status, res := do(t, e.api, http.MethodPut, path+"/status", alice, gin.H{"status": "confirmed"})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "confirmed", decode[bookingOut](t, res.Data).Status)

		status, res = do(t, e.api, http.MethodPut, path+"/cancel", bob, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "cancelled", decode[bookingOut](t, res.Data).Status)
		status, _ = do(t, e.api, http.MethodPut, path+"/cancel", bob, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("DeleteProperty", func(t *testing.T) {
		status, _ := do(t, e.api, http.MethodDelete, "/api/properties/"+prop.ID, bob, nil)
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = do(t, e.api, http.MethodDelete, "/api/properties/"+prop.ID, alice, nil)
		assert.Equal(t, http.StatusOK, status)
		status, _ = do(t, e.api, http.MethodGet, "/api/properties/"+prop.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, status)

		// 历史预订仍可见
		status, res := do(t, e.api, http.MethodGet, "/api/bookings/my", bob, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, decode[[]bookingOut](t, res.Data), 1)
	})
}

func TestAuthEndpoints(t *testing.T) {
	e := newEnv(t)
	token, id := e.register(t, "Carla", "carla@example.com")

	status, res := do(t, e.api, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decode[map[string]any](t, res.Data)
	assert.Equal(t, id, profile["id"])
	assert.Equal(t, "user", profile["role"])
	assert.NotContains(t, profile, "passwordHash")

	status, _ = do(t, e.api, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, e.api, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Carla", "email": "carla@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, e.api, http.MethodPost, "/api/auth/login", "", gin.H{"email": "carla@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	status, _ = send(t, e.api, req, "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminEngine(t *testing.T) {
	e := newEnv(t)
	admin := e.adminToken(t)
	user, userID := e.register(t, "Dana", "dana@example.com")

	status, _ := do(t, e.admin, http.MethodGet, "/admin/v1/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = do(t, e.admin, http.MethodGet, "/admin/v1/users", user, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, res := do(t, e.admin, http.MethodGet, "/admin/v1/users?limit=10", admin, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[struct {
		Total int64 `json:"total"`
	}](t, res.Data)
	assert.Equal(t, int64(2), list.Total)

	status, _ = do(t, e.admin, http.MethodPut, "/admin/v1/users/"+userID+"/role", admin, gin.H{"role": "admin"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, e.admin, http.MethodPost, "/admin/v1/users/"+userID+"/ban", admin, nil)
	assert.Equal(t, http.StatusOK, status)

	// 被封禁账号的令牌立即失效
	status, _ = do(t, e.api, http.MethodGet, "/api/auth/profile", user, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	status, _ := do(t, e.api, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	w := httptest.NewRecorder()
	e.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rental_http_requests_total")
}

type stuckLocker struct{}

func (stuckLocker) Lock(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBookingLockTimeoutIsServerError(t *testing.T) {
	e := newEnvWith(t, stuckLocker{}, service.BookingOptions{LockTimeout: 20 * time.Millisecond})
	admin := e.adminToken(t)
	guest, _ := e.register(t, "Gus", "gus@example.com")

	status, res := do(t, e.api, http.MethodPost, "/api/properties", admin, gin.H{
		"title": "Casa del Mar", "description": "Sea view house with two bedrooms", "location": "Valencia",
		"pricePerNight": 100, "bedrooms": 2, "bathrooms": 1, "guests": 4,
	})
	require.Equal(t, http.StatusCreated, status, res.Msg)
	prop := decode[propertyOut](t, res.Data)

	status, res = do(t, e.api, http.MethodPost, "/api/bookings", guest, gin.H{
		"propertyId": prop.ID, "checkInDate": "2099-03-01", "checkOutDate": "2099-03-03", "guests": 2,
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, 500, res.Code)
	assert.NotContains(t, res.Msg, "lock")
}
