package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forez0/bikeshop/internal/domain/auth"
	"github.com/forez0/bikeshop/internal/domain/catalog"
	"github.com/forez0/bikeshop/internal/domain/discount"
	"github.com/forez0/bikeshop/internal/domain/fulfillment"
	"github.com/forez0/bikeshop/internal/domain/order"
)

// --- Fakes ---

type fakeBikes struct {
	byID       map[string]*catalog.Bike
	outOfStock []string
}

func (f *fakeBikes) List(_ context.Context, bikeType catalog.BikeType) ([]catalog.Bike, error) {
	var out []catalog.Bike
	for _, b := range f.byID {
		if bikeType == "" || b.Type == bikeType {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBikes) GetByID(_ context.Context, id string) (*catalog.Bike, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return b, nil
}

func (f *fakeBikes) GetByIDs(_ context.Context, ids []string) ([]catalog.Bike, error) {
	var out []catalog.Bike
	for _, id := range ids {
		if b, ok := f.byID[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBikes) Create(_ context.Context, b *catalog.Bike) error {
	f.byID[b.ID] = b
	return nil
}

func (f *fakeBikes) MarkOutOfStock(_ context.Context, ids []string) error {
	f.outOfStock = append(f.outOfStock, ids...)
	return nil
}

type fakeOrders struct {
	orders map[string]*order.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*order.Order)}
}

func (f *fakeOrders) FindOpenByUser(_ context.Context, userID string) (*order.Order, error) {
	for _, o := range f.orders {
		if o.UserID == userID && !o.Completed {
			cp := *o
			cp.Lines = append([]order.Line(nil), o.Lines...)
			return &cp, nil
		}
	}
	return nil, order.ErrNoOpenOrder
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	return &cp, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	cp := *o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) AddLine(_ context.Context, l *order.Line) error {
	o := f.orders[l.OrderID]
	for i := range o.Lines {
		if o.Lines[i].BikeID == l.BikeID {
			return nil
		}
	}
	o.Lines = append(o.Lines, *l)
	return nil
}

func (f *fakeOrders) SavePricing(_ context.Context, o *order.Order) error {
	cp := *o
	cp.Lines = append([]order.Line(nil), o.Lines...)
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) MarkCompleted(_ context.Context, orderID, trackingCode string, status order.Status) error {
	o, ok := f.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	o.Completed = true
	o.Status = status
	o.TrackingCode = trackingCode
	return nil
}

func (f *fakeOrders) ClaimFulfillment(_ context.Context, orderID string) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.SuccessHandled {
		return false, nil
	}
	o.SuccessHandled = true
	return true, nil
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(_ context.Context, recipient, subject, _ string) error {
	f.sent = append(f.sent, recipient+": "+subject)
	return nil
}

type fakeAdmin struct {
	notified int
}

func (f *fakeAdmin) OrderCompleted(context.Context, *order.Order) error {
	f.notified++
	return nil
}

// --- Test server setup ---

var testUser = auth.User{ID: "u1", Email: "rider@example.com", Name: "Rider"}

type env struct {
	router *chi.Mux
	bikes  *fakeBikes
	orders *fakeOrders
	sender *fakeSender
	admin  *fakeAdmin
}

func newEnv(t *testing.T) *env {
	t.Helper()

	bikes := &fakeBikes{byID: map[string]*catalog.Bike{
		"b1": {ID: "b1", Name: "MTB 1000", Type: catalog.TypeMountain,
			Price: decimal.RequireFromString("500.00"), InStock: true,
			Spec: catalog.MountainSpec{Suspension: "air"}},
		"b2": {ID: "b2", Name: "Urban 300", Type: catalog.TypeCity,
			Price: decimal.RequireFromString("300.00"), InStock: true},
	}}
	orders := newFakeOrders()
	sender := &fakeSender{}
	admin := &fakeAdmin{}

	svc := order.NewService(bikes, orders)
	policy := discount.NewPolicy(10, orders)
	coord := fulfillment.NewCoordinator(orders, bikes, sender, admin)
	h := NewHandler(bikes, svc, policy, coord, NewNopMetrics())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			u := testUser
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), &u)))
		})
	})
	r.Route("/api", h.Routes)

	return &env{router: r, bikes: bikes, orders: orders, sender: sender, admin: admin}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// --- Tests ---

func TestListBikes(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/bikes", "")

	require.Equal(t, http.StatusOK, w.Code)
	bikes := decodeBody[[]bikeResponse](t, w)
	require.Len(t, bikes, 2)
}

func TestListBikes_TypeFilter(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/bikes?type=mountain", "")

	require.Equal(t, http.StatusOK, w.Code)
	bikes := decodeBody[[]bikeResponse](t, w)
	require.Len(t, bikes, 1)
	assert.Equal(t, "MTB 1000", bikes[0].Name)
	assert.Equal(t, "Mountain bike with air suspension", bikes[0].Specifics)
}

func TestListBikes_UnknownType(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/bikes?type=submarine", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBike_NotFound(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/bikes/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddItem(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"b1"}`)

	require.Equal(t, http.StatusOK, w.Code)
	o := decodeBody[orderResponse](t, w)
	assert.Equal(t, "500.00", o.Total)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "b1", o.Items[0].BikeID)
}

func TestAddItem_Validation(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/items", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddItem_UnknownBike(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"nope"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCurrentOrder_None(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/orders/current", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckout(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"b1"}`)
	e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"b2"}`)

	w := e.do(t, http.MethodPost, "/api/orders/checkout", `{"payment_method":"paypal"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[checkoutResponse](t, w)
	assert.True(t, resp.Paid)
	assert.True(t, resp.Order.Completed)
	assert.True(t, strings.HasPrefix(resp.Order.TrackingCode, "BS-"))

	// 10% off 800.00.
	assert.Equal(t, "720.00", resp.Order.Total)
	assert.Equal(t, "80.00", resp.Order.Discount)
	require.NotEmpty(t, resp.Messages.Info)
	assert.Contains(t, resp.Messages.Info[0], "10%")
}

func TestCheckout_EmptyBodyDefaultsToCreditCard(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"b2"}`)

	w := e.do(t, http.MethodPost, "/api/orders/checkout", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[checkoutResponse](t, w)
	assert.True(t, resp.Paid)
}

func TestCheckout_NoOrder(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/checkout", `{}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderSuccess_SideEffectsRunOnce(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"b1"}`)
	w := e.do(t, http.MethodPost, "/api/orders/checkout", `{}`)
	resp := decodeBody[checkoutResponse](t, w)
	id := resp.Order.ID

	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/success", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, e.sender.sent, 1)
	assert.Contains(t, e.sender.sent[0], testUser.Email)
	assert.Equal(t, []string{"b1"}, e.bikes.outOfStock)
	assert.Equal(t, 1, e.admin.notified)

	// Refreshing the success page repeats nothing.
	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/success", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, e.sender.sent, 1)
	assert.Len(t, e.bikes.outOfStock, 1)
	assert.Equal(t, 1, e.admin.notified)
}

func TestOrderSuccess_NotPaid(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/items", `{"bike_id":"b1"}`)
	o := decodeBody[orderResponse](t, w)

	w = e.do(t, http.MethodPost, "/api/orders/"+o.ID+"/success", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOrderSuccess_UnknownOrder(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders/nope/success", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Auth middleware ---

type fakeKeys struct {
	byHash map[string]*auth.KeyInfo
}

var errNoKey = errors.New("api key not found")

func (f *fakeKeys) FindByHash(_ context.Context, hash string) (*auth.KeyInfo, error) {
	info, ok := f.byHash[hash]
	if !ok {
		return nil, errNoKey
	}
	return info, nil
}

func TestAPIKeyAuth(t *testing.T) {
	pepper := []byte("test-pepper")
	key := "secret-key"

	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	hash := hex.EncodeToString(mac.Sum(nil))

	keys := &fakeKeys{byHash: map[string]*auth.KeyInfo{
		hash: {ID: "k1", KeyHash: hash, User: testUser, Active: true},
	}}

	var gotUser *auth.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = auth.UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	mw := APIKeyAuth(keys, pepper)(next)

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, gotUser)
		assert.Equal(t, testUser.ID, gotUser.ID)
	})

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Key", "not-the-key")
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
