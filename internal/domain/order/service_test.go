package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forez0/bikeshop/internal/domain/catalog"
)

// --- Mock implementations ---

type mockBikeRepo struct {
	catalog.Repository

	byID map[string]*catalog.Bike
}

func (m *mockBikeRepo) GetByID(_ context.Context, id string) (*catalog.Bike, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return b, nil
}

// memOrderRepo is an in-memory Repository covering the paths the service uses.
type memOrderRepo struct {
	Repository

	orders      map[string]*Order
	createCalls int
	priceCalls  int
	lineCalls   int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*Order)}
}

func (m *memOrderRepo) FindOpenByUser(_ context.Context, userID string) (*Order, error) {
	for _, o := range m.orders {
		if o.UserID == userID && !o.Completed {
			cp := *o
			cp.Lines = append([]Line(nil), o.Lines...)
			return &cp, nil
		}
	}
	return nil, ErrNoOpenOrder
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) Create(_ context.Context, o *Order) error {
	m.createCalls++
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) AddLine(_ context.Context, l *Line) error {
	m.lineCalls++
	o := m.orders[l.OrderID]
	for i := range o.Lines {
		if o.Lines[i].BikeID == l.BikeID {
			return nil
		}
	}
	o.Lines = append(o.Lines, *l)
	return nil
}

func (m *memOrderRepo) SavePricing(_ context.Context, o *Order) error {
	m.priceCalls++
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	m.orders[o.ID] = &cp
	return nil
}

// --- Helpers ---

func testBikes() *mockBikeRepo {
	return &mockBikeRepo{byID: map[string]*catalog.Bike{
		"b1": {ID: "b1", Name: "MTB 1000", Price: d("500.00"), InStock: true},
		"b2": {ID: "b2", Name: "Urban 300", Price: d("300.00"), InStock: true},
	}}
}

// --- Tests ---

func TestService_AddBike_CreatesOrder(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(testBikes(), repo)

	o, err := svc.AddBike(context.Background(), "u1", "b1")
	require.NoError(t, err)

	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, StatusNew, o.Status)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "b1", o.Lines[0].BikeID)
	assert.Equal(t, 1, o.Lines[0].Quantity)
	assert.True(t, d("500.00").Equal(o.Lines[0].UnitPrice), "price captured at add time")
	assert.True(t, d("500.00").Equal(o.Total))
	assert.Equal(t, 1, repo.createCalls)
}

func TestService_AddBike_AppendsToOpenOrder(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(testBikes(), repo)

	_, err := svc.AddBike(context.Background(), "u1", "b1")
	require.NoError(t, err)

	o, err := svc.AddBike(context.Background(), "u1", "b2")
	require.NoError(t, err)

	require.Len(t, o.Lines, 2)
	assert.True(t, d("800.00").Equal(o.Total))
	assert.Equal(t, 1, repo.createCalls, "no duplicate open order")
}

func TestService_AddBike_DuplicateIsNoOp(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(testBikes(), repo)

	_, err := svc.AddBike(context.Background(), "u1", "b1")
	require.NoError(t, err)

	o, err := svc.AddBike(context.Background(), "u1", "b1")
	require.NoError(t, err)

	require.Len(t, o.Lines, 1)
	assert.True(t, d("500.00").Equal(o.Total))
}

func TestService_AddBike_UnknownBike(t *testing.T) {
	svc := NewService(testBikes(), newMemOrderRepo())

	_, err := svc.AddBike(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_AddBike_PreservesDiscountPercent(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(testBikes(), repo)

	first, err := svc.AddBike(context.Background(), "u1", "b1")
	require.NoError(t, err)

	// A discount was applied between the two additions.
	stored := repo.orders[first.ID]
	require.NoError(t, RecomputeDiscount(stored, 10))

	o, err := svc.AddBike(context.Background(), "u1", "b2")
	require.NoError(t, err)

	assert.Equal(t, 10, o.DiscountPercent)
	assert.True(t, d("80.00").Equal(o.Discount), "discount = %s", o.Discount)
	assert.True(t, d("720.00").Equal(o.Total), "total = %s", o.Total)

	sum := decimal.Zero
	for i := range o.Lines {
		sum = sum.Add(o.Lines[i].Discount)
	}
	assert.True(t, sum.Equal(o.Discount))
}

func TestService_Get_ScopedToUser(t *testing.T) {
	repo := newMemOrderRepo()
	svc := NewService(testBikes(), repo)

	o, err := svc.AddBike(context.Background(), "u1", "b1")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.Get(context.Background(), "intruder", o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Current_NoOrder(t *testing.T) {
	svc := NewService(testBikes(), newMemOrderRepo())

	_, err := svc.Current(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoOpenOrder)
}
