package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Checker-Finance/catalog-api/internal/discount"
	"github.com/Checker-Finance/catalog-api/internal/events"
	"github.com/Checker-Finance/catalog-api/internal/fault"
	"github.com/Checker-Finance/catalog-api/internal/mediator"
	"github.com/Checker-Finance/catalog-api/pkg/logger"
	"github.com/Checker-Finance/catalog-api/pkg/model"
)

// --- Mocks ---

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.Product

	writes int

	findErr   error
	insertErr error
	updateErr error
	removeErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]model.Product)}
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	p, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memRepo) FindAll(_ context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	out := make([]model.Product, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Insert(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	p.ID = r.nextID
	r.rows[p.ID] = *p
	r.writes++
	return nil
}

func (r *memRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.rows[p.ID]; !ok {
		return ErrVanished
	}
	r.rows[p.ID] = *p
	r.writes++
	return nil
}

func (r *memRepo) Remove(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeErr != nil {
		return r.removeErr
	}
	if _, ok := r.rows[p.ID]; !ok {
		return ErrVanished
	}
	delete(r.rows, p.ID)
	r.writes++
	return nil
}

// columnRepo keeps rows at the precision of the productos columns:
// microsecond timestamps and two-decimal prices.
type columnRepo struct{ *memRepo }

func persisted(p model.Product) model.Product {
	p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
	if p.UpdatedAt != nil {
		u := p.UpdatedAt.Truncate(time.Microsecond)
		p.UpdatedAt = &u
	}
	p.Price = p.Price.Round(2)
	return p
}

func (r columnRepo) Insert(ctx context.Context, p *model.Product) error {
	row := persisted(*p)
	if err := r.memRepo.Insert(ctx, &row); err != nil {
		return err
	}
	p.ID = row.ID
	return nil
}

func (r columnRepo) Update(ctx context.Context, p *model.Product) error {
	row := persisted(*p)
	return r.memRepo.Update(ctx, &row)
}

func (r *memRepo) seed(p model.Product) int64 {
	_ = r.Insert(context.Background(), &p)
	r.writes = 0
	return p.ID
}

type mockPublisher struct {
	publishFn func(ctx context.Context, e events.Event) error
	published []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	m.published = append(m.published, e)
	if m.publishFn != nil {
		return m.publishFn(ctx, e)
	}
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type sourceFunc func(ctx context.Context) (discount.Config, error)

func (f sourceFunc) Load(ctx context.Context) (discount.Config, error) { return f(ctx) }

// --- Helpers ---

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newTestHandlers(repo *memRepo, pub *mockPublisher, src discount.Source, clock *fakeClock) *Handlers {
	return NewHandlers(Deps{
		Repo:      repo,
		Discounts: src,
		Events:    pub,
		Clock:     clock.Now,
		Logger:    zap.NewNop(),
	})
}

// --- Create ---

func TestCreate_Success(t *testing.T) {
	repo := newMemRepo()
	pub := &mockPublisher{}
	h := newTestHandlers(repo, pub, nil, &fakeClock{now: t0})

	v, err := h.Create(context.Background(), CreateProduct{
		Code:        "A1",
		Name:        "Widget",
		Description: strPtr("blue"),
		Price:       decimal.RequireFromString("100"),
		CategoryID:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), v.ID)
	assert.Equal(t, "A1", v.Code)
	assert.Equal(t, "blue", v.Description)
	assert.True(t, v.Active)
	assert.Equal(t, 0, v.Stock)
	assert.Equal(t, t0, v.CreatedAt)
	assert.Nil(t, v.UpdatedAt)

	require.Len(t, pub.published, 1)
	assert.Equal(t, events.ProductCreated, pub.published[0].Type)
	assert.Equal(t, int64(1), pub.published[0].ProductID)
}

func TestCreate_ExplicitInactive(t *testing.T) {
	h := newTestHandlers(newMemRepo(), &mockPublisher{}, nil, &fakeClock{now: t0})

	v, err := h.Create(context.Background(), CreateProduct{Code: "A1", Name: "W", Active: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, v.Active)
	assert.Equal(t, "", v.Description)
}

func TestCreate_RequiresCodeAndName(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandlers(repo, &mockPublisher{}, nil, &fakeClock{now: t0})

	_, err := h.Create(context.Background(), CreateProduct{Code: "  ", Name: "W"})
	assert.True(t, fault.Is(err, fault.KindInvalidArgument))

	_, err = h.Create(context.Background(), CreateProduct{Code: "A1"})
	assert.True(t, fault.Is(err, fault.KindInvalidArgument))
	assert.Equal(t, "nombre is required", fault.Message(err))

	assert.Equal(t, 0, repo.writes)
}

func TestCreate_InsertFailureIsInternal(t *testing.T) {
	repo := newMemRepo()
	repo.insertErr = errors.New("connection reset")
	pub := &mockPublisher{}
	h := newTestHandlers(repo, pub, nil, &fakeClock{now: t0})

	_, err := h.Create(context.Background(), CreateProduct{Code: "A1", Name: "W"})
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
	assert.ErrorIs(t, err, repo.insertErr)
	assert.Empty(t, pub.published)
}

func TestCreate_PublishFailureDoesNotFailRequest(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	pub := &mockPublisher{publishFn: func(context.Context, events.Event) error {
		return errors.New("broker down")
	}}
	h := NewHandlers(Deps{
		Repo:   newMemRepo(),
		Events: pub,
		Clock:  (&fakeClock{now: t0}).Now,
		Logger: zap.New(core),
	})

	ctx := logger.WithTraceID(context.Background(), "trace-1")
	_, err := h.Create(ctx, CreateProduct{Code: "A1", Name: "W"})
	require.NoError(t, err)

	entries := logs.FilterMessage("catalog.event.publish_failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "trace-1", entries[0].ContextMap()["trace_id"])
}

func TestCreate_MatchesStoredRow(t *testing.T) {
	repo := columnRepo{newMemRepo()}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 123456789, time.UTC)}
	h := NewHandlers(Deps{Repo: repo, Clock: clock.Now, Logger: zap.NewNop()})

	created, err := h.Create(context.Background(), CreateProduct{
		Code:  "A1",
		Name:  "W",
		Price: decimal.RequireFromString("10.555"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10.56", created.Price.String())

	got, err := h.GetByID(context.Background(), GetProductByID{ID: created.ID})
	require.NoError(t, err)
	assertSameView(t, created, got)

	clock.now = clock.now.Add(time.Second + 987)
	updated, err := h.Update(context.Background(), UpdateProduct{
		ID:    created.ID,
		Code:  "A1",
		Name:  "W",
		Price: decimal.RequireFromString("0.125"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.13", updated.Price.String())

	got, err = h.GetByID(context.Background(), GetProductByID{ID: created.ID})
	require.NoError(t, err)
	assertSameView(t, updated, got)
}

func assertSameView(t *testing.T, want, got model.ProductView) {
	t.Helper()
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}

// --- GetByID ---

func TestGetByID(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", Price: decimal.NewFromInt(100), CategoryID: 3, CreatedAt: t0})
	// a discount for the category must not affect single reads
	src := discount.NewConfig(10, "3")
	h := newTestHandlers(repo, &mockPublisher{}, src, &fakeClock{now: t0})

	v, err := h.GetByID(context.Background(), GetProductByID{ID: id})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(v.Price))
}

func TestGetByID_Faults(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandlers(repo, &mockPublisher{}, nil, &fakeClock{now: t0})

	_, err := h.GetByID(context.Background(), GetProductByID{ID: 42})
	assert.True(t, fault.Is(err, fault.KindNotFound))

	_, err = h.GetByID(context.Background(), GetProductByID{ID: 0})
	assert.True(t, fault.Is(err, fault.KindNotFound))

	_, err = h.GetByID(context.Background(), GetProductByID{ID: -4})
	assert.True(t, fault.Is(err, fault.KindNotFound))
	assert.Equal(t, "product -4 not found", fault.Message(err))

	repo.findErr = errors.New("timeout")
	_, err = h.GetByID(context.Background(), GetProductByID{ID: 1})
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
}

// --- List ---

func TestList_AppliesDiscountPerCategory(t *testing.T) {
	repo := newMemRepo()
	repo.seed(model.Product{Code: "A", Name: "a", Price: decimal.NewFromInt(100), CategoryID: 1, CreatedAt: t0})
	repo.seed(model.Product{Code: "B", Name: "b", Price: decimal.NewFromInt(100), CategoryID: 2, CreatedAt: t0})
	repo.seed(model.Product{Code: "C", Name: "c", Price: decimal.RequireFromString("105"), CategoryID: 1, CreatedAt: t0})
	h := newTestHandlers(repo, &mockPublisher{}, discount.NewConfig(10, "1"), &fakeClock{now: t0})

	views, err := h.List(context.Background(), ListProducts{})
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, "90", views[0].Price.String())
	assert.Equal(t, "100", views[1].Price.String())
	// 94.5 rounds half to even
	assert.Equal(t, "94", views[2].Price.String())

	// stored prices are untouched
	p, _ := repo.FindByID(context.Background(), views[0].ID)
	assert.Equal(t, "100", p.Price.String())
}

func TestList_EmptyStoreReturnsEmptySlice(t *testing.T) {
	called := false
	src := sourceFunc(func(context.Context) (discount.Config, error) {
		called = true
		return discount.Config{}, nil
	})
	h := newTestHandlers(newMemRepo(), &mockPublisher{}, src, &fakeClock{now: t0})

	views, err := h.List(context.Background(), ListProducts{})
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
	assert.False(t, called)
}

func TestList_ReadsDiscountOnEveryCall(t *testing.T) {
	repo := newMemRepo()
	repo.seed(model.Product{Code: "A", Name: "a", Price: decimal.NewFromInt(100), CategoryID: 1, CreatedAt: t0})

	pct := 10
	src := sourceFunc(func(context.Context) (discount.Config, error) {
		return discount.NewConfig(pct, "1"), nil
	})
	h := newTestHandlers(repo, &mockPublisher{}, src, &fakeClock{now: t0})

	views, err := h.List(context.Background(), ListProducts{})
	require.NoError(t, err)
	assert.Equal(t, "90", views[0].Price.String())

	pct = 25
	views, err = h.List(context.Background(), ListProducts{})
	require.NoError(t, err)
	assert.Equal(t, "75", views[0].Price.String())
}

func TestList_SourceFailureIsInternal(t *testing.T) {
	repo := newMemRepo()
	repo.seed(model.Product{Code: "A", Name: "a", CategoryID: 1, CreatedAt: t0})
	src := sourceFunc(func(context.Context) (discount.Config, error) {
		return discount.Config{}, errors.New("redis down")
	})
	h := newTestHandlers(repo, &mockPublisher{}, src, &fakeClock{now: t0})

	_, err := h.List(context.Background(), ListProducts{})
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
}

// --- Update ---

func TestUpdate_ReplacesFieldsAndStamps(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", Description: strPtr("old"), Active: true, CategoryID: 3, CreatedAt: t0})
	clock := &fakeClock{now: t0.Add(time.Hour)}
	pub := &mockPublisher{}
	h := newTestHandlers(repo, pub, nil, clock)

	v, err := h.Update(context.Background(), UpdateProduct{
		ID:         id,
		Code:       "A2",
		Name:       "Widget 2",
		Price:      decimal.RequireFromString("12.50"),
		Active:     false,
		CategoryID: 5,
		Stock:      7,
	})
	require.NoError(t, err)

	assert.Equal(t, "A2", v.Code)
	assert.Equal(t, "", v.Description)
	assert.False(t, v.Active)
	assert.Equal(t, int64(5), v.CategoryID)
	assert.Equal(t, 7, v.Stock)
	assert.Equal(t, t0, v.CreatedAt)
	require.NotNil(t, v.UpdatedAt)
	assert.Equal(t, clock.now, *v.UpdatedAt)

	stored, _ := repo.FindByID(context.Background(), id)
	assert.Nil(t, stored.Description)
	assert.Equal(t, 1, repo.writes)
	require.Len(t, pub.published, 1)
	assert.Equal(t, events.ProductUpdated, pub.published[0].Type)
}

func TestUpdate_UpdatedAtNeverGoesBackwards(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", CreatedAt: t0})
	clock := &fakeClock{now: t0.Add(2 * time.Hour)}
	h := newTestHandlers(repo, &mockPublisher{}, nil, clock)

	first, err := h.Update(context.Background(), UpdateProduct{ID: id, Code: "A1", Name: "W"})
	require.NoError(t, err)

	clock.now = t0.Add(-time.Hour)
	second, err := h.Update(context.Background(), UpdateProduct{ID: id, Code: "A1", Name: "W"})
	require.NoError(t, err)

	assert.False(t, second.UpdatedAt.Before(*first.UpdatedAt))
	assert.False(t, second.UpdatedAt.Before(second.CreatedAt))
}

func TestUpdate_Faults(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", CreatedAt: t0})
	h := newTestHandlers(repo, &mockPublisher{}, nil, &fakeClock{now: t0})

	_, err := h.Update(context.Background(), UpdateProduct{ID: 99, Code: "A", Name: "W"})
	assert.True(t, fault.Is(err, fault.KindNotFound))

	_, err = h.Update(context.Background(), UpdateProduct{ID: id, Code: "", Name: "W"})
	assert.True(t, fault.Is(err, fault.KindInvalidArgument))

	repo.updateErr = errors.New("deadlock")
	_, err = h.Update(context.Background(), UpdateProduct{ID: id, Code: "A", Name: "W"})
	assert.Equal(t, fault.KindInternal, fault.KindOf(err))
}

// --- UpdateStatus ---

func TestUpdateStatus_SetsFlag(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", Active: true, CreatedAt: t0})
	pub := &mockPublisher{}
	h := newTestHandlers(repo, pub, nil, &fakeClock{now: t0.Add(time.Minute)})

	v, err := h.UpdateStatus(context.Background(), UpdateProductStatus{ID: id, Active: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, v.Active)
	require.NotNil(t, v.UpdatedAt)
	assert.Equal(t, 1, repo.writes)
	require.Len(t, pub.published, 1)
	assert.Equal(t, events.ProductStatusChanged, pub.published[0].Type)
}

func TestUpdateStatus_NilFlagDoesNotWrite(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", Active: true, CreatedAt: t0})
	pub := &mockPublisher{}
	h := newTestHandlers(repo, pub, nil, &fakeClock{now: t0.Add(time.Minute)})

	v, err := h.UpdateStatus(context.Background(), UpdateProductStatus{ID: id})
	require.NoError(t, err)
	assert.True(t, v.Active)
	assert.Nil(t, v.UpdatedAt)
	assert.Equal(t, 0, repo.writes)
	assert.Empty(t, pub.published)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	h := newTestHandlers(newMemRepo(), &mockPublisher{}, nil, &fakeClock{now: t0})

	_, err := h.UpdateStatus(context.Background(), UpdateProductStatus{ID: 5, Active: boolPtr(true)})
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

// --- Delete ---

func TestDelete(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", CreatedAt: t0})
	pub := &mockPublisher{}
	h := newTestHandlers(repo, pub, nil, &fakeClock{now: t0})

	_, err := h.Delete(context.Background(), DeleteProduct{ID: id})
	require.NoError(t, err)

	_, err = h.GetByID(context.Background(), GetProductByID{ID: id})
	assert.True(t, fault.Is(err, fault.KindNotFound))

	require.Len(t, pub.published, 1)
	assert.Equal(t, events.ProductDeleted, pub.published[0].Type)
	assert.Nil(t, pub.published[0].Product)

	_, err = h.Delete(context.Background(), DeleteProduct{ID: id})
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

func TestDelete_VanishedBetweenReadAndWrite(t *testing.T) {
	repo := newMemRepo()
	id := repo.seed(model.Product{Code: "A1", Name: "W", CreatedAt: t0})
	repo.removeErr = ErrVanished
	h := newTestHandlers(repo, &mockPublisher{}, nil, &fakeClock{now: t0})

	_, err := h.Delete(context.Background(), DeleteProduct{ID: id})
	assert.True(t, fault.Is(err, fault.KindNotFound))
}

// --- Register ---

func TestRegister_ServesEveryRequest(t *testing.T) {
	m := mediator.New()
	Register(m, Deps{Repo: newMemRepo(), Logger: zap.NewNop()})

	require.NoError(t, m.Require(Requests()...))

	created, err := mediator.Send[CreateProduct, model.ProductView](context.Background(), m,
		CreateProduct{Code: "A1", Name: "W", Price: decimal.NewFromInt(3)})
	require.NoError(t, err)

	res, err := m.Dispatch(context.Background(), GetProductByID{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.(model.ProductView).ID)

	res, err = m.Dispatch(context.Background(), ListProducts{})
	require.NoError(t, err)
	assert.Len(t, res.([]model.ProductView), 1)
}
