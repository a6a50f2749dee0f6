package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/payments"
)

type catalogData struct {
	mu         sync.Mutex
	categories map[uuid.UUID]*models.Category
	products   map[uuid.UUID]*models.Product
}

func newCatalogData() *catalogData {
	return &catalogData{
		categories: make(map[uuid.UUID]*models.Category),
		products:   make(map[uuid.UUID]*models.Product),
	}
}

func (d *catalogData) addCategory(name, slug string) *models.Category {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &models.Category{ID: uuid.New(), Name: name, Slug: slug}
	d.categories[c.ID] = c
	return c
}

func (d *catalogData) addProduct(name string, price int64, stock int, categoryID uuid.UUID) *models.Product {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		Slug:       name,
		Price:      decimal.NewFromInt(price),
		Stock:      stock,
		CategoryID: categoryID,
		CreatedAt:  time.Now(),
	}
	d.products[p.ID] = p
	return p
}

func (d *catalogData) countProducts(categoryID uuid.UUID) int {
	count := 0
	for _, p := range d.products {
		if p.CategoryID == categoryID {
			count++
		}
	}
	return count
}

type fakeCategoryStore struct{ *catalogData }

func (s fakeCategoryStore) withCount(c *models.Category) *models.Category {
	copied := *c
	copied.ProductCount = s.countProducts(c.ID)
	return &copied
}

func (s fakeCategoryStore) List(context.Context) ([]*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Category
	for _, c := range s.categories {
		out = append(out, s.withCount(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s fakeCategoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s.withCount(c), nil
}

func (s fakeCategoryStore) GetBySlug(_ context.Context, slug string) (*models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return s.withCount(c), nil
		}
	}
	return nil, db.ErrNotFound
}

func (s fakeCategoryStore) SlugTaken(_ context.Context, slug string, exceptID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Slug == slug && c.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (s fakeCategoryStore) Create(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New()
	copied := *c
	s.categories[c.ID] = &copied
	return nil
}

func (s fakeCategoryStore) Update(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return db.ErrNotFound
	}
	copied := *c
	s.categories[c.ID] = &copied
	return nil
}

func (s fakeCategoryStore) Upsert(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.categories {
		if existing.Slug == c.Slug {
			c.ID = id
			copied := *c
			s.categories[id] = &copied
			return nil
		}
	}
	c.ID = uuid.New()
	copied := *c
	s.categories[c.ID] = &copied
	return nil
}

func (s fakeCategoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return db.ErrNotFound
	}
	if s.countProducts(id) > 0 {
		return db.ErrInUse
	}
	delete(s.categories, id)
	return nil
}

func (s fakeCategoryStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories), nil
}

type fakeProductStore struct{ *catalogData }

func (s fakeProductStore) sorted(filter func(*models.Product) bool) []*models.Product {
	var out []*models.Product
	for _, p := range s.products {
		if filter(p) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s fakeProductStore) List(context.Context) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(*models.Product) bool { return true }), nil
}

func (s fakeProductStore) Featured(_ context.Context, limit int) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sorted(func(p *models.Product) bool { return p.Featured })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s fakeProductStore) ListByCategory(_ context.Context, categoryID uuid.UUID) ([]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(p *models.Product) bool { return p.CategoryID == categoryID }), nil
}

func (s fakeProductStore) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]*models.Product)
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			copied := *p
			out[id] = &copied
		}
	}
	return out, nil
}

func (s fakeProductStore) GetByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s fakeProductStore) GetBySlug(_ context.Context, slug string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s fakeProductStore) SlugTaken(_ context.Context, slug string, exceptID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Slug == slug && p.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (s fakeProductStore) Create(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	copied := *p
	s.products[p.ID] = &copied
	return nil
}

func (s fakeProductStore) Update(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return db.ErrNotFound
	}
	copied := *p
	s.products[p.ID] = &copied
	return nil
}

func (s fakeProductStore) Upsert(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.products {
		if existing.Slug == p.Slug {
			p.ID = id
			copied := *p
			s.products[id] = &copied
			return nil
		}
	}
	p.ID = uuid.New()
	copied := *p
	s.products[p.ID] = &copied
	return nil
}

func (s fakeProductStore) SetImageURL(_ context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return db.ErrNotFound
	}
	p.ImageURL = url
	return nil
}

func (s fakeProductStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s fakeProductStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products), nil
}

type fakeImageStore struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func (s *fakeImageStore) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[key] = data
	return "/uploads/" + key, nil
}

// fakeOrderStore applies the same payment transition table as the database store.
type fakeOrderStore struct {
	mu          sync.Mutex
	orders      map[uuid.UUID]*models.Order
	preferences map[uuid.UUID]string
	shippings   *fakeShippingStore
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:      make(map[uuid.UUID]*models.Order),
		preferences: make(map[uuid.UUID]string),
	}
}

func (s *fakeOrderStore) add(status models.OrderStatus, createdAt time.Time) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerName:  "Ana Pérez",
		CustomerEmail: "ana@example.com",
		Status:        status,
		Total:         decimal.NewFromInt(1000),
		CreatedAt:     createdAt,
	}
	s.orders[order.ID] = order
	return order
}

func (s *fakeOrderStore) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	order.ItemCount = len(order.Items)
	if order.Shipping != nil {
		order.Shipping.ID = uuid.New()
		order.Shipping.OrderID = order.ID
		order.Shipping.Status = models.ShippingPending
		if s.shippings != nil {
			s.shippings.put(order.Shipping)
		}
	}
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *fakeOrderStore) SetPaymentPreference(_ context.Context, orderID uuid.UUID, preferenceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	order.PaymentPreferenceID = preferenceID
	s.preferences[orderID] = preferenceID
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return nil, db.ErrNotFound
	}
	copied := *order
	s.mu.Unlock()

	if s.shippings != nil {
		if shipping, err := s.shippings.byOrder(orderID); err == nil {
			copied.Shipping = shipping
		}
	}
	return &copied, nil
}

func (s *fakeOrderStore) status(orderID uuid.UUID) models.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[orderID].Status
}

func (s *fakeOrderStore) ApplyPayment(_ context.Context, orderID uuid.UUID, update db.PaymentUpdate) (models.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return "", db.ErrNotFound
	}
	previous := order.Status
	if !slices.Contains(db.AllowedPaymentSources(update.Status), previous) {
		return previous, fmt.Errorf("%w: %s -> %s", db.ErrInvalidStatusTransition, previous, update.Status)
	}
	order.Status = update.Status
	order.PaymentID = update.PaymentID
	order.PaymentMethod = update.PaymentMethod
	order.PaymentStatus = update.PaymentStatus
	return previous, nil
}

func (s *fakeOrderStore) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, order := range s.orders {
		if order.Status == models.StatusPending && order.CreatedAt.Before(cutoff) {
			copied := *order
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeOrderStore) SetStatus(_ context.Context, orderID uuid.UUID, status models.OrderStatus) (models.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return "", db.ErrNotFound
	}
	previous := order.Status
	order.Status = status
	return previous, nil
}

func (s *fakeOrderStore) guarded(orderID uuid.UUID, target models.OrderStatus, from ...models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	if !slices.Contains(from, order.Status) {
		return fmt.Errorf("%w: %s -> %s", db.ErrInvalidStatusTransition, order.Status, target)
	}
	order.Status = target
	return nil
}

func (s *fakeOrderStore) MarkShipped(_ context.Context, orderID uuid.UUID) error {
	return s.guarded(orderID, models.StatusShipped, models.StatusPaid, models.StatusProcessing, models.StatusShipped)
}

func (s *fakeOrderStore) MarkDelivered(_ context.Context, orderID uuid.UUID) error {
	return s.guarded(orderID, models.StatusDelivered, models.StatusShipped)
}

func (s *fakeOrderStore) List(_ context.Context, limit int) ([]*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Order
	for _, order := range s.orders {
		copied := *order
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeOrderStore) Stats(context.Context) (*db.OrderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &db.OrderStats{ByStatus: make(map[models.OrderStatus]int), TotalSales: decimal.Zero}
	for _, order := range s.orders {
		stats.TotalOrders++
		stats.ByStatus[order.Status]++
		if order.Status == models.StatusPaid {
			stats.TotalSales = stats.TotalSales.Add(order.Total)
		}
	}
	return stats, nil
}

type fakeShippingStore struct {
	mu        sync.Mutex
	shippings map[uuid.UUID]*models.Shipping
	checked   map[uuid.UUID]time.Time
	clock     time.Time
}

func newFakeShippingStore() *fakeShippingStore {
	return &fakeShippingStore{
		shippings: make(map[uuid.UUID]*models.Shipping),
		checked:   make(map[uuid.UUID]time.Time),
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing event times.
func (s *fakeShippingStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *fakeShippingStore) put(shipping *models.Shipping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shipping.ID == uuid.Nil {
		shipping.ID = uuid.New()
	}
	if shipping.Provider == "" {
		shipping.Provider = models.DefaultShippingProvider
	}
	shipping.Status = models.ShippingPending
	shipping.Events = []models.ShippingEvent{{
		ID:          uuid.New(),
		ShippingID:  shipping.ID,
		Status:      models.ShippingPending,
		Description: "Envío registrado",
		CreatedAt:   s.tick(),
	}}
	copied := *shipping
	s.shippings[shipping.ID] = &copied
}

func (s *fakeShippingStore) Create(_ context.Context, shipping *models.Shipping) error {
	s.mu.Lock()
	for _, existing := range s.shippings {
		if existing.OrderID == shipping.OrderID {
			s.mu.Unlock()
			return db.ErrConflict
		}
	}
	s.mu.Unlock()
	s.put(shipping)
	return nil
}

func (s *fakeShippingStore) clone(shipping *models.Shipping) *models.Shipping {
	copied := *shipping
	copied.Events = make([]models.ShippingEvent, len(shipping.Events))
	for i, event := range shipping.Events {
		copied.Events[len(shipping.Events)-1-i] = event
	}
	return &copied
}

func (s *fakeShippingStore) UpdateStatus(_ context.Context, shippingID uuid.UUID, event models.ShippingEvent) (*models.Shipping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipping, ok := s.shippings[shippingID]
	if !ok {
		return nil, db.ErrNotFound
	}
	event.ID = uuid.New()
	event.ShippingID = shippingID
	event.CreatedAt = s.tick()
	shipping.Status = event.Status
	shipping.Events = append(shipping.Events, event)
	return s.clone(shipping), nil
}

func (s *fakeShippingStore) AttachLabel(_ context.Context, shippingID uuid.UUID, trackingNumber, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipping, ok := s.shippings[shippingID]
	if !ok {
		return db.ErrNotFound
	}
	shipping.TrackingNumber = trackingNumber
	shipping.Label = label
	return nil
}

func (s *fakeShippingStore) GetByID(_ context.Context, shippingID uuid.UUID) (*models.Shipping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shipping, ok := s.shippings[shippingID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return s.clone(shipping), nil
}

func (s *fakeShippingStore) byOrder(orderID uuid.UUID) (*models.Shipping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shipping := range s.shippings {
		if shipping.OrderID == orderID {
			return s.clone(shipping), nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeShippingStore) GetByTrackingNumber(_ context.Context, trackingNumber string) (*models.Shipping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shipping := range s.shippings {
		if shipping.TrackingNumber == trackingNumber {
			return s.clone(shipping), nil
		}
	}
	return nil, db.ErrNotFound
}

// ClaimForTracking mirrors the SQL ordering: never-checked first, then the
// oldest check.
func (s *fakeShippingStore) ClaimForTracking(_ context.Context, limit int) ([]*models.Shipping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*models.Shipping
	for _, shipping := range s.shippings {
		if shipping.TrackingNumber != "" && !shipping.Status.Terminal() {
			active = append(active, shipping)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		ci, cj := s.checked[active[i].ID], s.checked[active[j].ID]
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return active[i].TrackingNumber < active[j].TrackingNumber
	})
	if len(active) > limit {
		active = active[:limit]
	}
	out := make([]*models.Shipping, 0, len(active))
	for _, shipping := range active {
		s.checked[shipping.ID] = s.tick()
		out = append(out, s.clone(shipping))
	}
	return out, nil
}

type fakeGateway struct {
	mu          sync.Mutex
	payments    map[string]payments.Payment
	searches    map[string][]payments.Payment
	preferences []payments.Preference
	createErr   error
	getCalls    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments: make(map[string]payments.Payment),
		searches: make(map[string][]payments.Payment),
	}
}

func (g *fakeGateway) Name() string {
	return "fake"
}

func (g *fakeGateway) CreatePreference(_ context.Context, pref payments.Preference) (*payments.PreferenceResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.preferences = append(g.preferences, pref)
	return &payments.PreferenceResult{
		ID:        "pref-" + pref.OrderID.String()[:8],
		InitPoint: "https://pay.example.com/" + pref.OrderID.String(),
	}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*payments.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	payment, ok := g.payments[id]
	if !ok {
		return nil, payments.ErrPaymentNotFound
	}
	return &payment, nil
}

func (g *fakeGateway) SearchPayments(_ context.Context, externalReference string) ([]payments.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.searches[externalReference], nil
}

type fakeEmailSender struct {
	mu         sync.Mutex
	sent       []string
	failToSend error
}

func (s *fakeEmailSender) record(kind string, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failToSend != nil {
		return s.failToSend
	}
	s.sent = append(s.sent, kind+":"+order.ID.String())
	return nil
}

func (s *fakeEmailSender) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	return s.record("confirmation", order)
}

func (s *fakeEmailSender) SendOrderShipped(_ context.Context, order *models.Order) error {
	return s.record("shipped", order)
}

func (s *fakeEmailSender) SendOrderDelivered(_ context.Context, order *models.Order) error {
	return s.record("delivered", order)
}

func (s *fakeEmailSender) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, entry := range s.sent {
		kind, _, _ := strings.Cut(entry, ":")
		out = append(out, kind)
	}
	return out
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return db.ErrConflict
		}
	}
	user.ID = uuid.New()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *fakeUserStore) CountAdmins(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, user := range s.users {
		if user.IsAdmin() {
			count++
		}
	}
	return count, nil
}
