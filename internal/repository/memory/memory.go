// Package memory is a process local implementation of the repository contracts.
// It backs STORAGE_DRIVER=memory and every service test.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/shelfwise/internal/domain"
	"github.com/andresuchdata/shelfwise/internal/repository"
	"github.com/shopspring/decimal"
)

// DB holds every table keyed by store id
type DB struct {
	mu            sync.RWMutex
	stores        map[string]domain.Store
	products      map[string]map[string]domain.Product
	sales         map[string][]domain.Sale
	predictions   map[string]map[string]domain.Prediction
	settings      map[string]domain.AlertSettings
	categories    map[string]map[string]domain.Category
	notifications map[string][]domain.Notification

	// FailUpserts makes prediction writes fail, for error path tests
	FailUpserts error
}

// New creates an empty database
func New() *DB {
	return &DB{
		stores:        make(map[string]domain.Store),
		products:      make(map[string]map[string]domain.Product),
		sales:         make(map[string][]domain.Sale),
		predictions:   make(map[string]map[string]domain.Prediction),
		settings:      make(map[string]domain.AlertSettings),
		categories:    make(map[string]map[string]domain.Category),
		notifications: make(map[string][]domain.Notification),
	}
}

// Repositories exposes the database through the repository contracts
func (db *DB) Repositories() repository.Repositories {
	return repository.Repositories{
		Products:      &productRepo{db},
		Sales:         &saleRepo{db},
		Predictions:   &predictionRepo{db},
		Settings:      &settingsRepo{db},
		Categories:    &categoryRepo{db},
		Notifications: &notificationRepo{db},
		Stores:        &storeRepo{db},
	}
}

// AddStore seeds a store
func (db *DB) AddStore(s domain.Store) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.stores[s.ID] = s
}

// AddProduct seeds or replaces a product, recalculating its total
func (db *DB) AddProduct(p domain.Product) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.RecalculateTotal()
	if _, ok := db.products[p.StoreID]; !ok {
		db.products[p.StoreID] = make(map[string]domain.Product)
	}
	db.products[p.StoreID][p.ID] = p
	if _, ok := db.stores[p.StoreID]; !ok {
		db.stores[p.StoreID] = domain.Store{ID: p.StoreID, Name: p.StoreID}
	}
}

// AddSale appends to the sales ledger
func (db *DB) AddSale(s domain.Sale) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sales[s.StoreID] = append(db.sales[s.StoreID], s)
}

// AddCategory seeds a category
func (db *DB) AddCategory(c domain.Category) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.categories[c.StoreID]; !ok {
		db.categories[c.StoreID] = make(map[string]domain.Category)
	}
	db.categories[c.StoreID][c.Name] = c
}

// Notifications returns every stored notification of a store
func (db *DB) Notifications(storeID string) []domain.Notification {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.Notification, len(db.notifications[storeID]))
	copy(out, db.notifications[storeID])
	return out
}

func requireStore(storeID string) error {
	if strings.TrimSpace(storeID) == "" {
		return domain.ErrMissingTenant
	}
	return nil
}

type productRepo struct{ db *DB }

func (r *productRepo) FindByID(_ context.Context, storeID, productID string) (*domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.products[storeID][productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *productRepo) Find(_ context.Context, storeID string, filter repository.ProductFilter) ([]domain.Product, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		ids[id] = true
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Product, 0)
	for _, p := range r.db.products[storeID] {
		if filter.Category != nil && p.CategoryName() != *filter.Category {
			continue
		}
		if filter.Perishable != nil && p.IsPerishable != *filter.Perishable {
			continue
		}
		if len(ids) > 0 && !ids[p.ID] {
			continue
		}
		out = append(out, *cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *productRepo) Count(_ context.Context, storeID string) (int, error) {
	if err := requireStore(storeID); err != nil {
		return 0, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.db.products[storeID]), nil
}

func (r *productRepo) UpdateThresholds(_ context.Context, storeID, productID string, override *domain.ThresholdOverride) error {
	if err := requireStore(storeID); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.products[storeID][productID]
	if !ok {
		return domain.ErrNotFound
	}
	p.CustomAlertThresholds = cloneOverride(override)
	p.UpdatedAt = time.Now()
	r.db.products[storeID][productID] = p
	return nil
}

type saleRepo struct{ db *DB }

func (r *saleRepo) FindByProductSince(_ context.Context, storeID, productID string, since time.Time) ([]domain.Sale, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Sale, 0)
	for _, s := range r.db.sales[storeID] {
		if s.ProductID == productID && !s.SaleDate.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SaleDate.Before(out[j].SaleDate) })
	return out, nil
}

func (r *saleRepo) SumQuantityByProductSince(_ context.Context, storeID string, since time.Time) (map[string]int, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make(map[string]int)
	for _, s := range r.db.sales[storeID] {
		if !s.SaleDate.Before(since) {
			out[s.ProductID] += s.QuantitySold
		}
	}
	return out, nil
}

func (r *saleRepo) RevenueByProductSince(_ context.Context, storeID string, productIDs []string, since time.Time) (map[string]decimal.Decimal, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		ids[id] = true
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make(map[string]decimal.Decimal)
	for _, s := range r.db.sales[storeID] {
		if ids[s.ProductID] && !s.SaleDate.Before(since) {
			out[s.ProductID] = out[s.ProductID].Add(s.TotalAmount)
		}
	}
	return out, nil
}

type predictionRepo struct{ db *DB }

func (r *predictionRepo) FindByProductID(_ context.Context, storeID, productID string) (*domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.predictions[storeID][productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePrediction(p), nil
}

func (r *predictionRepo) FindByStore(_ context.Context, storeID string) ([]domain.Prediction, error) {
	return r.collect(storeID, func(domain.Prediction) bool { return true })
}

func (r *predictionRepo) FindByProductIDs(_ context.Context, storeID string, productIDs []string) ([]domain.Prediction, error) {
	ids := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		ids[id] = true
	}
	return r.collect(storeID, func(p domain.Prediction) bool { return ids[p.ProductID] })
}

func (r *predictionRepo) FindByCategory(_ context.Context, storeID, category string) ([]domain.Prediction, error) {
	category = strings.TrimSpace(category)
	return r.collect(storeID, func(p domain.Prediction) bool {
		return strings.EqualFold(strings.TrimSpace(p.CategoryName()), category)
	})
}

func (r *predictionRepo) collect(storeID string, keep func(domain.Prediction) bool) ([]domain.Prediction, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Prediction, 0)
	for _, p := range r.db.predictions[storeID] {
		if keep(p) {
			out = append(out, *clonePrediction(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *predictionRepo) Upsert(_ context.Context, p *domain.Prediction) error {
	if err := requireStore(p.StoreID); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailUpserts != nil {
		return r.db.FailUpserts
	}
	if _, ok := r.db.predictions[p.StoreID]; !ok {
		r.db.predictions[p.StoreID] = make(map[string]domain.Prediction)
	}
	r.db.predictions[p.StoreID][p.ProductID] = *clonePrediction(*p)
	return nil
}

func (r *predictionRepo) DeleteByProductID(_ context.Context, storeID, productID string) error {
	if err := requireStore(storeID); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.predictions[storeID], productID)
	return nil
}

type settingsRepo struct{ db *DB }

func (r *settingsRepo) Get(_ context.Context, storeID string) (*domain.AlertSettings, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	s, ok := r.db.settings[storeID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (r *settingsRepo) Save(_ context.Context, s *domain.AlertSettings) error {
	if err := requireStore(s.StoreID); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.settings[s.StoreID] = *s
	return nil
}

type categoryRepo struct{ db *DB }

func (r *categoryRepo) FindByStore(_ context.Context, storeID string) ([]domain.Category, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Category, 0, len(r.db.categories[storeID]))
	for _, c := range r.db.categories[storeID] {
		c.CustomAlertThresholds = cloneOverride(c.CustomAlertThresholds)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *categoryRepo) FindByName(_ context.Context, storeID, name string) (*domain.Category, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.categories[storeID][name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.CustomAlertThresholds = cloneOverride(c.CustomAlertThresholds)
	return &c, nil
}

func (r *categoryRepo) UpsertThresholds(_ context.Context, storeID, name string, override *domain.ThresholdOverride) error {
	if err := requireStore(storeID); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.categories[storeID]; !ok {
		r.db.categories[storeID] = make(map[string]domain.Category)
	}
	c := r.db.categories[storeID][name]
	c.StoreID = storeID
	c.Name = name
	c.CustomAlertThresholds = cloneOverride(override)
	c.UpdatedAt = time.Now()
	r.db.categories[storeID][name] = c
	return nil
}

type notificationRepo struct{ db *DB }

func (r *notificationRepo) ExistsSince(_ context.Context, storeID, productID, notificationType string, since time.Time) (bool, error) {
	if err := requireStore(storeID); err != nil {
		return false, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, n := range r.db.notifications[storeID] {
		if n.ProductID == productID && n.Type == notificationType && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	if err := requireStore(n.StoreID); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.notifications[n.StoreID] = append(r.db.notifications[n.StoreID], *n)
	return nil
}

func (r *notificationRepo) ListByStore(_ context.Context, storeID string, limit int) ([]domain.Notification, error) {
	if err := requireStore(storeID); err != nil {
		return nil, err
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	src := r.db.notifications[storeID]
	out := make([]domain.Notification, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type storeRepo struct{ db *DB }

func (r *storeRepo) List(_ context.Context) ([]domain.Store, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Store, 0, len(r.db.stores))
	for _, s := range r.db.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneProduct(p domain.Product) *domain.Product {
	out := p
	out.Batches = append(domain.Batches(nil), p.Batches...)
	out.CustomAlertThresholds = cloneOverride(p.CustomAlertThresholds)
	return &out
}

func clonePrediction(p domain.Prediction) *domain.Prediction {
	out := p
	out.Recommendations = append(domain.Recommendations(nil), p.Recommendations...)
	if p.Metadata != nil {
		m := *p.Metadata
		out.Metadata = &m
	}
	return &out
}

func cloneOverride(o *domain.ThresholdOverride) *domain.ThresholdOverride {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
