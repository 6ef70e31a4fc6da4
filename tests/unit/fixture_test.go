package unit

import (
	"context"
	"sync"
	"time"

	"github.com/aipropiq/provisioning-service/internal/application"
	"github.com/aipropiq/provisioning-service/internal/domain"
	"github.com/aipropiq/provisioning-service/internal/ports"
)

type fixture struct {
	service    *application.Service
	store      *fakeStore
	identity   *fakeIdentity
	profiles   *fakeProfiles
	attempts   *fakeAttempts
	rateLimits *fakeRateLimits
}

func defaultTestConfig() application.Config {
	return application.Config{
		Policy: domain.AccessPolicy{
			ProductID:        "i90",
			GrantingStatuses: []domain.OrderStatus{domain.StatusCompleted, domain.StatusProcessing},
		},
		FallbackRateLimitThreshold: 100,
		FallbackRateLimitWindow:    time.Minute,
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	store := &fakeStore{byID: map[string]domain.Order{}, byEmail: map[string][]domain.Order{}}
	identity := &fakeIdentity{records: map[string]domain.IdentityMetadata{}}
	profiles := &fakeProfiles{synced: make(chan string, 16)}
	attempts := &fakeAttempts{}
	rateLimits := &fakeRateLimits{counts: map[string]int64{}}

	svc := application.NewService(application.Dependencies{
		Config:     cfg,
		Store:      store,
		Identity:   identity,
		Profiles:   profiles,
		Attempts:   attempts,
		RateLimits: rateLimits,
		Hasher:     fakeHasher{},
	})

	return &fixture{
		service:    svc,
		store:      store,
		identity:   identity,
		profiles:   profiles,
		attempts:   attempts,
		rateLimits: rateLimits,
	}
}

type fakeStore struct {
	mu       sync.Mutex
	byID     map[string]domain.Order
	byEmail  map[string][]domain.Order
	fetchErr error
	listErr  error
	fetches  int
}

func (f *fakeStore) addOrder(order domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[order.ID] = order
	f.byEmail[order.Billing.Email] = append(f.byEmail[order.Billing.Email], order)
}

func (f *fakeStore) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

func (f *fakeStore) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeStore) FetchOrder(_ context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return domain.Order{}, f.fetchErr
	}
	order, ok := f.byID[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order, nil
}

func (f *fakeStore) ListOrdersByEmail(_ context.Context, email string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byEmail[email], nil
}

type fakeIdentity struct {
	mu          sync.Mutex
	records     map[string]domain.IdentityMetadata
	createErr   error
	createCount int
	createdN    int
}

func (f *fakeIdentity) preload(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[email] = domain.IdentityMetadata{}
}

func (f *fakeIdentity) exists(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[email]
	return ok
}

func (f *fakeIdentity) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *fakeIdentity) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCount
}

func (f *fakeIdentity) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createdN
}

func (f *fakeIdentity) IdentityExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[email]
	return ok, nil
}

// CreateIdentity mimics the backend's conflict report on duplicate
// creation, which is what makes concurrent triggers converge.
func (f *fakeIdentity) CreateIdentity(_ context.Context, email, _ string, meta domain.IdentityMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCount++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.records[email]; ok {
		return domain.ErrConflict
	}
	f.records[email] = meta
	f.createdN++
	return nil
}

type fakeProfiles struct {
	mu     sync.Mutex
	err    error
	synced chan string
}

func (f *fakeProfiles) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProfiles) UpsertProfile(_ context.Context, email, _, _ string) error {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.synced <- email
	return nil
}

type fakeAttempts struct {
	mu     sync.Mutex
	items  []ports.ProvisionAttempt
	events []ports.OutboxEvent
}

func (f *fakeAttempts) rows() []ports.ProvisionAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.ProvisionAttempt, len(f.items))
	copy(out, f.items)
	return out
}

func (f *fakeAttempts) outboxEvents() []ports.OutboxEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.OutboxEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeAttempts) RecordWithOutboxTx(_ context.Context, attempt ports.ProvisionAttempt, event ports.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, attempt)
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAttempts) Record(_ context.Context, attempt ports.ProvisionAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, attempt)
	return nil
}

func (f *fakeAttempts) ListByEmail(_ context.Context, email string, limit int) ([]ports.ProvisionAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.ProvisionAttempt, 0)
	for _, item := range f.items {
		if item.Email == email {
			out = append(out, item)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeRateLimits struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeRateLimits) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRateLimits) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	return f.counts[key], nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(credential string) (string, error) { return "hashed:" + credential, nil }

func (fakeHasher) Compare(hash, credential string) error {
	if hash == "hashed:"+credential {
		return nil
	}
	return domain.ErrUnauthorized
}
