// Package memory is an in-process implementation of the repository interfaces,
// used by tests and local runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/google/uuid"
)

var (
	_ repository.LedgerRepository       = (*Store)(nil)
	_ repository.SubscriptionRepository = (*Store)(nil)
	_ repository.PlanRepository         = (*Store)(nil)
	_ repository.EventRepository        = (*Store)(nil)
	_ repository.DLQRepository          = (*Store)(nil)
	_ repository.UserRepository         = (*Store)(nil)
	_ repository.AssetRepository        = (*Store)(nil)
	_ repository.JobRepository          = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex

	balances     map[string]*model.TokenBalance
	transactions []model.TokenTransaction

	subscriptions map[string]*model.UserSubscription
	plans         map[string]*model.SubscriptionPlan
	events        map[string]string
	deadLetters   []model.DeadLetterEvent
	users         map[string]*model.User

	assets []model.GeneratedAsset
	jobs   map[string]*model.GenerationJob

	now func() time.Time
}

func New() *Store {
	return &Store{
		balances:      make(map[string]*model.TokenBalance),
		subscriptions: make(map[string]*model.UserSubscription),
		plans:         make(map[string]*model.SubscriptionPlan),
		events:        make(map[string]string),
		users:         make(map[string]*model.User),
		jobs:          make(map[string]*model.GenerationJob),
		now:           time.Now,
	}
}

// Seed helpers

func (s *Store) PutPlan(p model.SubscriptionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = &p
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = &u
}

// DeadLetters returns a copy of the stored dead letter events.
func (s *Store) DeadLetters() []model.DeadLetterEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.DeadLetterEvent(nil), s.deadLetters...)
}

// Ledger

func (s *Store) GetBalance(_ context.Context, userID string) (*model.TokenBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *Store) Debit(_ context.Context, userID string, cost int, reason string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok || b.Balance < cost {
		return 0, false, nil
	}
	b.Balance -= cost
	b.UpdatedAt = s.now()
	s.appendTx(userID, -cost, model.TransactionDebit, reason, b.Balance)
	if sub, ok := s.subscriptions[userID]; ok {
		sub.TokensUsed += cost
	}
	return b.Balance, true, nil
}

func (s *Store) Grant(_ context.Context, userID string, amount int, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.ensureBalance(userID)
	b.Balance += amount
	b.Allotment = amount
	b.UpdatedAt = s.now()
	s.appendTx(userID, amount, model.TransactionGrant, reason, b.Balance)
	return b.Balance, nil
}

func (s *Store) Reset(_ context.Context, userID string, amount int, reason string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.ensureBalance(userID)
	delta := amount - b.Balance
	b.Balance = amount
	b.Allotment = amount
	b.UpdatedAt = s.now()
	s.appendTx(userID, delta, model.TransactionReset, reason, b.Balance)
	return b.Balance, delta, nil
}

func (s *Store) SetPeriod(_ context.Context, userID string, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return repository.ErrNotFound
	}
	b.PeriodStart, b.PeriodEnd = &start, &end
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit, offset int) ([]model.TokenTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TokenTransaction
	// newest first, matching the SQL ordering
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserID == userID {
			out = append(out, s.transactions[i])
		}
	}
	return page(out, limit, offset), nil
}

func (s *Store) ensureBalance(userID string) *model.TokenBalance {
	b, ok := s.balances[userID]
	if !ok {
		b = &model.TokenBalance{UserID: userID}
		s.balances[userID] = b
	}
	return b
}

func (s *Store) appendTx(userID string, amount int, kind model.TransactionKind, reason string, after int) {
	s.transactions = append(s.transactions, model.TokenTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		Kind:         kind,
		Reason:       reason,
		BalanceAfter: after,
		CreatedAt:    s.now(),
	})
}

// Subscriptions

func (s *Store) GetSubscription(_ context.Context, userID string) (*model.UserSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) GetByStripeSubscriptionID(_ context.Context, stripeSubscriptionID string) (*model.UserSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscriptions {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == stripeSubscriptionID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpsertSubscription(_ context.Context, sub *model.UserSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	cp := *sub
	if existing, ok := s.subscriptions[sub.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.subscriptions[sub.UserID] = &cp
	sub.CreatedAt, sub.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, userID string, status model.SubscriptionStatus, periodEnd *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return repository.ErrNotFound
	}
	sub.Status = status
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	sub.UpdatedAt = s.now()
	return nil
}

func (s *Store) StartPeriod(_ context.Context, userID string, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[userID]
	if !ok {
		return repository.ErrNotFound
	}
	sub.Status = model.SubscriptionActive
	sub.CurrentPeriodStart = start
	sub.CurrentPeriodEnd = end
	sub.TokensUsed = 0
	sub.UpdatedAt = s.now()
	return nil
}

// Plans

func (s *Store) GetPlanByID(_ context.Context, planID string) (*model.SubscriptionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[planID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPlans(_ context.Context) ([]model.SubscriptionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SubscriptionPlan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

// Billing events

func (s *Store) ClaimEvent(_ context.Context, eventID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.events[eventID]; seen {
		return false, nil
	}
	s.events[eventID] = eventType
	return true, nil
}

func (s *Store) ReleaseEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	return nil
}

func (s *Store) Create(_ context.Context, event *model.DeadLetterEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = uuid.NewString()
	event.CreatedAt = s.now()
	s.deadLetters = append(s.deadLetters, *event)
	return nil
}

// Users

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByStripeCustomerID(_ context.Context, customerID string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpdateStripeCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = &customerID
	return nil
}

// Assets and jobs

func (s *Store) CreateAsset(_ context.Context, a *model.GeneratedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.CreatedAt = s.now()
	s.assets = append(s.assets, *a)
	return nil
}

func (s *Store) ListAssetsByUser(_ context.Context, userID string, limit, offset int) ([]model.GeneratedAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.GeneratedAsset
	for i := len(s.assets) - 1; i >= 0; i-- {
		if s.assets[i].UserID == userID {
			out = append(out, s.assets[i])
		}
	}
	return page(out, limit, offset), nil
}

func (s *Store) CreateJob(_ context.Context, j *model.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*model.GenerationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *Store) UpdateJob(_ context.Context, j *model.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[j.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Status = j.Status
	existing.ProviderJobID = j.ProviderJobID
	existing.ResultURL = j.ResultURL
	existing.Error = j.Error
	existing.UpdatedAt = s.now()
	j.UpdatedAt = existing.UpdatedAt
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
