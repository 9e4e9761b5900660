package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"

	"github.com/rs/zerolog"
)

// ErrInvalidAmount is returned for non-positive costs and grants.
var ErrInvalidAmount = errors.New("amount must be positive")

// BalanceCheck is the read-only answer to "can this user afford cost".
type BalanceCheck struct {
	Sufficient     bool `json:"has_tokens"`
	CurrentBalance int  `json:"balance"`
}

// DebitResult reports whether a debit was applied. An uncovered cost is
// Success=false, not an error.
type DebitResult struct {
	Success      bool `json:"success"`
	BalanceAfter int  `json:"balance_after"`
}

// BalanceChange describes one applied ledger mutation.
type BalanceChange struct {
	UserID       string                `json:"user_id"`
	Kind         model.TransactionKind `json:"kind"`
	Amount       int                   `json:"amount"`
	BalanceAfter int                   `json:"balance_after"`
	Reason       string                `json:"reason"`
	At           time.Time             `json:"at"`
}

// BalanceObserver is told about every applied mutation. Implementations must
// not block for long and their failures never affect the ledger.
type BalanceObserver interface {
	BalanceChanged(ctx context.Context, change BalanceChange)
}

// LedgerService gates metered operations on a per-user token balance.
type LedgerService interface {
	CheckBalance(ctx context.Context, userID string, cost int) (BalanceCheck, error)
	Debit(ctx context.Context, userID string, cost int, reason string) (DebitResult, error)
	Grant(ctx context.Context, userID string, amount int, reason string) (int, error)
	Reset(ctx context.Context, userID string, amount int, reason string) (int, error)
	SetPeriod(ctx context.Context, userID string, start, end time.Time) error
	GetBalance(ctx context.Context, userID string) (*model.TokenBalance, error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.TokenTransaction, error)
}

type ledgerService struct {
	repo      repository.LedgerRepository
	observers []BalanceObserver
	logger    zerolog.Logger
}

// NewLedgerService creates a new LedgerService with a scoped logger.
func NewLedgerService(repo repository.LedgerRepository, logger zerolog.Logger, observers ...BalanceObserver) LedgerService {
	return &ledgerService{
		repo:      repo,
		observers: observers,
		logger:    logger.With().Str("service", "LedgerService").Logger(),
	}
}

func (s *ledgerService) CheckBalance(ctx context.Context, userID string, cost int) (BalanceCheck, error) {
	if cost <= 0 {
		return BalanceCheck{}, ErrInvalidAmount
	}
	b, err := s.repo.GetBalance(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return BalanceCheck{Sufficient: false, CurrentBalance: 0}, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read balance")
		return BalanceCheck{}, err
	}
	return BalanceCheck{Sufficient: b.Balance >= cost, CurrentBalance: b.Balance}, nil
}

func (s *ledgerService) Debit(ctx context.Context, userID string, cost int, reason string) (DebitResult, error) {
	if cost <= 0 {
		return DebitResult{}, ErrInvalidAmount
	}
	after, ok, err := s.repo.Debit(ctx, userID, cost, reason)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int("cost", cost).Msg("Failed to debit tokens")
		return DebitResult{}, err
	}
	if !ok {
		s.logger.Info().Str("user_id", userID).Int("cost", cost).Msg("Debit rejected: insufficient tokens")
		return DebitResult{Success: false}, nil
	}
	s.notify(ctx, BalanceChange{UserID: userID, Kind: model.TransactionDebit, Amount: -cost, BalanceAfter: after, Reason: reason})
	return DebitResult{Success: true, BalanceAfter: after}, nil
}

func (s *ledgerService) Grant(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	after, err := s.repo.Grant(ctx, userID, amount, reason)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int("amount", amount).Msg("Failed to grant tokens")
		return 0, err
	}
	s.logger.Info().Str("user_id", userID).Int("amount", amount).Int("balance_after", after).Str("reason", reason).Msg("Tokens granted")
	s.notify(ctx, BalanceChange{UserID: userID, Kind: model.TransactionGrant, Amount: amount, BalanceAfter: after, Reason: reason})
	return after, nil
}

func (s *ledgerService) Reset(ctx context.Context, userID string, amount int, reason string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("reset to %d: %w", amount, ErrInvalidAmount)
	}
	after, delta, err := s.repo.Reset(ctx, userID, amount, reason)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int("amount", amount).Msg("Failed to reset tokens")
		return 0, err
	}
	s.logger.Info().Str("user_id", userID).Int("balance_after", after).Str("reason", reason).Msg("Tokens reset")
	s.notify(ctx, BalanceChange{UserID: userID, Kind: model.TransactionReset, Amount: delta, BalanceAfter: after, Reason: reason})
	return after, nil
}

func (s *ledgerService) SetPeriod(ctx context.Context, userID string, start, end time.Time) error {
	if err := s.repo.SetPeriod(ctx, userID, start, end); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to set balance period")
		return err
	}
	return nil
}

// GetBalance returns the balance record, or a zero balance when none exists yet.
func (s *ledgerService) GetBalance(ctx context.Context, userID string) (*model.TokenBalance, error) {
	b, err := s.repo.GetBalance(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.TokenBalance{UserID: userID}, nil
	}
	return b, err
}

func (s *ledgerService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]model.TokenTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

func (s *ledgerService) notify(ctx context.Context, change BalanceChange) {
	change.At = time.Now().UTC()
	for _, o := range s.observers {
		o.BalanceChanged(ctx, change)
	}
}
