package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository"
)

func TestDebitNeverUnderflows(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Grant(ctx, "u1", 3, "seed"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.Debit(ctx, "u1", 1, "model")
			if err != nil {
				t.Errorf("Debit: %v", err)
				return
			}
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected 3 successful debits, got %d", succeeded)
	}
	b, _ := s.GetBalance(ctx, "u1")
	if b.Balance != 0 {
		t.Fatalf("expected balance 0, got %d", b.Balance)
	}
}

func TestFailedDebitLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Grant(ctx, "u1", 2, "seed")
	if _, ok, _ := s.Debit(ctx, "u1", 5, "video"); ok {
		t.Fatal("expected debit of 5 from 2 to fail")
	}
	txs, _ := s.ListTransactions(ctx, "u1", 0, 0)
	if len(txs) != 1 || txs[0].Kind != model.TransactionGrant {
		t.Fatalf("expected only the grant record, got %+v", txs)
	}
}

func TestResetRecordsSignedDelta(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Grant(ctx, "u1", 100, "seed")
	_, _, _ = s.Debit(ctx, "u1", 30, "model")
	if _, _, err := s.Reset(ctx, "u1", 100, "renewal"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	txs, _ := s.ListTransactions(ctx, "u1", 1, 0)
	if txs[0].Kind != model.TransactionReset || txs[0].Amount != 30 || txs[0].BalanceAfter != 100 {
		t.Fatalf("unexpected reset record %+v", txs[0])
	}
}

func TestSubscriptionLookups(t *testing.T) {
	ctx := context.Background()
	s := New()
	subID := "sub_123"
	if err := s.UpsertSubscription(ctx, &model.UserSubscription{UserID: "u1", PlanID: "p", Status: model.SubscriptionActive, StripeSubscriptionID: &subID}); err != nil {
		t.Fatalf("UpsertSubscription: %v", err)
	}
	got, err := s.GetByStripeSubscriptionID(ctx, subID)
	if err != nil || got.UserID != "u1" {
		t.Fatalf("expected u1, got %+v (%v)", got, err)
	}
	if _, err := s.GetByStripeSubscriptionID(ctx, "sub_missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateStatus(ctx, "nobody", model.SubscriptionPaused, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimEventOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	first, _ := s.ClaimEvent(ctx, "evt_1", "invoice.payment_succeeded")
	second, _ := s.ClaimEvent(ctx, "evt_1", "invoice.payment_succeeded")
	if !first || second {
		t.Fatalf("expected first claim only, got %v %v", first, second)
	}
	_ = s.ReleaseEvent(ctx, "evt_1")
	again, _ := s.ClaimEvent(ctx, "evt_1", "invoice.payment_succeeded")
	if !again {
		t.Fatal("expected claim after release")
	}
}
