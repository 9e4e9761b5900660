package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
)

func TestCheckBalanceMissingRecordIsInsufficient(t *testing.T) {
	env := newTestEnv()
	check, err := env.ledger.CheckBalance(context.Background(), "nobody", 1)
	if err != nil {
		t.Fatalf("CheckBalance: %v", err)
	}
	if check.Sufficient || check.CurrentBalance != 0 {
		t.Fatalf("expected insufficient with balance 0, got %+v", check)
	}
}

func TestCheckBalanceRejectsNonPositiveCost(t *testing.T) {
	env := newTestEnv()
	if _, err := env.ledger.CheckBalance(context.Background(), "u1", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.ledger.Debit(context.Background(), "u1", -3, "x"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCheckThenDebitSucceeds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	if _, err := env.ledger.Grant(ctx, "u1", 7, "seed"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	for _, op := range []model.Operation{model.OperationModelCreation, model.OperationVideo, model.OperationEditing} {
		cost, _ := op.Cost()
		check, err := env.ledger.CheckBalance(ctx, "u1", cost)
		if err != nil || !check.Sufficient {
			t.Fatalf("%s: expected sufficient, got %+v (%v)", op, check, err)
		}
		res, err := env.ledger.Debit(ctx, "u1", cost, string(op))
		if err != nil || !res.Success {
			t.Fatalf("%s: debit after a passing check must succeed, got %+v (%v)", op, res, err)
		}
		if res.BalanceAfter != check.CurrentBalance-cost {
			t.Fatalf("%s: expected balance %d, got %d", op, check.CurrentBalance-cost, res.BalanceAfter)
		}
	}
}

func TestConcurrentDebitsMatchPermittedSum(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	const start = 50
	if _, err := env.ledger.Grant(ctx, "u1", start, "seed"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	costs := make([]int, 40)
	r := rand.New(rand.NewSource(7))
	for i := range costs {
		costs[i] = 1 + r.Intn(5)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	permitted := 0
	for _, c := range costs {
		wg.Add(1)
		go func(cost int) {
			defer wg.Done()
			res, err := env.ledger.Debit(ctx, "u1", cost, "concurrent")
			if err != nil {
				t.Errorf("Debit: %v", err)
				return
			}
			if res.Success {
				mu.Lock()
				permitted += cost
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	b, err := env.ledger.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.Balance != start-permitted {
		t.Fatalf("expected balance %d, got %d", start-permitted, b.Balance)
	}
	if b.Balance < 0 {
		t.Fatalf("balance went negative: %d", b.Balance)
	}
}

func TestTransactionLogReplaysToBalance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 10, "seed")
	_, _ = env.ledger.Debit(ctx, "u1", 5, "video")
	_, _ = env.ledger.Debit(ctx, "u1", 9, "too much")
	_, _ = env.ledger.Debit(ctx, "u1", 1, "model")
	_, _ = env.ledger.Reset(ctx, "u1", 100, "renewal")
	_, _ = env.ledger.Debit(ctx, "u1", 1, "dress")

	txs, err := env.ledger.ListTransactions(ctx, "u1", 100, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 5 {
		t.Fatalf("expected 5 records (rejected debit leaves none), got %d", len(txs))
	}
	running := 0
	for i := len(txs) - 1; i >= 0; i-- {
		running += txs[i].Amount
		if running != txs[i].BalanceAfter {
			t.Fatalf("record %d (%s): replayed %d, balance_after %d", i, txs[i].Kind, running, txs[i].BalanceAfter)
		}
	}
	b, _ := env.ledger.GetBalance(ctx, "u1")
	if b.Balance != running || b.Balance != 99 {
		t.Fatalf("expected replayed balance 99 to equal stored balance, got replay=%d stored=%d", running, b.Balance)
	}
}

func TestLedgerNotifiesObservers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	_, _ = env.ledger.Grant(ctx, "u1", 3, "seed")
	_, _ = env.ledger.Debit(ctx, "u1", 5, "rejected")
	_, _ = env.ledger.Debit(ctx, "u1", 1, "model")
	_, _ = env.ledger.Reset(ctx, "u1", 10, "renewal")

	got := env.observer.changes
	if len(got) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(got))
	}
	if got[1].Kind != model.TransactionDebit || got[1].Amount != -1 || got[1].BalanceAfter != 2 {
		t.Fatalf("unexpected debit notification %+v", got[1])
	}
	if got[2].Kind != model.TransactionReset || got[2].Amount != 8 || got[2].BalanceAfter != 10 {
		t.Fatalf("unexpected reset notification %+v", got[2])
	}
}

func TestGetBalanceDefaultsToZero(t *testing.T) {
	env := newTestEnv()
	b, err := env.ledger.GetBalance(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.UserID != "fresh" || b.Balance != 0 {
		t.Fatalf("unexpected balance %+v", b)
	}
}
