package repository

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newTestPool connects to TEST_DATABASE_URL, which must already carry the schema
// from migrations/.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skip Postgres integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestLedgerRepoConcurrentDebits(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	repo := NewLedgerRepo(pool)
	userID := "it-" + uuid.NewString()

	if _, err := repo.Grant(ctx, userID, 5, "seed"); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repo.Debit(ctx, userID, 1, "model")
			if err != nil {
				t.Errorf("Debit: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for r := range results {
		if r {
			ok++
		}
	}
	if ok != 5 {
		t.Fatalf("expected 5 successful debits, got %d", ok)
	}
	b, err := repo.GetBalance(ctx, userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.Balance != 0 {
		t.Fatalf("expected 0 balance, got %d", b.Balance)
	}

	// Replaying the log in order reconstructs the balance.
	txs, err := repo.ListTransactions(ctx, userID, 100, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 6 {
		t.Fatalf("expected 6 records, got %d", len(txs))
	}
	sum := 0
	for i := len(txs) - 1; i >= 0; i-- {
		sum += txs[i].Amount
		if sum != txs[i].BalanceAfter {
			t.Fatalf("record %s: running sum %d != balance_after %d", txs[i].ID, sum, txs[i].BalanceAfter)
		}
	}
}

func TestLedgerRepoMissingBalance(t *testing.T) {
	pool := newTestPool(t)
	repo := NewLedgerRepo(pool)
	if _, err := repo.GetBalance(context.Background(), "it-"+uuid.NewString()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, ok, err := repo.Debit(context.Background(), "it-"+uuid.NewString(), 1, "model")
	if err != nil || ok {
		t.Fatalf("expected rejected debit without error, got ok=%v err=%v", ok, err)
	}
}
