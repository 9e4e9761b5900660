package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository/memory"

	"github.com/rs/zerolog"
)

type fakePublisher struct {
	topic    string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.topic = topic
	p.payloads = append(p.payloads, payload)
	return "msg-1", nil
}

func TestBalanceChangesArePublished(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	ledger := NewLedgerService(memory.New(), zerolog.Nop(), NewPubSubBalanceObserver(pub, "balance-changed", zerolog.Nop()))

	_, _ = ledger.Grant(ctx, "u1", 5, "seed")
	_, _ = ledger.Debit(ctx, "u1", 5, "video")

	if pub.topic != "balance-changed" || len(pub.payloads) != 2 {
		t.Fatalf("expected 2 messages on balance-changed, got %d on %q", len(pub.payloads), pub.topic)
	}
	var change BalanceChange
	if err := json.Unmarshal(pub.payloads[1], &change); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if change.Kind != model.TransactionDebit || change.Amount != -5 || change.BalanceAfter != 0 || change.At.IsZero() {
		t.Fatalf("unexpected change %+v", change)
	}
}

func TestPublishFailureDoesNotAffectLedger(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("unavailable")}
	ledger := NewLedgerService(memory.New(), zerolog.Nop(), NewPubSubBalanceObserver(pub, "balance-changed", zerolog.Nop()))

	if _, err := ledger.Grant(ctx, "u1", 2, "seed"); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	res, err := ledger.Debit(ctx, "u1", 1, "edit")
	if err != nil || !res.Success || res.BalanceAfter != 1 {
		t.Fatalf("unexpected debit result %+v (%v)", res, err)
	}
}
