package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/model"
	"github.com/lakarijeprvovencani/fashionnikolainemanja-sub000/internal/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

var reconcileNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newReconciler(store *memory.Store, dedup bool) (ReconcilerService, LedgerService) {
	ledger := NewLedgerService(store, zerolog.Nop())
	r := NewReconcilerService(ReconcilerDeps{
		Subscriptions: store,
		Plans:         store,
		Events:        store,
		DeadLetters:   store,
		Ledger:        ledger,
	}, dedup, zerolog.Nop())
	r.(*reconcilerService).now = fixedNow(reconcileNow)
	return r, ledger
}

func seedPlans(store *memory.Store) {
	store.PutPlan(model.SubscriptionPlan{ID: "monthly", Name: "Monthly", StripePriceID: stripe.String("price_m"), TokensPerPeriod: 100, Interval: model.IntervalMonth, PriceCents: 1900})
	store.PutPlan(model.SubscriptionPlan{ID: "annual", Name: "Annual", StripePriceID: stripe.String("price_y"), TokensPerPeriod: 1500, Interval: model.IntervalYear, PriceCents: 19900})
}

func billingEvent(id string, typ stripe.EventType, obj any) *stripe.Event {
	raw, err := json.Marshal(obj)
	if err != nil {
		panic(err)
	}
	return &stripe.Event{ID: id, Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func checkoutEvent(id, userID, planID string) *stripe.Event {
	return billingEvent(id, eventCheckoutCompleted, map[string]any{
		"id":           "cs_" + id,
		"object":       "checkout.session",
		"customer":     "cus_1",
		"subscription": "sub_1",
		"metadata":     map[string]string{"user_id": userID, "plan_id": planID},
	})
}

func invoiceEvent(id, subID string, start, end time.Time) *stripe.Event {
	return billingEvent(id, eventInvoicePaymentSucceeded, map[string]any{
		"id":     "in_" + id,
		"object": "invoice",
		"parent": map[string]any{
			"subscription_details": map[string]any{"subscription": subID},
		},
		"lines": map[string]any{
			"object": "list",
			"data": []map[string]any{{
				"id":     "il_1",
				"period": map[string]int64{"start": start.Unix(), "end": end.Unix()},
			}},
		},
	})
}

func subscriptionEvent(id string, typ stripe.EventType, subID, status string, periodEnd int64) *stripe.Event {
	return billingEvent(id, typ, map[string]any{
		"id":     subID,
		"object": "subscription",
		"status": status,
		"items": map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": "si_1", "current_period_end": periodEnd}},
		},
	})
}

func activate(t *testing.T, r ReconcilerService, userID, planID string) {
	t.Helper()
	if err := r.HandleEvent(context.Background(), checkoutEvent("evt_checkout_"+userID, userID, planID)); err != nil {
		t.Fatalf("checkout: %v", err)
	}
}

func TestCheckoutGrantsPlanTokensAndPeriod(t *testing.T) {
	for _, tc := range []struct {
		plan    string
		tokens  int
		wantEnd time.Time
	}{
		{"monthly", 100, time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)},
		{"annual", 1500, time.Date(2027, 3, 10, 12, 0, 0, 0, time.UTC)},
	} {
		t.Run(tc.plan, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			seedPlans(store)
			r, ledger := newReconciler(store, true)
			activate(t, r, "u1", tc.plan)

			b, _ := ledger.GetBalance(ctx, "u1")
			if b.Balance != tc.tokens {
				t.Fatalf("expected balance %d, got %d", tc.tokens, b.Balance)
			}
			if b.PeriodEnd == nil || !b.PeriodEnd.Equal(tc.wantEnd) {
				t.Fatalf("expected balance period end %v, got %v", tc.wantEnd, b.PeriodEnd)
			}
			sub, err := store.GetSubscription(ctx, "u1")
			if err != nil {
				t.Fatalf("GetSubscription: %v", err)
			}
			if sub.Status != model.SubscriptionActive || sub.TokensPerPeriod != tc.tokens || sub.TokensUsed != 0 {
				t.Fatalf("unexpected subscription %+v", sub)
			}
			if !sub.CurrentPeriodEnd.Equal(tc.wantEnd) {
				t.Fatalf("expected period end %v, got %v", tc.wantEnd, sub.CurrentPeriodEnd)
			}
			if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != "sub_1" {
				t.Fatalf("expected provider subscription ref, got %v", sub.StripeSubscriptionID)
			}
			if sub.StripeCustomerID == nil || *sub.StripeCustomerID != "cus_1" {
				t.Fatalf("expected provider customer ref, got %v", sub.StripeCustomerID)
			}
		})
	}
}

func TestCheckoutWithoutMetadataIsInvalid(t *testing.T) {
	store := memory.New()
	seedPlans(store)
	r, ledger := newReconciler(store, true)

	err := r.HandleEvent(context.Background(), checkoutEvent("evt_bad", "", "monthly"))
	if !errors.Is(err, ErrInvalidBillingEvent) {
		t.Fatalf("expected ErrInvalidBillingEvent, got %v", err)
	}
	err = r.HandleEvent(context.Background(), checkoutEvent("evt_unknown_plan", "u1", "lifetime"))
	if !errors.Is(err, ErrInvalidBillingEvent) {
		t.Fatalf("expected ErrInvalidBillingEvent for unknown plan, got %v", err)
	}

	if dl := store.DeadLetters(); len(dl) != 2 || dl[0].EventID != "evt_bad" {
		t.Fatalf("expected both events dead-lettered, got %+v", dl)
	}
	if b, _ := ledger.GetBalance(context.Background(), "u1"); b.Balance != 0 {
		t.Fatalf("invalid event must not grant tokens, balance %d", b.Balance)
	}
}

func TestFailedEventReleasesClaim(t *testing.T) {
	store := memory.New()
	r, _ := newReconciler(store, true)

	// plan catalog is empty, so the first delivery fails
	if err := r.HandleEvent(context.Background(), checkoutEvent("evt_1", "u1", "monthly")); err == nil {
		t.Fatal("expected failure without plan catalog")
	}
	seedPlans(store)
	if err := r.HandleEvent(context.Background(), checkoutEvent("evt_1", "u1", "monthly")); err != nil {
		t.Fatalf("retry after fix: %v", err)
	}
	if b, _ := store.GetBalance(context.Background(), "u1"); b == nil || b.Balance != 100 {
		t.Fatalf("expected retried event to grant 100, got %+v", b)
	}
}

func TestRenewalResetsBalanceDiscardingRollover(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedPlans(store)
	r, ledger := newReconciler(store, true)
	activate(t, r, "u1", "monthly")

	for i := 0; i < 30; i++ {
		if res, _ := ledger.Debit(ctx, "u1", 1, "model"); !res.Success {
			t.Fatalf("debit %d rejected", i)
		}
	}

	start := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	if err := r.HandleEvent(ctx, invoiceEvent("evt_inv_1", "sub_1", start, end)); err != nil {
		t.Fatalf("renewal: %v", err)
	}

	b, _ := ledger.GetBalance(ctx, "u1")
	if b.Balance != 100 {
		t.Fatalf("expected reset to allotment 100, got %d", b.Balance)
	}
	sub, _ := store.GetSubscription(ctx, "u1")
	if sub.TokensUsed != 0 || !sub.CurrentPeriodStart.Equal(start) || !sub.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("unexpected subscription after renewal %+v", sub)
	}
	txs, _ := ledger.ListTransactions(ctx, "u1", 100, 0)
	if txs[0].Kind != model.TransactionReset || txs[0].Amount != 30 || txs[0].BalanceAfter != 100 {
		t.Fatalf("unexpected reset record %+v", txs[0])
	}
}

func TestRedeliveredRenewal(t *testing.T) {
	start := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		dedup       bool
		wantBalance int
		wantResets  int
	}{
		{dedup: true, wantBalance: 90, wantResets: 1},
		{dedup: false, wantBalance: 100, wantResets: 2},
	} {
		t.Run(fmt.Sprintf("dedup=%v", tc.dedup), func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			seedPlans(store)
			r, ledger := newReconciler(store, tc.dedup)
			activate(t, r, "u1", "monthly")

			evt := invoiceEvent("evt_inv_1", "sub_1", start, end)
			if err := r.HandleEvent(ctx, evt); err != nil {
				t.Fatalf("first delivery: %v", err)
			}
			for i := 0; i < 10; i++ {
				_, _ = ledger.Debit(ctx, "u1", 1, "dress")
			}
			if err := r.HandleEvent(ctx, evt); err != nil {
				t.Fatalf("redelivery: %v", err)
			}

			b, _ := ledger.GetBalance(ctx, "u1")
			if b.Balance != tc.wantBalance {
				t.Fatalf("expected balance %d, got %d", tc.wantBalance, b.Balance)
			}
			txs, _ := ledger.ListTransactions(ctx, "u1", 100, 0)
			resets := 0
			for _, tx := range txs {
				if tx.Kind == model.TransactionReset {
					resets++
				}
			}
			if resets != tc.wantResets {
				t.Fatalf("expected %d reset records, got %d", tc.wantResets, resets)
			}
		})
	}
}

func TestSubscriptionStatusMapping(t *testing.T) {
	periodEnd := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		provider string
		want     model.SubscriptionStatus
	}{
		{"active", model.SubscriptionActive},
		{"trialing", model.SubscriptionActive},
		{"past_due", model.SubscriptionPaused},
		{"unpaid", model.SubscriptionPaused},
		{"canceled", model.SubscriptionCancelled},
		{"incomplete_expired", model.SubscriptionExpired},
		{"incomplete", model.SubscriptionActive},
	} {
		t.Run(tc.provider, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			seedPlans(store)
			r, _ := newReconciler(store, true)
			activate(t, r, "u1", "monthly")

			evt := subscriptionEvent("evt_sub_"+tc.provider, eventSubscriptionUpdated, "sub_1", tc.provider, periodEnd.Unix())
			if err := r.HandleEvent(ctx, evt); err != nil {
				t.Fatalf("HandleEvent: %v", err)
			}
			sub, _ := store.GetSubscription(ctx, "u1")
			if sub.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, sub.Status)
			}
			if tc.provider == "active" && !sub.CurrentPeriodEnd.Equal(periodEnd) {
				t.Fatalf("expected refreshed period end %v, got %v", periodEnd, sub.CurrentPeriodEnd)
			}
		})
	}
}

func TestSubscriptionDeletedAndPaymentFailed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedPlans(store)
	r, _ := newReconciler(store, true)
	activate(t, r, "u1", "monthly")

	failed := billingEvent("evt_fail", eventInvoicePaymentFailed, map[string]any{
		"id":     "in_2",
		"object": "invoice",
		"parent": map[string]any{"subscription_details": map[string]any{"subscription": "sub_1"}},
	})
	if err := r.HandleEvent(ctx, failed); err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if sub, _ := store.GetSubscription(ctx, "u1"); sub.Status != model.SubscriptionPaused {
		t.Fatalf("expected paused, got %s", sub.Status)
	}

	if err := r.HandleEvent(ctx, subscriptionEvent("evt_del", eventSubscriptionDeleted, "sub_1", "canceled", 0)); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if sub, _ := store.GetSubscription(ctx, "u1"); sub.Status != model.SubscriptionCancelled {
		t.Fatalf("expected cancelled, got %s", sub.Status)
	}
}

func TestUnknownSubscriptionAndUnhandledEventsAreNoops(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r, _ := newReconciler(store, true)

	if err := r.HandleEvent(ctx, subscriptionEvent("evt_x", eventSubscriptionUpdated, "sub_missing", "past_due", 0)); err != nil {
		t.Fatalf("unknown subscription should be a no-op, got %v", err)
	}
	if err := r.HandleEvent(ctx, &stripe.Event{ID: "evt_y", Type: "customer.created"}); err != nil {
		t.Fatalf("unhandled type should be ignored, got %v", err)
	}
	if dl := store.DeadLetters(); len(dl) != 0 {
		t.Fatalf("no-ops must not dead-letter, got %d", len(dl))
	}
}
