package model

import "time"

// TransactionKind classifies a balance-affecting ledger entry.
type TransactionKind string

const (
	TransactionGrant TransactionKind = "grant"
	TransactionDebit TransactionKind = "debit"
	TransactionReset TransactionKind = "reset"
)

// Operation is a metered generation capability.
type Operation string

const (
	OperationModelCreation Operation = "model"
	OperationDressing      Operation = "dress"
	OperationEditing       Operation = "edit"
	OperationVideo         Operation = "video"
)

// TokenCosts is the price list of every metered operation.
var TokenCosts = map[Operation]int{
	OperationModelCreation: 1,
	OperationDressing:      1,
	OperationEditing:       1,
	OperationVideo:         5,
}

// Cost returns the token cost of op and whether op is metered at all.
func (op Operation) Cost() (int, bool) {
	c, ok := TokenCosts[op]
	return c, ok
}

// Valid reports whether op is a known metered operation.
func (op Operation) Valid() bool {
	_, ok := TokenCosts[op]
	return ok
}

// TokenBalance is a user's remaining metered-operation credits for the current period.
type TokenBalance struct {
	UserID      string     `db:"user_id" json:"user_id"`
	Balance     int        `db:"balance" json:"balance"`
	Allotment   int        `db:"allotment" json:"allotment"`
	PeriodStart *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TokenTransaction is an immutable audit entry. BalanceAfter is the balance
// immediately after Amount was applied.
type TokenTransaction struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	Amount       int             `db:"amount" json:"amount"`
	Kind         TransactionKind `db:"kind" json:"kind"`
	Reason       string          `db:"reason" json:"reason"`
	BalanceAfter int             `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
