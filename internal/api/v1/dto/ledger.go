package dto

import "time"

// TokenCheckRequest asks whether the caller can afford cost.
type TokenCheckRequest struct {
	Cost int `json:"cost" validate:"required,gt=0"`
}

// TokenCheckResponse answers a balance check.
type TokenCheckResponse struct {
	HasTokens bool `json:"has_tokens"`
	Balance   int  `json:"balance"`
}

// TokenDeductRequest charges the caller for work done elsewhere.
type TokenDeductRequest struct {
	Cost   int    `json:"cost" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,max=200"`
}

// TokenDeductResponse reports whether the deduction was applied.
type TokenDeductResponse struct {
	Success      bool `json:"success"`
	BalanceAfter int  `json:"balance_after"`
}

// BalanceResponseDTO is the caller's current balance and period.
type BalanceResponseDTO struct {
	Balance     int        `json:"balance"`
	Allotment   int        `json:"allotment"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// TransactionResponseDTO is one audit record.
type TransactionResponseDTO struct {
	ID           string    `json:"id"`
	Amount       int       `json:"amount"`
	Kind         string    `json:"kind"`
	Reason       string    `json:"reason"`
	BalanceAfter int       `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
