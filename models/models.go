package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

type Group struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Currency  string    `json:"currency" db:"currency"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Member struct {
	UserID   string     `json:"user_id" db:"user_id"`
	Name     string     `json:"name" db:"name"`
	Email    string     `json:"email" db:"email"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
}

type SplitType string

const (
	SplitTypeEqual       SplitType = "EQUAL"
	SplitTypePercentage  SplitType = "PERCENTAGE"
	SplitTypeExactAmount SplitType = "EXACT_AMOUNT"
)

func (t SplitType) Valid() bool {
	switch t {
	case SplitTypeEqual, SplitTypePercentage, SplitTypeExactAmount:
		return true
	}
	return false
}

type Expense struct {
	ID          string          `json:"id" db:"id"`
	GroupID     string          `json:"group_id" db:"group_id"`
	PayerID     string          `json:"payer_id" db:"payer_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Currency    string          `json:"currency" db:"currency"`
	SplitType   SplitType       `json:"split_type" db:"split_type"`
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	Splits      []Split         `json:"splits,omitempty"`
}

type Split struct {
	ID          string          `json:"id" db:"id"`
	ExpenseID   string          `json:"expense_id" db:"expense_id"`
	UserID      string          `json:"user_id" db:"user_id"`
	ShareAmount decimal.Decimal `json:"share_amount" db:"share_amount"`
}

// SplitInput is one participant of an expense as submitted by a client.
// Value is ignored for EQUAL, an amount for EXACT_AMOUNT and a percent for
// PERCENTAGE.
type SplitInput struct {
	UserID string          `json:"user_id"`
	Value  decimal.Decimal `json:"value"`
}

type ExpenseInput struct {
	GroupID     string          `json:"group_id"`
	PayerID     string          `json:"payer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	SplitType   SplitType       `json:"split_type"`
	Description string          `json:"description"`
	Splits      []SplitInput    `json:"splits"`
}

// MemberTotals is the raw ledger aggregate for one user in one group.
type MemberTotals struct {
	UserID    string
	TotalPaid decimal.Decimal
	TotalOwed decimal.Decimal
}

type Balance struct {
	UserID    string          `json:"user_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	TotalOwed decimal.Decimal `json:"total_owed"`
	Balance   decimal.Decimal `json:"balance"`
}

type GroupBalance struct {
	GroupID string          `json:"group_id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

type UserBalanceSummary struct {
	UserID     string          `json:"user_id"`
	NetBalance decimal.Decimal `json:"net_balance"`
	Groups     []GroupBalance  `json:"groups"`
}

// Transfer is one optimizer instruction: From pays To.
type Transfer struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type SettlementStatus string

const (
	SettlementStatusPending              SettlementStatus = "pending"
	SettlementStatusPartial              SettlementStatus = "partial"
	SettlementStatusAwaitingConfirmation SettlementStatus = "awaiting_confirmation"
	SettlementStatusPaid                 SettlementStatus = "paid"
	SettlementStatusAccepted             SettlementStatus = "accepted"
	SettlementStatusRejected             SettlementStatus = "rejected"
)

func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementStatusPending, SettlementStatusPartial, SettlementStatusAwaitingConfirmation,
		SettlementStatusPaid, SettlementStatusAccepted, SettlementStatusRejected:
		return true
	}
	return false
}

// Payable reports whether a tracked settlement in this status accepts payments.
func (s SettlementStatus) Payable() bool {
	return s == SettlementStatusPending || s == SettlementStatusPartial
}

// Open reports whether a tracked settlement in this status is still an
// obligation between its pair. A group holds at most one open settlement per
// (from, to) pair.
func (s SettlementStatus) Open() bool {
	return s.Payable() || s == SettlementStatusAwaitingConfirmation
}

// Undoable reports whether the latest payment of a settlement in this status
// can be retracted.
func (s SettlementStatus) Undoable() bool {
	return s == SettlementStatusPartial || s == SettlementStatusAwaitingConfirmation
}

// SettlementKind tags the two settlement variants. Tracked settlements carry
// running totals and go through pay/confirm; manual ones are self-attested
// and created accepted.
type SettlementKind string

const (
	SettlementKindTracked SettlementKind = "tracked"
	SettlementKindManual  SettlementKind = "manual"
)

type Settlement struct {
	ID              string           `json:"id" db:"id"`
	GroupID         string           `json:"group_id" db:"group_id"`
	FromUserID      string           `json:"from_user_id" db:"from_user_id"`
	ToUserID        string           `json:"to_user_id" db:"to_user_id"`
	Kind            SettlementKind   `json:"kind" db:"kind"`
	TotalAmount     decimal.Decimal  `json:"total_amount" db:"total_amount"`
	TotalPaid       decimal.Decimal  `json:"total_paid" db:"total_paid"`
	RemainingAmount decimal.Decimal  `json:"remaining_amount" db:"remaining_amount"`
	Status          SettlementStatus `json:"status" db:"status"`
	RecordedBy      *string          `json:"recorded_by,omitempty" db:"recorded_by"`
	Version         int              `json:"version" db:"version"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

func (s *Settlement) IsParty(userID string) bool {
	return s.FromUserID == userID || s.ToUserID == userID
}

type Payment struct {
	ID           string          `json:"id" db:"id"`
	SettlementID string          `json:"settlement_id" db:"settlement_id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	PaidBy       string          `json:"paid_by" db:"paid_by"`
	PaidAt       time.Time       `json:"paid_at" db:"paid_at"`
}

// PaymentResult is returned by the payment recorder: the settlement after the
// transition and the payment row that caused it.
type PaymentResult struct {
	Settlement *Settlement `json:"settlement"`
	Payment    *Payment    `json:"payment"`
}
