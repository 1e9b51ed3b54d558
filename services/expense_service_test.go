package services

import (
	"context"
	"testing"

	apperrors "settleup-backend/errors"
	"settleup-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitsFor(values map[string]string, order ...string) []models.SplitInput {
	out := make([]models.SplitInput, 0, len(order))
	for _, uid := range order {
		v := decimal.Zero
		if s, ok := values[uid]; ok {
			v = d(s)
		}
		out = append(out, models.SplitInput{UserID: uid, Value: v})
	}
	return out
}

func TestCreateExpenseValidation(t *testing.T) {
	members := []string{"alice", "bob", "carol"}

	tests := []struct {
		name     string
		input    models.ExpenseInput
		wantCode apperrors.ErrorCode
	}{
		{
			name: "Valid equal split",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("100"), SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, members...),
			},
		},
		{
			name: "Valid exact split",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("50"), SplitType: models.SplitTypeExactAmount,
				Splits: splitsFor(map[string]string{"alice": "20", "bob": "30"}, "alice", "bob"),
			},
		},
		{
			name: "Exact split mismatch",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("50"), SplitType: models.SplitTypeExactAmount,
				Splits: splitsFor(map[string]string{"alice": "20", "bob": "20"}, "alice", "bob"),
			},
			wantCode: apperrors.CodeAmountMismatch,
		},
		{
			name: "Percentages not summing to 100",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("50"), SplitType: models.SplitTypePercentage,
				Splits: splitsFor(map[string]string{"alice": "40", "bob": "40"}, "alice", "bob"),
			},
			wantCode: apperrors.CodeAmountMismatch,
		},
		{
			name: "Zero amount",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("0"), SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, members...),
			},
			wantCode: apperrors.CodeInvalidAmount,
		},
		{
			name: "Sub-cent amount",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("10.005"), SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, members...),
			},
			wantCode: apperrors.CodeInvalidAmount,
		},
		{
			name: "Payer outside group",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "mallory", Amount: d("10"), SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, members...),
			},
			wantCode: apperrors.CodeInvalidRequest,
		},
		{
			name: "Participant outside group",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("10"), SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, "alice", "mallory"),
			},
			wantCode: apperrors.CodeInvalidRequest,
		},
		{
			name: "Duplicate participant",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("10"), SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, "alice", "alice"),
			},
			wantCode: apperrors.CodeInvalidRequest,
		},
		{
			name: "Currency mismatch",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("10"), Currency: "EUR", SplitType: models.SplitTypeEqual,
				Splits: splitsFor(nil, members...),
			},
			wantCode: apperrors.CodeInvalidRequest,
		},
		{
			name: "Unknown split type",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("10"), SplitType: "SHARES",
				Splits: splitsFor(nil, members...),
			},
			wantCode: apperrors.CodeInvalidFieldFormat,
		},
		{
			name: "No splits",
			input: models.ExpenseInput{
				GroupID: "g1", PayerID: "alice", Amount: d("10"), SplitType: models.SplitTypeEqual,
			},
			wantCode: apperrors.CodeMissingRequiredField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.groups.addGroup("g1", "USD", members...)

			input := tt.input
			expense, err := f.expenseSvc.Create(context.Background(), "alice", &input)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "expected %s, got %v", tt.wantCode, err)
				count, _ := f.expenses.CountByGroup(context.Background(), "g1")
				assert.Zero(t, count)
				return
			}
			require.NoError(t, err)

			total := decimal.Zero
			for _, s := range expense.Splits {
				total = total.Add(s.ShareAmount)
			}
			assert.True(t, total.Equal(expense.Amount), "splits sum to %s, amount %s", total, expense.Amount)
			assert.Equal(t, "USD", expense.Currency)
		})
	}
}

func TestCreateExpenseEqualSplitAssignsRemainder(t *testing.T) {
	f := newFixture()
	f.groups.addGroup("g1", "USD", "alice", "bob", "carol")

	expense, err := f.expenseSvc.Create(context.Background(), "alice", &models.ExpenseInput{
		GroupID: "g1", PayerID: "alice", Amount: d("100"), SplitType: models.SplitTypeEqual,
		Splits: splitsFor(nil, "alice", "bob", "carol"),
	})
	require.NoError(t, err)

	stored, err := f.expenses.GetByID(context.Background(), expense.ID)
	require.NoError(t, err)
	require.Len(t, stored.Splits, 3)
	got := []string{stored.Splits[0].ShareAmount.StringFixed(2), stored.Splits[1].ShareAmount.StringFixed(2), stored.Splits[2].ShareAmount.StringFixed(2)}
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, got)
}

func TestCreateExpenseRequiresMembership(t *testing.T) {
	f := newFixture()
	f.groups.addGroup("g1", "USD", "alice", "bob")

	_, err := f.expenseSvc.Create(context.Background(), "mallory", &models.ExpenseInput{
		GroupID: "g1", PayerID: "alice", Amount: d("10"), SplitType: models.SplitTypeEqual,
		Splits: splitsFor(nil, "alice", "bob"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotGroupMember))
}

func TestUpdateExpenseReplacesSplits(t *testing.T) {
	f := newFixture()
	f.groups.addGroup("g1", "USD", "alice", "bob", "carol")
	ctx := context.Background()

	created, err := f.expenseSvc.Create(ctx, "alice", &models.ExpenseInput{
		GroupID: "g1", PayerID: "alice", Amount: d("90"), SplitType: models.SplitTypeEqual,
		Splits: splitsFor(nil, "alice", "bob", "carol"),
	})
	require.NoError(t, err)

	updated, err := f.expenseSvc.Update(ctx, created.ID, "bob", &models.ExpenseInput{
		PayerID: "bob", Amount: d("40"), SplitType: models.SplitTypePercentage,
		Splits: splitsFor(map[string]string{"alice": "25", "bob": "75"}, "alice", "bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", updated.PayerID)

	stored, err := f.expenses.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Splits, 2)
	assert.Equal(t, "10.00", stored.Splits[0].ShareAmount.StringFixed(2))
	assert.Equal(t, "30.00", stored.Splits[1].ShareAmount.StringFixed(2))

	balances, err := f.balances.GroupBalances(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "-10.00", balances[0].Balance.StringFixed(2))
	assert.Equal(t, "10.00", balances[1].Balance.StringFixed(2))
	assert.True(t, balances[2].Balance.IsZero())
}

func TestUpdateExpenseCannotChangeGroup(t *testing.T) {
	f := newFixture()
	f.groups.addGroup("g1", "USD", "alice", "bob")
	f.expenses.addExpense("e1", "g1", "alice", "10", map[string]string{"alice": "5", "bob": "5"})

	_, err := f.expenseSvc.Update(context.Background(), "e1", "alice", &models.ExpenseInput{
		GroupID: "g2", PayerID: "alice", Amount: d("10"), SplitType: models.SplitTypeEqual,
		Splits: splitsFor(nil, "alice", "bob"),
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidRequest))
}

func TestDeleteExpense(t *testing.T) {
	f := newFixture()
	f.groups.addGroup("g1", "USD", "alice", "bob")
	f.expenses.addExpense("e1", "g1", "alice", "10", map[string]string{"alice": "5", "bob": "5"})
	ctx := context.Background()

	require.NoError(t, f.expenseSvc.Delete(ctx, "e1", "bob"))

	_, err := f.expenseSvc.GetByID(ctx, "e1", "bob")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExpenseNotFound))

	err = f.expenseSvc.Delete(ctx, "e1", "bob")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeExpenseNotFound))
}

func TestListExpensesEmptyGroup(t *testing.T) {
	f := newFixture()
	f.groups.addGroup("g1", "USD", "alice")

	expenses, err := f.expenseSvc.ListByGroup(context.Background(), "g1", "alice")
	require.NoError(t, err)
	assert.NotNil(t, expenses)
	assert.Empty(t, expenses)
}
