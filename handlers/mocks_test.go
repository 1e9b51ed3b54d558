package handlers

import (
	"context"

	"settleup-backend/models"
	"settleup-backend/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockGroupService struct {
	mock.Mock
}

func (m *MockGroupService) Members(ctx context.Context, groupID, userID string) ([]models.Member, error) {
	args := m.Called(ctx, groupID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Member), args.Error(1)
}

func (m *MockGroupService) RequireMember(ctx context.Context, groupID, userID string) error {
	return m.Called(ctx, groupID, userID).Error(0)
}

func (m *MockGroupService) RequireAdmin(ctx context.Context, groupID, userID string) error {
	return m.Called(ctx, groupID, userID).Error(0)
}

func (m *MockGroupService) Delete(ctx context.Context, groupID, userID string) error {
	return m.Called(ctx, groupID, userID).Error(0)
}

type MockExpenseService struct {
	mock.Mock
}

func (m *MockExpenseService) GetByID(ctx context.Context, expenseID, userID string) (*models.Expense, error) {
	args := m.Called(ctx, expenseID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) ListByGroup(ctx context.Context, groupID, userID string) ([]models.Expense, error) {
	args := m.Called(ctx, groupID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Expense), args.Error(1)
}

func (m *MockExpenseService) Create(ctx context.Context, userID string, input *models.ExpenseInput) (*models.Expense, error) {
	args := m.Called(ctx, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) Update(ctx context.Context, expenseID, userID string, input *models.ExpenseInput) (*models.Expense, error) {
	args := m.Called(ctx, expenseID, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}

func (m *MockExpenseService) Delete(ctx context.Context, expenseID, userID string) error {
	return m.Called(ctx, expenseID, userID).Error(0)
}

type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GroupBalances(ctx context.Context, groupID string) ([]models.Balance, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Balance), args.Error(1)
}

func (m *MockBalanceService) UserBalances(ctx context.Context, userID string) (*models.UserBalanceSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBalanceSummary), args.Error(1)
}

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) SuggestSettlements(ctx context.Context, groupID string) ([]models.Transfer, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transfer), args.Error(1)
}

func (m *MockSettlementService) GenerateSettlements(ctx context.Context, groupID, actorID string) ([]models.Settlement, error) {
	args := m.Called(ctx, groupID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Settlement), args.Error(1)
}

func (m *MockSettlementService) RecordManualSettlement(ctx context.Context, groupID string, input services.ManualSettlementInput, recordedBy string) (*models.Settlement, error) {
	args := m.Called(ctx, groupID, input, recordedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementService) ListSettlements(ctx context.Context, groupID string, statuses []models.SettlementStatus) ([]models.Settlement, error) {
	args := m.Called(ctx, groupID, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Settlement), args.Error(1)
}

func (m *MockSettlementService) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementService) Confirm(ctx context.Context, id, confirmedBy string) (*models.Settlement, error) {
	args := m.Called(ctx, id, confirmedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementService) Reject(ctx context.Context, id, rejectedBy string) (*models.Settlement, error) {
	args := m.Called(ctx, id, rejectedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockSettlementService) ResetSettlements(ctx context.Context, groupID, actorID string) (int64, error) {
	args := m.Called(ctx, groupID, actorID)
	return args.Get(0).(int64), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) PayPart(ctx context.Context, settlementID string, amount decimal.Decimal, paidBy string) (*models.PaymentResult, error) {
	args := m.Called(ctx, settlementID, amount, paidBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockPaymentService) Pay(ctx context.Context, settlementID string, amount *decimal.Decimal, paidBy string) (*models.PaymentResult, error) {
	args := m.Called(ctx, settlementID, amount, paidBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockPaymentService) Undo(ctx context.Context, settlementID, actorID string) (*models.Settlement, error) {
	args := m.Called(ctx, settlementID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settlement), args.Error(1)
}

func (m *MockPaymentService) ListPayments(ctx context.Context, settlementID string) ([]models.Payment, error) {
	args := m.Called(ctx, settlementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Payment), args.Error(1)
}

var (
	_ services.GroupService      = (*MockGroupService)(nil)
	_ services.ExpenseService    = (*MockExpenseService)(nil)
	_ services.BalanceService    = (*MockBalanceService)(nil)
	_ services.SettlementService = (*MockSettlementService)(nil)
	_ services.PaymentService    = (*MockPaymentService)(nil)
)
