package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"settleup-backend/database"
	apperrors "settleup-backend/errors"
	"settleup-backend/models"
	"settleup-backend/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ExpenseService interface {
	GetByID(ctx context.Context, expenseID, userID string) (*models.Expense, error)
	ListByGroup(ctx context.Context, groupID, userID string) ([]models.Expense, error)
	Create(ctx context.Context, userID string, input *models.ExpenseInput) (*models.Expense, error)
	Update(ctx context.Context, expenseID, userID string, input *models.ExpenseInput) (*models.Expense, error)
	Delete(ctx context.Context, expenseID, userID string) error
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	groupRepo   repository.GroupRepository
	db          database.TxRunner
}

func NewExpenseService(expenseRepo repository.ExpenseRepository, groupRepo repository.GroupRepository, db database.TxRunner) ExpenseService {
	return &expenseService{
		expenseRepo: expenseRepo,
		groupRepo:   groupRepo,
		db:          db,
	}
}

func (s *expenseService) loadExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			zap.L().Debug("Expense not found", zap.String("expense_id", expenseID))
			return nil, apperrors.ExpenseNotFound()
		}
		zap.L().Error("Failed to get expense", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, apperrors.DatabaseError("getting expense", err)
	}
	return expense, nil
}

func (s *expenseService) GetByID(ctx context.Context, expenseID, userID string) (*models.Expense, error) {
	expense, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := RequireGroupMembership(ctx, s.groupRepo, expense.GroupID, userID); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *expenseService) ListByGroup(ctx context.Context, groupID, userID string) ([]models.Expense, error) {
	if err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
		return nil, err
	}
	expenses, err := s.expenseRepo.ListByGroup(ctx, groupID)
	if err != nil {
		zap.L().Error("Failed to get group expenses", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("getting expenses", err)
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses, nil
}

func (s *expenseService) Create(ctx context.Context, userID string, input *models.ExpenseInput) (*models.Expense, error) {
	if input.GroupID == "" {
		return nil, apperrors.MissingRequiredField("group_id")
	}
	if err := RequireGroupMembership(ctx, s.groupRepo, input.GroupID, userID); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ID:      uuid.New().String(),
		GroupID: input.GroupID,
	}
	if err := s.prepare(ctx, expense, input); err != nil {
		return nil, err
	}

	err := s.db.WithTx(ctx, func(q database.Querier) error {
		txRepo := s.expenseRepo.WithTx(q)
		if err := txRepo.Create(ctx, expense); err != nil {
			return apperrors.DatabaseError("creating expense", err)
		}
		return createSplits(ctx, txRepo, expense.Splits)
	})
	if err != nil {
		zap.L().Error("Failed to create expense", zap.String("group_id", expense.GroupID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Expense created successfully",
		zap.String("expense_id", expense.ID),
		zap.String("group_id", expense.GroupID),
		zap.String("amount", expense.Amount.StringFixed(2)))
	return expense, nil
}

// Update rewrites the expense and replaces all of its splits.
func (s *expenseService) Update(ctx context.Context, expenseID, userID string, input *models.ExpenseInput) (*models.Expense, error) {
	existing, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if err := RequireGroupMembership(ctx, s.groupRepo, existing.GroupID, userID); err != nil {
		return nil, err
	}
	if input.GroupID != "" && input.GroupID != existing.GroupID {
		return nil, apperrors.InvalidRequest("An expense cannot be moved to another group.")
	}

	expense := &models.Expense{
		ID:        existing.ID,
		GroupID:   existing.GroupID,
		CreatedAt: existing.CreatedAt,
	}
	if err := s.prepare(ctx, expense, input); err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		txRepo := s.expenseRepo.WithTx(q)
		if err := txRepo.Update(ctx, expense); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.ExpenseNotFound()
			}
			return apperrors.DatabaseError("updating expense", err)
		}
		if err := txRepo.DeleteSplits(ctx, expense.ID); err != nil {
			return apperrors.DatabaseError("deleting existing splits", err)
		}
		return createSplits(ctx, txRepo, expense.Splits)
	})
	if err != nil {
		zap.L().Error("Failed to update expense", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Expense updated successfully",
		zap.String("expense_id", expenseID),
		zap.String("new_amount", expense.Amount.StringFixed(2)))
	return expense, nil
}

func (s *expenseService) Delete(ctx context.Context, expenseID, userID string) error {
	expense, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if err := RequireGroupMembership(ctx, s.groupRepo, expense.GroupID, userID); err != nil {
		return err
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		txRepo := s.expenseRepo.WithTx(q)
		if err := txRepo.DeleteSplits(ctx, expenseID); err != nil {
			return apperrors.DatabaseError("deleting expense splits", err)
		}
		if err := txRepo.Delete(ctx, expenseID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.ExpenseNotFound()
			}
			return apperrors.DatabaseError("deleting expense", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to delete expense", zap.String("expense_id", expenseID), zap.Error(err))
		return err
	}

	zap.L().Info("Expense deleted successfully", zap.String("expense_id", expenseID), zap.String("user_id", userID))
	return nil
}

func createSplits(ctx context.Context, repo repository.ExpenseRepository, splits []models.Split) error {
	for i := range splits {
		if err := repo.CreateSplit(ctx, &splits[i]); err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.DuplicateEntry("Split for this member")
			}
			return apperrors.DatabaseError("creating expense split", err)
		}
	}
	return nil
}

// prepare validates input against the group and fills expense, splits
// included.
func (s *expenseService) prepare(ctx context.Context, expense *models.Expense, input *models.ExpenseInput) error {
	group, err := s.groupRepo.GetByID(ctx, expense.GroupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.GroupNotFound()
		}
		return apperrors.DatabaseError("getting group", err)
	}

	if !input.Amount.IsPositive() {
		return apperrors.InvalidAmount("Expense amount must be greater than zero.")
	}
	if !HasAtMostCents(input.Amount) {
		return apperrors.InvalidAmount("Expense amount must have at most two decimal places.")
	}
	description := strings.TrimSpace(input.Description)
	if len(description) > MaxDescriptionLength {
		return apperrors.InvalidRequest(fmt.Sprintf("Description must be at most %d characters.", MaxDescriptionLength))
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = group.Currency
	}
	if currency != group.Currency {
		return apperrors.InvalidRequestWithDetails(
			"Expense currency must match the group currency.",
			fmt.Sprintf("group currency is %s", group.Currency))
	}

	members, err := s.groupRepo.GetMembers(ctx, expense.GroupID)
	if err != nil {
		return apperrors.DatabaseError("getting group members", err)
	}
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m.UserID] = true
	}

	if input.PayerID == "" {
		return apperrors.MissingRequiredField("payer_id")
	}
	if !memberSet[input.PayerID] {
		return apperrors.InvalidRequestWithDetails("Payer must be a member of the group.", input.PayerID)
	}

	shares, err := buildShares(input.Amount, input.SplitType, input.Splits, memberSet)
	if err != nil {
		return err
	}

	expense.PayerID = input.PayerID
	expense.Amount = input.Amount
	expense.Currency = currency
	expense.SplitType = input.SplitType
	expense.Description = description
	expense.Splits = make([]models.Split, len(input.Splits))
	for i, in := range input.Splits {
		expense.Splits[i] = models.Split{
			ID:          uuid.New().String(),
			ExpenseID:   expense.ID,
			UserID:      in.UserID,
			ShareAmount: shares[i],
		}
	}
	return nil
}

// buildShares turns the submitted split basis into one share per participant.
// The shares always sum to amount within AmountTolerance.
func buildShares(amount decimal.Decimal, splitType models.SplitType, splits []models.SplitInput, members map[string]bool) ([]decimal.Decimal, error) {
	if !splitType.Valid() {
		return nil, apperrors.InvalidFieldFormat("split_type", "EQUAL, EXACT_AMOUNT or PERCENTAGE")
	}
	if len(splits) == 0 {
		return nil, apperrors.MissingRequiredField("splits")
	}

	seen := make(map[string]bool, len(splits))
	for _, sp := range splits {
		if sp.UserID == "" {
			return nil, apperrors.MissingRequiredField("splits.user_id")
		}
		if seen[sp.UserID] {
			return nil, apperrors.InvalidRequestWithDetails("Each member can appear only once in the splits.", sp.UserID)
		}
		seen[sp.UserID] = true
		if !members[sp.UserID] {
			return nil, apperrors.InvalidRequestWithDetails("Split participants must be members of the group.", sp.UserID)
		}
		if sp.Value.IsNegative() {
			return nil, apperrors.InvalidAmount("Split values cannot be negative.")
		}
	}

	var shares []decimal.Decimal
	switch splitType {
	case models.SplitTypeEqual:
		shares = SplitEqually(amount, len(splits))
	case models.SplitTypeExactAmount:
		shares = make([]decimal.Decimal, len(splits))
		for i, sp := range splits {
			if !HasAtMostCents(sp.Value) {
				return nil, apperrors.InvalidAmount("Split amounts must have at most two decimal places.")
			}
			shares[i] = sp.Value
		}
	case models.SplitTypePercentage:
		percents := make([]decimal.Decimal, len(splits))
		for i, sp := range splits {
			percents[i] = sp.Value
		}
		if total := Sum(percents); !WithinTolerance(total, HundredPercent) {
			return nil, apperrors.AmountMismatch(total, HundredPercent, "percentage")
		}
		shares = SplitByPercentages(amount, percents)
	}

	if total := Sum(shares); !WithinTolerance(total, amount) {
		zap.L().Warn("Expense validation failed: amount mismatch (splits)",
			zap.String("total_split", total.StringFixed(2)),
			zap.String("total_amount", amount.StringFixed(2)))
		return nil, apperrors.AmountMismatch(total, amount, "split")
	}
	return shares, nil
}
