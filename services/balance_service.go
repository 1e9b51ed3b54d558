package services

import (
	"context"
	"errors"

	apperrors "settleup-backend/errors"
	"settleup-backend/models"
	"settleup-backend/repository"

	"github.com/shopspring/decimal"
)

// BalanceService derives balances from expenses and splits on every call.
// Settlements and payments never feed into it.
type BalanceService interface {
	GroupBalances(ctx context.Context, groupID string) ([]models.Balance, error)
	UserBalances(ctx context.Context, userID string) (*models.UserBalanceSummary, error)
}

type balanceService struct {
	expenseRepo repository.ExpenseRepository
	groupRepo   repository.GroupRepository
}

func NewBalanceService(expenseRepo repository.ExpenseRepository, groupRepo repository.GroupRepository) BalanceService {
	return &balanceService{
		expenseRepo: expenseRepo,
		groupRepo:   groupRepo,
	}
}

func (s *balanceService) GroupBalances(ctx context.Context, groupID string) ([]models.Balance, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}

	totals, err := s.expenseRepo.GetMemberTotals(ctx, groupID)
	if err != nil {
		return nil, apperrors.DatabaseError("getting member totals", err)
	}

	return computeBalances(totals), nil
}

func computeBalances(totals []models.MemberTotals) []models.Balance {
	balances := make([]models.Balance, 0, len(totals))
	for _, t := range totals {
		balances = append(balances, models.Balance{
			UserID:    t.UserID,
			TotalPaid: Round2(t.TotalPaid),
			TotalOwed: Round2(t.TotalOwed),
			Balance:   Round2(t.TotalPaid.Sub(t.TotalOwed)),
		})
	}
	return balances
}

// UserBalances nets the user's balance across every group they belong to.
// Groups are not netted against each other beyond a plain sum.
func (s *balanceService) UserBalances(ctx context.Context, userID string) (*models.UserBalanceSummary, error) {
	groups, err := s.groupRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("listing user groups", err)
	}

	summary := &models.UserBalanceSummary{
		UserID:     userID,
		NetBalance: decimal.Zero,
		Groups:     make([]models.GroupBalance, 0, len(groups)),
	}
	for _, g := range groups {
		totals, err := s.expenseRepo.GetMemberTotals(ctx, g.ID)
		if err != nil {
			return nil, apperrors.DatabaseError("getting member totals", err)
		}
		balance := decimal.Zero
		for _, b := range computeBalances(totals) {
			if b.UserID == userID {
				balance = b.Balance
				break
			}
		}
		summary.Groups = append(summary.Groups, models.GroupBalance{GroupID: g.ID, Name: g.Name, Balance: balance})
		summary.NetBalance = Round2(summary.NetBalance.Add(balance))
	}
	return summary, nil
}
