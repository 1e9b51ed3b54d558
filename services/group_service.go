package services

import (
	"context"
	"errors"

	apperrors "settleup-backend/errors"
	"settleup-backend/models"
	"settleup-backend/repository"

	"go.uber.org/zap"
)

type GroupService interface {
	Members(ctx context.Context, groupID, userID string) ([]models.Member, error)
	RequireMember(ctx context.Context, groupID, userID string) error
	RequireAdmin(ctx context.Context, groupID, userID string) error
	Delete(ctx context.Context, groupID, userID string) error
}

type groupService struct {
	groupRepo   repository.GroupRepository
	expenseRepo repository.ExpenseRepository
}

func NewGroupService(groupRepo repository.GroupRepository, expenseRepo repository.ExpenseRepository) GroupService {
	return &groupService{
		groupRepo:   groupRepo,
		expenseRepo: expenseRepo,
	}
}

func (s *groupService) requireGroup(ctx context.Context, groupID string) error {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.GroupNotFound()
		}
		return apperrors.DatabaseError("getting group", err)
	}
	return nil
}

func (s *groupService) Members(ctx context.Context, groupID, userID string) ([]models.Member, error) {
	if err := s.RequireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	members, err := s.groupRepo.GetMembers(ctx, groupID)
	if err != nil {
		return nil, apperrors.DatabaseError("getting group members", err)
	}
	return members, nil
}

func (s *groupService) RequireMember(ctx context.Context, groupID, userID string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	return RequireGroupMembership(ctx, s.groupRepo, groupID, userID)
}

func (s *groupService) RequireAdmin(ctx context.Context, groupID, userID string) error {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}
	return RequireGroupAdmin(ctx, s.groupRepo, groupID, userID)
}

// Delete removes an empty group. Groups that still hold expenses are refused
// rather than cascaded.
func (s *groupService) Delete(ctx context.Context, groupID, userID string) error {
	if err := s.RequireAdmin(ctx, groupID, userID); err != nil {
		return err
	}

	count, err := s.expenseRepo.CountByGroup(ctx, groupID)
	if err != nil {
		return apperrors.DatabaseError("counting group expenses", err)
	}
	if count > 0 {
		return apperrors.CannotDeleteGroupWithExpenses()
	}

	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.GroupNotFound()
		}
		return apperrors.DatabaseError("deleting group", err)
	}

	zap.L().Info("Group deleted", zap.String("group_id", groupID), zap.String("user_id", userID))
	return nil
}
