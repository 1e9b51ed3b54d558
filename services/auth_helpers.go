package services

import (
	"context"
	"errors"

	apperrors "settleup-backend/errors"
	"settleup-backend/models"
	"settleup-backend/repository"
)

func RequireGroupMembership(ctx context.Context, groupRepo repository.GroupRepository, groupID, userID string) error {
	isMember, err := groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return apperrors.DatabaseError("checking membership", err)
	}
	if !isMember {
		return apperrors.NotGroupMember()
	}
	return nil
}

func RequireGroupAdmin(ctx context.Context, groupRepo repository.GroupRepository, groupID, userID string) error {
	member, err := groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotGroupMember()
		}
		return apperrors.DatabaseError("checking admin role", err)
	}
	if member.Role != models.MemberRoleAdmin {
		return apperrors.InsufficientPermissions("Only group admins can do this.")
	}
	return nil
}

// RequireSettlementParty checks that userID is the debtor or the creditor.
func RequireSettlementParty(settlement *models.Settlement, userID string) error {
	if !settlement.IsParty(userID) {
		return apperrors.InsufficientPermissions("Only the two parties of a settlement can change its payments.")
	}
	return nil
}
