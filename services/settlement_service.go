package services

import (
	"context"
	"errors"

	"settleup-backend/database"
	apperrors "settleup-backend/errors"
	"settleup-backend/events"
	"settleup-backend/metrics"
	"settleup-backend/models"
	"settleup-backend/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ManualSettlementInput struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type SettlementService interface {
	SuggestSettlements(ctx context.Context, groupID string) ([]models.Transfer, error)
	GenerateSettlements(ctx context.Context, groupID, actorID string) ([]models.Settlement, error)
	RecordManualSettlement(ctx context.Context, groupID string, input ManualSettlementInput, recordedBy string) (*models.Settlement, error)
	ListSettlements(ctx context.Context, groupID string, statuses []models.SettlementStatus) ([]models.Settlement, error)
	GetSettlement(ctx context.Context, id string) (*models.Settlement, error)
	Confirm(ctx context.Context, id, confirmedBy string) (*models.Settlement, error)
	Reject(ctx context.Context, id, rejectedBy string) (*models.Settlement, error)
	ResetSettlements(ctx context.Context, groupID, actorID string) (int64, error)
}

type settlementService struct {
	settlementRepo repository.SettlementRepository
	groupRepo      repository.GroupRepository
	balances       BalanceService
	db             database.TxRunner
	notifier       *events.Notifier
	epsilon        decimal.Decimal
}

func NewSettlementService(
	settlementRepo repository.SettlementRepository,
	groupRepo repository.GroupRepository,
	balances BalanceService,
	db database.TxRunner,
	notifier *events.Notifier,
	epsilon decimal.Decimal,
) SettlementService {
	if !epsilon.IsPositive() {
		epsilon = BalanceThreshold
	}
	return &settlementService{
		settlementRepo: settlementRepo,
		groupRepo:      groupRepo,
		balances:       balances,
		db:             db,
		notifier:       notifier,
		epsilon:        epsilon,
	}
}

func loadSettlement(ctx context.Context, repo repository.SettlementRepository, id string) (*models.Settlement, error) {
	settlement, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.SettlementNotFound()
		}
		return nil, apperrors.DatabaseError("getting settlement", err)
	}
	return settlement, nil
}

func (s *settlementService) SuggestSettlements(ctx context.Context, groupID string) ([]models.Transfer, error) {
	balances, err := s.balances.GroupBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return OptimizeSettlements(balances, s.epsilon), nil
}

// GenerateSettlements replaces the group's pending settlements with a fresh
// optimizer run. Partial settlements and those awaiting confirmation are left
// alone and their pairs are skipped.
func (s *settlementService) GenerateSettlements(ctx context.Context, groupID, actorID string) ([]models.Settlement, error) {
	transfers, err := s.SuggestSettlements(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var (
		created []models.Settlement
		deleted int64
		skipped int
	)
	err = s.db.WithTx(ctx, func(q database.Querier) error {
		created, skipped = nil, 0
		repo := s.settlementRepo.WithTx(q)

		var err error
		deleted, err = repo.DeletePendingByGroup(ctx, groupID)
		if err != nil {
			return apperrors.DatabaseError("deleting pending settlements", err)
		}

		for _, t := range transfers {
			settlement := &models.Settlement{
				ID:          uuid.New().String(),
				GroupID:     groupID,
				FromUserID:  t.FromUserID,
				ToUserID:    t.ToUserID,
				TotalAmount: t.Amount,
			}
			inserted, err := repo.CreatePending(ctx, settlement)
			if err != nil {
				return apperrors.DatabaseError("creating settlement", err)
			}
			if !inserted {
				skipped++
				metrics.RecordConflict("generate")
				zap.L().Info("Skipping pair with an open settlement",
					zap.String("group_id", groupID),
					zap.String("from_user_id", t.FromUserID),
					zap.String("to_user_id", t.ToUserID))
				continue
			}
			created = append(created, *settlement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Settlements generated",
		zap.String("group_id", groupID),
		zap.String("user_id", actorID),
		zap.Int("created", len(created)),
		zap.Int64("replaced", deleted),
		zap.Int("skipped", skipped))
	for range created {
		metrics.RecordTransition(string(models.SettlementStatusPending))
	}
	s.notifier.Notify(events.Event{
		Type:    events.EventSettlementsGenerated,
		GroupID: groupID,
		ActorID: actorID,
		Payload: map[string]int{"created": len(created), "skipped": skipped},
	})

	if created == nil {
		created = []models.Settlement{}
	}
	return created, nil
}

// RecordManualSettlement stores a self-attested payment between two members.
// It is accepted immediately and never takes partial payments.
func (s *settlementService) RecordManualSettlement(ctx context.Context, groupID string, input ManualSettlementInput, recordedBy string) (*models.Settlement, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.InvalidAmount("Amount must be greater than zero.")
	}
	if !HasAtMostCents(input.Amount) {
		return nil, apperrors.InvalidAmount("Amount must have at most two decimal places.")
	}
	if input.FromUserID == "" || input.ToUserID == "" {
		return nil, apperrors.MissingRequiredField("from_user_id and to_user_id")
	}
	if input.FromUserID == input.ToUserID {
		return nil, apperrors.CannotSettleToSelf()
	}
	if recordedBy != input.FromUserID && recordedBy != input.ToUserID {
		return nil, apperrors.InsufficientPermissions("Only the payer or the receiver can record a settlement.")
	}

	for _, userID := range []string{input.FromUserID, input.ToUserID} {
		if err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
			if apperrors.HasCode(err, apperrors.CodeNotGroupMember) {
				return nil, apperrors.InvalidRequestWithDetails("Both parties must be members of the group.", userID)
			}
			return nil, err
		}
	}

	amount := Round2(input.Amount)
	settlement := &models.Settlement{
		ID:              uuid.New().String(),
		GroupID:         groupID,
		FromUserID:      input.FromUserID,
		ToUserID:        input.ToUserID,
		Kind:            models.SettlementKindManual,
		TotalAmount:     amount,
		TotalPaid:       amount,
		RemainingAmount: decimal.Zero,
		Status:          models.SettlementStatusAccepted,
		RecordedBy:      &recordedBy,
	}
	if err := s.settlementRepo.Create(ctx, settlement); err != nil {
		if apperrors.IsCheckViolation(err) {
			return nil, apperrors.InvalidRequest("Settlement violates a ledger constraint.")
		}
		return nil, apperrors.DatabaseError("recording settlement", err)
	}

	zap.L().Info("Manual settlement recorded",
		zap.String("settlement_id", settlement.ID),
		zap.String("group_id", groupID),
		zap.String("user_id", recordedBy),
		zap.String("amount", amount.StringFixed(2)))
	metrics.RecordTransition(string(settlement.Status))
	s.notifier.Notify(events.Event{
		Type:         events.EventSettlementRecorded,
		GroupID:      groupID,
		SettlementID: settlement.ID,
		ActorID:      recordedBy,
		Payload:      settlement,
	})
	return settlement, nil
}

func (s *settlementService) ListSettlements(ctx context.Context, groupID string, statuses []models.SettlementStatus) ([]models.Settlement, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, apperrors.InvalidFieldFormat("status", "pending, partial, awaiting_confirmation, paid, accepted or rejected")
		}
	}
	settlements, err := s.settlementRepo.ListByGroup(ctx, groupID, statuses)
	if err != nil {
		return nil, apperrors.DatabaseError("listing settlements", err)
	}
	if settlements == nil {
		settlements = []models.Settlement{}
	}
	return settlements, nil
}

func (s *settlementService) GetSettlement(ctx context.Context, id string) (*models.Settlement, error) {
	return loadSettlement(ctx, s.settlementRepo, id)
}

// Confirm lets the receiver acknowledge a settlement the payer marked as
// fully paid.
func (s *settlementService) Confirm(ctx context.Context, id, confirmedBy string) (*models.Settlement, error) {
	return s.receiverTransition(ctx, id, confirmedBy, "confirm",
		models.SettlementStatusAwaitingConfirmation, models.SettlementStatusPaid, events.EventSettlementConfirmed)
}

func (s *settlementService) Reject(ctx context.Context, id, rejectedBy string) (*models.Settlement, error) {
	return s.receiverTransition(ctx, id, rejectedBy, "reject",
		models.SettlementStatusPending, models.SettlementStatusRejected, events.EventSettlementRejected)
}

func (s *settlementService) receiverTransition(
	ctx context.Context,
	id, actorID, operation string,
	from, to models.SettlementStatus,
	eventType events.EventType,
) (*models.Settlement, error) {
	current, err := loadSettlement(ctx, s.settlementRepo, id)
	if err != nil {
		return nil, err
	}
	if current.ToUserID != actorID {
		return nil, apperrors.NotSettlementParty(operation, "receiver")
	}
	if current.Status != from {
		return nil, apperrors.InvalidState(operation, string(current.Status))
	}

	updated, err := s.settlementRepo.TransitionStatus(ctx, id, from, to, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			metrics.RecordConflict(operation)
			return nil, apperrors.ConcurrencyConflict("The settlement is no longer " + string(from) + ".")
		}
		return nil, apperrors.DatabaseError(operation+" settlement", err)
	}

	zap.L().Info("Settlement status changed",
		zap.String("settlement_id", id),
		zap.String("group_id", updated.GroupID),
		zap.String("user_id", actorID),
		zap.String("from", string(from)),
		zap.String("status", string(updated.Status)))
	metrics.RecordTransition(string(updated.Status))
	s.notifier.Notify(events.Event{
		Type:         eventType,
		GroupID:      updated.GroupID,
		SettlementID: updated.ID,
		ActorID:      actorID,
		Payload:      updated,
	})
	return updated, nil
}

func (s *settlementService) ResetSettlements(ctx context.Context, groupID, actorID string) (int64, error) {
	deleted, err := s.settlementRepo.DeleteByGroup(ctx, groupID)
	if err != nil {
		return 0, apperrors.DatabaseError("resetting settlements", err)
	}

	zap.L().Warn("Settlements reset",
		zap.String("group_id", groupID),
		zap.String("user_id", actorID),
		zap.Int64("deleted", deleted))
	s.notifier.Notify(events.Event{
		Type:    events.EventSettlementsReset,
		GroupID: groupID,
		ActorID: actorID,
		Payload: map[string]int64{"deleted": deleted},
	})
	return deleted, nil
}
