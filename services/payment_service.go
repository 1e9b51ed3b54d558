package services

import (
	"context"
	"errors"
	"fmt"

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

// PaymentService records money moving against tracked settlements. Every
// balance change goes through a single conditional write, so two requests
// can never pay more than the settlement owes even without a transaction.
type PaymentService interface {
	PayPart(ctx context.Context, settlementID string, amount decimal.Decimal, paidBy string) (*models.PaymentResult, error)
	Pay(ctx context.Context, settlementID string, amount *decimal.Decimal, paidBy string) (*models.PaymentResult, error)
	Undo(ctx context.Context, settlementID, actorID string) (*models.Settlement, error)
	ListPayments(ctx context.Context, settlementID string) ([]models.Payment, error)
}

type paymentService struct {
	settlementRepo repository.SettlementRepository
	db             database.TxRunner
	notifier       *events.Notifier
}

func NewPaymentService(settlementRepo repository.SettlementRepository, db database.TxRunner, notifier *events.Notifier) PaymentService {
	return &paymentService{
		settlementRepo: settlementRepo,
		db:             db,
		notifier:       notifier,
	}
}

// PayPart pays part or all of the remaining amount. Covering the remainder
// marks the settlement paid.
func (s *paymentService) PayPart(ctx context.Context, settlementID string, amount decimal.Decimal, paidBy string) (*models.PaymentResult, error) {
	return s.record(ctx, "pay_part", settlementID, &amount, paidBy, models.SettlementStatusPaid)
}

// Pay behaves like PayPart but a full payment waits for the receiver to
// confirm. A nil amount pays everything that remains.
func (s *paymentService) Pay(ctx context.Context, settlementID string, amount *decimal.Decimal, paidBy string) (*models.PaymentResult, error) {
	return s.record(ctx, "pay", settlementID, amount, paidBy, models.SettlementStatusAwaitingConfirmation)
}

func validatePaymentAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.InvalidAmount("Payment amount must be greater than zero.")
	}
	if !HasAtMostCents(amount) {
		return apperrors.InvalidAmount("Payment amount must have at most two decimal places.")
	}
	return nil
}

func (s *paymentService) record(
	ctx context.Context,
	operation, settlementID string,
	requested *decimal.Decimal,
	paidBy string,
	completeStatus models.SettlementStatus,
) (*models.PaymentResult, error) {
	if requested != nil {
		if err := validatePaymentAmount(*requested); err != nil {
			return nil, err
		}
	}

	current, err := loadSettlement(ctx, s.settlementRepo, settlementID)
	if err != nil {
		return nil, err
	}
	if current.Kind != models.SettlementKindTracked {
		return nil, apperrors.InvalidStateWithDetails(
			"Manually recorded settlements do not take payments.",
			"status is "+string(current.Status))
	}
	if !current.Status.Payable() {
		return nil, apperrors.InvalidState("pay", string(current.Status))
	}

	amount := current.RemainingAmount
	if requested != nil {
		amount = *requested
	}
	if amount.GreaterThan(current.RemainingAmount) {
		return nil, apperrors.AmountExceedsRemaining(amount, current.RemainingAmount)
	}

	var result *models.PaymentResult
	err = s.db.WithTx(ctx, func(q database.Querier) error {
		repo := s.settlementRepo.WithTx(q)

		updated, err := repo.ApplyPayment(ctx, settlementID, amount, completeStatus)
		if err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				return s.paymentConflict(ctx, repo, operation, settlementID, amount)
			}
			return apperrors.DatabaseError("applying payment", err)
		}

		payment := &models.Payment{
			ID:           uuid.New().String(),
			SettlementID: settlementID,
			Amount:       amount,
			PaidBy:       paidBy,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			if !database.InTx(q) {
				s.compensatePayment(ctx, repo, updated, amount)
			}
			return apperrors.DatabaseError("recording payment", err)
		}

		result = &models.PaymentResult{Settlement: updated, Payment: payment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settlement := result.Settlement
	zap.L().Info("Payment recorded",
		zap.String("settlement_id", settlementID),
		zap.String("group_id", settlement.GroupID),
		zap.String("user_id", paidBy),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("remaining", settlement.RemainingAmount.StringFixed(2)),
		zap.String("status", string(settlement.Status)))
	metrics.RecordTransition(string(settlement.Status))

	s.notifier.Notify(events.Event{
		Type:         events.EventPaymentRecorded,
		GroupID:      settlement.GroupID,
		SettlementID: settlementID,
		ActorID:      paidBy,
		Payload:      result,
	})
	if settlement.Status == models.SettlementStatusAwaitingConfirmation {
		s.notifier.Notify(events.Event{
			Type:         events.EventSettlementAwaiting,
			GroupID:      settlement.GroupID,
			SettlementID: settlementID,
			ActorID:      paidBy,
			Payload:      settlement,
		})
	}
	return result, nil
}

// paymentConflict explains why the guarded write matched nothing. The row
// changed after it was read, so the caller may reload and retry.
func (s *paymentService) paymentConflict(ctx context.Context, repo repository.SettlementRepository, operation, settlementID string, amount decimal.Decimal) error {
	metrics.RecordConflict(operation)

	latest, err := loadSettlement(ctx, repo, settlementID)
	if err != nil {
		return err
	}

	zap.L().Warn("Payment lost a concurrent update",
		zap.String("settlement_id", settlementID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("remaining", latest.RemainingAmount.StringFixed(2)),
		zap.String("status", string(latest.Status)))

	if !latest.Status.Payable() {
		return apperrors.ConcurrencyConflict(fmt.Sprintf("The settlement is now %s.", latest.Status))
	}
	return apperrors.ConcurrencyConflict(fmt.Sprintf(
		"Amount %s exceeds remaining amount %s.", amount.StringFixed(2), latest.RemainingAmount.StringFixed(2)))
}

// compensatePayment undoes a balance change whose payment row could not be
// written. Only needed when there is no transaction to roll back.
func (s *paymentService) compensatePayment(ctx context.Context, repo repository.SettlementRepository, applied *models.Settlement, amount decimal.Decimal) {
	_, err := repo.RevertPayment(ctx, applied.ID, amount, []models.SettlementStatus{applied.Status})
	if err != nil {
		zap.L().Error("Failed to revert payment after log write failure",
			zap.String("settlement_id", applied.ID),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err))
		return
	}
	zap.L().Warn("Reverted payment after log write failure",
		zap.String("settlement_id", applied.ID),
		zap.String("amount", amount.StringFixed(2)))
}

// Undo retracts the most recent payment and restores the amounts it moved.
func (s *paymentService) Undo(ctx context.Context, settlementID, actorID string) (*models.Settlement, error) {
	current, err := loadSettlement(ctx, s.settlementRepo, settlementID)
	if err != nil {
		return nil, err
	}
	if current.Kind != models.SettlementKindTracked || !current.Status.Undoable() {
		return nil, apperrors.InvalidState("undo a payment on", string(current.Status))
	}

	var (
		restored *models.Settlement
		undone   *models.Payment
	)
	err = s.db.WithTx(ctx, func(q database.Querier) error {
		repo := s.settlementRepo.WithTx(q)

		latest, err := repo.GetLatestPayment(ctx, settlementID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NoPaymentToUndo()
			}
			return apperrors.DatabaseError("getting latest payment", err)
		}

		amount, err := repo.DeletePayment(ctx, latest.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				metrics.RecordConflict("undo")
				return apperrors.ConcurrencyConflict("The payment was already undone.")
			}
			return apperrors.DatabaseError("deleting payment", err)
		}
		latest.Amount = amount

		restored, err = repo.RevertPayment(ctx, settlementID, amount, []models.SettlementStatus{
			models.SettlementStatusPartial,
			models.SettlementStatusAwaitingConfirmation,
		})
		if err != nil {
			if !database.InTx(q) {
				s.restorePayment(ctx, repo, latest)
			}
			if errors.Is(err, repository.ErrConditionFailed) {
				metrics.RecordConflict("undo")
				return apperrors.ConcurrencyConflict("The settlement changed while undoing the payment.")
			}
			return apperrors.DatabaseError("reverting payment", err)
		}

		undone = latest
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Payment undone",
		zap.String("settlement_id", settlementID),
		zap.String("group_id", restored.GroupID),
		zap.String("user_id", actorID),
		zap.String("amount", undone.Amount.StringFixed(2)),
		zap.String("status", string(restored.Status)))
	metrics.RecordTransition(string(restored.Status))
	s.notifier.Notify(events.Event{
		Type:         events.EventPaymentUndone,
		GroupID:      restored.GroupID,
		SettlementID: settlementID,
		ActorID:      actorID,
		Payload:      models.PaymentResult{Settlement: restored, Payment: undone},
	})
	return restored, nil
}

func (s *paymentService) restorePayment(ctx context.Context, repo repository.SettlementRepository, payment *models.Payment) {
	if err := repo.CreatePayment(ctx, payment); err != nil {
		zap.L().Error("Failed to restore payment after revert failure",
			zap.String("settlement_id", payment.SettlementID),
			zap.String("payment_id", payment.ID),
			zap.Error(err))
	}
}

func (s *paymentService) ListPayments(ctx context.Context, settlementID string) ([]models.Payment, error) {
	payments, err := s.settlementRepo.ListPayments(ctx, settlementID)
	if err != nil {
		return nil, apperrors.DatabaseError("listing payments", err)
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, nil
}
