package repository

import (
	"context"
	"fmt"
	"strings"

	"settleup-backend/database"
	"settleup-backend/models"

	"github.com/shopspring/decimal"
)

type SettlementRepository interface {
	GetByID(ctx context.Context, id string) (*models.Settlement, error)
	ListByGroup(ctx context.Context, groupID string, statuses []models.SettlementStatus) ([]models.Settlement, error)
	Create(ctx context.Context, settlement *models.Settlement) error
	CreatePending(ctx context.Context, settlement *models.Settlement) (bool, error)
	DeletePendingByGroup(ctx context.Context, groupID string) (int64, error)
	DeleteByGroup(ctx context.Context, groupID string) (int64, error)
	ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, completeStatus models.SettlementStatus) (*models.Settlement, error)
	RevertPayment(ctx context.Context, id string, amount decimal.Decimal, fromStatuses []models.SettlementStatus) (*models.Settlement, error)
	TransitionStatus(ctx context.Context, id string, from, to models.SettlementStatus, actorID string) (*models.Settlement, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, id string) (decimal.Decimal, error)
	GetLatestPayment(ctx context.Context, settlementID string) (*models.Payment, error)
	ListPayments(ctx context.Context, settlementID string) ([]models.Payment, error)
	WithTx(tx database.Querier) SettlementRepository
}

type settlementRepository struct {
	db *database.DB
	tx database.Querier
}

func NewSettlementRepository(db *database.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) WithTx(tx database.Querier) SettlementRepository {
	return &settlementRepository{db: r.db, tx: tx}
}

func (r *settlementRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const settlementColumns = `id, group_id, from_user_id, to_user_id, kind, total_amount::TEXT, total_paid::TEXT,
	remaining_amount::TEXT, status, recorded_by, version, created_at, updated_at`

func scanSettlement(row scanner) (*models.Settlement, error) {
	var (
		s                      models.Settlement
		total, paid, remaining string
	)
	if err := row.Scan(
		&s.ID, &s.GroupID, &s.FromUserID, &s.ToUserID, &s.Kind, &total, &paid,
		&remaining, &s.Status, &s.RecordedBy, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if s.TotalAmount, err = parseAmount(total); err != nil {
		return nil, err
	}
	if s.TotalPaid, err = parseAmount(paid); err != nil {
		return nil, err
	}
	if s.RemainingAmount, err = parseAmount(remaining); err != nil {
		return nil, err
	}
	return &s, nil
}

func statusArgs(statuses []models.SettlementStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *settlementRepository) GetByID(ctx context.Context, id string) (*models.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`

	s, err := scanSettlement(r.getQuerier().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("getting settlement by id: %w", notFound(err))
	}
	return s, nil
}

func (r *settlementRepository) ListByGroup(ctx context.Context, groupID string, statuses []models.SettlementStatus) ([]models.Settlement, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + settlementColumns + ` FROM settlements WHERE group_id = $1`)
	args := []any{groupID}
	if len(statuses) > 0 {
		sb.WriteString(` AND status = ANY($2)`)
		args = append(args, statusArgs(statuses))
	}
	sb.WriteString(` ORDER BY total_amount DESC, created_at, id`)

	rows, err := r.getQuerier().Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing settlements: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning settlement: %w", err)
		}
		settlements = append(settlements, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settlements: %w", err)
	}
	return settlements, nil
}

func (r *settlementRepository) Create(ctx context.Context, s *models.Settlement) error {
	query := `INSERT INTO settlements (id, group_id, from_user_id, to_user_id, kind, total_amount, total_paid,
	              remaining_amount, status, recorded_by, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW())
	          RETURNING version, created_at, updated_at`

	err := r.getQuerier().QueryRow(ctx, query,
		s.ID, s.GroupID, s.FromUserID, s.ToUserID, s.Kind, amountArg(s.TotalAmount), amountArg(s.TotalPaid),
		amountArg(s.RemainingAmount), s.Status, s.RecordedBy,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating settlement: %w", err)
	}
	return nil
}

// CreatePending inserts a fresh pending obligation. It reports false without
// error when the pair already has an open settlement in the group, including
// one awaiting confirmation.
func (r *settlementRepository) CreatePending(ctx context.Context, s *models.Settlement) (bool, error) {
	query := `INSERT INTO settlements (id, group_id, from_user_id, to_user_id, kind, total_amount, total_paid,
	              remaining_amount, status, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, 'tracked', $5, 0, $5, 'pending', 1, NOW(), NOW())
	          ON CONFLICT (group_id, from_user_id, to_user_id)
	              WHERE status IN ('pending', 'partial', 'awaiting_confirmation') DO NOTHING
	          RETURNING version, created_at, updated_at`

	rows, err := r.getQuerier().Query(ctx, query, s.ID, s.GroupID, s.FromUserID, s.ToUserID, amountArg(s.TotalAmount))
	if err != nil {
		return false, fmt.Errorf("creating pending settlement: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, fmt.Errorf("creating pending settlement: %w", err)
		}
		return false, nil
	}
	if err := rows.Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return false, fmt.Errorf("scanning pending settlement: %w", err)
	}
	s.Kind = models.SettlementKindTracked
	s.Status = models.SettlementStatusPending
	s.TotalPaid = decimal.Zero
	s.RemainingAmount = s.TotalAmount
	return true, nil
}

func (r *settlementRepository) DeletePendingByGroup(ctx context.Context, groupID string) (int64, error) {
	query := `DELETE FROM settlements WHERE group_id = $1 AND kind = 'tracked' AND status = 'pending'`

	tag, err := r.getQuerier().Exec(ctx, query, groupID)
	if err != nil {
		return 0, fmt.Errorf("deleting pending settlements: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *settlementRepository) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	query := `DELETE FROM settlements WHERE group_id = $1`

	tag, err := r.getQuerier().Exec(ctx, query, groupID)
	if err != nil {
		return 0, fmt.Errorf("deleting settlements: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ApplyPayment moves amount from remaining to paid in one conditional write.
// The row only matches while it is payable and still owes at least amount;
// otherwise ErrConditionFailed is returned and nothing changes.
func (r *settlementRepository) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, completeStatus models.SettlementStatus) (*models.Settlement, error) {
	query := `UPDATE settlements
	          SET total_paid = total_paid + $2,
	              remaining_amount = remaining_amount - $2,
	              status = CASE WHEN remaining_amount - $2 <= 0 THEN $3 ELSE 'partial' END,
	              version = version + 1,
	              updated_at = NOW()
	          WHERE id = $1 AND kind = 'tracked' AND status IN ('pending', 'partial') AND remaining_amount >= $2
	          RETURNING ` + settlementColumns

	s, err := scanSettlement(r.getQuerier().QueryRow(ctx, query, id, amountArg(amount), string(completeStatus)))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("applying payment: %w", err)
	}
	return s, nil
}

// RevertPayment gives amount back to the remaining balance. Status becomes
// partial while something is still paid and pending otherwise.
func (r *settlementRepository) RevertPayment(ctx context.Context, id string, amount decimal.Decimal, fromStatuses []models.SettlementStatus) (*models.Settlement, error) {
	query := `UPDATE settlements
	          SET total_paid = total_paid - $2,
	              remaining_amount = remaining_amount + $2,
	              status = CASE WHEN total_paid - $2 > 0 THEN 'partial' ELSE 'pending' END,
	              version = version + 1,
	              updated_at = NOW()
	          WHERE id = $1 AND kind = 'tracked' AND status = ANY($3) AND total_paid >= $2
	          RETURNING ` + settlementColumns

	s, err := scanSettlement(r.getQuerier().QueryRow(ctx, query, id, amountArg(amount), statusArgs(fromStatuses)))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("reverting payment: %w", err)
	}
	return s, nil
}

// TransitionStatus moves a settlement whose receiver is actorID from one
// status to another.
func (r *settlementRepository) TransitionStatus(ctx context.Context, id string, from, to models.SettlementStatus, actorID string) (*models.Settlement, error) {
	query := `UPDATE settlements
	          SET status = $3, version = version + 1, updated_at = NOW()
	          WHERE id = $1 AND status = $2 AND to_user_id = $4
	          RETURNING ` + settlementColumns

	s, err := scanSettlement(r.getQuerier().QueryRow(ctx, query, id, string(from), string(to), actorID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("transitioning settlement: %w", err)
	}
	return s, nil
}

func (r *settlementRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO settlement_payments (id, settlement_id, amount, paid_by, paid_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          RETURNING paid_at`

	err := r.getQuerier().QueryRow(ctx, query, p.ID, p.SettlementID, amountArg(p.Amount), p.PaidBy).Scan(&p.PaidAt)
	if err != nil {
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

func (r *settlementRepository) DeletePayment(ctx context.Context, id string) (decimal.Decimal, error) {
	query := `DELETE FROM settlement_payments WHERE id = $1 RETURNING amount::TEXT`

	var amount string
	if err := r.getQuerier().QueryRow(ctx, query, id).Scan(&amount); err != nil {
		return decimal.Zero, fmt.Errorf("deleting payment: %w", notFound(err))
	}
	return parseAmount(amount)
}

func (r *settlementRepository) GetLatestPayment(ctx context.Context, settlementID string) (*models.Payment, error) {
	query := `SELECT id, settlement_id, amount::TEXT, paid_by, paid_at
	          FROM settlement_payments
	          WHERE settlement_id = $1
	          ORDER BY paid_at DESC, seq DESC
	          LIMIT 1`

	p, err := scanPayment(r.getQuerier().QueryRow(ctx, query, settlementID))
	if err != nil {
		return nil, fmt.Errorf("getting latest payment: %w", notFound(err))
	}
	return p, nil
}

func (r *settlementRepository) ListPayments(ctx context.Context, settlementID string) ([]models.Payment, error) {
	query := `SELECT id, settlement_id, amount::TEXT, paid_by, paid_at
	          FROM settlement_payments
	          WHERE settlement_id = $1
	          ORDER BY paid_at DESC, seq DESC`

	rows, err := r.getQuerier().Query(ctx, query, settlementID)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row scanner) (*models.Payment, error) {
	var (
		p      models.Payment
		amount string
	)
	if err := row.Scan(&p.ID, &p.SettlementID, &amount, &p.PaidBy, &p.PaidAt); err != nil {
		return nil, err
	}
	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	p.Amount = parsed
	return &p, nil
}
