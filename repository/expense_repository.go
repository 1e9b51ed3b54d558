package repository

import (
	"context"
	"fmt"

	"settleup-backend/database"
	"settleup-backend/models"
)

type ExpenseRepository interface {
	GetByID(ctx context.Context, id string) (*models.Expense, error)
	ListByGroup(ctx context.Context, groupID string) ([]models.Expense, error)
	CountByGroup(ctx context.Context, groupID string) (int, error)
	Create(ctx context.Context, expense *models.Expense) error
	Update(ctx context.Context, expense *models.Expense) error
	Delete(ctx context.Context, id string) error
	GetSplits(ctx context.Context, expenseID string) ([]models.Split, error)
	CreateSplit(ctx context.Context, split *models.Split) error
	DeleteSplits(ctx context.Context, expenseID string) error
	GetMemberTotals(ctx context.Context, groupID string) ([]models.MemberTotals, error)
	WithTx(tx database.Querier) ExpenseRepository
}

type expenseRepository struct {
	db *database.DB
	tx database.Querier
}

func NewExpenseRepository(db *database.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) WithTx(tx database.Querier) ExpenseRepository {
	return &expenseRepository{db: r.db, tx: tx}
}

func (r *expenseRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const expenseColumns = `id, group_id, payer_id, amount::TEXT, currency, split_type, description, created_at, updated_at`

func scanExpense(row scanner) (*models.Expense, error) {
	var (
		expense models.Expense
		amount  string
	)
	if err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.PayerID, &amount, &expense.Currency,
		&expense.SplitType, &expense.Description, &expense.CreatedAt, &expense.UpdatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	expense.Amount = parsed
	return &expense, nil
}

func (r *expenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`

	expense, err := scanExpense(r.getQuerier().QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("getting expense by id: %w", notFound(err))
	}

	splits, err := r.GetSplits(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting expense splits: %w", err)
	}
	expense.Splits = splits

	return expense, nil
}

func (r *expenseRepository) ListByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE group_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.getQuerier().Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing expenses by group: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	var expenseIDs []string
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		expenses = append(expenses, *expense)
		expenseIDs = append(expenseIDs, expense.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}
	rows.Close()

	if len(expenseIDs) == 0 {
		return expenses, nil
	}

	splits, err := r.getSplitsByExpenseIDs(ctx, expenseIDs)
	if err != nil {
		return nil, fmt.Errorf("batch getting splits: %w", err)
	}
	for i := range expenses {
		expenses[i].Splits = splits[expenses[i].ID]
	}
	return expenses, nil
}

func (r *expenseRepository) CountByGroup(ctx context.Context, groupID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM expenses WHERE group_id = $1`

	if err := r.getQuerier().QueryRow(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting expenses: %w", err)
	}
	return count, nil
}

func (r *expenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	query := `INSERT INTO expenses (id, group_id, payer_id, amount, currency, split_type, description, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`

	_, err := r.getQuerier().Exec(ctx, query,
		expense.ID, expense.GroupID, expense.PayerID, amountArg(expense.Amount),
		expense.Currency, expense.SplitType, expense.Description,
	)
	if err != nil {
		return fmt.Errorf("creating expense: %w", err)
	}
	return nil
}

func (r *expenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	query := `UPDATE expenses SET payer_id = $1, amount = $2, currency = $3, split_type = $4, description = $5, updated_at = NOW()
	          WHERE id = $6`

	tag, err := r.getQuerier().Exec(ctx, query,
		expense.PayerID, amountArg(expense.Amount), expense.Currency,
		expense.SplitType, expense.Description, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("updating expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating expense: %w", ErrNotFound)
	}
	return nil
}

func (r *expenseRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM expenses WHERE id = $1`

	tag, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting expense: %w", ErrNotFound)
	}
	return nil
}

func (r *expenseRepository) GetSplits(ctx context.Context, expenseID string) ([]models.Split, error) {
	query := `SELECT id, expense_id, user_id, share_amount::TEXT
	          FROM expense_splits WHERE expense_id = $1 ORDER BY user_id`

	rows, err := r.getQuerier().Query(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("getting expense splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense split: %w", err)
		}
		splits = append(splits, *split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expense splits: %w", err)
	}
	return splits, nil
}

func (r *expenseRepository) getSplitsByExpenseIDs(ctx context.Context, expenseIDs []string) (map[string][]models.Split, error) {
	query := `SELECT id, expense_id, user_id, share_amount::TEXT
	          FROM expense_splits WHERE expense_id = ANY($1) ORDER BY expense_id, user_id`

	rows, err := r.getQuerier().Query(ctx, query, expenseIDs)
	if err != nil {
		return nil, fmt.Errorf("getting splits by expense ids: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Split, len(expenseIDs))
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense split: %w", err)
		}
		result[split.ExpenseID] = append(result[split.ExpenseID], *split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expense splits: %w", err)
	}
	return result, nil
}

func scanSplit(row scanner) (*models.Split, error) {
	var (
		split models.Split
		share string
	)
	if err := row.Scan(&split.ID, &split.ExpenseID, &split.UserID, &share); err != nil {
		return nil, err
	}
	parsed, err := parseAmount(share)
	if err != nil {
		return nil, err
	}
	split.ShareAmount = parsed
	return &split, nil
}

func (r *expenseRepository) CreateSplit(ctx context.Context, split *models.Split) error {
	query := `INSERT INTO expense_splits (id, expense_id, user_id, share_amount) VALUES ($1, $2, $3, $4)`

	_, err := r.getQuerier().Exec(ctx, query, split.ID, split.ExpenseID, split.UserID, amountArg(split.ShareAmount))
	if err != nil {
		return fmt.Errorf("creating expense split: %w", err)
	}
	return nil
}

func (r *expenseRepository) DeleteSplits(ctx context.Context, expenseID string) error {
	query := `DELETE FROM expense_splits WHERE expense_id = $1`

	_, err := r.getQuerier().Exec(ctx, query, expenseID)
	if err != nil {
		return fmt.Errorf("deleting expense splits: %w", err)
	}
	return nil
}

// GetMemberTotals sums, for every current member of the group, what they
// paid and what they owe. Members with no expenses get zero totals.
func (r *expenseRepository) GetMemberTotals(ctx context.Context, groupID string) ([]models.MemberTotals, error) {
	query := `SELECT gm.user_id, COALESCE(p.paid, 0)::TEXT, COALESCE(o.owed, 0)::TEXT
	          FROM group_members gm
	          LEFT JOIN (
	              SELECT payer_id, SUM(amount) AS paid
	              FROM expenses WHERE group_id = $1
	              GROUP BY payer_id
	          ) p ON p.payer_id = gm.user_id
	          LEFT JOIN (
	              SELECT es.user_id, SUM(es.share_amount) AS owed
	              FROM expense_splits es
	              INNER JOIN expenses e ON e.id = es.expense_id
	              WHERE e.group_id = $1
	              GROUP BY es.user_id
	          ) o ON o.user_id = gm.user_id
	          WHERE gm.group_id = $1
	          ORDER BY gm.user_id`

	rows, err := r.getQuerier().Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("getting member totals: %w", err)
	}
	defer rows.Close()

	var totals []models.MemberTotals
	for rows.Next() {
		var userID, paid, owed string
		if err := rows.Scan(&userID, &paid, &owed); err != nil {
			return nil, fmt.Errorf("scanning member totals: %w", err)
		}
		paidAmount, err := parseAmount(paid)
		if err != nil {
			return nil, err
		}
		owedAmount, err := parseAmount(owed)
		if err != nil {
			return nil, err
		}
		totals = append(totals, models.MemberTotals{UserID: userID, TotalPaid: paidAmount, TotalOwed: owedAmount})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating member totals: %w", err)
	}
	return totals, nil
}
