package repository

import (
	"context"
	"fmt"

	"settleup-backend/database"
	"settleup-backend/models"
)

type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
	ListByUser(ctx context.Context, userID string) ([]models.Group, error)
	Delete(ctx context.Context, id string) error
	GetMembers(ctx context.Context, groupID string) ([]models.Member, error)
	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	WithTx(tx database.Querier) GroupRepository
}

type groupRepository struct {
	db *database.DB
	tx database.Querier
}

func NewGroupRepository(db *database.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) WithTx(tx database.Querier) GroupRepository {
	return &groupRepository{db: r.db, tx: tx}
}

func (r *groupRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	query := `SELECT id, name, currency, created_at, updated_at FROM groups WHERE id = $1`

	err := r.getQuerier().QueryRow(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.Currency, &group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("getting group by id: %w", notFound(err))
	}
	return &group, nil
}

func (r *groupRepository) ListByUser(ctx context.Context, userID string) ([]models.Group, error) {
	query := `SELECT g.id, g.name, g.currency, g.created_at, g.updated_at
	          FROM groups g
	          INNER JOIN group_members gm ON g.id = gm.group_id
	          WHERE gm.user_id = $1
	          ORDER BY g.created_at, g.id`

	rows, err := r.getQuerier().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing groups for user: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Currency, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating groups: %w", err)
	}
	return groups, nil
}

func (r *groupRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM groups WHERE id = $1`

	tag, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting group: %w", ErrNotFound)
	}
	return nil
}

func (r *groupRepository) GetMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	query := `SELECT u.id, u.name, COALESCE(u.email, ''), gm.role, gm.joined_at
	          FROM users u
	          INNER JOIN group_members gm ON u.id = gm.user_id
	          WHERE gm.group_id = $1
	          ORDER BY gm.joined_at, u.id`

	rows, err := r.getQuerier().Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("getting group members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating members: %w", err)
	}
	return members, nil
}

func (r *groupRepository) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	query := `SELECT u.id, u.name, COALESCE(u.email, ''), gm.role, gm.joined_at
	          FROM users u
	          INNER JOIN group_members gm ON u.id = gm.user_id
	          WHERE gm.group_id = $1 AND gm.user_id = $2`

	var m models.Member
	err := r.getQuerier().QueryRow(ctx, query, groupID, userID).Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, fmt.Errorf("getting group member: %w", notFound(err))
	}
	return &m, nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`

	err := r.getQuerier().QueryRow(ctx, query, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return exists, nil
}
