package main

import (
	"context"
	"fmt"
	"log"

	"settleup-backend/config"
	"settleup-backend/database"
	"settleup-backend/models"
	"settleup-backend/repository"
	"settleup-backend/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Seeds one group with three members and a few expenses, then prints the ids
// needed to exercise the settlement endpoints.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL, cfg.DBTransactions)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	users := []models.User{
		{ID: uuid.New().String(), Name: "Alice", Email: "alice@example.com"},
		{ID: uuid.New().String(), Name: "Bob", Email: "bob@example.com"},
		{ID: uuid.New().String(), Name: "Carol", Email: "carol@example.com"},
	}
	groupID := uuid.New().String()

	err = db.WithTx(ctx, func(q database.Querier) error {
		for i := range users {
			u := &users[i]
			if _, err := q.Exec(ctx, `
				INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
				ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name`, u.ID, u.Name, u.Email); err != nil {
				return fmt.Errorf("inserting user %s: %w", u.Email, err)
			}
			if err := q.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, u.Email).Scan(&u.ID); err != nil {
				return fmt.Errorf("reading user %s: %w", u.Email, err)
			}
		}
		if _, err := q.Exec(ctx, `INSERT INTO groups (id, name, currency) VALUES ($1, $2, 'USD')`, groupID, "Weekend trip"); err != nil {
			return fmt.Errorf("inserting group: %w", err)
		}
		for i, u := range users {
			role := models.MemberRoleMember
			if i == 0 {
				role = models.MemberRoleAdmin
			}
			if _, err := q.Exec(ctx, `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`, groupID, u.ID, string(role)); err != nil {
				return fmt.Errorf("adding member %s: %w", u.Email, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed group: %v", err)
	}

	expenseService := services.NewExpenseService(repository.NewExpenseRepository(db), repository.NewGroupRepository(db), db)
	everyone := make([]models.SplitInput, len(users))
	for i, u := range users {
		everyone[i] = models.SplitInput{UserID: u.ID}
	}
	seeds := []models.ExpenseInput{
		{GroupID: groupID, PayerID: users[0].ID, Amount: decimal.NewFromInt(100), SplitType: models.SplitTypeEqual, Description: "Groceries", Splits: everyone},
		{GroupID: groupID, PayerID: users[1].ID, Amount: decimal.NewFromInt(45), SplitType: models.SplitTypeExactAmount, Description: "Taxi", Splits: []models.SplitInput{
			{UserID: users[0].ID, Value: decimal.NewFromInt(15)},
			{UserID: users[2].ID, Value: decimal.NewFromInt(30)},
		}},
	}
	for i := range seeds {
		if _, err := expenseService.Create(ctx, users[0].ID, &seeds[i]); err != nil {
			log.Fatalf("Failed to seed expense %q: %v", seeds[i].Description, err)
		}
	}

	fmt.Printf("group  %s\n", groupID)
	for _, u := range users {
		fmt.Printf("%-6s %s\n", u.Name, u.ID)
	}
}
