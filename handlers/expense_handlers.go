package handlers

import (
	"net/http"

	apperrors "settleup-backend/errors"
	"settleup-backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpenseRequest struct {
	GroupID     string              `json:"group_id"`
	PayerID     string              `json:"payer_id"`
	Amount      decimal.Decimal     `json:"amount"`
	Currency    string              `json:"currency,omitempty"`
	SplitType   models.SplitType    `json:"split_type"`
	Description string              `json:"description"`
	Splits      []models.SplitInput `json:"splits"`
}

func (req *ExpenseRequest) toInput() *models.ExpenseInput {
	return &models.ExpenseInput{
		GroupID:     req.GroupID,
		PayerID:     req.PayerID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		SplitType:   req.SplitType,
		Description: req.Description,
		Splits:      req.Splits,
	}
}

func (h *Handlers) GetExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}
	groupID, err := pathUUID(r, "groupID", "Group ID")
	if err != nil {
		handleError(w, err)
		return
	}

	expenses, err := h.expenseService.ListByGroup(r.Context(), groupID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, expenses)
}

func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}
	expenseID, err := pathUUID(r, "expenseID", "Expense ID")
	if err != nil {
		handleError(w, err)
		return
	}

	expense, err := h.expenseService.GetByID(r.Context(), expenseID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, expense)
}

func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var req ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	if _, err := uuid.Parse(req.GroupID); err != nil {
		handleError(w, apperrors.InvalidUUID("Group ID"))
		return
	}

	expense, err := h.expenseService.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, expense)
}

func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}
	expenseID, err := pathUUID(r, "expenseID", "Expense ID")
	if err != nil {
		handleError(w, err)
		return
	}

	var req ExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}

	expense, err := h.expenseService.Update(r.Context(), expenseID, userID, req.toInput())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, expense)
}

func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}
	expenseID, err := pathUUID(r, "expenseID", "Expense ID")
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.expenseService.Delete(r.Context(), expenseID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
