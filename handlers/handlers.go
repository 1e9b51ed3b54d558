package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	apperrors "settleup-backend/errors"
	"settleup-backend/middleware"
	"settleup-backend/models"
	"settleup-backend/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type Handlers struct {
	groupService      services.GroupService
	expenseService    services.ExpenseService
	balanceService    services.BalanceService
	settlementService services.SettlementService
	paymentService    services.PaymentService
}

func NewHandlers(
	groupService services.GroupService,
	expenseService services.ExpenseService,
	balanceService services.BalanceService,
	settlementService services.SettlementService,
	paymentService services.PaymentService,
) *Handlers {
	return &Handlers{
		groupService:      groupService,
		expenseService:    expenseService,
		balanceService:    balanceService,
		settlementService: settlementService,
		paymentService:    paymentService,
	}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/groups/{groupID}", func(r chi.Router) {
		r.Delete("/", h.DeleteGroup)
		r.Get("/members", h.GetMembers)
		r.Get("/balances", h.GetBalances)
		r.Get("/expenses", h.GetExpenses)
		r.Get("/settlements/suggested", h.GetSuggestedSettlements)
		r.Post("/settlements/generate", h.GenerateSettlements)
		r.Get("/settlements", h.GetSettlements)
		r.Post("/settlements", h.RecordSettlement)
		r.Delete("/settlements", h.ResetSettlements)
	})

	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.CreateExpense)
		r.Get("/{expenseID}", h.GetExpense)
		r.Put("/{expenseID}", h.UpdateExpense)
		r.Delete("/{expenseID}", h.DeleteExpense)
	})

	r.Route("/settlements/{settlementID}", func(r chi.Router) {
		r.Get("/", h.GetSettlement)
		r.Get("/payments", h.GetPayments)
		r.Post("/payments", h.PayPart)
		r.Delete("/payments/latest", h.UndoPayment)
		r.Post("/pay", h.Pay)
		r.Post("/confirm", h.ConfirmSettlement)
		r.Post("/reject", h.RejectSettlement)
	})

	r.Get("/user/balances", h.GetUserBalances)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("Failed to encode JSON response", zap.Error(err))
	}
}

func handleError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	if appErr, ok := apperrors.AsAppError(err); ok {
		status := apperrors.GetHTTPStatus(appErr.Type)

		if status >= 500 {
			zap.L().Error("App Error (Internal)",
				zap.String("code", string(appErr.Code)),
				zap.String("details", appErr.Details),
				zap.Error(appErr.Err))
		} else {
			zap.L().Debug("App Error (Client)",
				zap.String("code", string(appErr.Code)),
				zap.String("message", appErr.Message))
		}

		respondJSON(w, status, ErrorResponse{
			Error:     appErr.Message,
			Code:      string(appErr.Code),
			Details:   appErr.Details,
			Retryable: appErr.Retryable,
		})
		return
	}

	zap.L().Error("Non-AppError returned (bug)",
		zap.Error(err),
		zap.String("error_type", fmt.Sprintf("%T", err)))

	respondJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred. Please try again later.",
		Code:  string(apperrors.CodeInternalError),
	})
}

func getUserID(r *http.Request) (string, error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok || userID == "" {
		return "", apperrors.Unauthorized("User ID not found in authentication context")
	}
	return userID, nil
}

func pathUUID(r *http.Request, param, fieldName string) (string, error) {
	value := chi.URLParam(r, param)
	if value == "" {
		return "", apperrors.MissingRequiredField(fieldName)
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", apperrors.InvalidUUID(fieldName)
	}
	return value, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError maps a request body decode failure to the client error.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.InvalidRequest("Request body is too large.")
	}
	return apperrors.InvalidRequest("Invalid request body. Please provide valid JSON.")
}

// memberRequest resolves the caller and a group path parameter after
// checking that the caller belongs to the group.
func (h *Handlers) memberRequest(r *http.Request) (userID, groupID string, err error) {
	userID, err = getUserID(r)
	if err != nil {
		return "", "", err
	}
	groupID, err = pathUUID(r, "groupID", "Group ID")
	if err != nil {
		return "", "", err
	}
	if err := h.groupService.RequireMember(r.Context(), groupID, userID); err != nil {
		return "", "", err
	}
	return userID, groupID, nil
}

// settlementForMember loads the settlement in the path once the caller is
// known to be a member of its group.
func (h *Handlers) settlementForMember(ctx context.Context, r *http.Request) (string, *models.Settlement, error) {
	userID, err := getUserID(r)
	if err != nil {
		return "", nil, err
	}
	settlementID, err := pathUUID(r, "settlementID", "Settlement ID")
	if err != nil {
		return "", nil, err
	}
	settlement, err := h.settlementService.GetSettlement(ctx, settlementID)
	if err != nil {
		return "", nil, err
	}
	if err := h.groupService.RequireMember(ctx, settlement.GroupID, userID); err != nil {
		return "", nil, err
	}
	return userID, settlement, nil
}

// settlementForParty narrows settlementForMember to the debtor and creditor.
func (h *Handlers) settlementForParty(ctx context.Context, r *http.Request) (string, *models.Settlement, error) {
	userID, settlement, err := h.settlementForMember(ctx, r)
	if err != nil {
		return "", nil, err
	}
	if err := services.RequireSettlementParty(settlement, userID); err != nil {
		return "", nil, err
	}
	return userID, settlement, nil
}
