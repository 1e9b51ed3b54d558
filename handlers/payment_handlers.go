package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "settleup-backend/errors"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// decodePayment allows an empty body, which leaves Amount nil.
func decodePayment(r *http.Request) (*PaymentRequest, error) {
	var req PaymentRequest
	if r.Body == nil || r.ContentLength == 0 {
		return &req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return &req, nil
		}
		return nil, bodyError(err)
	}
	return &req, nil
}

func (h *Handlers) GetPayments(w http.ResponseWriter, r *http.Request) {
	_, settlement, err := h.settlementForMember(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	payments, err := h.paymentService.ListPayments(r.Context(), settlement.ID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, payments)
}

func (h *Handlers) PayPart(w http.ResponseWriter, r *http.Request) {
	userID, settlement, err := h.settlementForParty(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	req, err := decodePayment(r)
	if err != nil {
		handleError(w, err)
		return
	}
	if req.Amount == nil {
		handleError(w, apperrors.MissingRequiredField("amount"))
		return
	}

	result, err := h.paymentService.PayPart(r.Context(), settlement.ID, *req.Amount, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// Pay records a payment that needs the receiver's confirmation once it
// covers the remaining amount. Without an amount it pays the remainder.
func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	userID, settlement, err := h.settlementForParty(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	req, err := decodePayment(r)
	if err != nil {
		handleError(w, err)
		return
	}

	result, err := h.paymentService.Pay(r.Context(), settlement.ID, req.Amount, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (h *Handlers) UndoPayment(w http.ResponseWriter, r *http.Request) {
	userID, settlement, err := h.settlementForParty(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	updated, err := h.paymentService.Undo(r.Context(), settlement.ID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}
