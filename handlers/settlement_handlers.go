package handlers

import (
	"net/http"
	"strings"

	"settleup-backend/models"
	"settleup-backend/services"
)

type ResetResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handlers) GetSuggestedSettlements(w http.ResponseWriter, r *http.Request) {
	_, groupID, err := h.memberRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}

	transfers, err := h.settlementService.SuggestSettlements(r.Context(), groupID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, transfers)
}

func (h *Handlers) GenerateSettlements(w http.ResponseWriter, r *http.Request) {
	userID, groupID, err := h.memberRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}

	settlements, err := h.settlementService.GenerateSettlements(r.Context(), groupID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, settlements)
}

// GetSettlements accepts an optional comma separated status filter, e.g.
// ?status=pending,partial.
func (h *Handlers) GetSettlements(w http.ResponseWriter, r *http.Request) {
	_, groupID, err := h.memberRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var statuses []models.SettlementStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, models.SettlementStatus(part))
			}
		}
	}

	settlements, err := h.settlementService.ListSettlements(r.Context(), groupID, statuses)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settlements)
}

func (h *Handlers) RecordSettlement(w http.ResponseWriter, r *http.Request) {
	userID, groupID, err := h.memberRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var req services.ManualSettlementInput
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}

	settlement, err := h.settlementService.RecordManualSettlement(r.Context(), groupID, req, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, settlement)
}

func (h *Handlers) ResetSettlements(w http.ResponseWriter, r *http.Request) {
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
	if err := h.groupService.RequireAdmin(r.Context(), groupID, userID); err != nil {
		handleError(w, err)
		return
	}

	deleted, err := h.settlementService.ResetSettlements(r.Context(), groupID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ResetResponse{Deleted: deleted})
}

func (h *Handlers) GetSettlement(w http.ResponseWriter, r *http.Request) {
	_, settlement, err := h.settlementForMember(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settlement)
}

func (h *Handlers) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	userID, settlement, err := h.settlementForMember(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	updated, err := h.settlementService.Confirm(r.Context(), settlement.ID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *Handlers) RejectSettlement(w http.ResponseWriter, r *http.Request) {
	userID, settlement, err := h.settlementForMember(r.Context(), r)
	if err != nil {
		handleError(w, err)
		return
	}

	updated, err := h.settlementService.Reject(r.Context(), settlement.ID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}
