package handlers

import (
	"net/http"
)

func (h *Handlers) GetMembers(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.groupService.Members(r.Context(), groupID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, members)
}

func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
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

	if err := h.groupService.Delete(r.Context(), groupID, userID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetBalances(w http.ResponseWriter, r *http.Request) {
	_, groupID, err := h.memberRequest(r)
	if err != nil {
		handleError(w, err)
		return
	}

	balances, err := h.balanceService.GroupBalances(r.Context(), groupID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, balances)
}

func (h *Handlers) GetUserBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	summary, err := h.balanceService.UserBalances(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
