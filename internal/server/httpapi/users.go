package httpapi

import (
	"net/http"
)

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{UserID: u.ID, Email: u.Email})
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req passwordUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sessions.UpdatePassword(r.Context(), u.ID, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteMe removes the account; image objects are cleaned up after the rows
// are gone.
func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	keys, err := h.media.ImageKeys(r.Context(), u.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.sessions.DeleteUser(r.Context(), u.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.media.RemoveObjects(r.Context(), keys)
	w.WriteHeader(http.StatusNoContent)
}
