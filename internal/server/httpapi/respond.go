package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/dmitrijs2005/memestore/internal/common"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps service errors to HTTP statuses and client-facing details.
// Unknown errors are 500 and their text is not exposed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusBadRequest, "Incorrect email or password"
	case errors.Is(err, common.ErrEmailInUse):
		return http.StatusBadRequest, "Cannot use this email address"
	case errors.Is(err, common.ErrTokenNotFound):
		return http.StatusNotFound, "Refresh token not found"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusBadRequest, "Refresh token expired"
	case errors.Is(err, common.ErrTokenAlreadyUsed):
		return http.StatusBadRequest, "Refresh token already used"
	case errors.Is(err, common.ErrSignatureInvalid):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, common.ErrUserUnknown):
		return http.StatusUnauthorized, "User no longer exists"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
