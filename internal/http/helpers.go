package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"finbook/internal/core"
	"finbook/internal/log"
	"finbook/internal/middleware/trace"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything the
// taxonomy does not recognize is a 500 with the detail kept out of the body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case isValidationErr(err):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			"path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func isValidationErr(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrZeroAmount,
		core.ErrAmountSignMismatch,
		core.ErrInvalidPeriod,
		core.ErrInvalidMonths,
		core.ErrInvalidMonthKey,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrPlanNotActive,
		core.ErrNotCreditAccount,
		core.ErrPaymentNotPositive,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func parseDate(w http.ResponseWriter, r *http.Request, field, value string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid "+field+", want YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func queryMonth(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	month, err := core.ParseMonthKey(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid month, want YYYY-MM")
		return "", false
	}
	return month, true
}
