package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/projectaudit/engine/internal/api/middleware"
	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/api/validators"
	"github.com/projectaudit/engine/pkg/logger"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status its code maps to. Internal errors
// are logged and their detail withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.HTTPStatus(err)
	apiErr := types.FromAppError(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("user_id", middleware.GetUserID(r.Context())),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			apiErr = &types.APIError{Code: "internal", Message: "internal server error"}
		}
	}
	resp := types.APIResponse{Success: false, Error: apiErr}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		resp.Meta = &types.Meta{RequestID: id}
	}
	writeJSON(w, status, resp)
}

func writeErrorStr(w http.ResponseWriter, status int, msg string) {
	code := "invalid"
	switch status {
	case http.StatusNotFound:
		code = "not_found"
	case http.StatusForbidden:
		code = "forbidden"
	}
	writeJSON(w, status, types.APIResponse{Success: false, Error: &types.APIError{Code: code, Message: msg}})
}

// decodeJSON reads a JSON body into dst and validates it. On failure the
// response has already been written.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeErrorStr(w, http.StatusBadRequest, "no data received")
			return false
		}
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := v.Struct(dst); err != nil {
		writeErrorStr(w, http.StatusBadRequest, validators.Message(err))
		return false
	}
	return true
}

func projectIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorStr(w, http.StatusNotFound, "project not found")
		return uuid.Nil, false
	}
	return id, true
}

// ownEmailParam returns the email query parameter, defaulting to the
// caller's own. A query naming another account is answered with 403.
func ownEmailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := middleware.GetUserEmail(r.Context())
	e := strings.TrimSpace(r.URL.Query().Get("email"))
	if e == "" {
		return caller, true
	}
	if !strings.EqualFold(e, caller) {
		writeErrorStr(w, http.StatusForbidden, "access is limited to your own account")
		return "", false
	}
	return e, true
}
