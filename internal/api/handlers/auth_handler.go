package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/services"
)

type AuthHandler struct {
	auth     services.AuthService
	validate *validator.Validate
}

func NewAuthHandler(auth services.AuthService, v *validator.Validate) *AuthHandler {
	return &AuthHandler{auth: auth, validate: v}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	u, err := h.auth.Register(r.Context(), &services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Message: "Registration successful!",
		Data:    userSummary(u),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Message: "Login successful!",
		Data: types.LoginData{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   86400,
			User:        userSummary(u),
		},
	})
}

// FacultyList lists faculty members for the submission form.
func (h *AuthHandler) FacultyList(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListFaculty(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]types.UserSummary, len(users))
	for i := range users {
		out[i] = userSummary(&users[i])
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: out, Meta: &types.Meta{Total: int64(len(out))}})
}

func userSummary(u *models.User) types.UserSummary {
	return types.UserSummary{ID: u.ID.String(), Name: u.Name, Email: u.Email, Role: u.Role}
}
