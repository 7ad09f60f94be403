package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logger"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/diewo77/go-crm/internal/services"
)

// AuthHandler serves the registration, verification and session routes.
type AuthHandler struct {
	svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	Message string `json:"message"`
	*services.RegisterResult
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Registration successful. Check your email for the verification code."
	if !res.OTPDelivered {
		msg = "Registration successful, but the verification email could not be sent. Request a new code."
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{Message: msg, RegisterResult: res})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.svc.VerifyEmail(r.Context(), in.Email, in.OTP)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredential) {
			httpx.JSONError(w, http.StatusBadRequest, "Invalid OTP", nil)
			return
		}
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.ResendOTP(r.Context(), in.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "A new verification code has been sent."
	if !res.OTPDelivered {
		msg = "A new verification code was generated but could not be sent."
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": msg, "otp_delivered": res.OTPDelivered})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}
	sess, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).WithField("user_id", sess.User.ID).Info("login")
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.FindByID(r.Context(), actorID(r))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, r, services.ErrUnauthenticated)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), actorID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Logged out")
}
