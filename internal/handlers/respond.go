// Package handlers implements the JSON HTTP API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/httpx"
	"github.com/diewo77/go-crm/internal/logger"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/diewo77/go-crm/validation"
	"gorm.io/gorm"
)

// Authorizer is the slice of policy.AuthGate the handlers need.
type Authorizer interface {
	Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error
	IsAdmin(ctx context.Context, userID string) bool
	InvalidateUser(userID string)
}

// writeError maps service errors onto HTTP statuses. Anything unknown is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var v validation.Violations
	switch {
	case errors.As(err, &v):
		httpx.JSONError(w, http.StatusBadRequest, "Validation failed", v)
	case errors.Is(err, services.ErrInvalidInput):
		httpx.JSONError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repository.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		httpx.JSONError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyConverted), errors.Is(err, services.ErrConflict), errors.Is(err, repository.ErrDuplicate):
		httpx.JSONError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidCredential):
		httpx.JSONError(w, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, services.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Bearer")
		httpx.JSONError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
	case errors.Is(err, services.ErrAccountNotActive):
		httpx.JSONError(w, http.StatusForbidden, "Account is not active. Please verify your email.", nil)
	case errors.Is(err, services.ErrForbidden), errors.Is(err, gate.ErrUnauthorized):
		httpx.JSONError(w, http.StatusForbidden, "Not enough permissions", nil)
	default:
		logger.FromContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).Error("request failed")
		httpx.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// decode reads and validates the JSON body into dst. It writes the error
// response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, err.Error(), nil)
		return false
	}
	if v := validation.Struct(dst); !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "Validation failed", v)
		return false
	}
	return true
}

func actorID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// page reads skip and limit; limit defaults to 100 and is capped at 500.
func page(r *http.Request) (skip, limit int) {
	q := r.URL.Query()
	skip, _ = strconv.Atoi(q.Get("skip"))
	if skip < 0 {
		skip = 0
	}
	limit, _ = strconv.Atoi(q.Get("limit"))
	switch {
	case limit <= 0:
		limit = services.DefaultLimit
	case limit > services.MaxLimit:
		limit = services.MaxLimit
	}
	return skip, limit
}

// findByID loads one row of T or returns services.ErrNotFound.
func findByID[T any](ctx context.Context, db *gorm.DB, id, what string) (*T, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(what)
		}
		return nil, err
	}
	return &row, nil
}

type notFoundError string

func (e notFoundError) Error() string { return string(e) + " not found" }
func (e notFoundError) Unwrap() error { return services.ErrNotFound }

func notFound(what string) error { return notFoundError(what) }

type invalidError string

func (e invalidError) Error() string { return string(e) }
func (e invalidError) Unwrap() error { return services.ErrInvalidInput }

func invalid(msg string) error { return invalidError(msg) }

// exists reports whether a row of model with id exists.
func exists(ctx context.Context, db *gorm.DB, model any, id string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
