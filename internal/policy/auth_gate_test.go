package policy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupGate(t *testing.T) (*gorm.DB, *AuthGate) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, NewAuthGate(db, time.Minute)
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role, Status: models.UserActive}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestAuthGate_UserUpdatePolicy(t *testing.T) {
	db, ag := setupGate(t)
	admin := createUser(t, db, "admin@crm.test", models.RoleAdmin)
	alice := createUser(t, db, "alice@crm.test", models.RoleEmployee)
	bob := createUser(t, db, "bob@crm.test", models.RoleEmployee)

	as := func(u *models.User) context.Context { return auth.WithUserID(context.Background(), u.ID) }

	if err := ag.Authorize(as(alice), gate.ActionUpdate, ResourceUser, alice); err != nil {
		t.Errorf("self update denied: %v", err)
	}
	if err := ag.Authorize(as(alice), gate.ActionUpdate, ResourceUser, bob); !errors.Is(err, gate.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized updating someone else, got %v", err)
	}
	if err := ag.Authorize(as(admin), gate.ActionUpdate, ResourceUser, bob); err != nil {
		t.Errorf("admin update denied: %v", err)
	}
	if err := ag.Authorize(context.Background(), gate.ActionList, ResourceLead, nil); !errors.Is(err, gate.ErrUnauthorized) {
		t.Errorf("anonymous should be unauthorized, got %v", err)
	}
}

func TestAuthGate_RoleChangeNeedsInvalidate(t *testing.T) {
	db, ag := setupGate(t)
	u := createUser(t, db, "e@crm.test", models.RoleEmployee)
	ctx := auth.WithUserID(context.Background(), u.ID)

	if ag.Can(ctx, gate.ActionDelete, ResourceLead, nil) {
		t.Fatal("employee should not delete leads")
	}
	db.Model(u).Update("role", models.RoleManager)
	if ag.Can(ctx, gate.ActionDelete, ResourceLead, nil) {
		t.Fatal("cached profile should still apply before invalidation")
	}
	ag.InvalidateUser(u.ID)
	if !ag.Can(ctx, gate.ActionDelete, ResourceLead, nil) {
		t.Fatal("manager should delete leads after invalidation")
	}
}

func TestAuthGate_Middleware(t *testing.T) {
	db, ag := setupGate(t)
	admin := createUser(t, db, "root@crm.test", models.RoleAdmin)
	emp := createUser(t, db, "emp@crm.test", models.RoleEmployee)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	tests := []struct {
		name    string
		handler http.Handler
		user    string
		want    int
	}{
		{"anonymous", ag.RequirePermission(ResourceLead, gate.ActionList)(ok), "", http.StatusUnauthorized},
		{"employee lists leads", ag.RequirePermission(ResourceLead, gate.ActionList)(ok), emp.ID, http.StatusNoContent},
		{"employee deletes lead", ag.RequirePermission(ResourceLead, gate.ActionDelete)(ok), emp.ID, http.StatusForbidden},
		{"unknown user", ag.RequirePermission(ResourceLead, gate.ActionList)(ok), "ghost", http.StatusForbidden},
		{"employee audit", ag.RequireAdmin()(ok), emp.ID, http.StatusForbidden},
		{"admin audit", ag.RequireAdmin()(ok), admin.ID, http.StatusNoContent},
		{"anonymous audit", ag.RequireAdmin()(ok), "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != "" {
				req = req.WithContext(auth.WithUserID(req.Context(), tt.user))
			}
			rr := httptest.NewRecorder()
			tt.handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
