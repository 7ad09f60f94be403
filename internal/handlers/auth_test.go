package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/db"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/diewo77/go-crm/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestAuthHandler_Me(t *testing.T) {
	d := setupDB(t)
	users := repository.NewUserRepo(d)
	u := &models.User{Email: "me@crm.test", PasswordHash: "x", Role: models.RoleEmployee, Status: models.UserActive}
	if err := users.Insert(t.Context(), u); err != nil {
		t.Fatalf("insert: %v", err)
	}
	h := NewAuthHandler(services.NewAuthService(users, nil, nil, nil, nil))

	me := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
		rr := httptest.NewRecorder()
		h.Me(rr, req)
		return rr.Code
	}

	if code := me(u.ID); code != http.StatusOK {
		t.Fatalf("existing user = %d, want 200", code)
	}
	if code := me("00000000-0000-0000-0000-000000000000"); code != http.StatusUnauthorized {
		t.Fatalf("deleted user = %d, want 401", code)
	}

	sqlDB, _ := d.DB()
	_ = sqlDB.Close()
	if code := me(u.ID); code != http.StatusInternalServerError {
		t.Fatalf("store failure = %d, want 500", code)
	}
}
