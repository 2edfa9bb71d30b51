package database

import (
	"errors"
	"fmt"
	"testing"

	"storefront-backend/models"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := setupTestDB(t)

	for _, m := range models.All() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("expected table for %T", m)
		}
	}
	// Running twice must be harmless.
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
}

func TestCreateDefaultAdminNew(t *testing.T) {
	db := setupTestDB(t)

	created, err := CreateDefaultAdmin(db, "testadmin@test.com", "testpassword123")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected admin to be created")
	}

	var user models.User
	if err := db.Where("email = ?", "testadmin@test.com").First(&user).Error; err != nil {
		t.Fatal("admin user not created")
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("expected role 'admin', got '%s'", user.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("testpassword123")); err != nil {
		t.Error("stored password is not a bcrypt hash of the input")
	}
}

func TestCreateDefaultAdminAlreadyExists(t *testing.T) {
	db := setupTestDB(t)

	if _, err := CreateDefaultAdmin(db, "existing@test.com", "password123"); err != nil {
		t.Fatal(err)
	}

	// Second call should skip (no error)
	created, err := CreateDefaultAdmin(db, "existing@test.com", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("expected second call to skip")
	}

	var count int64
	db.Model(&models.User{}).Where("email = ?", "existing@test.com").Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 admin, got %d", count)
	}
}

func TestCreateDefaultAdminRequiresCredentials(t *testing.T) {
	db := setupTestDB(t)

	if _, err := CreateDefaultAdmin(db, "", "secret"); err == nil {
		t.Error("expected error for empty email")
	}
	if _, err := CreateDefaultAdmin(db, "a@test.com", ""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Create(&models.Category{Name: "Shirts"}).Error; err != nil {
		t.Fatal(err)
	}
	err := db.Create(&models.Category{Name: "Shirts"}).Error
	if err == nil {
		t.Fatal("expected duplicate category name to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(pgErr) {
		t.Error("expected wrapped postgres 23505 to be a unique violation")
	}
	if IsUniqueViolation(errors.New("connection reset")) {
		t.Error("plain errors are not unique violations")
	}
}
