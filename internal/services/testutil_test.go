package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database. A single connection
// keeps every query on the same sqlite instance.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.UserToken{},
		&models.TokenIP{},
		&models.UsageDay{},
		&models.AccessLog{},
	); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()

	cipher, err := utils.NewSecretCipher("test-master-key")
	if err != nil {
		t.Fatalf("init cipher: %v", err)
	}
	return NewTokenStore(newTestDB(t), cipher)
}

// seedToken writes a minimal enabled token and returns it with the
// plaintext secret populated.
func seedToken(t *testing.T, store *TokenStore, mutate func(*models.UserToken)) *models.UserToken {
	t.Helper()

	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}

	tok := &models.UserToken{
		ID:            uuid.NewString(),
		Secret:        secret,
		OwnerUsername: "alice",
		Enabled:       true,
		ExpiresType:   models.ExpiresNever,
	}
	if mutate != nil {
		mutate(tok)
	}
	if err := store.Create(tok); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	created, err := store.GetByID(tok.ID)
	if err != nil {
		t.Fatalf("reload seeded token: %v", err)
	}
	return created
}

func timePtr(tm time.Time) *time.Time { return &tm }

func strPtr(s string) *string { return &s }
