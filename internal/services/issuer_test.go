package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tokengate/tokengate/internal/models"
)

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		s, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret: %v", err)
		}
		if !strings.HasPrefix(s, "ut_") {
			t.Fatalf("secret %q missing ut_ prefix", s)
		}
		if len(s) != len("ut_")+64 {
			t.Fatalf("secret length = %d, want %d", len(s), len("ut_")+64)
		}
		if seen[s] {
			t.Fatalf("duplicate secret generated: %q", s)
		}
		seen[s] = true
	}
}

func TestComputeExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		expiresType string
		want        *time.Time
		wantErr     bool
	}{
		{models.ExpiresDay, timePtr(now.Add(24 * time.Hour)), false},
		{models.ExpiresWeek, timePtr(now.Add(7 * 24 * time.Hour)), false},
		{models.ExpiresMonth, timePtr(now.Add(30 * 24 * time.Hour)), false},
		{models.ExpiresNever, nil, false},
		{"fortnight", nil, true},
		{"", nil, true},
	}

	for _, tt := range tests {
		got, err := ComputeExpiry(tt.expiresType, now)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ComputeExpiry(%q): got %v, want ErrInvalidInput", tt.expiresType, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ComputeExpiry(%q): %v", tt.expiresType, err)
			continue
		}
		if (got == nil) != (tt.want == nil) {
			t.Errorf("ComputeExpiry(%q) = %v, want %v", tt.expiresType, got, tt.want)
			continue
		}
		if got != nil && !got.Equal(*tt.want) {
			t.Errorf("ComputeExpiry(%q) = %v, want %v", tt.expiresType, got, tt.want)
		}
	}
}

func TestIssuerCreate(t *testing.T) {
	store := newTestStore(t)
	issuer := NewIssuerService(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := issuer.Create(&CreateTokenParams{
		Username:    "alice",
		Description: "laptop",
		ExpiresType: models.ExpiresWeek,
		MaxIPs:      2,
		CurfewStart: strPtr("22:00"),
		CurfewEnd:   strPtr("06:00"),
	}, now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !tok.Enabled {
		t.Fatal("new token must be enabled")
	}
	if !strings.HasPrefix(tok.Secret, "ut_") {
		t.Fatalf("secret %q missing prefix", tok.Secret)
	}
	if tok.ExpiresAt == nil || !tok.ExpiresAt.Equal(now.Add(7*24*time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want now+7d", tok.ExpiresAt)
	}
	if tok.CurfewStart == nil || *tok.CurfewStart != "22:00" {
		t.Fatalf("curfew not persisted: %+v", tok)
	}

	never, err := issuer.Create(&CreateTokenParams{
		Username:    "bob",
		ExpiresType: models.ExpiresNever,
	}, now)
	if err != nil {
		t.Fatalf("Create never-expiring: %v", err)
	}
	if never.ExpiresAt != nil {
		t.Fatalf("never-expiring token has ExpiresAt = %v", never.ExpiresAt)
	}
}

func TestIssuerCreateValidation(t *testing.T) {
	store := newTestStore(t)
	issuer := NewIssuerService(store)
	now := time.Now()

	tests := []struct {
		name   string
		params CreateTokenParams
	}{
		{"empty username", CreateTokenParams{ExpiresType: models.ExpiresDay}},
		{"bad expires_type", CreateTokenParams{Username: "a", ExpiresType: "decade"}},
		{"negative max_ips", CreateTokenParams{Username: "a", ExpiresType: models.ExpiresDay, MaxIPs: -1}},
		{"half curfew", CreateTokenParams{Username: "a", ExpiresType: models.ExpiresDay, CurfewStart: strPtr("22:00")}},
		{"bad curfew format", CreateTokenParams{Username: "a", ExpiresType: models.ExpiresDay, CurfewStart: strPtr("22h00"), CurfewEnd: strPtr("06:00")}},
		{"out of range curfew", CreateTokenParams{Username: "a", ExpiresType: models.ExpiresDay, CurfewStart: strPtr("25:00"), CurfewEnd: strPtr("06:00")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Create(&tt.params, now); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestIssuerRenew(t *testing.T) {
	store := newTestStore(t)
	issuer := NewIssuerService(store)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tok, err := issuer.Create(&CreateTokenParams{
		Username:    "alice",
		ExpiresType: models.ExpiresDay,
	}, now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Accrue some usage so we can verify renew leaves it alone.
	if _, err := store.RecordUsage(tok.ID, 1, 42, "10.0.0.1", now); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	later := now.Add(25 * time.Hour)
	renewed, err := issuer.Renew(tok.ID, models.ExpiresWeek, later)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}

	if renewed.ExpiresType != models.ExpiresWeek {
		t.Fatalf("ExpiresType = %q, want week", renewed.ExpiresType)
	}
	if renewed.ExpiresAt == nil || !renewed.ExpiresAt.Equal(later.Add(7*24*time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want renew-time+7d", renewed.ExpiresAt)
	}
	if renewed.Secret != tok.Secret {
		t.Fatal("renew must not rotate the secret")
	}
	if renewed.TotalRequests != 1 || renewed.TotalTokensUsed != 42 {
		t.Fatalf("renew touched counters: %d/%d", renewed.TotalRequests, renewed.TotalTokensUsed)
	}

	// Renewing to never clears the instant.
	forever, err := issuer.Renew(tok.ID, models.ExpiresNever, later)
	if err != nil {
		t.Fatalf("Renew to never: %v", err)
	}
	if forever.ExpiresAt != nil {
		t.Fatalf("ExpiresAt after renew-to-never = %v, want nil", forever.ExpiresAt)
	}

	if _, err := issuer.Renew("no-such-id", models.ExpiresWeek, later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Renew unknown id: got %v, want ErrNotFound", err)
	}
	if _, err := issuer.Renew(tok.ID, "decade", later); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Renew bad class: got %v, want ErrInvalidInput", err)
	}
}
