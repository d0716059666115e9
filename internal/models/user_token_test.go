package models

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func at(hhmm string) time.Time {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 3, 10, parsed.Hour(), parsed.Minute(), 30, 0, time.Local)
}

func TestUserToken_IsExpired(t *testing.T) {
	now := time.Now()

	never := &UserToken{ExpiresType: ExpiresNever}
	if never.IsExpired(now) {
		t.Error("token without expiry should never expire")
	}

	future := now.Add(time.Hour)
	live := &UserToken{ExpiresType: ExpiresDay, ExpiresAt: &future}
	if live.IsExpired(now) {
		t.Error("token expiring in the future reported expired")
	}

	past := now.Add(-time.Minute)
	dead := &UserToken{ExpiresType: ExpiresDay, ExpiresAt: &past}
	if !dead.IsExpired(now) {
		t.Error("token past expiry reported live")
	}

	// Boundary: now == expires_at counts as expired.
	exact := &UserToken{ExpiresAt: &now}
	if !exact.IsExpired(now) {
		t.Error("token at exact expiry instant should be expired")
	}
}

func TestUserToken_InCurfew_SameDayWindow(t *testing.T) {
	tok := &UserToken{CurfewStart: strPtr("09:00"), CurfewEnd: strPtr("17:00")}

	cases := []struct {
		clock string
		want  bool
	}{
		{"08:59", false},
		{"09:00", true},
		{"12:00", true},
		{"16:59", true},
		{"17:00", false}, // end is exclusive
		{"23:00", false},
	}
	for _, tc := range cases {
		if got := tok.InCurfew(at(tc.clock)); got != tc.want {
			t.Errorf("InCurfew(%s) = %v, expected %v", tc.clock, got, tc.want)
		}
	}
}

func TestUserToken_InCurfew_WrapsMidnight(t *testing.T) {
	tok := &UserToken{CurfewStart: strPtr("22:00"), CurfewEnd: strPtr("06:00")}

	cases := []struct {
		clock string
		want  bool
	}{
		{"23:30", true},
		{"02:00", true},
		{"12:00", false},
		{"22:00", true},
		{"06:00", false},
		{"21:59", false},
	}
	for _, tc := range cases {
		if got := tok.InCurfew(at(tc.clock)); got != tc.want {
			t.Errorf("InCurfew(%s) = %v, expected %v", tc.clock, got, tc.want)
		}
	}
}

func TestUserToken_InCurfew_Unset(t *testing.T) {
	tok := &UserToken{}
	if tok.InCurfew(at("23:00")) {
		t.Error("token without curfew should never be blocked")
	}

	half := &UserToken{CurfewStart: strPtr("22:00")}
	if half.InCurfew(at("23:00")) {
		t.Error("half-configured curfew must not block")
	}
}

func TestValidHHMM(t *testing.T) {
	valid := []string{"00:00", "09:30", "23:59"}
	for _, s := range valid {
		if !ValidHHMM(s) {
			t.Errorf("ValidHHMM(%q) = false, expected true", s)
		}
	}

	invalid := []string{"24:00", "9:60", "abc", "12", "12:345", ""}
	for _, s := range invalid {
		if ValidHHMM(s) {
			t.Errorf("ValidHHMM(%q) = true, expected false", s)
		}
	}
}

func TestValidExpiresType(t *testing.T) {
	for _, s := range []string{ExpiresDay, ExpiresWeek, ExpiresMonth, ExpiresNever} {
		if !ValidExpiresType(s) {
			t.Errorf("ValidExpiresType(%q) = false", s)
		}
	}
	for _, s := range []string{"", "year", "hour", "DAY"} {
		if ValidExpiresType(s) {
			t.Errorf("ValidExpiresType(%q) = true", s)
		}
	}
}
