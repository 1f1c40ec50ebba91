package account

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		mobile     string
		wantEmail  string
		wantMobile string
	}{
		{"mixed case email", "  Alice@Example.COM ", "", "alice@example.com", ""},
		{"formatted mobile", "", "+91 98765-43210", "", "919876543210"},
		{"both", "Bob@x.io", "(555) 010-2000", "bob@x.io", "5550102000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Email: tt.email, Mobile: tt.mobile}
			u.Normalize()
			if u.Email != tt.wantEmail {
				t.Errorf("email: got %q, want %q", u.Email, tt.wantEmail)
			}
			if u.Mobile != tt.wantMobile {
				t.Errorf("mobile: got %q, want %q", u.Mobile, tt.wantMobile)
			}
		})
	}
}

func TestRemainingToday(t *testing.T) {
	u := &User{DailyQuotaMB: 1024, UsedTodayMB: 200}
	if got := u.RemainingToday(); got != 824 {
		t.Errorf("got %d, want 824", got)
	}
	u.UsedTodayMB = 2000
	if got := u.RemainingToday(); got != 0 {
		t.Errorf("over-used quota should floor at 0, got %d", got)
	}
}

func TestNeedsRollover(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	u := &User{LastUsageDate: day}

	if u.NeedsRollover(day.Add(23 * time.Hour)) {
		t.Error("same day should not need rollover")
	}
	if !u.NeedsRollover(day.AddDate(0, 0, 1)) {
		t.Error("next day should need rollover")
	}
}

func TestIsEmail(t *testing.T) {
	if !IsEmail("a@b.c") {
		t.Error("expected email")
	}
	if IsEmail("+15550100") {
		t.Error("expected mobile")
	}
}
