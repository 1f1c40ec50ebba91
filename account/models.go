package account

import (
	"strings"
	"time"

	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/types"
)

// DefaultDailyQuotaMB is the allowance given to new users unless the
// engine is configured otherwise.
const DefaultDailyQuotaMB types.Megabytes = 2048

type User struct {
	types.Entity
	ID            id.UserID       `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email,omitempty"`
	Mobile        string          `json:"mobile,omitempty"`
	DailyQuotaMB  types.Megabytes `json:"daily_quota_mb"`
	UsedTodayMB   types.Megabytes `json:"used_today_mb"`
	LastUsageDate time.Time       `json:"last_usage_date"`
	TotalUsedMB   types.Megabytes `json:"total_used_mb"`
}

// RemainingToday is the unused part of today's quota.
func (u *User) RemainingToday() types.Megabytes {
	return u.DailyQuotaMB.Sub(u.UsedTodayMB)
}

// NeedsRollover reports whether the usage window belongs to an earlier day.
func (u *User) NeedsRollover(today time.Time) bool {
	return !types.SameDay(u.LastUsageDate, today)
}

// Normalize canonicalises the contact identifiers in place.
func (u *User) Normalize() {
	u.Email = NormalizeEmail(u.Email)
	u.Mobile = NormalizeMobile(u.Mobile)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeMobile keeps only the digits of a phone number, so
// "+91 98765-43210" and "919876543210" are the same identifier.
func NormalizeMobile(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsEmail reports whether an identifier should be looked up as an email.
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
