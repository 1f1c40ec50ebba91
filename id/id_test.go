package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/bytebank/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"UserID", id.NewUserID, "usr_"},
		{"WalletID", id.NewWalletID, "wal_"},
		{"EntryID", id.NewEntryID, "dent_"},
		{"TransactionID", id.NewTransactionID, "txn_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"UserID", id.NewUserID, id.ParseUserID},
		{"WalletID", id.NewWalletID, id.ParseWalletID},
		{"EntryID", id.NewEntryID, id.ParseEntryID},
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseUserID rejects wal_", id.NewWalletID().String(), id.ParseUserID},
		{"ParseWalletID rejects dent_", id.NewEntryID().String(), id.ParseWalletID},
		{"ParseEntryID rejects txn_", id.NewTransactionID().String(), id.ParseEntryID},
		{"ParseTransactionID rejects usr_", id.NewUserID().String(), id.ParseTransactionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseOptional(t *testing.T) {
	got, err := id.ParseOptional("", id.PrefixUser)
	if err != nil {
		t.Fatalf("ParseOptional(\"\") failed: %v", err)
	}
	if !got.IsNil() {
		t.Error("expected nil ID for empty input")
	}

	u := id.NewUserID()
	got, err = id.ParseOptional(u.String(), id.PrefixUser)
	if err != nil {
		t.Fatalf("ParseOptional failed: %v", err)
	}
	if got.String() != u.String() {
		t.Errorf("mismatch: %q != %q", got.String(), u.String())
	}

	if _, err := id.ParseOptional(u.String(), id.PrefixWallet); err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewEntryID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewTransactionID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	// Nullable sender/receiver columns store NULL for the nil ID.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestCompare(t *testing.T) {
	a := id.MustParse("usr_01h2xcejqtf2nbrexx3vqjhp41")
	b := id.MustParse("usr_01h2xcejqtf2nbrexx3vqjhp42")

	if a.Compare(b) >= 0 {
		t.Errorf("expected %s < %s", a, b)
	}
	if b.Compare(a) <= 0 {
		t.Errorf("expected %s > %s", b, a)
	}
	if a.Compare(a) != 0 {
		t.Error("expected equal IDs to compare as 0")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewUserID()
	b := id.NewUserID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewUserID() calls returned the same ID: %q", a.String())
	}
}
