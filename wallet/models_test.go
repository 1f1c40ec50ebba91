package wallet

import (
	"testing"

	"github.com/xraph/bytebank/types"
)

func TestWalletMovements(t *testing.T) {
	w := &Wallet{}

	w.Credit(100, true)
	w.Credit(50, false)
	if w.BalanceMB != 150 || w.TotalPurchasedMB != 100 {
		t.Fatalf("after credits: %+v", w)
	}

	if !w.CanDebit(150) || w.CanDebit(151) {
		t.Error("CanDebit boundary mismatch")
	}

	w.Use(60)
	if w.BalanceMB != 90 || w.TotalUsedMB != 60 {
		t.Fatalf("after use: %+v", w)
	}

	w.Debit(40)
	if w.BalanceMB != 50 || w.TotalUsedMB != 60 {
		t.Fatalf("debit must not count as usage: %+v", w)
	}

	if got := w.Forfeit(80); got != 50 {
		t.Errorf("forfeit should cap at balance, got %d", got)
	}
	if w.BalanceMB != 0 || w.TotalExpiredMB != 50 {
		t.Fatalf("after forfeit: %+v", w)
	}
}

func TestWalletLimits(t *testing.T) {
	w := &Wallet{BalanceMB: types.MaxMegabytes - 10, TotalPurchasedMB: types.MaxMegabytes - 1}

	if !w.CanCredit(10) || w.CanCredit(11) {
		t.Error("CanCredit boundary mismatch")
	}

	w.Credit(10, true)
	if w.BalanceMB != types.MaxMegabytes {
		t.Errorf("balance: got %d", w.BalanceMB)
	}
	if w.TotalPurchasedMB != types.MaxMegabytes {
		t.Errorf("purchased counter should saturate, got %d", w.TotalPurchasedMB)
	}

	w.TotalUsedMB = types.MaxMegabytes
	w.Use(5)
	if w.TotalUsedMB != types.MaxMegabytes || w.BalanceMB != types.MaxMegabytes-5 {
		t.Errorf("after use: %+v", w)
	}
}
