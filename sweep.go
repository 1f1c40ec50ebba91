package bytebank

import (
	"context"
	"time"
)

// SweepReport summarises one maintenance pass.
type SweepReport struct {
	RolledOver int           `json:"rolled_over"`
	Expired    int           `json:"expired"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Sweep rolls every user over and prunes expired lots. It is run by the
// background worker and by cmd/bytebank-sweeper. A partial failure still
// returns the report for the users that succeeded.
func (b *Bank) Sweep(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	var errs MultiError

	rolled, err := b.RolloverAll(ctx)
	errs.Add(err)
	expired, err := b.CleanupAllExpired(ctx)
	errs.Add(err)

	report := &SweepReport{
		RolledOver: rolled,
		Expired:    expired,
		Elapsed:    time.Since(start),
	}

	b.logger.Info("sweep completed",
		"rolled_over", report.RolledOver,
		"count", report.Expired,
		"elapsed_ms", report.Elapsed.Milliseconds(),
		"errors", len(errs.Errors),
	)
	b.plugins.EmitSweepCompleted(ctx, report.RolledOver, report.Expired, report.Elapsed)

	return report, errs.ErrOrNil()
}
