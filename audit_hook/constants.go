package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionUserRegistered  = "user.registered"
	ActionRolloverApplied = "rollover.applied"

	// Entry actions
	ActionEntryCreated   = "entry.created"
	ActionEntriesExpired = "entries.expired"

	// Ledger actions
	ActionUsageConsumed     = "usage.consumed"
	ActionDataPurchased     = "data.purchased"
	ActionDataTransferred   = "data.transferred"
	ActionInsufficientFunds = "funds.insufficient"

	// Maintenance actions
	ActionSweepCompleted = "sweep.completed"
)

// Resource constants for audit events.
const (
	ResourceUser        = "user"
	ResourceEntry       = "entry"
	ResourceWallet      = "wallet"
	ResourceTransaction = "transaction"
	ResourceSweep       = "sweep"
)

// Category constants for audit events.
const (
	CategoryAccount     = "account"
	CategoryUsage       = "usage"
	CategoryWallet      = "wallet"
	CategoryMaintenance = "maintenance"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
