package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

const (
	GroupStatusPending   = "pending"
	GroupStatusActive    = "active"
	GroupStatusCompleted = "completed"
)

const (
	WithdrawalActive   = "active"
	WithdrawalInactive = "inactive"
)

const (
	TxDeposit          = "deposit"
	TxWithdrawal       = "withdrawal"
	TxAjoContribution  = "ajo_contribution"
	TxAjoPayout        = "ajo_payout"
	TxPenalty          = "penalty"
	TxEarlyExitPenalty = "early_exit_penalty"
	TxReversal         = "reversal"
)

const (
	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

const (
	DisputeMissedContribution = "missed_contribution"

	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
	DisputeStatusRejected = "rejected"
)

const (
	FraudLargeReversal    = "large_reversal"
	FraudPayoutEscalation = "payout_escalation"

	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	FraudStatusOpen          = "open"
	FraudStatusInvestigating = "investigating"
	FraudStatusResolved      = "resolved"
)

// Notification types
const (
	NotifySystem      = "system"
	NotifyAjo         = "ajo"
	NotifyTransaction = "transaction"
	NotifyPenalty     = "penalty"
	NotifyPayout      = "payout"
)

const (
	CronStarted   = "started"
	CronCompleted = "completed"
	CronFailed    = "failed"
)

const (
	JobDailyPayout = "daily_payout"
	JobPayoutRetry = "payout_retry"
)
