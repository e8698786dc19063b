package shared

// Currency identifies one of the two token balances a wallet carries
type Currency string

const (
	CurrencyUNI Currency = "UNI"
	CurrencyTON Currency = "TON"
)

// Valid reports whether the currency is one of the supported tokens
func (c Currency) Valid() bool {
	return c == CurrencyUNI || c == CurrencyTON
}

// TransactionStatus defines ledger entry processing states
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// FailureReason defines ledger entry failure categories
type FailureReason string

const (
	FailureReasonWalletNotFound    FailureReason = "WALLET_NOT_FOUND"
	FailureReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonInvalidAmount     FailureReason = "INVALID_AMOUNT"
	FailureReasonInvalidType       FailureReason = "INVALID_TRANSACTION_TYPE"
	FailureReasonPayoutsBlocked    FailureReason = "PAYOUTS_BLOCKED"
	FailureReasonUnknownError      FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines message publishing states for the history mirror
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
