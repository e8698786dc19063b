package handler

// CreateWalletRequest represents a request to register a wallet for a user
type CreateWalletRequest struct {
	UserID     int64  `json:"user_id" binding:"required,gt=0"`
	ReferredBy *int64 `json:"referred_by,omitempty"`
}

// WalletResponse represents a balance snapshot in API responses
type WalletResponse struct {
	UserID     int64  `json:"user_id"`
	ReferredBy *int64 `json:"referred_by,omitempty"`
	BalanceUni string `json:"balance_uni"`
	BalanceTon string `json:"balance_ton"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// WithdrawalRequest represents a synchronous withdrawal request
type WithdrawalRequest struct {
	Currency    string `json:"currency" binding:"required,oneof=UNI TON"`
	Amount      string `json:"amount" binding:"required"`
	ExternalRef string `json:"external_ref,omitempty"`
	Description string `json:"description,omitempty"`
}

// DepositRequest represents an asynchronous deposit submission
type DepositRequest struct {
	UserID      int64  `json:"user_id" binding:"required,gt=0"`
	Type        string `json:"type" binding:"required,oneof=DEPOSIT TON_DEPOSIT MISSION_REWARD DAILY_BONUS"`
	Currency    string `json:"currency" binding:"required,oneof=UNI TON"`
	Amount      string `json:"amount" binding:"required"`
	ExternalRef string `json:"external_ref" binding:"required"`
	Description string `json:"description,omitempty"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	ExternalRef   string `json:"external_ref,omitempty"`
	Description   string `json:"description,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	CreatedAt     string `json:"created_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

// MutationResponse pairs the ledger entry with the resulting snapshot
type MutationResponse struct {
	Entry  EntryResponse   `json:"entry"`
	Wallet *WalletResponse `json:"wallet,omitempty"`
}

// DepositAcceptedResponse represents a queued deposit
type DepositAcceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// PurchaseBoostRequest represents a boost package purchase
type PurchaseBoostRequest struct {
	PackageID   int64  `json:"package_id" binding:"required,gt=0"`
	Amount      string `json:"amount" binding:"required"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// BoostPackageResponse represents a purchasable boost tier
type BoostPackageResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	DailyRate  string `json:"daily_rate"`
	MinDeposit string `json:"min_deposit"`
}

// BoostPositionResponse represents a user's boost position
type BoostPositionResponse struct {
	UserID        int64  `json:"user_id"`
	PackageID     int64  `json:"package_id"`
	DepositAmount string `json:"deposit_amount"`
	DailyRate     string `json:"daily_rate"`
	Active        bool   `json:"active"`
	ActivatedAt   string `json:"activated_at"`
}

// PurchaseBoostResponse pairs the purchase entry with the updated position
type PurchaseBoostResponse struct {
	Entry    EntryResponse         `json:"entry"`
	Position BoostPositionResponse `json:"position"`
}

// HistoryEntryResponse represents a mirrored ledger entry in history listings
type HistoryEntryResponse struct {
	LedgerEntryID int64  `json:"ledger_entry_id"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	Description   string `json:"description,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// AuditCheckResponse represents one reconciliation check result
type AuditCheckResponse struct {
	Currency  string `json:"currency"`
	Expected  string `json:"expected"`
	Actual    string `json:"actual"`
	Divergent bool   `json:"divergent"`
	Reason    string `json:"reason,omitempty"`
}

// AuditReportResponse represents a user's reconciliation report
type AuditReportResponse struct {
	UserID    int64                `json:"user_id"`
	Divergent bool                 `json:"divergent"`
	Checks    []AuditCheckResponse `json:"checks"`
	AuditedAt string               `json:"audited_at"`
}

// AuditFlagResponse represents an audit flag in API responses
type AuditFlagResponse struct {
	ID                int64  `json:"id"`
	UserID            int64  `json:"user_id"`
	Currency          string `json:"currency"`
	Expected          string `json:"expected"`
	Actual            string `json:"actual"`
	Reason            string `json:"reason"`
	FlaggedAt         string `json:"flagged_at"`
	ResolvedAt        string `json:"resolved_at,omitempty"`
	ResolutionEntryID *int64 `json:"resolution_entry_id,omitempty"`
}

// ResolveFlagRequest represents a request to resolve an audit flag
type ResolveFlagRequest struct {
	UserID   int64  `json:"user_id" binding:"required,gt=0"`
	Currency string `json:"currency" binding:"required,oneof=UNI TON"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
