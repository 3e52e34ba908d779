package model

// Statistics aggregates the whole ledger for reporting.
type Statistics struct {
	TotalIssued        int64 `json:"total_issued"`
	TotalRedeemed      int64 `json:"total_redeemed"`
	TotalExpired       int64 `json:"total_expired"`
	OutstandingBalance int64 `json:"outstanding_balance"`
	WalletCount        int64 `json:"wallet_count"`
}
