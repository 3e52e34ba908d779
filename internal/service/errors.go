package service

import "errors"

var (
	// ErrWalletDisabled means the coin program is switched off in settings.
	ErrWalletDisabled = errors.New("wallet is disabled")
	// ErrSettingsNotConfigured means no settings row exists yet.
	ErrSettingsNotConfigured = errors.New("wallet settings not configured")
	// ErrInvalidAmount means non-positive amount passed, or a zero adjustment.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrExceedsMaxRedeemable means a redemption is over the configured cap.
	ErrExceedsMaxRedeemable = errors.New("amount exceeds max redeemable coins")
	// ErrInsufficientBalance means the operation would drive the balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidSettings means a malformed settings update.
	ErrInvalidSettings = errors.New("invalid wallet settings")
)

// resultLabel maps an operation error to a metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrWalletDisabled):
		return "wallet_disabled"
	case errors.Is(err, ErrSettingsNotConfigured):
		return "settings_not_configured"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrExceedsMaxRedeemable):
		return "exceeds_max_redeemable"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidSettings):
		return "invalid_settings"
	default:
		return "error"
	}
}
