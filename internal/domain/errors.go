package domain

import "errors"

// Business error taxonomy. Handlers match with errors.Is and map each
// sentinel to a status code and a stable error kind; lower layers wrap
// these with context instead of inventing their own.
var (
	ErrValidation           = errors.New("invalid input")              // Bad shape or range (e.g. amount <= 0)
	ErrDuplicateUser        = errors.New("username already exists")    // Registration with a taken username
	ErrInvalidCredentials   = errors.New("invalid credentials")        // Login failure, user unknown or password mismatch
	ErrInvalidToken         = errors.New("invalid or expired token")   // Malformed, tampered or expired JWT
	ErrQuoteUnavailable     = errors.New("quote unavailable")          // Quote source down, timed out, or coin unsupported
	ErrInsufficientFunds    = errors.New("insufficient funds")         // Buy exceeding the cash balance
	ErrInsufficientHoldings = errors.New("insufficient holdings")      // Sell exceeding the wallet amount
	ErrStorageConflict      = errors.New("concurrent update conflict") // Optimistic-lock miss, retried before surfacing
	ErrNotFound             = errors.New("record not found")           // Missing user or wallet row
)

// ErrorKind returns the stable machine-readable kind for a business
// error, or "internal" for anything outside the taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicateUser):
		return "duplicate_user"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrQuoteUnavailable):
		return "quote_unavailable"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
