package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Betting Business Logic (BET) ----

func ErrInvalidStake(minimum int64) *AppError {
	return New("BET_001", fmt.Sprintf("Stake below minimum of %d", minimum), http.StatusBadRequest)
}

func ErrInvalidOdds() *AppError {
	return New("BET_002", "Odds must be at least 1.0", http.StatusBadRequest)
}

func ErrOddsTooHigh(maximum float64) *AppError {
	return New("BET_002", fmt.Sprintf("Combined odds cannot exceed %.0f", maximum), http.StatusBadRequest)
}

func ErrNoLegs() *AppError {
	return New("BET_003", "A bet requires at least one leg", http.StatusBadRequest)
}

func ErrAlreadySettled() *AppError {
	return New("BET_004", "Bet has already been settled", http.StatusConflict)
}

func ErrUnknownSelection() *AppError {
	return New("BET_005", "Selected market option does not exist", http.StatusBadRequest)
}

func ErrOddsChanged() *AppError {
	return New("BET_006", "Odds have changed since selection", http.StatusConflict)
}

func ErrTooManyLegs(maximum int) *AppError {
	return New("BET_007", fmt.Sprintf("A bet may have at most %d legs", maximum), http.StatusBadRequest)
}

// ---- Wallet & Ledger (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrDuplicateExternalRef() *AppError {
	return New("WAL_002", "A ledger entry with this external reference already exists", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Payment Gateway (GW) ----

func ErrUnknownPayment() *AppError {
	return New("GW_001", "No pending payment matches this gateway reference", http.StatusNotFound)
}

func ErrInvalidGatewaySignature() *AppError {
	return New("GW_002", "Gateway callback signature verification failed", http.StatusUnauthorized)
}

func ErrInvalidAmount() *AppError {
	return New("GW_003", "Invalid amount", http.StatusBadRequest)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_004", "Payment gateway request failed", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Insufficient privileges", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// ErrStoreUnavailable signals a transient storage failure; callers may retry
// with backoff because every ledger mutation is a single atomic transaction.
func ErrStoreUnavailable(err error) *AppError {
	return Wrap("SYS_001", "Storage temporarily unavailable", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_002 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_002", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a generic validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
