package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("WAL_001", "Insufficient wallet balance", http.StatusPaymentRequired),
			expected: "[WAL_001] Insufficient wallet balance",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusServiceUnavailable, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_002", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("BET_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestBettingErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidStake", ErrInvalidStake(10), "BET_001", 400},
		{"InvalidOdds", ErrInvalidOdds(), "BET_002", 400},
		{"NoLegs", ErrNoLegs(), "BET_003", 400},
		{"AlreadySettled", ErrAlreadySettled(), "BET_004", 409},
		{"UnknownSelection", ErrUnknownSelection(), "BET_005", 400},
		{"OddsChanged", ErrOddsChanged(), "BET_006", 409},
		{"TooManyLegs", ErrTooManyLegs(20), "BET_007", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestWalletErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), "WAL_001", 402},
		{"DuplicateExternalRef", ErrDuplicateExternalRef(), "WAL_002", 409},
		{"NotFound", ErrNotFound("Wallet"), "WAL_003", 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestGatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"UnknownPayment", ErrUnknownPayment(), "GW_001", 404},
		{"InvalidGatewaySignature", ErrInvalidGatewaySignature(), "GW_002", 401},
		{"InvalidAmount", ErrInvalidAmount(), "GW_003", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")

	storeErr := ErrStoreUnavailable(inner)
	assert.Equal(t, "SYS_001", storeErr.Code)
	assert.Equal(t, 503, storeErr.HTTPStatus)
	assert.True(t, errors.Is(storeErr, inner))

	intErr := InternalError(inner)
	assert.Equal(t, "SYS_002", intErr.Code)
	assert.Equal(t, 500, intErr.HTTPStatus)

	gwErr := ErrGatewayUnavailable(inner)
	assert.Equal(t, "GW_004", gwErr.Code)
	assert.Equal(t, 502, gwErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("PendingPayment")
	assert.Contains(t, err.Message, "PendingPayment")
	assert.Equal(t, "WAL_003", err.Code)
}
