/*
errors.go - Centralized error codes for the koperasi engine

PURPOSE:
  Every public operation returns a *Error carrying a stable Code string.
  Callers (the HTTP layer, other in-process workflows) match on Code, so
  the strings below are an API contract and must not change.

ERROR CATEGORIES:
  1. Parameter errors  - INVALID_PARAMETER
  2. Lookup errors     - ANGGOTA_NOT_FOUND, PENGEMBALIAN_NOT_FOUND
  3. State errors      - ANGGOTA_ALREADY_KELUAR, ANGGOTA_NOT_KELUAR,
                         PENGEMBALIAN_ALREADY_PROCESSED, ANGGOTA_KELUAR
  4. Validation errors - ACTIVE_LOAN_EXISTS, INSUFFICIENT_BALANCE,
                         PAYMENT_METHOD_REQUIRED, INVALID_PAYMENT_METHOD,
                         VALIDATION_FAILED, CALCULATION_FAILED, UNBALANCED_JOURNAL
  5. Store errors      - UPDATE_FAILED, SYSTEM_ERROR

USAGE:
  if koperasi.IsCode(err, koperasi.CodeAnggotaNotFound) { ... }

  var kerr *koperasi.Error
  if errors.As(err, &kerr) { log(kerr.Code, kerr.Data) }

SEE ALSO:
  - api/handlers.go: Maps codes to HTTP status
*/
package koperasi

import (
	"errors"
	"fmt"
)

// Code is a stable, caller-matchable error identifier.
type Code string

const (
	CodeInvalidParameter             Code = "INVALID_PARAMETER"
	CodeAnggotaNotFound              Code = "ANGGOTA_NOT_FOUND"
	CodeAnggotaAlreadyKeluar         Code = "ANGGOTA_ALREADY_KELUAR"
	CodeAnggotaNotKeluar             Code = "ANGGOTA_NOT_KELUAR"
	CodeAnggotaKeluar                Code = "ANGGOTA_KELUAR"
	CodePengembalianAlreadyProcessed Code = "PENGEMBALIAN_ALREADY_PROCESSED"
	CodeUpdateFailed                 Code = "UPDATE_FAILED"
	CodeActiveLoanExists             Code = "ACTIVE_LOAN_EXISTS"
	CodeInsufficientBalance          Code = "INSUFFICIENT_BALANCE"
	CodePaymentMethodRequired        Code = "PAYMENT_METHOD_REQUIRED"
	CodeInvalidPaymentMethod         Code = "INVALID_PAYMENT_METHOD"
	CodeValidationFailed             Code = "VALIDATION_FAILED"
	CodeCalculationFailed            Code = "CALCULATION_FAILED"
	CodePengembalianNotFound         Code = "PENGEMBALIAN_NOT_FOUND"
	CodeUnbalancedJournal            Code = "UNBALANCED_JOURNAL"
	CodeAkunNotFound                 Code = "AKUN_NOT_FOUND"
	CodeSystemError                  Code = "SYSTEM_ERROR"
)

// =============================================================================
// SENTINEL ERRORS - Store level, use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned by stores when a keyed record is missing.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned by stores when an append reuses an ID.
	ErrDuplicateID = errors.New("duplicate record id")
)

// =============================================================================
// STRUCTURED ERROR
// =============================================================================

// Error is the single error shape crossing the core boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithData attaches structured details, e.g. shortfall amounts.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// Wrap keeps cause for diagnostics while reporting code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// =============================================================================
// HELPERS
// =============================================================================

// AsError converts any error to *Error. Unknown errors become SYSTEM_ERROR
// with the underlying message preserved.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr
	}
	return &Error{Code: CodeSystemError, Message: err.Error(), Err: err}
}

// CodeOf returns the code of err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports lookup failures at any layer.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	switch CodeOf(err) {
	case CodeAnggotaNotFound, CodePengembalianNotFound, CodeAkunNotFound:
		return true
	}
	return false
}

// Guard converts a panic or a non-*Error into *Error. Public operations
// call it as: defer koperasi.Guard(&err)
func Guard(err *error) {
	if r := recover(); r != nil {
		*err = &Error{Code: CodeSystemError, Message: fmt.Sprint(r)}
		return
	}
	if *err != nil {
		*err = AsError(*err)
	}
}
