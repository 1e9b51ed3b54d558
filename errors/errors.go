package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type ErrorCode string

const (
	CodeUnauthorized            ErrorCode = "AUTH_001"
	CodeTokenExpired            ErrorCode = "AUTH_002"
	CodeTokenInvalid            ErrorCode = "AUTH_003"
	CodeInsufficientPermissions ErrorCode = "AUTH_004"
	CodeNotGroupMember          ErrorCode = "AUTH_005"

	CodeInvalidRequest       ErrorCode = "VALIDATION_001"
	CodeMissingRequiredField ErrorCode = "VALIDATION_002"
	CodeInvalidFieldFormat   ErrorCode = "VALIDATION_003"
	CodeInvalidAmount        ErrorCode = "VALIDATION_004"
	CodeAmountMismatch       ErrorCode = "VALIDATION_005"
	CodeAmountExceedsRemain  ErrorCode = "VALIDATION_006"
	CodeInvalidUUID          ErrorCode = "VALIDATION_007"
	CodeSameParty            ErrorCode = "VALIDATION_008"

	CodeGroupNotFound      ErrorCode = "NOT_FOUND_003"
	CodeExpenseNotFound    ErrorCode = "NOT_FOUND_004"
	CodeSettlementNotFound ErrorCode = "NOT_FOUND_005"
	CodePaymentNotFound    ErrorCode = "NOT_FOUND_006"

	CodeDuplicateEntry      ErrorCode = "CONFLICT_002"
	CodeConcurrencyConflict ErrorCode = "CONFLICT_006"

	CodeInvalidState ErrorCode = "STATE_001"

	CodeCannotDeleteWithDebts ErrorCode = "BUSINESS_003"

	CodeDatabaseError       ErrorCode = "DATABASE_001"

	CodeInternalError ErrorCode = "INTERNAL_001"
)

type ErrorType int

const (
	ErrorTypeUnauthorized ErrorType = iota
	ErrorTypeForbidden
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeConflict
	ErrorTypeUnprocessable
	ErrorTypeInternal
)

type AppError struct {
	Type      ErrorType `json:"-"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Err       error     `json:"-"`
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

func Unauthorized(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeTokenExpired,
		Message: "Your session has expired. Please log in again.",
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeTokenInvalid,
		Message: "Invalid authentication token.",
	}
}

func NotGroupMember() *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeNotGroupMember,
		Message: "You are not a member of this group.",
	}
}

// NotSettlementParty is returned when the actor is not the party an action
// requires, e.g. only the creditor may confirm or reject.
func NotSettlementParty(action, requiredParty string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeInsufficientPermissions,
		Message: fmt.Sprintf("Only the %s can %s this settlement.", requiredParty, action),
	}
}

func InsufficientPermissions(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeInsufficientPermissions,
		Message: message,
	}
}

func InvalidRequest(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

func InvalidRequestWithDetails(message, details string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidRequest,
		Message: message,
		Details: details,
	}
}

func MissingRequiredField(fieldName string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required.", fieldName),
	}
}

func InvalidFieldFormat(fieldName, expectedFormat string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidFieldFormat,
		Message: fmt.Sprintf("Invalid format for %s.", fieldName),
		Details: fmt.Sprintf("Expected format: %s", expectedFormat),
	}
}

func InvalidUUID(fieldName string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidUUID,
		Message: fmt.Sprintf("Invalid %s format. Must be a valid UUID.", fieldName),
	}
}

func InvalidAmount(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidAmount,
		Message: message,
	}
}

func AmountMismatch(splitTotal, expectedTotal decimal.Decimal, splitType string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeAmountMismatch,
		Message: fmt.Sprintf("Sum of %s amounts (%s) does not equal total amount (%s).", splitType, splitTotal.StringFixed(2), expectedTotal.StringFixed(2)),
	}
}

func AmountExceedsRemaining(amount, remaining decimal.Decimal) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeAmountExceedsRemain,
		Message: fmt.Sprintf("Amount %s exceeds remaining amount %s.", amount.StringFixed(2), remaining.StringFixed(2)),
	}
}

func CannotSettleToSelf() *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeSameParty,
		Message: "Cannot settle payment to yourself.",
	}
}

func GroupNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeGroupNotFound,
		Message: "Group not found.",
	}
}

func ExpenseNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeExpenseNotFound,
		Message: "Expense not found.",
	}
}

func SettlementNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeSettlementNotFound,
		Message: "Settlement not found.",
	}
}

func NoPaymentToUndo() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodePaymentNotFound,
		Message: "There is no payment to undo on this settlement.",
	}
}

// InvalidState reports an operation that is not legal for the settlement's
// current status.
func InvalidState(operation, status string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("Cannot %s a settlement that is %s.", operation, status),
	}
}

func InvalidStateWithDetails(message, details string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeInvalidState,
		Message: message,
		Details: details,
	}
}

// ConcurrencyConflict is the only retryable error: the settlement changed
// between read and conditional write.
func ConcurrencyConflict(details string) *AppError {
	return &AppError{
		Type:      ErrorTypeConflict,
		Code:      CodeConcurrencyConflict,
		Message:   "The settlement was changed by another request. Please reload and try again.",
		Details:   details,
		Retryable: true,
	}
}

func DuplicateEntry(resourceType string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeDuplicateEntry,
		Message: fmt.Sprintf("%s already exists.", resourceType),
	}
}

func CannotDeleteGroupWithExpenses() *AppError {
	return &AppError{
		Type:    ErrorTypeUnprocessable,
		Code:    CodeCannotDeleteWithDebts,
		Message: "Cannot delete a group that still has expenses.",
		Details: "Remove or settle the group's expenses before deleting it.",
	}
}

func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeDatabaseError,
		Message: "A database error occurred. Please try again.",
		Details: operation,
		Err:     err,
	}
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func GetHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeUnauthorized:
		return 401
	case ErrorTypeForbidden:
		return 403
	case ErrorTypeBadRequest:
		return 400
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeConflict:
		return 409
	case ErrorTypeUnprocessable:
		return 422
	default:
		return 500
	}
}

// IsDuplicateError matches a unique_violation from Postgres.
func IsDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsCheckViolation matches a check_violation from Postgres.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
