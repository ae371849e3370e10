// Package apperr defines the failure taxonomy shared by domain, command and
// boundary layers. Every contract failure is an *Error carrying a stable
// code; the HTTP adapter maps codes to status lines without inspecting
// messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable, boundary-visible failure identifier.
type Code string

const (
	// Validation (400)
	CodeValidationError          Code = "VALIDATION_ERROR"
	CodeInvalidEmail             Code = "INVALID_EMAIL"
	CodeInvalidPassword          Code = "INVALID_PASSWORD"
	CodeInvalidAddressFields     Code = "INVALID_ADDRESS_FIELDS"
	CodeCartEmpty                Code = "CART_EMPTY"
	CodeUnsupportedImageFormat   Code = "UNSUPPORTED_IMAGE_FORMAT"
	CodeImageLimitExceeded       Code = "IMAGE_LIMIT_EXCEEDED"
	CodeAddressBookLimitExceeded Code = "ADDRESS_BOOK_LIMIT_EXCEEDED"

	// Authentication (401)
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeInvalidRefreshToken Code = "INVALID_REFRESH_TOKEN"

	// Payment (402)
	CodePaymentDeclined Code = "PAYMENT_DECLINED"

	// Authorization (403)
	CodeForbidden Code = "FORBIDDEN"

	// Missing (404)
	CodeProductNotFound  Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound    Code = "ORDER_NOT_FOUND"
	CodeUserNotFound     Code = "USER_NOT_FOUND"
	CodeCategoryNotFound Code = "CATEGORY_NOT_FOUND"
	CodeAddressNotFound  Code = "ADDRESS_NOT_FOUND"

	// Conflict (409)
	CodeDuplicateEmail        Code = "DUPLICATE_EMAIL"
	CodeVersionConflict       Code = "VERSION_CONFLICT"
	CodeWishlistDuplicate     Code = "WISHLIST_DUPLICATE"
	CodeCategoryHasProducts   Code = "CATEGORY_HAS_PRODUCTS"
	CodeOutOfStock            Code = "OUT_OF_STOCK"
	CodeInsufficientStock     Code = "INSUFFICIENT_STOCK"
	CodeOrderAlreadyCompleted Code = "ORDER_ALREADY_COMPLETED"
	CodeOrderAlreadyCancelled Code = "ORDER_ALREADY_CANCELLED"
	CodeOrderAlreadyRefunded  Code = "ORDER_ALREADY_REFUNDED"

	// Consumed token (410)
	CodeVerificationTokenExpired Code = "VERIFICATION_TOKEN_EXPIRED"
	CodeVerificationTokenUsed    Code = "VERIFICATION_TOKEN_USED"

	// Semantic (422)
	CodeOrderNotCancelled            Code = "ORDER_NOT_CANCELLED"
	CodeRefundTransactionNotFound    Code = "REFUND_TRANSACTION_NOT_FOUND"
	CodeInvalidOrderStatusTransition Code = "INVALID_ORDER_STATUS_TRANSITION"

	// Locked (423)
	CodeAccountLocked Code = "ACCOUNT_LOCKED"

	// Gateway (504)
	CodePaymentTimeout Code = "PAYMENT_TIMEOUT"

	// Fallback (500)
	CodeInternal Code = "INTERNAL_SERVER_ERROR"
)

// Error is a typed failure. Fields optionally name the offending inputs.
type Error struct {
	Code    Code
	Message string
	Fields  []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by code, so errors.Is(err, sentinel) works for any *Error
// sentinel regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithFields attaches input field names and returns the error for chaining.
func (e *Error) WithFields(fields ...string) *Error {
	e.Fields = append(e.Fields, fields...)
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err as the cause while presenting code/message at the boundary.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the failure code, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps a failure code to its HTTP status line.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidationError, CodeInvalidEmail, CodeInvalidPassword,
		CodeInvalidAddressFields, CodeCartEmpty, CodeUnsupportedImageFormat,
		CodeImageLimitExceeded, CodeAddressBookLimitExceeded:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeTokenExpired, CodeInvalidToken,
		CodeInvalidRefreshToken:
		return http.StatusUnauthorized
	case CodePaymentDeclined:
		return http.StatusPaymentRequired
	case CodeForbidden:
		return http.StatusForbidden
	case CodeDuplicateEmail, CodeVersionConflict, CodeWishlistDuplicate,
		CodeCategoryHasProducts, CodeOutOfStock, CodeInsufficientStock,
		CodeOrderAlreadyCompleted, CodeOrderAlreadyCancelled,
		CodeOrderAlreadyRefunded:
		return http.StatusConflict
	case CodeVerificationTokenExpired, CodeVerificationTokenUsed:
		return http.StatusGone
	case CodeOrderNotCancelled, CodeRefundTransactionNotFound,
		CodeInvalidOrderStatusTransition:
		return http.StatusUnprocessableEntity
	case CodeAccountLocked:
		return http.StatusLocked
	case CodePaymentTimeout:
		return http.StatusGatewayTimeout
	case CodeInternal:
		return http.StatusInternalServerError
	}
	// REFUND_TRANSACTION_NOT_FOUND is handled above; every other *_NOT_FOUND
	// is a plain missing resource.
	if strings.HasSuffix(string(code), "_NOT_FOUND") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// StatusOf maps an arbitrary error to its HTTP status line.
func StatusOf(err error) int {
	return HTTPStatus(CodeOf(err))
}
