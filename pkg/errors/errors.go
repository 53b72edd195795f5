package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound               = "NOT_FOUND"
	CodeBadRequest             = "BAD_REQUEST"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeEmptyMessage           = "EMPTY_MESSAGE"
	CodeAlreadySending         = "ALREADY_SENDING"
	CodeStoreWriteFailed       = "STORE_WRITE_FAILED"
	CodeStoreSubscribeFailed   = "STORE_SUBSCRIBE_FAILED"
	CodeNotificationSendFailed = "NOTIFICATION_SEND_FAILED"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    CodeTooManyRequests,
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

// Chat errors

func EmptyMessage() *AppError {
	return &AppError{
		Code:    CodeEmptyMessage,
		Message: "Message text is empty",
		Status:  http.StatusBadRequest,
	}
}

func AlreadySending() *AppError {
	return &AppError{
		Code:    CodeAlreadySending,
		Message: "A message is already being sent",
		Status:  http.StatusConflict,
	}
}

func StoreWriteFailed(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreWriteFailed,
		Message: fmt.Sprintf("Failed to %s", operation),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func StoreSubscribeFailed(subscription string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreSubscribeFailed,
		Message: fmt.Sprintf("Failed to subscribe to %s", subscription),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func NotificationSendFailed(err error) *AppError {
	return &AppError{
		Code:    CodeNotificationSendFailed,
		Message: "Failed to send message notification",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
