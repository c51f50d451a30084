package errors

import (
	"errors"
	"fmt"
	"net/http"

	"factoryops/domain/intent"
	"factoryops/domain/shared"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 通用错误码
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeBadRequest     ErrorCode = "BAD_REQUEST"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConflict       ErrorCode = "CONFLICT"
	CodeTooManyRequest ErrorCode = "TOO_MANY_REQUESTS"
	CodeValidation     ErrorCode = "VALIDATION_ERROR"
	CodeUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"

	// 意图引擎错误码
	CodeUnknownEntityType    ErrorCode = "UNKNOWN_ENTITY_TYPE"
	CodeAmbiguousReference   ErrorCode = "AMBIGUOUS_REFERENCE"
	CodeEntityNotFound       ErrorCode = "ENTITY_NOT_FOUND"
	CodeValidationRejected   ErrorCode = "VALIDATION_REJECTED"
	CodeTokenNotFound        ErrorCode = "TOKEN_NOT_FOUND"
	CodeTokenExpired         ErrorCode = "TOKEN_EXPIRED"
	CodeTokenAlreadyUsed     ErrorCode = "TOKEN_ALREADY_USED"
	CodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	CodeInvalidFieldValue    ErrorCode = "INVALID_FIELD_VALUE"
	CodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode 返回对应的HTTP状态码
func (e *AppError) HTTPStatusCode() int {
	switch e.Code {
	case CodeBadRequest, CodeValidation, CodeMissingRequiredField, CodeInvalidFieldValue,
		CodeAmbiguousReference, CodeUnknownEntityType:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeEntityNotFound, CodeTokenNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeTokenAlreadyUsed:
		return http.StatusConflict
	case CodeTokenExpired:
		return http.StatusGone
	case CodeTooManyRequest:
		return http.StatusTooManyRequests
	case CodeValidationRejected, CodeUnsupportedOperation:
		return http.StatusUnprocessableEntity
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New 创建新错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 常用错误构造函数

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

func TooManyRequests(message string) *AppError {
	return New(CodeTooManyRequest, message)
}

func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

func Unavailable(message string) *AppError {
	return New(CodeUnavailable, message)
}

// Is 检查是否为特定错误码
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// 如果不是 AppError，包装为内部错误
	return Wrap(err, CodeInternal, "internal server error")
}

// domainCodes 领域哨兵错误到错误码的映射，按顺序匹配
var domainCodes = []struct {
	sentinel error
	code     ErrorCode
}{
	{intent.ErrUnknownEntityType, CodeUnknownEntityType},
	{intent.ErrAmbiguousReference, CodeAmbiguousReference},
	{intent.ErrValidationRejected, CodeValidationRejected},
	{intent.ErrTokenNotFound, CodeTokenNotFound},
	{intent.ErrTokenExpired, CodeTokenExpired},
	{intent.ErrTokenAlreadyUsed, CodeTokenAlreadyUsed},
	{intent.ErrMissingRequiredField, CodeMissingRequiredField},
	{intent.ErrInvalidFieldValue, CodeInvalidFieldValue},
	{intent.ErrUnsupportedOperation, CodeUnsupportedOperation},
	{intent.ErrInternalFailure, CodeInternal},
	{intent.ErrNotFound, CodeEntityNotFound},
	{shared.ErrConflict, CodeConflict},
	{shared.ErrInvalidInput, CodeBadRequest},
	{shared.ErrUnavailable, CodeUnavailable},
}

// Code 返回领域错误对应的错误码，未知错误为 CodeInternal
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	for _, m := range domainCodes {
		if errors.Is(err, m.sentinel) {
			return m.code
		}
	}
	return CodeInternal
}

// MapDomainError 将领域错误映射为应用错误
// 引擎错误的消息可以直接展示；内部错误与未知错误的消息被替换，原错误保留在 Err 中
func MapDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	// 已经是 AppError
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	code := Code(err)
	switch code {
	case CodeInternal:
		if errors.Is(err, intent.ErrInternalFailure) {
			return Wrap(err, code, err.Error())
		}
		return Wrap(err, code, "internal server error")
	case CodeUnavailable:
		return Wrap(err, code, "a backing service is unavailable, please try again later")
	}
	return Wrap(err, code, err.Error())
}
