package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
)

// ErrorCode is the wire-stable failure class carried by every error envelope.
type ErrorCode string

const (
	CodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	CodeUnknownError    ErrorCode = "UNKNOWN_ERROR"
)

// Valid reports whether c belongs to the closed code set.
func (c ErrorCode) Valid() bool {
	switch c {
	case CodeUnauthorized, CodeValidationError, CodeNotFound, CodeDatabaseError, CodeUnknownError:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a code onto the status used when the envelope travels over HTTP.
func HTTPStatus(c ErrorCode) int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FieldError attributes a validation failure to one named input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the failure half of a Result.
//
// ValidationErrors is nil unless explicitly supplied; the JSON key is present
// exactly when the slice is non-nil.
type Error struct {
	Message          string       `json:"error"`
	Code             ErrorCode    `json:"code"`
	ValidationErrors []FieldError `json:"validationErrors,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MarshalJSON keeps the validationErrors key whenever the slice is non-nil,
// including an explicitly supplied empty slice.
func (e Error) MarshalJSON() ([]byte, error) {
	type wire struct {
		Message          string        `json:"error"`
		Code             ErrorCode     `json:"code"`
		ValidationErrors *[]FieldError `json:"validationErrors,omitempty"`
	}
	w := wire{Message: e.Message, Code: e.Code}
	if e.ValidationErrors != nil {
		errs := e.ValidationErrors
		w.ValidationErrors = &errs
	}
	return json.Marshal(w)
}

// NewError builds an error envelope. Field errors are kept only for
// CodeValidationError; calling without any leaves the key absent.
func NewError(message string, code ErrorCode, validationErrors ...FieldError) *Error {
	e := &Error{Message: message, Code: code}
	if code == CodeValidationError && validationErrors != nil {
		e.ValidationErrors = append(make([]FieldError, 0, len(validationErrors)), validationErrors...)
	}
	return e
}

func Unauthorized(message string) *Error { return NewError(message, CodeUnauthorized) }

func NotFound(message string) *Error { return NewError(message, CodeNotFound) }

func Invalid(message string, fields ...FieldError) *Error {
	return NewError(message, CodeValidationError, fields...)
}

func DatabaseFailure(message string) *Error { return NewError(message, CodeDatabaseError) }

func Unknown(message string) *Error { return NewError(message, CodeUnknownError) }

// Result is the tagged success/error union returned by every action.
// The zero value is not a valid result; build one with Success or Failure.
type Result[T any] struct {
	data T
	err  *Error
}

type successEnvelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

// Success wraps data in a successful result.
func Success[T any](data T) Result[T] {
	return Result[T]{data: data}
}

// Failure wraps e in a failed result. A nil e becomes an UNKNOWN_ERROR so a
// failure can never be mistaken for a success.
func Failure[T any](e *Error) Result[T] {
	if e == nil {
		e = Unknown("Something went wrong")
	}
	return Result[T]{err: e}
}

func (r Result[T]) Ok() bool    { return r.err == nil }
func (r Result[T]) Data() T     { return r.data }
func (r Result[T]) Err() *Error { return r.err }

// Code returns the failure code, or "" for a success.
func (r Result[T]) Code() ErrorCode {
	if r.err == nil {
		return ""
	}
	return r.err.Code
}

func (r Result[T]) succeeded() bool { return r.err == nil }

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(*r.err)
	}
	return json.Marshal(successEnvelope[T]{Success: true, Data: r.data})
}

func (r *Result[T]) UnmarshalJSON(b []byte) error {
	var record map[string]any
	if err := json.Unmarshal(b, &record); err != nil {
		return err
	}
	switch {
	case IsSuccess(record):
		var env successEnvelope[T]
		if err := json.Unmarshal(b, &env); err != nil {
			return err
		}
		*r = Success(env.Data)
	case IsError(record):
		var e Error
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		*r = Failure[T](&e)
	default:
		return errors.New("action: payload is neither a success nor an error envelope")
	}
	return nil
}

// Decode parses a JSON envelope produced by Result.MarshalJSON.
func Decode[T any](b []byte) (Result[T], error) {
	var r Result[T]
	err := r.UnmarshalJSON(b)
	return r, err
}

// Match calls exactly one of the two branches.
func Match[T, R any](r Result[T], onSuccess func(T) R, onError func(*Error) R) R {
	if r.err != nil {
		return onError(r.err)
	}
	return onSuccess(r.data)
}

type outcome interface {
	succeeded() bool
}

// IsError reports whether x is an error envelope: a non-nil *Error, a failed
// Result, or a decoded record holding a string "error" key and a "code" key.
func IsError(x any) bool {
	if isNil(x) {
		return false
	}
	switch v := x.(type) {
	case *Error, Error:
		return true
	case outcome:
		return !v.succeeded()
	case map[string]any:
		_, isString := v["error"].(string)
		_, hasCode := v["code"]
		return isString && hasCode
	case json.RawMessage:
		return IsError(decodeRecord(v))
	case []byte:
		return IsError(decodeRecord(v))
	default:
		return false
	}
}

// IsSuccess reports whether x is a successful Result or a decoded record whose
// "success" key is the boolean true.
func IsSuccess(x any) bool {
	if isNil(x) {
		return false
	}
	switch v := x.(type) {
	case outcome:
		return v.succeeded()
	case map[string]any:
		ok, isBool := v["success"].(bool)
		return isBool && ok
	case json.RawMessage:
		return IsSuccess(decodeRecord(v))
	case []byte:
		return IsSuccess(decodeRecord(v))
	default:
		return false
	}
}

// isNil catches untyped nil and typed nil pointers such as a nil *Result,
// whose value methods would panic.
func isNil(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func decodeRecord(b []byte) any {
	var record map[string]any
	if err := json.Unmarshal(b, &record); err != nil {
		return nil
	}
	return record
}
