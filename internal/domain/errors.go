package domain

import (
	"errors"
	"strings"
)

// Kind 错误分类，传输层据此映射 HTTP 状态码
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidIdentifier Kind = "invalid_identifier"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidStatus     Kind = "invalid_status"
	KindServer            Kind = "server"
)

// FieldError 单个字段的校验失败
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type Error struct {
	Kind   Kind
	Msg    string
	Fields []FieldError
	Err    error // 内部原因，不对外暴露
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			names = append(names, f.Field)
		}
		return e.Msg + " (" + strings.Join(names, ", ") + ")"
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrInvalidRange       = &Error{Kind: KindValidation, Msg: "check-in date must be before check-out date"}
	ErrPastDate           = &Error{Kind: KindValidation, Msg: "check-in date cannot be in the past"}
	ErrCapacityExceeded   = &Error{Kind: KindValidation, Msg: "guests exceed property capacity"}
	ErrBookingConflict    = &Error{Kind: KindConflict, Msg: "property is not available for the selected dates"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Msg: "booking status transition not allowed"}
	ErrInvalidStatus      = &Error{Kind: KindInvalidStatus, Msg: "invalid booking status"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Msg: "invalid email or password"}
	ErrEmailTaken         = &Error{Kind: KindConflict, Msg: "email already registered"}
)

func Validation(fields ...FieldError) error {
	return &Error{Kind: KindValidation, Msg: "validation failed", Fields: fields}
}

func InvalidIdentifier(what string) error {
	return &Error{Kind: KindInvalidIdentifier, Msg: "invalid " + what + " id"}
}

func NotFound(what string) error { return &Error{Kind: KindNotFound, Msg: what + " not found"} }

func Forbidden(msg string) error {
	if msg == "" {
		msg = "forbidden"
	}
	return &Error{Kind: KindForbidden, Msg: msg}
}

func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }

// Internal 存储/外部依赖失败，原因只进日志
func Internal(op string, err error) error {
	return &Error{Kind: KindServer, Msg: op, Err: err}
}

// KindOf 非领域错误一律视为 server
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindServer
}
