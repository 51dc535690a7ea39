package service

import (
	"errors"
	"fmt"
)

// ErrorKind 业务错误类别，控制器据此映射HTTP状态码
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindConflict   ErrorKind = "conflict"
	KindInternal   ErrorKind = "internal"
)

// Error 业务错误，Message 可直接展示给调用方，Err 仅用于日志
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 返回错误类别，非业务错误视为内部错误
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind 判断错误类别
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func forbiddenError(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func conflictError(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

func internalError(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

var (
	// ErrRecordNotFound 记录库中不存在该记录
	ErrRecordNotFound = errors.New("记录不存在")
	// ErrSelfAlert 匹配提醒的接收人是调用者本人
	ErrSelfAlert = validationError("不能向自己发送匹配提醒")
	// ErrAlreadyDecided 匹配通知已经确认或否认
	ErrAlreadyDecided = conflictError("该匹配已处理，不再处于待确认状态")
)
