package response

import (
	"errors"
	"net/http"

	"vacation-rental-api/internal/domain"
)

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New 构造函数（保证 data 不为 null）
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

// OK 成功响应
func OK(data interface{}) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindInvalidIdentifier: http.StatusBadRequest,
	domain.KindInvalidTransition: http.StatusBadRequest,
	domain.KindInvalidStatus:     http.StatusBadRequest,
	domain.KindUnauthorized:      http.StatusUnauthorized,
	domain.KindForbidden:         http.StatusForbidden,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindConflict:          http.StatusConflict,
}

// FromError 领域错误 -> HTTP 状态 + 信封；server 错误只回通用文案
func FromError(err error) (int, Resp) {
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind == domain.KindServer {
		return http.StatusInternalServerError, Error(CodeServerError, "")
	}
	status, ok := kindStatus[de.Kind]
	if !ok {
		return http.StatusInternalServerError, Error(CodeServerError, "")
	}
	r := Error(status, de.Msg)
	if len(de.Fields) > 0 {
		r.Data = map[string]any{"fields": de.Fields}
	}
	return status, r
}
