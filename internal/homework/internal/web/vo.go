package web

import "github.com/hanmo/hanmo/internal/homework/internal/errs"

// Result 统一响应信封。code 为 "OK" 或稳定错误码，
// 客户端据此区分可重试与终态失败。
type Result struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(data any, message string) Result {
	return Result{Code: "OK", Message: message, Data: data}
}

func fail(code errs.ErrorCode, message string) Result {
	if message == "" {
		message = code.Msg
	}
	return Result{Code: code.Code, Message: message}
}
