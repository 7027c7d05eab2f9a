package ginx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error 带 HTTP 状态码的错误
type Error struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return "[" + e.Code + "] " + e.Message
}

// NewError 创建带状态码的错误
func NewError(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

// NotFound 返回 404 错误
func NotFound(code, message string) *Error {
	return NewError(http.StatusNotFound, code, message)
}

// errorResponse 错误响应
type errorResponse struct {
	Error *Error `json:"error"`
}

// renderResponse 以 JSON 渲染响应，字符串直接输出
func renderResponse(ctx *gin.Context, response any) {
	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}
	if s, ok := response.(string); ok {
		ctx.String(http.StatusOK, s)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// renderError 渲染错误响应
// err 链中有 *Error 时使用其中的状态码，否则使用 statusCode
func renderError(ctx *gin.Context, statusCode int, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatus > 0 {
			statusCode = apiErr.HTTPStatus
		}
		ctx.JSON(statusCode, errorResponse{Error: apiErr})
		return
	}

	ctx.JSON(statusCode, errorResponse{Error: &Error{
		Code:    http.StatusText(statusCode),
		Message: err.Error(),
	}})
}
