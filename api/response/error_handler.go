/*
Package response API 层统一响应处理

错误响应不暴露内部细节，所有响应携带 RequestID 用于日志追踪。
HTTP 状态码由 pkg/errors 的错误码决定；意图结果（Outcome）不是错误，
总是以 200 返回，业务状态在 data.status 中。

	成功: { success: true, data: {...}, message: "...", code: 200, request_id: "..." }
	失败: { success: false, error: "ERROR_CODE", message: "用户可见消息", code: 4xx/5xx, request_id: "..." }
*/
package response

import (
	stdErrors "errors"
	"runtime"

	"factoryops/domain/shared"
	"factoryops/pkg/errors"
	"factoryops/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestID 返回中间件生成的请求 ID
func GetRequestID(c *gin.Context) string {
	return getRequestID(c)
}

func captureStack(skip int) []string {
	var pcs [16]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		frame, more := frames.Next()
		if frame.Function != "" {
			stack = append(stack, frame.Function)
		}
		if !more {
			break
		}
	}
	return stack
}

// HandleError 处理参数绑定等框架层错误。
func HandleError(c *gin.Context, err error, message string, code int) {
	requestID := getRequestID(c)

	logger.Warn(message,
		zap.String("request_id", requestID),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Int("status", code),
		zap.Error(err))

	c.AbortWithStatusJSON(code, &Response{
		Success:   false,
		Error:     string(errors.CodeBadRequest),
		Message:   message,
		Code:      code,
		RequestID: requestID,
	})
}

// HandleAppError 按错误码映射 HTTP 状态码，内部错误只记录日志。
func HandleAppError(c *gin.Context, err error) {
	requestID := getRequestID(c)
	appErr := errors.MapDomainError(err)
	httpStatus := appErr.HTTPStatusCode()

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("error_code", string(appErr.Code)),
		zap.Int("http_status", httpStatus),
	}
	if appErr.Err != nil {
		fields = append(fields, zap.Error(appErr.Err))
	}

	if httpStatus >= 500 {
		fields = append(fields, zap.Strings("stack", extractStack(err)))
		logger.Error(appErr.Message, fields...)
	} else {
		logger.Warn(appErr.Message, fields...)
	}

	c.AbortWithStatusJSON(httpStatus, &Response{
		Success:   false,
		Error:     string(appErr.Code),
		Message:   appErr.Message,
		Code:      httpStatus,
		RequestID: requestID,
	})
}

// extractStack 优先取错误发生点的堆栈，否则取处理点
func extractStack(err error) []string {
	var stacker shared.Stacker
	if stdErrors.As(err, &stacker) {
		if stack := stacker.Stack(); len(stack) > 0 {
			return stack
		}
	}
	return captureStack(4)
}
