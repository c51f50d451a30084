package response

import (
	"net/http"

	"factoryops/domain/intent"

	"github.com/gin-gonic/gin"
)

func HandleSuccess(c *gin.Context, data interface{}, message string) {
	requestID := getRequestID(c)
	c.JSON(http.StatusOK, &Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Code:      http.StatusOK,
		RequestID: requestID,
	})
}

// HandleOutcome 意图结果总是 200；success 表示系统是否处于请求的状态
func HandleOutcome(c *gin.Context, o intent.Outcome) {
	requestID := getRequestID(c)
	c.JSON(http.StatusOK, &Response{
		Success:   o.Succeeded(),
		Data:      o,
		Error:     o.ErrorCode,
		Message:   o.Message,
		Code:      http.StatusOK,
		RequestID: requestID,
	})
}
