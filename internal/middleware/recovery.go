package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/pkg/response"
	"go.uber.org/zap"
)

// Recovery 恢复panic并返回统一的500响应
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// 客户端断开连接时无法再写响应
				if isBrokenPipe(err) || c.Request.Context().Err() != nil {
					log.Warn("client_disconnected",
						zap.Any("error", err),
						zap.String("path", c.Request.URL.Path),
					)
					c.Abort()
					return
				}

				log.Error("system_error",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.String("ip", c.ClientIP()),
				)
				response.Error(c, http.StatusInternalServerError, "服务器内部错误", nil)
				c.Abort()
			}
		}()
		c.Next()
	}
}

// isBrokenPipe 检查是否是连接中断错误
func isBrokenPipe(err interface{}) bool {
	e, ok := err.(error)
	if !ok {
		return false
	}
	var se *os.SyscallError
	var ne *net.OpError
	if !errors.As(e, &ne) || !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
