package controller

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nsxzhou1114/sighting-api/internal/middleware"
	"github.com/nsxzhou1114/sighting-api/internal/service"
	"github.com/nsxzhou1114/sighting-api/pkg/response"
	"go.uber.org/zap"
)

// currentUser 从上下文中获取用户ID，未登录时直接写401
func currentUser(c *gin.Context) (string, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		response.Unauthorized(c, "需要登录", nil)
		return "", false
	}
	return userID, true
}

// respondError 按服务层错误类型映射HTTP状态码
func respondError(c *gin.Context, log *zap.SugaredLogger, fallback string, err error) {
	var svcErr *service.Error
	message := fallback
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		message = svcErr.Message
	}

	switch service.KindOf(err) {
	case service.KindValidation:
		response.BadRequest(c, message, err)
	case service.KindNotFound:
		response.NotFound(c, message, err)
	case service.KindForbidden:
		response.Forbidden(c, message, err)
	case service.KindConflict:
		response.Conflict(c, message, err)
	default:
		log.Errorf("%s: %v", fallback, err)
		response.InternalServerError(c, fallback, err)
	}
}

// bindErrorMessage 将参数绑定错误转换为可读信息
func bindErrorMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "参数格式错误"
	}

	msgMap := map[string]string{
		"required": "不能为空",
		"min":      "不能小于%v",
		"max":      "不能大于%v",
	}

	// 通常只返回第一个错误
	first := errs[0]
	msg, ok := msgMap[first.Tag()]
	if !ok {
		msg = "验证失败"
	}
	if first.Param() != "" {
		msg = fmt.Sprintf(msg, first.Param())
	}
	return first.Field() + msg
}

// HealthCheck 健康检查
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
