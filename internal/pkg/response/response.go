package response

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/rest"
	"Storefront/internal/service"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	Ok                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
	BadGateway          = 502
)

// Success 成功返回封装
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, dto.Response{
		Code:    Ok,
		Message: "success",
		Data:    data,
	})
}

// Fail 失败返回封装
func Fail(c *gin.Context, businessCode int, message string) {
	c.JSON(http.StatusOK, dto.Response{
		Code:    businessCode,
		Message: message,
		Data:    nil,
	})
}

// Error 处理错误
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		Fail(c, BadRequest, "参数错误")
		return
	}

	var unmarshalTypeError *json.UnmarshalTypeError
	if errors.As(err, &unmarshalTypeError) {
		Fail(c, BadRequest, "Json错误")
		return
	}

	for _, ec := range service.ErrorCodes {
		if errors.Is(err, ec.Err) {
			Fail(c, ec.Code, err.Error())
			return
		}
	}

	// 后端拒绝会话令牌时视图需要重新登录，其余后端错误按网关错误返回
	var statusErr *rest.StatusError
	if errors.As(err, &statusErr) {
		if errors.Is(err, rest.ErrUnauthorized) {
			Fail(c, Unauthorized, statusErr.Error())
			return
		}
		log.WarnContext(c.Request.Context(), "Backend Error", "status", statusErr.Status, "err", err)
		Fail(c, BadGateway, statusErr.Error())
		return
	}

	log.ErrorContext(c.Request.Context(), "Error", "err", err)
	Fail(c, InternalServerError, service.UnExpectedError.Error())
}
