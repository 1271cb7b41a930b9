package util

import (
	"Storefront/internal/service"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateDTO 校验请求结构体，只返回第一个失败的字段，错误可用 errors.Is 匹配 ErrParamInvalid
func ValidateDTO(dto any) error {
	if err := validate.Struct(dto); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			firstError := vErrs[0]
			return fmt.Errorf("%w: 字段 [%s] 校验失败，规则 [%s]",
				service.ErrParamInvalid,
				firstError.Field(),
				firstError.Tag())
		}
		return fmt.Errorf("%w: %w", service.ErrParamInvalid, err)
	}
	return nil
}
