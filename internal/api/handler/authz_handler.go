package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/api/middleware"
	"Storefront/internal/pkg/capability"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/util"
	"Storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthzHandler 供视图查询权限决策，拒绝以 allowed=false 返回而不是错误
type AuthzHandler struct{}

func NewAuthzHandler() *AuthzHandler {
	return &AuthzHandler{}
}

// Check 组合权限检查
func (h *AuthzHandler) Check(c *gin.Context) {
	var req dto.PermissionCheckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	mode := capability.ModeAny
	if req.Mode == "all" {
		mode = capability.ModeAll
	}
	allowed := middleware.Capabilities(c).Check(mode, req.Permissions)
	response.Success(c, dto.DecisionDTO{Allowed: allowed})
}

// CanAccess 资源/动作检查
func (h *AuthzHandler) CanAccess(c *gin.Context) {
	var q dto.AccessQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&q); err != nil {
		response.Error(c, err)
		return
	}
	allowed := middleware.Capabilities(c).CanAccess(q.Resource, q.Action)
	response.Success(c, dto.DecisionDTO{Allowed: allowed})
}

// RoleAllowed 角色检查
func (h *AuthzHandler) RoleAllowed(c *gin.Context) {
	var req dto.RoleCheckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}
	allowed := middleware.Capabilities(c).RoleAllowed(req.Roles)
	response.Success(c, dto.DecisionDTO{Allowed: allowed})
}
