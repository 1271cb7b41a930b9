package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/util"
	"Storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(s service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: s}
}

// Login 以视图提交的令牌建立会话
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	sess, err := h.sessionService.Login(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toSessionDTO(sess))
}

// Refresh 替换令牌与权限快照
func (h *SessionHandler) Refresh(c *gin.Context) {
	var req dto.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	sess, err := h.sessionService.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, toSessionDTO(sess))
}

// Logout 结束会话
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessionService.Logout(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Current 当前会话信息
func (h *SessionHandler) Current(c *gin.Context) {
	sess, ok := h.sessionService.Current()
	if !ok {
		response.Error(c, service.ErrNotLoggedIn)
		return
	}
	response.Success(c, toSessionDTO(sess))
}

func toSessionDTO(sess *service.Session) *dto.SessionDTO {
	role, ok := sess.Capabilities.Role()
	res := &dto.SessionDTO{
		UserID:      sess.UserID,
		Permissions: sess.Capabilities.Permissions(),
	}
	if ok {
		res.Role = &role
	}
	if sess.Claims != nil && sess.Claims.ExpiresAt != nil {
		exp := sess.Claims.ExpiresAt.Time
		res.ExpiresAt = &exp
	}
	return res
}
