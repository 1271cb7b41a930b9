package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/util"
	"Storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	defaultNotificationPage  = 1
	defaultNotificationLimit = 20
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(s service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: s}
}

// GetNotificationList 获取通知列表
func (h *NotificationHandler) GetNotificationList(c *gin.Context) {
	var q dto.NotificationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&q); err != nil {
		response.Error(c, err)
		return
	}
	if q.Page == 0 {
		q.Page = defaultNotificationPage
	}
	if q.Limit == 0 {
		q.Limit = defaultNotificationLimit
	}

	list, pagination, err := h.notificationService.GetNotificationList(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.NotificationListDTO{Notifications: list, Pagination: pagination})
}

// GetRecent 最近收到的通知，不访问后端
func (h *NotificationHandler) GetRecent(c *gin.Context) {
	response.Success(c, dto.NotificationListDTO{Notifications: h.notificationService.RecentNotifications()})
}

// GetUnreadCount 获取未读数
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, known := h.notificationService.GetUnreadCount()
	response.Success(c, dto.UnreadCountDTO{Count: count, Known: known})
}

// MarkAllRead 一键已读
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notificationService.MarkAllRead(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
