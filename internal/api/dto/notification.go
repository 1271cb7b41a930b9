package dto

import "Storefront/internal/readmodel"

// NotificationListQuery 通知分页
type NotificationListQuery struct {
	Page  int `form:"page" validate:"omitempty,min=1"`
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// NotificationListDTO 通知列表
type NotificationListDTO struct {
	Notifications []readmodel.Notification `json:"notifications"`
	Pagination    *readmodel.Pagination    `json:"pagination,omitempty"`
}

// UnreadCountDTO 通知未读数，known 为 false 时尚未从服务端获取
type UnreadCountDTO struct {
	Count int64 `json:"count"`
	Known bool  `json:"known"`
}
