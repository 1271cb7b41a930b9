package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/util"
	"Storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imService service.IMService
}

func NewIMHandler(imService service.IMService) *IMHandler {
	return &IMHandler{imService: imService}
}

// GetConversationList 读取会话列表，不访问后端
func (s *IMHandler) GetConversationList(c *gin.Context) {
	response.Success(c, dto.ConversationListDTO{
		Conversations: s.imService.GetConversationList(),
		TotalUnread:   s.imService.TotalUnread(),
	})
}

// SyncConversations 从后端同步会话列表
func (s *IMHandler) SyncConversations(c *gin.Context) {
	if err := s.imService.SyncConversations(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	s.GetConversationList(c)
}

// GetConversation 单个会话
func (s *IMHandler) GetConversation(c *gin.Context) {
	conv, err := s.imService.GetConversation(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, conv)
}

// OpenConversation 视图打开会话
func (s *IMHandler) OpenConversation(c *gin.Context) {
	page, err := s.imService.OpenConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.MessagePageDTO{MessagePage: page, Open: true})
}

// CloseConversation 视图关闭会话
func (s *IMHandler) CloseConversation(c *gin.Context) {
	s.imService.CloseConversation(c.Param("id"))
	response.Success(c, nil)
}

// GetMessages 读取已缓存的消息
func (s *IMHandler) GetMessages(c *gin.Context) {
	response.Success(c, s.imService.GetMessages(c.Param("id")))
}

// LoadOlder 拉取更早的历史消息
func (s *IMHandler) LoadOlder(c *gin.Context) {
	page, err := s.imService.LoadOlder(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, page)
}

// SendMessage 发送消息接口
func (s *IMHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}

	msg, err := s.imService.SendMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

// MarkAsRead 标记已读接口，后端失败不影响本地已读状态
func (s *IMHandler) MarkAsRead(c *gin.Context) {
	if err := s.imService.MarkAsRead(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
