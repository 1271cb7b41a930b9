package handler

import (
	"Storefront/internal/api/dto"
	"Storefront/internal/pkg/response"
	"Storefront/internal/pkg/util"
	"Storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type WishlistHandler struct {
	wishlistService service.WishlistService
}

func NewWishlistHandler(s service.WishlistService) *WishlistHandler {
	return &WishlistHandler{wishlistService: s}
}

// GetStatus 单个商品的收藏状态，未知时登记批量查询，结果通过 /api/ws 推送
func (h *WishlistHandler) GetStatus(c *gin.Context) {
	productID := c.Param("productId")
	response.Success(c, dto.WishlistStatusDTO{
		ProductID:  productID,
		InWishlist: h.wishlistService.IsInWishlist(productID),
	})
}

// GetBatch 商品列表页一次登记多个商品
func (h *WishlistHandler) GetBatch(c *gin.Context) {
	var req dto.WishlistBatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.WishlistBatchDTO{Items: h.wishlistService.Prefetch(req.ProductIDs)})
}

// Toggle 切换收藏状态，失败时状态已恢复
func (h *WishlistHandler) Toggle(c *gin.Context) {
	productID := c.Param("productId")
	m, err := h.wishlistService.ToggleWishlist(c.Request.Context(), productID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.WishlistStatusDTO{ProductID: productID, InWishlist: m})
}
