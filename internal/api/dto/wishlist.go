package dto

import "Storefront/internal/readmodel"

// WishlistBatchReq 批量查询收藏状态
type WishlistBatchReq struct {
	ProductIDs []string `json:"productIds" validate:"required,min=1,max=200,dive,required"`
}

// WishlistStatusDTO 单个商品的收藏状态，未知时 inWishlist 为 null
type WishlistStatusDTO struct {
	ProductID  string               `json:"productId"`
	InWishlist readmodel.Membership `json:"inWishlist"`
}

// WishlistBatchDTO 批量收藏状态
type WishlistBatchDTO struct {
	Items map[string]readmodel.Membership `json:"items"`
}
