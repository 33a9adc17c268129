package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"flashdeal/dealhub/internal/cache"
	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/service"
	"flashdeal/dealhub/pkg/response"
)

type ShopHandler struct {
	shopService service.ShopService
}

func NewShopHandler(shopService service.ShopService) *ShopHandler {
	return &ShopHandler{shopService: shopService}
}

func (h *ShopHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid shop id")
		return
	}

	shop, err := h.shopService.GetByID(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrShopNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, cache.ErrCacheBusy):
			response.TooMany(c, "shop data is being rebuilt, try again")
		default:
			response.InternalError(c, "failed to load shop")
		}
		return
	}
	response.Success(c, shop)
}

func (h *ShopHandler) Update(c *gin.Context) {
	var shop model.Shop
	if err := c.ShouldBindJSON(&shop); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if shop.ID == 0 {
		response.BadRequest(c, "shop id is required")
		return
	}

	if err := h.shopService.Update(c.Request.Context(), &shop); err != nil {
		response.InternalError(c, "failed to update shop")
		return
	}
	response.Success(c, nil)
}

func (h *ShopHandler) ListTypes(c *gin.Context) {
	types, err := h.shopService.ListTypes(c.Request.Context())
	if err != nil {
		response.InternalError(c, "failed to load shop types")
		return
	}
	response.Success(c, types)
}
