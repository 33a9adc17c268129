package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"flashdeal/dealhub/internal/model"
	"flashdeal/dealhub/internal/service"
	"flashdeal/dealhub/pkg/response"
)

type VoucherHandler struct {
	seckillService service.SeckillService
}

func NewVoucherHandler(seckillService service.SeckillService) *VoucherHandler {
	return &VoucherHandler{seckillService: seckillService}
}

type PublishSeckillRequest struct {
	ShopID      int64     `json:"shop_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	SubTitle    string    `json:"sub_title"`
	Rules       string    `json:"rules"`
	PayValue    int64     `json:"pay_value" binding:"required"`
	ActualValue int64     `json:"actual_value" binding:"required"`
	Stock       int       `json:"stock" binding:"required,gt=0"`
	BeginTime   time.Time `json:"begin_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
}

func (h *VoucherHandler) PublishSeckill(c *gin.Context) {
	var req PublishSeckillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !req.EndTime.After(req.BeginTime) {
		response.BadRequest(c, "end_time must be after begin_time")
		return
	}

	voucher := &model.Voucher{
		ShopID:      req.ShopID,
		Title:       req.Title,
		SubTitle:    req.SubTitle,
		Rules:       req.Rules,
		PayValue:    req.PayValue,
		ActualValue: req.ActualValue,
		Status:      model.VoucherStatusOnSale,
	}
	err := h.seckillService.PublishSeckillVoucher(c.Request.Context(), voucher, req.Stock, req.BeginTime, req.EndTime)
	if err != nil {
		response.InternalError(c, "failed to publish seckill voucher")
		return
	}
	response.Success(c, gin.H{"voucher_id": voucher.ID})
}

func (h *VoucherHandler) Seckill(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	voucherID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid voucher id")
		return
	}

	orderID, err := h.seckillService.SubmitPurchase(c.Request.Context(), userID, voucherID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVoucherNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, service.ErrSeckillNotStarted),
			errors.Is(err, service.ErrSeckillEnded):
			response.BadRequest(c, err.Error())
		case errors.Is(err, service.ErrOutOfStock):
			response.Conflict(c, err.Error())
		case errors.Is(err, service.ErrDuplicateOrder):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, "failed to submit purchase")
		}
		return
	}
	response.Success(c, gin.H{"order_id": orderID})
}
