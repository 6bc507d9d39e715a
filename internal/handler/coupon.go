package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"checkout-core/internal/apperr"
	"checkout-core/internal/dto"
	"checkout-core/internal/model"
	"checkout-core/internal/service"
)

type CouponHandler struct {
	couponService service.CouponService
}

func NewCouponHandler(couponService service.CouponService) *CouponHandler {
	return &CouponHandler{couponService: couponService}
}

func (h *CouponHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateCouponRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	coupon, err := couponFromRequest(&req)
	if err != nil {
		return err
	}

	if err := h.couponService.Create(ctx, coupon); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, coupon)
}

func couponFromRequest(req *dto.CreateCouponRequest) (*model.Coupon, error) {
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		return nil, apperr.Validation("invalid_value", "coupon value is not a valid decimal")
	}

	minOrder := decimal.Zero
	if req.MinOrderAmount != "" {
		if minOrder, err = decimal.NewFromString(req.MinOrderAmount); err != nil {
			return nil, apperr.Validation("invalid_min_order_amount", "min order amount is not a valid decimal")
		}
	}

	var maxDiscount *decimal.Decimal
	if req.MaxDiscountAmount != nil {
		parsed, err := decimal.NewFromString(*req.MaxDiscountAmount)
		if err != nil {
			return nil, apperr.Validation("invalid_max_discount_amount", "max discount amount is not a valid decimal")
		}
		maxDiscount = &parsed
	}

	coupon := &model.Coupon{
		Code:              req.Code,
		Type:              model.CouponType(req.Type),
		Value:             value,
		MinOrderAmount:    minOrder,
		MaxDiscountAmount: maxDiscount,
		UsageLimit:        req.UsageLimit,
		UserUsageLimit:    req.UserUsageLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          true,
	}
	for _, productID := range req.Products {
		coupon.Products = append(coupon.Products, model.CouponProduct{ProductID: productID})
	}
	for _, productID := range req.ExcludedProducts {
		coupon.Products = append(coupon.Products, model.CouponProduct{ProductID: productID, Excluded: true})
	}
	for _, category := range req.Categories {
		coupon.Categories = append(coupon.Categories, model.CouponCategory{Category: category})
	}
	return coupon, nil
}
