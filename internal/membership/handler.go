package membership

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Purchase godoc
// @Summary      Buy a membership, session pack or trial
// @Description  Debits the wallet and activates the purchase in one step.
// @Tags         memberships
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PurchaseRequest  true  "Purchase payload"
// @Success      201      {object}  Purchase
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /purchases [post]
func (h *Handler) Purchase(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	p, err := h.service.Purchase(c.Request.Context(), memberID, req, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// CancelPurchase godoc
// @Summary      Cancel a purchase for a partial refund
// @Description  Refund is pro-rated by elapsed days for memberships and by unused sessions for packs.
// @Tags         memberships
// @Security     BearerAuth
// @Produce      json
// @Param        purchaseID  path      int  true  "Purchase ID"
// @Success      200         {object}  RefundResponse
// @Failure      403         {object}  api.ErrorResponse
// @Failure      422         {object}  api.ErrorResponse
// @Router       /purchases/{purchaseID}/cancel [post]
func (h *Handler) CancelPurchase(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	purchaseID, err := strconv.Atoi(c.Param("purchaseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid purchase id"})
		return
	}

	refund, err := h.service.CancelPurchase(c.Request.Context(), memberID, purchaseID, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

// ListPurchases godoc
// @Summary      List my purchases
// @Tags         memberships
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Purchase
// @Failure      500  {object}  api.ErrorResponse
// @Router       /purchases [get]
func (h *Handler) ListPurchases(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	purchases, err := h.service.ListPurchases(c.Request.Context(), memberID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}
