package wallet

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fitclass/internal/api"
	"fitclass/internal/auth"
	"fitclass/internal/metrics"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// GetWallet godoc
// @Summary      Get my wallet
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Wallet
// @Failure      500  {object}  api.ErrorResponse
// @Router       /wallet [get]
func (h *Handler) GetWallet(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	w, err := h.repo.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// TopUp godoc
// @Summary      Top up my wallet
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      TopUpRequest  true  "Amount in cents"
// @Success      200      {object}  Wallet
// @Failure      400      {object}  api.ErrorResponse
// @Router       /wallet/topup [post]
func (h *Handler) TopUp(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	if err := h.repo.AddTransaction(c.Request.Context(), userID, req.AmountCents, TxTopUp); err != nil {
		api.WriteError(c, err)
		return
	}
	metrics.WalletTopUpsTotal.Inc()

	w, err := h.repo.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListTransactions godoc
// @Summary      List wallet transactions
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size"    default(20)
// @Param        offset  query     int  false  "Page offset"  default(0)
// @Success      200     {array}   Transaction
// @Failure      500     {object}  api.ErrorResponse
// @Router       /wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	txs, err := h.repo.GetTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
