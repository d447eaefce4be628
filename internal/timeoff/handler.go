package timeoff

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

// Register godoc
// @Summary      Register time off
// @Description  Blocks an interval of the trainer's calendar. Rejected if any class or other time off overlaps it.
// @Tags         timeoff
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "Interval"
// @Success      201      {object}  TimeOff
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /trainer/time-offs [post]
func (h *Handler) Register(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "start_time must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "end_time must be RFC3339"})
		return
	}

	to, err := h.service.Register(c.Request.Context(), trainerID, start, end)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, to)
}

// Cancel godoc
// @Summary      Cancel time off
// @Tags         timeoff
// @Security     BearerAuth
// @Produce      json
// @Param        timeOffID  path      int  true  "Time off ID"
// @Success      200        {object}  api.MessageResponse
// @Failure      403        {object}  api.ErrorResponse
// @Failure      422        {object}  api.ErrorResponse
// @Router       /trainer/time-offs/{timeOffID}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	timeOffID, err := strconv.Atoi(c.Param("timeOffID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid time off id"})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), trainerID, timeOffID); err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "time off cancelled"})
}

// List godoc
// @Summary      List my time offs
// @Tags         timeoff
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   TimeOff
// @Failure      500  {object}  api.ErrorResponse
// @Router       /trainer/time-offs [get]
func (h *Handler) List(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	timeOffs, err := h.service.ListByTrainer(c.Request.Context(), trainerID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeOffs)
}
