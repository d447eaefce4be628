package schedule

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

// CreateTemplate godoc
// @Summary      Create class template
// @Tags         schedules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateTemplateRequest  true  "Template payload"
// @Success      201      {object}  ClassTemplate
// @Failure      400      {object}  api.ErrorResponse
// @Router       /trainer/templates [post]
func (h *Handler) CreateTemplate(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	tpl, err := h.service.CreateTemplate(c.Request.Context(), trainerID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// PublishSlot godoc
// @Summary      Publish a single class
// @Description  Publishes one bookable occurrence of a template.
// @Tags         schedules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PublishSlotRequest  true  "Slot payload"
// @Success      201      {object}  Schedule
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /trainer/schedules [post]
func (h *Handler) PublishSlot(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	var req PublishSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	sched, err := h.service.PublishSlot(c.Request.Context(), trainerID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sched)
}

// PublishSeries godoc
// @Summary      Publish a series
// @Description  Publishes a routine series or a curriculum program over a date range.
// @Tags         schedules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PublishSeriesRequest  true  "Series payload"
// @Success      201      {object}  RecurrenceGroup
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /trainer/series [post]
func (h *Handler) PublishSeries(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	var req PublishSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	group, classes, err := h.service.PublishSeries(c.Request.Context(), trainerID, req)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group, "schedules": classes})
}

// CloseSchedule godoc
// @Summary      Close a class to new bookings
// @Tags         schedules
// @Security     BearerAuth
// @Produce      json
// @Param        scheduleID  path      int  true  "Schedule ID"
// @Success      200         {object}  api.MessageResponse
// @Failure      404         {object}  api.ErrorResponse
// @Failure      422         {object}  api.ErrorResponse
// @Router       /trainer/schedules/{scheduleID}/close [post]
func (h *Handler) CloseSchedule(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	scheduleID, err := strconv.Atoi(c.Param("scheduleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid schedule id"})
		return
	}

	if err := h.service.CloseSchedule(c.Request.Context(), trainerID, scheduleID); err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "schedule closed"})
}

// ListOpenSlots godoc
// @Summary      List bookable classes
// @Tags         schedules
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   ScheduleWithTemplate
// @Failure      500  {object}  api.ErrorResponse
// @Router       /schedules [get]
func (h *Handler) ListOpenSlots(c *gin.Context) {
	slots, err := h.service.ListOpenSlots(c.Request.Context(), time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// GetSchedule godoc
// @Summary      Get one class
// @Tags         schedules
// @Security     BearerAuth
// @Produce      json
// @Param        scheduleID  path      int  true  "Schedule ID"
// @Success      200         {object}  Schedule
// @Failure      404         {object}  api.ErrorResponse
// @Router       /schedules/{scheduleID} [get]
func (h *Handler) GetSchedule(c *gin.Context) {
	scheduleID, err := strconv.Atoi(c.Param("scheduleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid schedule id"})
		return
	}

	sched, err := h.service.GetSchedule(c.Request.Context(), scheduleID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// GetGroup godoc
// @Summary      Get a series with its classes
// @Tags         schedules
// @Security     BearerAuth
// @Produce      json
// @Param        groupID  path      int  true  "Group ID"
// @Success      200      {object}  gin.H
// @Failure      404      {object}  api.ErrorResponse
// @Router       /groups/{groupID} [get]
func (h *Handler) GetGroup(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("groupID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid group id"})
		return
	}

	group, err := h.service.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	classes, err := h.service.ListGroupSchedules(c.Request.Context(), groupID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group, "schedules": classes})
}
