package booking

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

// BookPersonal godoc
// @Summary      Book a personal session
// @Description  Reserves a one-on-one slot in the trainer's free calendar. Free-trial sessions wait for the trainer's approval.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      BookPersonalRequest  true  "Booking payload"
// @Success      201      {object}  Booking
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /bookings/personal [post]
func (h *Handler) BookPersonal(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	var req BookPersonalRequest
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

	b, err := h.service.BookPersonal(c.Request.Context(), memberID, req.TrainerID, start, end, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// BookRoutine godoc
// @Summary      Book a class seat
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        scheduleID  path      int  true  "Schedule ID"
// @Success      201         {object}  Booking
// @Failure      400         {object}  api.ErrorResponse
// @Failure      409         {object}  api.ErrorResponse
// @Router       /schedules/{scheduleID}/book [post]
func (h *Handler) BookRoutine(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	scheduleID, err := strconv.Atoi(c.Param("scheduleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid schedule id"})
		return
	}

	b, err := h.service.BookRoutine(c.Request.Context(), memberID, scheduleID, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// BookCurriculum godoc
// @Summary      Enroll in a program
// @Description  Books every class of a fixed-cohort program in one step.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        groupID  path      int  true  "Group ID"
// @Success      201      {array}   Booking
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /groups/{groupID}/enroll [post]
func (h *Handler) BookCurriculum(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	groupID, err := strconv.Atoi(c.Param("groupID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid group id"})
		return
	}

	bookings, err := h.service.BookCurriculum(c.Request.Context(), memberID, groupID, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookings)
}

// Cancel godoc
// @Summary      Cancel a booking
// @Description  Applies the cancellation policy tiers. Too close to start the request is refused outright.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      400        {object}  api.ErrorResponse
// @Failure      403        {object}  api.ErrorResponse
// @Failure      422        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return
	}

	b, err := h.service.Cancel(c.Request.Context(), memberID, bookingID, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CheckIn godoc
// @Summary      Check in to a class
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      int             true  "Booking ID"
// @Param        request    body      CheckInRequest  true  "Check-in payload"
// @Success      200        {object}  Booking
// @Failure      400        {object}  api.ErrorResponse
// @Failure      422        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return
	}

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	b, err := h.service.CheckIn(c.Request.Context(), memberID, bookingID, req.WithinVenue, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   BookingWithSchedule
// @Failure      500  {object}  api.ErrorResponse
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	memberID, _ := auth.GetUserID(c)

	bookings, err := h.service.ListByMember(c.Request.Context(), memberID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// Decide godoc
// @Summary      Approve or reject a pending booking
// @Tags         trainer
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      int            true  "Booking ID"
// @Param        request    body      DecideRequest  true  "Decision"
// @Success      200        {object}  Booking
// @Failure      403        {object}  api.ErrorResponse
// @Failure      422        {object}  api.ErrorResponse
// @Router       /trainer/bookings/{bookingID}/decide [post]
func (h *Handler) Decide(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	b, err := h.service.Decide(c.Request.Context(), trainerID, bookingID, req.Approve, time.Now())
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// CancelClass godoc
// @Summary      Cancel a whole class
// @Description  Cancels the class and every live booking on it. Sessions are restored to affected members.
// @Tags         trainer
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        scheduleID  path      int                   true  "Schedule ID"
// @Param        request     body      TrainerCancelRequest  true  "Cancellation payload"
// @Success      200         {object}  api.MessageResponse
// @Failure      400         {object}  api.ErrorResponse
// @Failure      403         {object}  api.ErrorResponse
// @Router       /trainer/schedules/{scheduleID}/cancel [post]
func (h *Handler) CancelClass(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	scheduleID, err := strconv.Atoi(c.Param("scheduleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid schedule id"})
		return
	}

	var req TrainerCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if errs := api.ValidateStruct(req); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	if err := h.service.CancelClass(c.Request.Context(), trainerID, scheduleID, req.Force, req.Reason, time.Now()); err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "class cancelled"})
}

// ListBySchedule godoc
// @Summary      List bookings on a class
// @Tags         trainer
// @Security     BearerAuth
// @Produce      json
// @Param        scheduleID  path      int  true  "Schedule ID"
// @Success      200         {array}   Booking
// @Failure      403         {object}  api.ErrorResponse
// @Router       /trainer/schedules/{scheduleID}/bookings [get]
func (h *Handler) ListBySchedule(c *gin.Context) {
	trainerID, _ := auth.GetUserID(c)

	scheduleID, err := strconv.Atoi(c.Param("scheduleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid schedule id"})
		return
	}

	bookings, err := h.service.ListBySchedule(c.Request.Context(), trainerID, scheduleID)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}
