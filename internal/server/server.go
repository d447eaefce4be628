package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"fitclass/internal/auth"
	"fitclass/internal/booking"
	"fitclass/internal/config"
	"fitclass/internal/email"
	"fitclass/internal/membership"
	"fitclass/internal/outbox"
	"fitclass/internal/policy"
	"fitclass/internal/schedule"
	"fitclass/internal/timeoff"
	"fitclass/internal/user"
	"fitclass/internal/wallet"
)

type Server struct {
	router *gin.Engine
	http   *http.Server

	Bookings  *booking.Service
	Schedules *schedule.Service
}

func rulesFromConfig(cfg *config.Config) policy.Rules {
	return policy.Rules{
		FreeCancelBefore:  cfg.FreeCancelBefore,
		CancelCutoff:      cfg.CancelCutoff,
		GraceWindow:       cfg.GraceWindow,
		TrialLeadTime:     cfg.TrialLeadTime,
		PaidLeadTime:      cfg.PaidLeadTime,
		GroupLeadTime:     cfg.GroupLeadTime,
		CheckInOpenBefore: cfg.CheckInOpenBefore,
		RefundWindowDays:  cfg.RefundWindowDays,
	}
}

// New wires every service and registers the route table. The sweep and
// outbox loops are constructed by the caller; the server only owns HTTP.
func New(database *sqlx.DB, cfg *config.Config, emailService *email.Service, outboxes *outbox.Repository) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	rules := rulesFromConfig(cfg)

	userRepo := user.NewRepository(database)
	userService := user.NewService(userRepo, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)

	walletRepo := wallet.NewRepository(database)

	scheduleRepo := schedule.NewRepository(database)
	timeOffRepo := timeoff.NewRepository(database)
	timeOffService := timeoff.NewService(database, timeOffRepo, scheduleRepo, userService, outboxes)
	coordinator := schedule.NewCoordinator(scheduleRepo, timeOffService, cfg.LockWaitTimeout)
	scheduleService := schedule.NewService(database, scheduleRepo, timeOffService, userService, outboxes, cfg.Location)

	membershipRepo := membership.NewRepository(database)
	membershipService := membership.NewService(membershipRepo, walletRepo, userService, rules, cfg.Location)

	bookingRepo := booking.NewRepository(database)
	bookingService := booking.NewService(database, bookingRepo, scheduleRepo, coordinator, membershipService, userService, outboxes, rules)

	userHandler := user.NewHandler(userService)
	walletHandler := wallet.NewHandler(walletRepo)
	scheduleHandler := schedule.NewHandler(scheduleService)
	timeOffHandler := timeoff.NewHandler(timeOffService)
	membershipHandler := membership.NewHandler(membershipService)
	bookingHandler := booking.NewHandler(bookingService)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTAccessSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)

		protected.GET("/schedules", scheduleHandler.ListOpenSlots)
		protected.GET("/schedules/:scheduleID", scheduleHandler.GetSchedule)
		protected.GET("/groups/:groupID", scheduleHandler.GetGroup)

		protected.GET("/wallet", walletHandler.GetWallet)
		protected.POST("/wallet/topup", walletHandler.TopUp)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)
	}

	member := router.Group("/")
	member.Use(authMiddleware, auth.RequireRole(user.RoleMember))
	{
		member.POST("/bookings/personal", bookingHandler.BookPersonal)
		member.POST("/schedules/:scheduleID/book", bookingHandler.BookRoutine)
		member.POST("/groups/:groupID/enroll", bookingHandler.BookCurriculum)
		member.POST("/bookings/:bookingID/cancel", bookingHandler.Cancel)
		member.POST("/bookings/:bookingID/check-in", bookingHandler.CheckIn)
		member.GET("/bookings", bookingHandler.ListMyBookings)

		member.POST("/purchases", membershipHandler.Purchase)
		member.GET("/purchases", membershipHandler.ListPurchases)
		member.POST("/purchases/:purchaseID/cancel", membershipHandler.CancelPurchase)
	}

	trainer := router.Group("/trainer")
	trainer.Use(authMiddleware, auth.RequireRole(user.RoleTrainer))
	{
		trainer.POST("/templates", scheduleHandler.CreateTemplate)
		trainer.POST("/schedules", scheduleHandler.PublishSlot)
		trainer.POST("/series", scheduleHandler.PublishSeries)
		trainer.POST("/schedules/:scheduleID/close", scheduleHandler.CloseSchedule)
		trainer.POST("/schedules/:scheduleID/cancel", bookingHandler.CancelClass)
		trainer.GET("/schedules/:scheduleID/bookings", bookingHandler.ListBySchedule)
		trainer.POST("/bookings/:bookingID/decide", bookingHandler.Decide)

		trainer.POST("/time-offs", timeOffHandler.Register)
		trainer.GET("/time-offs", timeOffHandler.List)
		trainer.POST("/time-offs/:timeOffID/cancel", timeOffHandler.Cancel)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/email-queue", EmailQueue(emailService))
	SetupSwagger(router)

	return &Server{
		router:    router,
		Bookings:  bookingService,
		Schedules: scheduleService,
	}
}

// NoShows exposes the booking sweep hook for the schedule sweeper.
func (s *Server) NoShows() schedule.NoShowRunner {
	return s.Bookings
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
