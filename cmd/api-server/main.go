package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campushub/campushub-api/api/swagger"
	"github.com/campushub/campushub-api/internal/handler"
	"github.com/campushub/campushub-api/internal/middleware"
	"github.com/campushub/campushub-api/internal/models"
	"github.com/campushub/campushub-api/internal/repository"
	"github.com/campushub/campushub-api/internal/service"
	"github.com/campushub/campushub-api/pkg/cache"
	"github.com/campushub/campushub-api/pkg/config"
	"github.com/campushub/campushub-api/pkg/database"
	"github.com/campushub/campushub-api/pkg/jobs"
	"github.com/campushub/campushub-api/pkg/logger"
	"github.com/campushub/campushub-api/pkg/mailer"
	corsmiddleware "github.com/campushub/campushub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushub/campushub-api/pkg/middleware/requestid"
)

const sessionSweepInterval = time.Hour

// @title CampusHub API
// @version 1.0.0
// @description School management API
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summaries will not be cached", zap.Error(err))
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := mailer.NewDispatcher(mailer.NewSMTP(cfg.Mail), jobs.QueueConfig{
		Workers:       cfg.Mail.Workers,
		MaxRetries:    cfg.Mail.Retries,
		RetryDelay:    30 * time.Second,
		MaxRetryDelay: 5 * time.Minute,
		Logger:        logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)
	financeRepo := repository.NewFinanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Summaries.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, sessionRepo, dispatcher, metricsSvc, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.Auth.AccessTokenSecret,
		AccessTokenExpiry:  cfg.Auth.AccessTokenExpiry,
		RefreshTokenSecret: cfg.Auth.RefreshTokenSecret,
		SessionExpiry:      cfg.Auth.SessionExpiry,
		RememberMeExpiry:   cfg.Auth.RememberMeExpiry,
		VerifyTokenExpiry:  cfg.Auth.VerifyTokenExpiry,
		ResetTokenExpiry:   cfg.Auth.ResetTokenExpiry,
		BcryptCost:         cfg.Auth.BcryptCost,
		Issuer:             cfg.Auth.Issuer,
	})
	userSvc := service.NewUserService(userRepo, nil, logr)
	gradeSvc := service.NewGradeService(gradeRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, cacheSvc, nil, logr)
	messageSvc := service.NewMessageService(messageRepo, userRepo, nil, logr)
	admissionSvc := service.NewAdmissionService(admissionRepo, nil, logr)
	financeSvc := service.NewFinanceService(financeRepo, cacheSvc, nil, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	admissionHandler := handler.NewAdmissionHandler(admissionSvc)
	financeHandler := handler.NewFinanceHandler(financeSvc)

	go sweepExpiredSessions(ctx, sessionRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(limiter.General())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		cacheStatus := "ok"
		if err := cacheRepo.Ping(c.Request.Context()); err != nil {
			cacheStatus = "down"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "cache": cacheStatus})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", limiter.Auth(), authHandler.Login)
	auth.POST("/register", limiter.Auth(), authHandler.Register)
	auth.POST("/refresh", limiter.Auth(), authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/forgot-password", limiter.Auth(), authHandler.ForgotPassword)
	auth.POST("/reset-password", limiter.Auth(), authHandler.ResetPassword)
	auth.POST("/verify-email", authHandler.VerifyEmail)
	auth.POST("/resend-verification", limiter.Auth(), authHandler.ResendVerification)
	auth.GET("/me", middleware.Auth(authSvc), authHandler.Me)

	users := api.Group("/users", middleware.Auth(authSvc))
	users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
	users.GET("/:id", middleware.RequireRolesOrSelf("id", models.RoleAdmin, models.RoleTeacher), userHandler.Get)
	users.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
	users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Deactivate)

	grades := api.Group("/grades", middleware.Auth(authSvc))
	grades.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent, models.RoleParent), gradeHandler.List)
	grades.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), gradeHandler.Create)
	grades.GET("/:id", gradeHandler.Get)
	grades.PATCH("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), gradeHandler.Update)
	grades.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), gradeHandler.Delete)
	grades.GET("/students/:studentId/summary", middleware.RequireRolesOrSelf("studentId", models.RoleAdmin, models.RoleTeacher, models.RoleParent), gradeHandler.Summary)
	grades.GET("/students/:studentId/report", middleware.RequireRolesOrSelf("studentId", models.RoleAdmin, models.RoleTeacher, models.RoleParent), gradeHandler.Report)

	attendance := api.Group("/attendance", middleware.Auth(authSvc))
	attendance.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.Record)
	attendance.POST("/bulk", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), attendanceHandler.RecordBulk)
	attendance.GET("", attendanceHandler.List)
	attendance.GET("/:id", attendanceHandler.Get)
	attendance.GET("/students/:studentId/summary", middleware.RequireRolesOrSelf("studentId", models.RoleAdmin, models.RoleTeacher, models.RoleParent), attendanceHandler.Summary)

	messages := api.Group("/messages", middleware.Auth(authSvc))
	messages.POST("", messageHandler.Send)
	messages.GET("", messageHandler.List)
	messages.GET("/:id", messageHandler.Get)
	messages.POST("/:id/read", messageHandler.MarkRead)
	messages.DELETE("/:id", messageHandler.Delete)

	admissions := api.Group("/admissions")
	admissions.POST("", middleware.OptionalAuth(authSvc), admissionHandler.Submit)
	admissions.GET("", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), admissionHandler.List)
	admissions.GET("/:id", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), admissionHandler.Get)
	admissions.POST("/:id/decision", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), admissionHandler.Decide)

	finance := api.Group("/finance", middleware.Auth(authSvc))
	finance.POST("", middleware.RequireRoles(models.RoleAdmin), financeHandler.Create)
	finance.GET("", middleware.RequireRoles(models.RoleAdmin), financeHandler.List)
	finance.GET("/:id", middleware.RequireRoles(models.RoleAdmin), financeHandler.Get)
	finance.POST("/:id/paid", middleware.RequireRoles(models.RoleAdmin), financeHandler.MarkPaid)
	finance.GET("/students/:studentId/summary", middleware.RequireRolesOrSelf("studentId", models.RoleAdmin, models.RoleParent), financeHandler.Summary)
	finance.GET("/students/:studentId/statement", middleware.RequireRolesOrSelf("studentId", models.RoleAdmin, models.RoleParent), financeHandler.Statement)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// sweepExpiredSessions periodically clears expired session rows. Expired
// sessions are already unusable; the sweep only keeps the table small.
func sweepExpiredSessions(ctx context.Context, sessions *repository.SessionRepository, logr *zap.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logr.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logr.Info("expired sessions removed", zap.Int64("count", deleted))
			}
		}
	}
}
