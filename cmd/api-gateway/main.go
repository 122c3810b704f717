package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/academic-records-api/api/swagger"
	"github.com/noah-isme/academic-records-api/internal/handler"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/cache"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	"github.com/noah-isme/academic-records-api/pkg/jobs"
	"github.com/noah-isme/academic-records-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-records-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 0.1.0
// @description Academic records administration with bulk CSV reconciliation
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, export caching disabled", "error", err)
		redisClient = nil
	}

	personRepo := repository.NewPersonRepository(db)
	roleRepo := repository.NewRoleRecordRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	importRunRepo := repository.NewImportRunRepository(db)

	metricsSvc := service.NewMetricsService()
	credentials := service.NewCredentialReconciler(nil)
	planner := service.NewUpsertPlanner(personRepo, studentRepo, courseRepo, credentials, logr)
	roleSync := service.NewRoleSubtypeSynchronizer(roleRepo, logr)
	reciprocal := service.NewReciprocalReferenceUpdater(roleRepo, logr)
	engine := service.NewReconciliationEngine(planner, roleSync, reciprocal,
		personRepo, studentRepo, courseRepo, roleRepo, scheduleRepo, logr)

	importSvc := service.NewImportService(engine, importRunRepo, metricsSvc, jobs.QueueConfig{
		Workers:    cfg.Imports.WorkerConcurrency,
		BufferSize: cfg.Imports.QueueBuffer,
		MaxRetries: cfg.Imports.WorkerRetries,
	}, cfg.Imports.MaxRows, logr)
	exportSvc := service.NewExportService(personRepo, roleRepo, studentRepo, courseRepo, scheduleRepo, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, courseRepo, studentRepo, logr)
	authSvc := service.NewAuthService(personRepo, cfg.JWT, logr)
	personSvc := service.NewPersonService(personRepo, roleRepo, engine, logr)
	studentSvc := service.NewStudentService(studentRepo, engine, logr)
	courseSvc := service.NewCourseService(courseRepo, engine, logr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	importSvc.Start(ctx)
	defer importSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	personHandler := handler.NewPersonHandler(personSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	importHandler := handler.NewImportHandler(importSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/personnel", personHandler.List)
	authed.GET("/personnel/:code", personHandler.Get)
	authed.PUT("/personnel",
		middleware.RequireRoles(models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator),
		personHandler.Upsert)
	authed.DELETE("/personnel/:code",
		middleware.RequireRoles(models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator),
		personHandler.Delete)

	authed.GET("/students", studentHandler.List)
	authed.GET("/students/:code", studentHandler.Get)
	authed.PUT("/students",
		middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator),
		studentHandler.Upsert)
	authed.DELETE("/students/:code",
		middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator),
		studentHandler.Delete)

	authed.GET("/courses", courseHandler.List)
	authed.GET("/courses/:code", courseHandler.Get)
	authed.PUT("/courses",
		middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator),
		courseHandler.Upsert)
	authed.DELETE("/courses/:code",
		middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator),
		courseHandler.Delete)

	authed.GET("/schedules/:code", scheduleHandler.Get)
	authed.POST("/schedules", scheduleHandler.Submit)
	authed.POST("/schedules/:code/review",
		middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralCoordinator),
		scheduleHandler.Review)
	authed.DELETE("/schedules/:code", scheduleHandler.Withdraw)

	imports := authed.Group("/imports")
	imports.Use(middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator))
	imports.POST("", importHandler.Upload)
	imports.GET("/runs", importHandler.ListRuns)
	imports.GET("/runs/:id", importHandler.GetRun)

	exports := authed.Group("/exports")
	exports.Use(middleware.RequireRoles(models.RoleCoordinator, models.RoleAdmin, models.RoleGeneralAdmin, models.RoleGeneralCoordinator))
	exports.Use(middleware.CacheGET(redisClient, metricsSvc, cfg.Exports.CacheTTL, logr))
	exports.GET("/personnel", exportHandler.Personnel)
	exports.GET("/students", exportHandler.Students)
	exports.GET("/courses", exportHandler.Courses)
	exports.GET("/schedules/:code", exportHandler.SchedulePDF)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
