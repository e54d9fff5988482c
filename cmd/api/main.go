package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/exam-api/internal/config"
	"github.com/yourusername/exam-api/internal/handler"
	"github.com/yourusername/exam-api/internal/middleware"
	pgRepo "github.com/yourusername/exam-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/exam-api/internal/repository/redis"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/internal/service/examengine"
	"github.com/yourusername/exam-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	itemRepo := pgRepo.NewItemRepo(db)
	attemptRepo := pgRepo.NewAttemptRepo(db)
	examConfigRepo := pgRepo.NewExamConfigRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// --- Инициализация адаптивного движка ---
	engineConfig := examengine.DefaultConfig()
	if cfg.Engine.DefaultPercentile > 0 {
		engineConfig.DefaultPercentile = cfg.Engine.DefaultPercentile
	}

	selector := examengine.NewAdaptiveSelector(engineConfig, &examengine.Dependencies{
		ItemRepo:  itemRepo,
		CacheRepo: cacheRepo,
	})
	scoring := examengine.NewScoringEngine(engineConfig)

	// --- Инициализация сервисов ---
	itemService := service.NewItemService(itemRepo)
	attemptService := service.NewAttemptService(attemptRepo, examConfigRepo, itemRepo, selector, scoring)

	var draftClient service.DraftClient = &service.NoopDraftClient{}
	if cfg.Generator.Enabled {
		httpClient, errGen := service.NewHTTPDraftClient(
			cfg.Generator.BaseURL,
			cfg.Generator.APIKey,
			time.Duration(cfg.Generator.TimeoutSec)*time.Second,
		)
		if errGen != nil {
			log.Printf("Failed to initialize draft client: %v. Генерация вопросов будет неактивна.", errGen)
		} else {
			draftClient = httpClient
		}
	}
	generationService := service.NewGenerationService(itemRepo, cacheRepo, draftClient)

	// --- Инициализация обработчиков и middleware ---
	attemptHandler := handler.NewAttemptHandler(attemptService, itemService)
	itemHandler := handler.NewItemHandler(itemService, generationService, selector)
	exportHandler := handler.NewExportHandler(itemService, attemptService)
	examConfigHandler := handler.NewExamConfigHandler(examConfigRepo)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Контекст для управления жизненным циклом фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Фоновый свип просроченных попыток
	sweepInterval := cfg.Engine.ExpirySweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := attemptService.ExpireOverdue(); err != nil {
					log.Printf("Expiry sweep failed: %v", err)
				}
			}
		}
	}()

	isProduction := gin.Mode() == gin.ReleaseMode

	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		// Конфигурации экзаменов
		configs := api.Group("/exam-configs")
		configs.Use(authMiddleware.RequireAuth())
		{
			configs.GET("", examConfigHandler.ListActive)

			configWithID := configs.Group("/:id")
			configWithID.Use(middleware.ExtractUintParam("id", "configID"))
			{
				configWithID.GET("", examConfigHandler.GetConfig)
			}
		}

		// Банк заданий (правильные ответы скрыты)
		items := api.Group("/items")
		items.Use(authMiddleware.RequireAuth())
		{
			items.GET("", itemHandler.SearchItems)

			itemWithID := items.Group("/:id")
			itemWithID.Use(middleware.ExtractUintParam("id", "itemID"))
			{
				itemWithID.GET("", itemHandler.GetItem)
			}
		}

		// Экзаменационные попытки
		attempts := api.Group("/attempts")
		attempts.Use(authMiddleware.RequireAuth())
		attempts.Use(rateLimiter.Limit(middleware.DefaultExamRateLimitConfig()))
		{
			attempts.POST("", attemptHandler.CreateAttempt)
			attempts.GET("/history", attemptHandler.GetHistory)
			attempts.GET("/history/export", exportHandler.ExportHistory)
			attempts.GET("/best", attemptHandler.GetBestScore)

			attemptWithID := attempts.Group("/:id")
			attemptWithID.Use(middleware.ExtractUintParam("id", "attemptID"))
			{
				attemptWithID.GET("", attemptHandler.GetAttempt)
				attemptWithID.POST("/start", attemptHandler.StartAttempt)
				attemptWithID.GET("/next", attemptHandler.NextItems)
				attemptWithID.POST("/answers", attemptHandler.SubmitAnswer)
				attemptWithID.POST("/pause", attemptHandler.PauseAttempt)
				attemptWithID.POST("/resume", attemptHandler.ResumeAttempt)
				attemptWithID.POST("/complete", attemptHandler.CompleteAttempt)
				attemptWithID.GET("/result", attemptHandler.GetResult)
				attemptWithID.POST("/events", attemptHandler.RecordCheatEvent)
			}
		}

		// Администрирование
		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
		{
			adminItems := admin.Group("/items")
			{
				adminItems.GET("", itemHandler.SearchItemsAdmin)
				adminItems.POST("", itemHandler.CreateItem)
				adminItems.POST("/batch", itemHandler.CreateItemsBatch)
				adminItems.GET("/export", exportHandler.ExportItems)
				adminItems.GET("/stats/difficulty", itemHandler.DifficultyStats)
				adminItems.POST("/generate",
					rateLimiter.Limit(middleware.StrictGenerationRateLimitConfig()),
					itemHandler.GenerateItems)
				adminItems.GET("/generate/:task_id", itemHandler.GenerationTaskStatus)

				adminItemWithID := adminItems.Group("/:id")
				adminItemWithID.Use(middleware.ExtractUintParam("id", "itemID"))
				{
					adminItemWithID.GET("", itemHandler.GetItemAdmin)
					adminItemWithID.PATCH("/status", itemHandler.UpdateReviewStatus)
				}
			}

			admin.POST("/exam-configs", examConfigHandler.CreateConfig)
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %s", cfg.Server.Port)

	// Graceful shutdown по SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Отправляем сигнал завершения для всех горутин
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
