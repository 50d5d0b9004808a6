package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cleanup-bounty-system/handlers"
	"cleanup-bounty-system/middleware"
	"cleanup-bounty-system/models"
	"cleanup-bounty-system/services"
	"cleanup-bounty-system/utils"
	"cleanup-bounty-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // photo evidence batches
	})

	// 🔐 GLOBAL: only gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitPhotoStore(); err != nil {
		log.Fatal("failed to initialize photo store:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.VerificationJob{},
		&models.ChatMessage{},
		&models.Clan{},
		&models.ClanMember{},
		&models.PointAward{},
		&models.UserScore{},
		&models.SyncedReport{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	pointsService := services.NewPointsService(db)
	bountyService := services.NewBountyService(db, pointsService)
	chatService := services.NewChatService(db)
	syncService := services.NewSyncService(db, bountyService)

	engineURL := os.Getenv("VERIFICATION_ENGINE_URL")
	if engineURL == "" {
		log.Fatal("VERIFICATION_ENGINE_URL environment variable not set")
	}
	serviceToken := os.Getenv("CLEANUP_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("CLEANUP_SERVICE_TOKEN environment variable not set")
	}

	verificationWorker := workers.NewVerificationWorker(db, bountyService, engineURL, serviceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verificationWorker.Start(ctx)
	bountyService.StartVerificationScheduler()

	handlers.SetupBountyRoutes(app, bountyService, pointsService)
	handlers.SetupChatRoutes(app, chatService)
	handlers.SetupSyncRoutes(app, syncService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Verification Worker running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from the gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
