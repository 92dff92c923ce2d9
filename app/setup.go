package app

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/examtrace/api/api"
	"github.com/examtrace/api/config"
	"github.com/examtrace/api/database"
	"github.com/examtrace/api/router"
	"github.com/examtrace/api/services"
	"github.com/examtrace/api/services/cron"
	"github.com/examtrace/api/services/inference"
	"github.com/examtrace/api/services/storage"
	"github.com/examtrace/api/utils/cache"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}
	db := store.GetDB()

	if err := database.Seed(db); err != nil {
		log.Printf("Warning: seeding demo data failed: %v", err)
	}

	// Raw reporting store shares the database with GORM
	reports, err := database.Start()
	if err != nil {
		store.Close()
		return err
	}

	// Redis is optional: without it job state is DB-only and the
	// concurrency locks are disabled
	var redisCache *cache.RedisCache
	if getEnv.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(getEnv.REDIS_URL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Job mirroring and locks disabled.", err)
			redisCache = nil
		}
	}
	tracker := services.NewProgressTracker(redisCache)

	// Inference is optional: the pipeline degrades to heuristics
	var llm services.LLMClient
	var embeddingClient services.EmbeddingClient
	if getEnv.INFERENCE_API_KEY != "" && getEnv.INFERENCE_BASE_URL != "" {
		client := inference.NewClient(inference.Config{
			APIKey:         getEnv.INFERENCE_API_KEY,
			BaseURL:        getEnv.INFERENCE_BASE_URL,
			ChatModel:      getEnv.INFERENCE_MODEL,
			EmbeddingModel: getEnv.INFERENCE_EMBEDDING_MODEL,
		})
		llm = client
		embeddingClient = client
	} else {
		log.Println("Inference not configured, running with heuristic classification only")
	}
	embedder := services.NewEmbeddingService(embeddingClient)

	// Spaces is optional: papers can still be created from raw text
	var spaces *storage.SpacesClient
	if getEnv.SPACES_ACCESS_KEY != "" && getEnv.SPACES_BUCKET != "" {
		spaces, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: getEnv.SPACES_ACCESS_KEY,
			SecretKey: getEnv.SPACES_SECRET_KEY,
			Bucket:    getEnv.SPACES_BUCKET,
			Region:    getEnv.SPACES_REGION,
			Endpoint:  getEnv.SPACES_ENDPOINT,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize Spaces client: %v. PDF storage disabled.", err)
			spaces = nil
		}
	}

	clustering := services.NewTopicClusteringService(db, embedder)
	analysis := services.NewAnalysisService(db, tracker, llm, embedder, clustering)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(db)
		if err := cronManager.Start(); err != nil {
			log.Printf("Warning: Failed to start cron jobs: %v", err)
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		reports.Close()
		store.Close()
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Attach Middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Setup Routes
	router.SetupRoutes(app, router.Dependencies{
		DB:       db,
		Store:    store,
		Reports:  reports,
		Analysis: analysis,
		Spaces:   spaces,
	})

	// Get the PORT & Start the Server
	return server.Run()
}
