package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"

	"kmbp.app/ratingbot/internal/config"
	"kmbp.app/ratingbot/internal/entity"
	"kmbp.app/ratingbot/internal/server"
	"kmbp.app/ratingbot/pkg/database"
	"kmbp.app/ratingbot/pkg/storage"

	accessRepo "kmbp.app/ratingbot/internal/modules/access/repository"
	accessService "kmbp.app/ratingbot/internal/modules/access/service"
	authService "kmbp.app/ratingbot/internal/modules/auth/service"
	"kmbp.app/ratingbot/internal/modules/bot"
	botHttp "kmbp.app/ratingbot/internal/modules/bot/delivery/http"
	"kmbp.app/ratingbot/internal/modules/bot/telegram"
	"kmbp.app/ratingbot/internal/modules/conversation"
	"kmbp.app/ratingbot/internal/modules/digest"
	ledgerRepo "kmbp.app/ratingbot/internal/modules/ledger/repository"
	ledgerService "kmbp.app/ratingbot/internal/modules/ledger/service"
	projectRepo "kmbp.app/ratingbot/internal/modules/project/repository"
	projectService "kmbp.app/ratingbot/internal/modules/project/service"
	searchService "kmbp.app/ratingbot/internal/modules/search/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := entity.AutoMigrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	redisClient := connectRedis(ctx, cfg.RedisURL)
	search := connectSearch(cfg)

	tg, err := telegram.New(cfg.BotToken)
	if err != nil {
		log.Fatalf("failed to start telegram client: %v", err)
	}

	// Services
	access, err := accessService.NewAccessService(accessRepo.NewBanRepository(db), tg, accessService.Options{
		AdminChatID:   cfg.AdminChatID,
		SelfID:        tg.SelfID(),
		MembershipTTL: cfg.MembershipTTL,
	})
	if err != nil {
		log.Fatalf("failed to initialize access gate: %v", err)
	}

	var (
		searcher projectService.Searcher
		indexer  projectService.Indexer
		ledgerIx ledgerService.ProjectIndexer
	)
	if search != nil {
		searcher, indexer, ledgerIx = search, search, search
	}

	ledger := ledgerService.NewLedgerService(ledgerRepo.NewLedgerRepository(db), ledgerIx)
	projects := projectService.NewProjectService(projectRepo.NewProjectRepository(db), searcher, indexer, photoMirror(cfg, tg))

	if search != nil {
		go func() {
			all, err := projects.ListAll(ctx)
			if err != nil {
				log.Printf("⚠️ Failed to load projects for search sync: %v", err)
				return
			}
			if err := search.Sync(ctx, all); err != nil {
				log.Printf("⚠️ Search sync failed: %v", err)
			}
		}()
	}

	var flows conversation.FlowStore = conversation.NewMemoryStore()
	if redisClient != nil {
		flows = conversation.NewRedisStore(redisClient)
	}

	announcer := bot.NewAnnouncer(tg, bot.Topics{
		ChatID:     cfg.AdminChatID,
		General:    cfg.TopicLogsAll,
		Categories: cfg.CategoryTopics,
	})

	engine := bot.New(bot.Deps{
		Transport: tg,
		Access:    access,
		Ledger:    ledger,
		Projects:  projects,
		Flows:     conversation.NewMachine(flows),
		Lock:      conversation.NewCommitLock(redisClient),
		Announcer: announcer,
		LockTTL:   cfg.CommitLockTTL,
		Username:  tg.Username(),
	})

	// Scheduled jobs
	scheduler := digest.NewScheduler(ctx)
	for _, job := range []digest.Job{
		digest.NewWeeklyDigest(ledger, announcer, cfg.DigestSchedule),
		digest.NewLedgerCheck(ledger, announcer, cfg.VerifySchedule),
	} {
		if err := scheduler.Register(job); err != nil {
			log.Fatalf("failed to register job: %v", err)
		}
	}
	scheduler.Start()

	services := server.Services{
		Projects: projects,
		Ledger:   ledger,
		Access:   access,
		Auth: authService.NewAuthService(access, search, authService.Config{
			Secret:       cfg.JWTSecret,
			PasswordHash: cfg.AdminAPIPasswordHash,
		}),
	}

	polling := make(chan struct{})
	if cfg.BotMode == "webhook" {
		close(polling)
		if err := tg.SetWebhook(cfg.WebhookURL); err != nil {
			log.Fatalf("failed to register webhook: %v", err)
		}
		services.Webhook = botHttp.NewWebhookHandler(ctx, tg, engine)
	} else {
		go func() {
			defer close(polling)
			tg.Poll(ctx, engine.Dispatch)
		}()
	}

	srv := server.NewServer(cfg, services)
	go func() {
		log.Printf("🚀 HTTP server listening on :%s", cfg.Port)
		if err := srv.Run(); err != nil {
			log.Fatalf("server exited with error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	<-polling
	scheduler.Stop()
	engine.Wait()
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("✅ Bye")
}

// connectRedis returns nil when no URL is configured or the server is
// unreachable; the bot then keeps flows in memory.
func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("📝 REDIS_URL not set, keeping conversation state in memory")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("⚠️ Redis unreachable, falling back to memory: %v", err)
		client.Close()
		return nil
	}
	log.Println("✅ Connected to Redis")
	return client
}

func connectSearch(cfg *config.Config) searchService.SearchService {
	host := cfg.MeiliSearchHost
	if host == "" {
		log.Println("📝 MEILISEARCH_HOST not set, search falls back to the database")
		return nil
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}

	return searchService.NewSearchService(meilisearch.New(host, meilisearch.WithAPIKey(cfg.MeiliMasterKey)))
}

func photoMirror(cfg *config.Config, locator projectService.FileLocator) projectService.PhotoMirror {
	cldCfg := storage.CloudinaryConfig{
		URL:       cfg.CloudinaryURL,
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	}
	if !cldCfg.Enabled() {
		log.Println("📝 Cloudinary not configured, project photos stay on telegram only")
		return nil
	}

	imageStorage, err := storage.NewCloudinaryStorage(cldCfg)
	if err != nil {
		log.Fatalf("failed to initialize cloudinary storage: %v", err)
	}
	return projectService.NewPhotoMirror(locator, imageStorage, cfg.CloudinaryUploadFolder)
}
