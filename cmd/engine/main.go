package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rawblock/solrank/internal/api"
	"github.com/rawblock/solrank/internal/keypool"
	"github.com/rawblock/solrank/internal/marketdata"
	"github.com/rawblock/solrank/internal/pipeline"
	"github.com/rawblock/solrank/internal/resultcache"
	"github.com/rawblock/solrank/internal/scheduler"
	"github.com/rawblock/solrank/internal/taskqueue"
	"github.com/rawblock/solrank/internal/watchlist"
	"github.com/rawblock/solrank/pkg/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading configuration from the environment directly")
	}

	log.Println("Starting solrank wallet-ranking engine...")

	// ─── Required environment variables ──────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. For local development they
	// can be put in a .env file, which godotenv loads above.
	// ───────────────────────────────────────────────────────────────────

	redisURL := requireEnv("REDIS_URL")

	cache, err := resultcache.Connect(redisURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to result cache: %v", err)
	}
	defer cache.Close()

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("FATAL: invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	pool := keypool.New(loadProviderKeys(), 0)
	market := marketdata.NewClient(pool, requireEnv("MARKET_DATA_BASE_URL"))

	queue := taskqueue.New(rdb)
	queue.SetResultWriter(cache)
	pipeline.RegisterHandlers(queue, market)

	coordinator := pipeline.NewCoordinator(queue, cache, market)

	// Each named queue gets its own worker so leaf fetches never starve
	// behind batch/compute work (§4.4's queue-separation invariant).
	highWorker := taskqueue.NewWorker(queue, models.QueueHigh)
	batchWorker := taskqueue.NewWorker(queue, models.QueueBatch)
	computeWorker := taskqueue.NewWorker(queue, models.QueueCompute)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go highWorker.Run(workerCtx)
	go batchWorker.Run(workerCtx)
	go computeWorker.Run(workerCtx)

	var wl *watchlist.Store
	if dsn := getEnvOrDefault("DATABASE_URL", ""); dsn != "" {
		wl, err = watchlist.Connect(context.Background(), dsn)
		if err != nil {
			log.Printf("Warning: failed to connect to watchlist store, continuing without it: %v", err)
		} else {
			defer wl.Close()
			if err := wl.InitSchema(context.Background()); err != nil {
				log.Printf("Warning: watchlist schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set — watchlist endpoints will report 503")
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	watchedTokens := loadWatchedTokens()
	sched := scheduler.New(coordinator, cache, watchedTokens)
	if len(watchedTokens) > 0 {
		if err := sched.Start(); err != nil {
			log.Printf("Warning: failed to start scheduler: %v", err)
		} else {
			defer sched.Stop()
		}
	} else {
		log.Println("CRON_WATCH_TOKENS not set — scheduled rerank/stats jobs are disabled")
	}

	r := api.SetupRouter(coordinator, cache, wsHub, wl)

	port := getEnvOrDefault("PORT", "8080")
	log.Printf("solrank engine listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadProviderKeys parses the comma-separated PROVIDER_API_KEYS env var
// into the identifier->credential map keypool.New expects, one identifier
// per key ("0", "1", ...).
func loadProviderKeys() map[string]string {
	raw := requireEnv("PROVIDER_API_KEYS")
	keys := make(map[string]string)
	for i, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		keys[strconv.Itoa(i)] = k
	}
	if len(keys) == 0 {
		log.Fatal("FATAL: PROVIDER_API_KEYS is set but contains no usable keys")
	}
	return keys
}

// loadWatchedTokens parses CRON_WATCH_TOKENS as comma-separated
// "address:ticker" pairs for the scheduler's hourly/weekly rerank jobs.
func loadWatchedTokens() []models.TokenRequest {
	raw := getEnvOrDefault("CRON_WATCH_TOKENS", "")
	if raw == "" {
		return nil
	}
	var tokens []models.TokenRequest
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		token := models.TokenRequest{Address: parts[0], Chain: models.Chain}
		if len(parts) == 2 {
			token.Ticker = parts[1]
		}
		tokens = append(tokens, token)
	}
	return tokens
}

// requireEnv reads a required environment variable and exits if it is not
// set. This prevents the binary from starting with missing critical
// configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Set it in the environment or in a local .env file.", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
