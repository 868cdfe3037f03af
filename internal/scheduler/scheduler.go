// Package scheduler drives the periodic rerank/stats jobs from §"Scheduled
// jobs", grounded on original_source/Backend/celery_app.py's beat_schedule
// (daily stats refresh, weekly full rerank, hourly elite refresh).
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rawblock/solrank/internal/pipeline"
	"github.com/rawblock/solrank/internal/resultcache"
	"github.com/rawblock/solrank/pkg/models"
)

// Scheduler owns the cron runner and the set of tokens it keeps fresh. The
// original Python system resolves this set from its own "active pumps"
// table; this engine has no equivalent persisted list, so the watched set
// is supplied at construction time (CRON_WATCH_TOKENS env var in
// cmd/engine) rather than invented here.
type Scheduler struct {
	cron        *cron.Cron
	coordinator *pipeline.Coordinator
	cache       *resultcache.Store
	tokens      []models.TokenRequest
}

// New wires a Scheduler against the already-running pipeline components.
// tokens is the watch list the hourly/weekly jobs operate over.
func New(coordinator *pipeline.Coordinator, cache *resultcache.Store, tokens []models.TokenRequest) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(time.UTC)),
		coordinator: coordinator,
		cache:       cache,
		tokens:      tokens,
	}
}

// Start registers the three schedules and begins running them in the
// background. Call Stop to drain in-flight jobs on shutdown.
func (s *Scheduler) Start() error {
	// Hourly re-rank: analog of celery's "elite-100-refresh" — top of
	// every hour, refreshes any token whose token_qualified snapshot has
	// expired but is still being watched.
	if _, err := s.cron.AddFunc("0 * * * *", s.hourlyRerank); err != nil {
		return err
	}
	// Daily stats report at 03:00 UTC — analog of "daily-stats-refresh".
	if _, err := s.cron.AddFunc("0 3 * * *", s.dailyStatsReport); err != nil {
		return err
	}
	// Weekly full rerank sweep, Sunday 04:00 UTC — analog of
	// "weekly-rerank".
	if _, err := s.cron.AddFunc("0 4 * * 0", s.weeklyFullRerank); err != nil {
		return err
	}

	s.cron.Start()
	log.Println("scheduler: cron jobs registered (hourly rerank, daily stats 03:00 UTC, weekly rerank Sun 04:00 UTC)")
	return nil
}

// Stop blocks until any running job finishes, matching cron.Cron's own
// graceful-shutdown contract.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) hourlyRerank() {
	for _, token := range s.tokens {
		ctx, cancel := context.WithTimeout(context.Background(), models.DefaultJobTimeout)
		result, _, err := s.coordinator.AnalyzeToken(ctx, token, models.AnalysisOptions{})
		cancel()
		if err != nil {
			log.Printf("scheduler: hourly rerank failed for %s: %v", token.Address, err)
			continue
		}
		log.Printf("scheduler: hourly rerank for %s: %d rallies, %d ranked wallets", token.Address, result.Rallies, len(result.TopWallets))
	}
}

func (s *Scheduler) dailyStatsReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.cache.HealthCheck(ctx); err != nil {
		log.Printf("scheduler: daily stats report: cache unreachable: %v", err)
		return
	}
	log.Printf("scheduler: daily stats report: %d tokens watched, cache reachable", len(s.tokens))
}

func (s *Scheduler) weeklyFullRerank() {
	ctx, cancel := context.WithTimeout(context.Background(), models.DefaultJobTimeout)
	defer cancel()
	req := models.AnalysisRequest{Tokens: s.tokens}
	result := s.coordinator.AnalyzeRequest(ctx, req)
	log.Printf("scheduler: weekly full rerank: %d/%d tokens succeeded", result.Summary.Successful, result.Summary.TotalTokens)
}
