package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feed-digest/app/ai"
	"feed-digest/app/database"
	"feed-digest/app/email"
	"feed-digest/app/feed"
	"feed-digest/app/settings"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler owns the background worker pool and the two periodic drivers:
// a fast tick that dispatches due fetches, and a daily pass that spreads
// fetch slots over the day, checks digest due-ness and triggers retention
// cleanup.
type Scheduler struct {
	sourceCache *feed.SourceCache
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	digestRepo  database.DigestRepository
	fetcher     *feed.Fetcher
	generator   *ai.DigestGenerator
	newsletter  *email.Newsletter
	settings    *settings.Settings

	interval     time.Duration
	workerCount  int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
	lastDailyRun string
}

func NewScheduler(sourceCache *feed.SourceCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, digestRepo database.DigestRepository,
	fetcher *feed.Fetcher, generator *ai.DigestGenerator, newsletter *email.Newsletter,
	stg *settings.Settings, intervalSeconds int, workerCount int) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sourceCache: sourceCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		digestRepo:  digestRepo,
		fetcher:     fetcher,
		generator:   generator,
		newsletter:  newsletter,
		settings:    stg,
		interval:    time.Duration(intervalSeconds) * time.Second,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueStartupTasks mirrors every feed definition into the database and
// runs the first daily pass immediately.
func (s *Scheduler) enqueueStartupTasks() {
	sources := s.sourceCache.GetSources()
	if len(sources) == 0 {
		slog.Debug("No feed definitions found")
		return
	}

	slog.Debug("Syncing feed definitions", "count", len(sources))

	for _, source := range sources {
		syncTask := NewSyncFeedSourceTask(source, s.feedRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncFeedSourceTask", "feed", source.Name, "error", err)
		}
	}

	s.tick()
}

func (s *Scheduler) tick() {
	now := time.Now().UTC()

	if day := now.Format("2006-01-02"); day != s.lastDailyRun {
		s.runDailyPass(now)
		s.lastDailyRun = day
	}

	s.enqueueDueFetches(now)
}

// runDailyPass assigns every active feed its fetch slot for the day,
// enqueues digest generation for due feeds and schedules the retention
// sweep. Runs once per calendar day.
func (s *Scheduler) runDailyPass(now time.Time) {
	sources := s.sourceCache.GetActiveSources()

	slog.Debug("Running daily scheduling pass", "active_feeds", len(sources))

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for name, source := range sources {
		feedRecord, err := s.feedRepo.GetFeed(name)
		if err != nil {
			slog.Warn("Failed to get feed from database, skipping", "feed", name, "error", err)
			continue
		}
		if feedRecord == nil {
			// Not synced yet; the next daily pass picks it up.
			slog.Debug("Feed not registered yet, skipping", "feed", name)
			continue
		}

		if feedRecord.NextFetchAt != nil && feedRecord.NextFetchAt.After(now) {
			slog.Debug("Feed already holds a pending fetch slot", "feed", name, "next_fetch_at", feedRecord.NextFetchAt)
		} else {
			slot := midnight.Add(fetchOffset(name, now))
			if err := s.feedRepo.UpdateNextFetch(feedRecord.ID, slot); err != nil {
				slog.Warn("Failed to schedule fetch", "feed", name, "error", err)
			} else {
				slog.Debug("Fetch slot assigned", "feed", name, "next_fetch_at", slot)
			}
		}

		if isDigestDue(source, feedRecord.LastDigestSentAt, now) {
			digestTask := NewGenerateDigestTask(source, feedRecord.ID, s.generator, s.newsletter, s.feedRepo, s.digestRepo)
			if err := s.EnqueueTask(digestTask); err != nil {
				slog.Warn("Failed to enqueue GenerateDigestTask", "feed", name, "error", err)
			}
		}
	}

	cleanupTask := NewCleanupTask(s.itemRepo, s.settings.General.CleanupAfterDays)
	if err := s.EnqueueTask(cleanupTask); err != nil {
		slog.Warn("Failed to enqueue CleanupTask", "error", err)
	}
}

// enqueueDueFetches dispatches fetch tasks for feeds whose assigned slot
// has arrived. A successful fetch clears the slot, so a feed is fetched at
// most once per daily assignment.
func (s *Scheduler) enqueueDueFetches(now time.Time) {
	for name, source := range s.sourceCache.GetActiveSources() {
		feedRecord, err := s.feedRepo.GetFeed(name)
		if err != nil {
			slog.Warn("Failed to get feed from database, skipping", "feed", name, "error", err)
			continue
		}
		if feedRecord == nil || feedRecord.NextFetchAt == nil {
			continue
		}
		if feedRecord.NextFetchAt.After(now) {
			continue
		}

		fetchTask := NewFetchFeedTask(source, s.fetcher)
		if err := s.EnqueueTask(fetchTask); err != nil {
			slog.Warn("Failed to enqueue FetchFeedTask", "feed", name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
