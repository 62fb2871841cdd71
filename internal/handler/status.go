package handler

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/service"
)

// Processing counters, updated atomically.
var (
	totalMessagesProcessed int64
	totalChannelPosts      int64
	totalErrors            int64
	outcomeCounters        [service.OutcomeIgnored + 1]int64
	startTime              = time.Now()
)

// incrementCounter atomically increments counter.
func incrementCounter(counter *int64) {
	atomic.AddInt64(counter, 1)
}

func recordOutcome(o service.Outcome) {
	if o >= 0 && int(o) < len(outcomeCounters) {
		incrementCounter(&outcomeCounters[o])
	}
}

// PendingCounter reports scheduled cleanups that have not run yet. *delivery.Scheduler implements it.
type PendingCounter interface {
	Pending() int
	Stats() (deleted, failed int64)
}

// Sweeper drops expired conversation states. *models.MemoryConversationStore implements it.
type Sweeper interface {
	Sweep() int
}

// GetProcessingStats returns a snapshot of the counters, memory usage and cleanup stats.
func GetProcessingStats(cleanups PendingCounter) map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := map[string]interface{}{
		"uptime_seconds":  int64(time.Since(startTime).Seconds()),
		"total_messages":  atomic.LoadInt64(&totalMessagesProcessed),
		"channel_posts":   atomic.LoadInt64(&totalChannelPosts),
		"total_errors":    atomic.LoadInt64(&totalErrors),
		"memory_usage_mb": bToMb(m.Alloc),
		"sys_memory_mb":   bToMb(m.Sys),
		"gc_runs":         m.NumGC,
		"goroutines":      runtime.NumGoroutine(),
	}
	for o := service.OutcomeDelivered; o <= service.OutcomeIgnored; o++ {
		stats["outcome_"+o.String()] = atomic.LoadInt64(&outcomeCounters[o])
	}
	if cleanups != nil {
		deleted, failed := cleanups.Stats()
		stats["pending_cleanups"] = cleanups.Pending()
		stats["deleted_messages"] = deleted
		stats["failed_deletions"] = failed
	}
	return stats
}

// LogProcessingStats logs the current stats and warns on a high error rate.
func LogProcessingStats(cleanups PendingCounter) {
	stats := GetProcessingStats(cleanups)
	logger.Infof("Processing stats: %+v", stats)

	// warn above 10% errors
	totalMessages := stats["total_messages"].(int64)
	errs := stats["total_errors"].(int64)
	if totalMessages > 0 && float64(errs)/float64(totalMessages) > 0.1 {
		logger.Warningf("High error rate: %.2f%% (%d errors out of %d messages)",
			float64(errs)/float64(totalMessages)*100, errs, totalMessages)
	}
}

// StartStatusMonitoring schedules the periodic stats log and, when sweeper is
// set, the removal of expired search states. The caller stops the returned cron.
func StartStatusMonitoring(cleanups PendingCounter, sweeper Sweeper) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 5m", func() { LogProcessingStats(cleanups) }); err != nil {
		return nil, fmt.Errorf("schedule stats job: %w", err)
	}

	if sweeper != nil {
		_, err := c.AddFunc("@every 1m", func() {
			if removed := sweeper.Sweep(); removed > 0 {
				logger.Debugf("Dropped %d expired search sessions", removed)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("schedule conversation sweep: %w", err)
		}
	}

	c.Start()
	logger.Infof("Status monitoring started")
	return c, nil
}

// bToMb converts bytes to megabytes.
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// GetDetailedStatus renders the stats for the debug page.
func GetDetailedStatus(cleanups PendingCounter) string {
	stats := GetProcessingStats(cleanups)
	return fmt.Sprintf(`
=== tg-vaultbot Processing Status ===
Uptime: %d seconds
Messages Processed: %d
Channel Posts: %d
Errors: %d
Delivered: %d
Not Member: %d
Not Found: %d
Failed: %d
Pending Cleanups: %v
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
=====================================`,
		stats["uptime_seconds"],
		stats["total_messages"],
		stats["channel_posts"],
		stats["total_errors"],
		stats["outcome_delivered"],
		stats["outcome_not_member"],
		stats["outcome_not_found"],
		stats["outcome_failed"],
		stats["pending_cleanups"],
		stats["memory_usage_mb"],
		stats["sys_memory_mb"],
		stats["gc_runs"],
		stats["goroutines"],
	)
}
