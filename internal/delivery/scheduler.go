// Package delivery removes delivered videos and their notices after a delay.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"tg-vaultbot/internal/crash"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// MessageDeleter is the part of the Telegram API the scheduler needs. *telego.Bot implements it.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
}

// PendingDelivery is a scheduled cleanup. It lives in memory only.
type PendingDelivery struct {
	ID         string
	ChatID     int64
	MessageIDs []int
	FireAt     time.Time
}

const (
	handlePending int32 = iota
	handleFiring
	handleCancelled
)

// CleanupHandle controls one scheduled cleanup.
type CleanupHandle struct {
	delivery  PendingDelivery
	state     atomic.Int32
	cancelled chan struct{}
	fireNow   chan struct{}
	fireOnce  sync.Once
	done      chan struct{}
}

// ID returns the id of the pending delivery.
func (h *CleanupHandle) ID() string {
	return h.delivery.ID
}

// Cancel stops the cleanup if it has not started yet and reports whether it did.
func (h *CleanupHandle) Cancel() bool {
	if !h.state.CompareAndSwap(handlePending, handleCancelled) {
		return false
	}
	close(h.cancelled)
	return true
}

// Done is closed once the cleanup has run or was cancelled.
func (h *CleanupHandle) Done() <-chan struct{} {
	return h.done
}

func (h *CleanupHandle) fire() {
	h.fireOnce.Do(func() { close(h.fireNow) })
}

// Scheduler deletes messages after a delay without blocking the caller.
// Cleanups are not persisted; a restart loses the ones still pending.
type Scheduler struct {
	deleter MessageDeleter

	mu      sync.Mutex
	pending map[string]*CleanupHandle
	wg      sync.WaitGroup

	deleted atomic.Int64
	failed  atomic.Int64
}

func NewScheduler(deleter MessageDeleter) *Scheduler {
	return &Scheduler{
		deleter: deleter,
		pending: make(map[string]*CleanupHandle),
	}
}

// ScheduleCleanup deletes messageIDs from chatID, in order, once delay has
// elapsed. A failed deletion is logged and the remaining ids are still tried.
func (s *Scheduler) ScheduleCleanup(chatID int64, messageIDs []int, delay time.Duration) *CleanupHandle {
	ids := make([]int, len(messageIDs))
	copy(ids, messageIDs)

	h := &CleanupHandle{
		delivery: PendingDelivery{
			ID:         uuid.New().String(),
			ChatID:     chatID,
			MessageIDs: ids,
			FireAt:     time.Now().Add(delay),
		},
		cancelled: make(chan struct{}),
		fireNow:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.pending[h.ID()] = h
	s.mu.Unlock()

	s.wg.Add(1)
	crash.SafeGoroutine(fmt.Sprintf("cleanup-%s", h.ID()), func() {
		defer s.wg.Done()
		defer close(h.done)
		defer s.forget(h.ID())

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-h.fireNow:
		case <-h.cancelled:
			logger.Debugf("Cleanup %s for chat %d cancelled", h.ID(), chatID)
			return
		}

		if !h.state.CompareAndSwap(handlePending, handleFiring) {
			return
		}
		s.deleteMessages(h.delivery)
	})

	logger.Debugf("Scheduled cleanup %s of messages %v in chat %d in %v", h.ID(), ids, chatID, delay)
	return h
}

func (s *Scheduler) deleteMessages(pd PendingDelivery) {
	for _, messageID := range pd.MessageIDs {
		err := s.deleter.DeleteMessage(context.Background(), &telego.DeleteMessageParams{
			ChatID:    tu.ID(pd.ChatID),
			MessageID: messageID,
		})
		if err != nil {
			s.failed.Add(1)
			logger.Warningf("Could not delete message %d in chat %d: %v", messageID, pd.ChatID, models.NewTransportError("deleteMessage", err))
			continue
		}
		s.deleted.Add(1)
	}
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Pending returns the number of cleanups that have not run yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Snapshot returns the pending deliveries, for diagnostics.
func (s *Scheduler) Snapshot() []PendingDelivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]PendingDelivery, 0, len(s.pending))
	for _, h := range s.pending {
		out = append(out, h.delivery)
	}
	return out
}

// Stats returns how many deletions succeeded and failed so far.
func (s *Scheduler) Stats() (deleted, failed int64) {
	return s.deleted.Load(), s.failed.Load()
}

// Flush runs every pending cleanup now and waits for them or for ctx.
// Used on shutdown so delivered videos do not outlive the process.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	handles := make([]*CleanupHandle, 0, len(s.pending))
	for _, h := range s.pending {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	if len(handles) > 0 {
		logger.Infof("Shutdown: running %d pending cleanups", len(handles))
	}
	for _, h := range handles {
		h.fire()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
