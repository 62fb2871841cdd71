package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
)

type deleteCall struct {
	chatID    int64
	messageID int
}

// fakeDeleter records DeleteMessage calls and fails for ids listed in failFor.
type fakeDeleter struct {
	mu      sync.Mutex
	calls   []deleteCall
	failFor map[int]bool
}

func (f *fakeDeleter) DeleteMessage(_ context.Context, params *telego.DeleteMessageParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, deleteCall{chatID: params.ChatID.ID, messageID: params.MessageID})
	if f.failFor[params.MessageID] {
		return errors.New("Bad Request: message to delete not found")
	}
	return nil
}

func (f *fakeDeleter) recorded() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]deleteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func waitDone(t *testing.T, h *CleanupHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup did not finish in time")
	}
}

func TestScheduleCleanupDeletesInOrderAfterDelay(t *testing.T) {
	deleter := &fakeDeleter{}
	s := NewScheduler(deleter)

	start := time.Now()
	h := s.ScheduleCleanup(100, []int{7, 8}, 50*time.Millisecond)
	if time.Since(start) > 20*time.Millisecond {
		t.Fatal("ScheduleCleanup blocked the caller")
	}
	if len(deleter.recorded()) != 0 {
		t.Fatal("messages deleted before the delay")
	}
	if s.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", s.Pending())
	}

	waitDone(t, h)
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("cleanup fired after %v, want >= 50ms", elapsed)
	}

	want := []deleteCall{{100, 7}, {100, 8}}
	got := deleter.recorded()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, got[i], want[i])
		}
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after cleanup = %d, want 0", s.Pending())
	}
}

func TestCleanupContinuesAfterFailure(t *testing.T) {
	deleter := &fakeDeleter{failFor: map[int]bool{1: true}}
	s := NewScheduler(deleter)

	h := s.ScheduleCleanup(5, []int{1, 2, 3}, time.Millisecond)
	waitDone(t, h)

	if got := len(deleter.recorded()); got != 3 {
		t.Fatalf("delete attempts = %d, want 3", got)
	}
	deleted, failed := s.Stats()
	if deleted != 2 || failed != 1 {
		t.Errorf("Stats = %d deleted, %d failed; want 2, 1", deleted, failed)
	}
}

func TestCancelPreventsDeletion(t *testing.T) {
	deleter := &fakeDeleter{}
	s := NewScheduler(deleter)

	h := s.ScheduleCleanup(5, []int{1, 2}, time.Hour)
	if !h.Cancel() {
		t.Fatal("Cancel on a pending cleanup = false")
	}
	waitDone(t, h)

	if h.Cancel() {
		t.Error("second Cancel = true, want false")
	}
	if got := deleter.recorded(); len(got) != 0 {
		t.Errorf("calls after cancel = %v", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", s.Pending())
	}
}

func TestCancelAfterFiringReturnsFalse(t *testing.T) {
	s := NewScheduler(&fakeDeleter{})

	h := s.ScheduleCleanup(5, []int{1}, time.Millisecond)
	waitDone(t, h)

	if h.Cancel() {
		t.Error("Cancel after the cleanup ran = true, want false")
	}
}

func TestScheduleCopiesMessageIDs(t *testing.T) {
	deleter := &fakeDeleter{}
	s := NewScheduler(deleter)

	ids := []int{1, 2}
	h := s.ScheduleCleanup(5, ids, 10*time.Millisecond)
	ids[0] = 99
	waitDone(t, h)

	if got := deleter.recorded(); got[0].messageID != 1 {
		t.Errorf("first deleted id = %d, want 1", got[0].messageID)
	}
}

func TestFlushRunsPendingCleanupsNow(t *testing.T) {
	deleter := &fakeDeleter{}
	s := NewScheduler(deleter)

	s.ScheduleCleanup(1, []int{10, 11}, time.Hour)
	s.ScheduleCleanup(2, []int{20}, time.Hour)

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot = %d entries, want 2", len(snap))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got := len(deleter.recorded()); got != 3 {
		t.Errorf("deletions after flush = %d, want 3", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending after flush = %d, want 0", s.Pending())
	}
}

func TestConcurrentSchedules(t *testing.T) {
	deleter := &fakeDeleter{}
	s := NewScheduler(deleter)

	var wg sync.WaitGroup
	handles := make(chan *CleanupHandle, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles <- s.ScheduleCleanup(int64(i), []int{i}, time.Millisecond)
		}(i)
	}
	wg.Wait()
	close(handles)

	for h := range handles {
		waitDone(t, h)
	}
	if got := len(deleter.recorded()); got != 50 {
		t.Errorf("deletions = %d, want 50", got)
	}
}
