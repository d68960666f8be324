package remotedisk

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwantia/remotedisk/data"
	"github.com/mwantia/remotedisk/log"
)

func newExecutorLogger() (*log.Logger, *bytes.Buffer) {
	logger := log.NewLogger("executor", log.Debug, "", true)
	logger.NoColor = true

	var buf bytes.Buffer
	logger.SetWriter(&buf)

	return logger, &buf
}

// TestExecutor_Success verifies completion through the future.
func TestExecutor_Success(t *testing.T) {
	logger, _ := newExecutorLogger()
	executor := NewAsyncExecutor("test", 2, 16, logger)
	defer executor.Shutdown(context.Background())

	ran := false
	future, err := executor.Execute(func() error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if err := future.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned %v", err)
	}
	if !ran {
		t.Error("Task did not run")
	}
}

// TestExecutor_FailurePropagation verifies that a failing task reports the
// same failure through the future and leaves a log entry.
func TestExecutor_FailurePropagation(t *testing.T) {
	logger, buf := newExecutorLogger()
	executor := NewAsyncExecutor("test", 1, 16, logger)
	defer executor.Shutdown(context.Background())

	boom := errors.New("remote unavailable")
	future, err := executor.Execute(func() error {
		return boom
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if err := future.Wait(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected task failure through the future, got %v", err)
	}
	if future.Err() != boom {
		t.Errorf("Expected Err to return the failure, got %v", future.Err())
	}

	if !strings.Contains(buf.String(), "Failed to run async task") {
		t.Errorf("Expected a failure log entry, got %q", buf.String())
	}
}

// TestExecutor_FIFO verifies dispatch in submission order on one worker.
func TestExecutor_FIFO(t *testing.T) {
	logger, _ := newExecutorLogger()
	executor := NewAsyncExecutor("test", 1, 64, logger)
	defer executor.Shutdown(context.Background())

	var mu sync.Mutex
	var order []int

	futures := make([]*Future, 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		future, err := executor.Execute(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		futures = append(futures, future)
	}

	for _, future := range futures {
		if err := future.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("Tasks ran out of order: %v", order)
		}
	}
}

// TestExecutor_QueueFull verifies loud failure instead of silent dropping.
func TestExecutor_QueueFull(t *testing.T) {
	logger, _ := newExecutorLogger()
	executor := NewAsyncExecutor("test", 1, 1, logger)
	defer executor.Shutdown(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})

	// Occupy the single worker.
	blocker, err := executor.Execute(func() error {
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	<-started

	// Fill the single queue slot.
	queued, err := executor.Execute(func() error { return nil })
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if _, err := executor.Execute(func() error { return nil }); !errors.Is(err, data.ErrExecutorQueueFull) {
		t.Errorf("Expected ErrExecutorQueueFull, got %v", err)
	}

	close(release)
	if err := blocker.Wait(context.Background()); err != nil {
		t.Fatalf("Blocker failed: %v", err)
	}
	if err := queued.Wait(context.Background()); err != nil {
		t.Fatalf("Queued task failed: %v", err)
	}
}

// TestExecutor_SetMaxThreads verifies runtime pool resizing.
func TestExecutor_SetMaxThreads(t *testing.T) {
	logger, _ := newExecutorLogger()
	executor := NewAsyncExecutor("test", 1, 16, logger)
	defer executor.Shutdown(context.Background())

	executor.SetMaxThreads(4)
	if executor.Threads() != 4 {
		t.Errorf("Expected 4 workers, got %d", executor.Threads())
	}

	executor.SetMaxThreads(2)
	if executor.Threads() != 2 {
		t.Errorf("Expected 2 workers, got %d", executor.Threads())
	}

	// The shrunken pool still runs tasks.
	future, err := executor.Execute(func() error { return nil })
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := future.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

// TestExecutor_Shutdown verifies draining and rejection after shutdown.
func TestExecutor_Shutdown(t *testing.T) {
	logger, _ := newExecutorLogger()
	executor := NewAsyncExecutor("test", 2, 16, logger)

	var completed int32
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		if _, err := executor.Execute(func() error {
			time.Sleep(time.Millisecond)
			mu.Lock()
			completed++
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	if err := executor.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if completed != 8 {
		t.Errorf("Expected all queued tasks to drain, %d completed", completed)
	}

	if _, err := executor.Execute(func() error { return nil }); !errors.Is(err, data.ErrExecutorStopped) {
		t.Errorf("Expected ErrExecutorStopped, got %v", err)
	}
}
