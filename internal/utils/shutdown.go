package utils

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type shutdownTask struct {
	name string
	fn   func(context.Context) error
}

// ShutdownManager cancels the root context on SIGINT/SIGTERM and then runs
// the registered tasks, last registered first.
type ShutdownManager struct {
	cancelFunc context.CancelFunc
	timeout    time.Duration
	tasks      []shutdownTask
	mu         sync.Mutex
	done       chan struct{}
}

func NewShutdownManager(ctx context.Context, timeout time.Duration) (context.Context, *ShutdownManager) {
	ctx, cancel := context.WithCancel(ctx)
	manager := &ShutdownManager{
		cancelFunc: cancel,
		timeout:    timeout,
		done:       make(chan struct{}),
	}
	return ctx, manager
}

func (sm *ShutdownManager) Register(name string, task func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.tasks = append(sm.tasks, shutdownTask{name: name, fn: task})
}

func (sm *ShutdownManager) StartListening() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("[SHUTDOWN] Received signal: %v", sig)
		sm.Shutdown()
	}()
}

// Shutdown runs the tasks once. Later calls are no-ops.
func (sm *ShutdownManager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	select {
	case <-sm.done:
		return
	default:
	}

	sm.cancelFunc()

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	for i := len(sm.tasks) - 1; i >= 0; i-- {
		task := sm.tasks[i]
		log.Printf("[SHUTDOWN] %s", task.name)
		if err := task.fn(ctx); err != nil {
			log.Printf("[SHUTDOWN] Error during %s: %v", task.name, err)
		}
	}

	log.Println("[SHUTDOWN] Graceful shutdown complete")
	close(sm.done)
}

// Done is closed once every task has run.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.done
}
