package observability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewShutdownManager(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	server := &http.Server{}

	t.Run("custom timeout", func(t *testing.T) {
		sm := NewShutdownManager(logger, server, 10*time.Second)
		if sm.shutdownTimeout != 10*time.Second {
			t.Errorf("Expected timeout 10s, got %v", sm.shutdownTimeout)
		}
		if sm.server != server {
			t.Error("Server not set correctly")
		}
	})

	t.Run("zero timeout uses default", func(t *testing.T) {
		sm := NewShutdownManager(logger, server, 0)
		if sm.shutdownTimeout != 30*time.Second {
			t.Errorf("Expected default timeout 30s, got %v", sm.shutdownTimeout)
		}
	})
}

func TestRegisterShutdownFunc(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	}

	if len(sm.shutdownFuncs) != 3 {
		t.Errorf("Expected 3 shutdown functions, got %d", len(sm.shutdownFuncs))
	}
}

func TestRegisterShutdownFunc_Concurrent(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
		}()
	}
	wg.Wait()

	if len(sm.shutdownFuncs) != 20 {
		t.Errorf("Expected 20 shutdown functions, got %d", len(sm.shutdownFuncs))
	}
}

// executeShutdownFuncs mirrors the function execution in WaitForShutdown so
// the behavior is testable without sending the process a signal.
func executeShutdownFuncs(sm *ShutdownManager, timeout time.Duration) []error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, len(sm.shutdownFuncs))
	for _, fn := range sm.shutdownFuncs {
		wg.Add(1)
		go func(shutdownFn ShutdownFunc) {
			defer wg.Done()
			if err := shutdownFn(ctx); err != nil {
				errChan <- err
			}
		}(fn)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errs
}

func TestShutdownFunctionsExecution(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var executed int32
	for i := 0; i < 5; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			return nil
		})
	}

	errs := executeShutdownFuncs(sm, 2*time.Second)
	if len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}
	if atomic.LoadInt32(&executed) != 5 {
		t.Errorf("Expected all 5 functions to execute, got %d", executed)
	}
}

func TestShutdownWithMixedSuccessAndFailure(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error { return nil })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return errors.New("close failed") })
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return fmt.Errorf("flush failed") })

	errs := executeShutdownFuncs(sm, 2*time.Second)
	if len(errs) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(errs))
	}
}

func TestShutdownFunctionContextTimeout(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})

	start := time.Now()
	errs := executeShutdownFuncs(sm, 100*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Shutdown function ignored context cancellation, took %v", elapsed)
	}
	if len(errs) != 1 || !errors.Is(errs[0], context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", errs)
	}
}
