package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bannerhub/internal/config"
)

type stubService struct {
	name     string
	startErr error
	block    bool
	stopped  atomic.Bool
	onStop   func()
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return nil
	}
	return s.startErr
}

func (s *stubService) Stop(context.Context) error {
	s.stopped.Store(true)
	if s.onStop != nil {
		s.onStop()
	}
	return nil
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	failing := &stubService{name: "failing", startErr: errors.New("boom")}
	blocking := &stubService{name: "scheduler", block: true}
	runner := NewRunner(failing, blocking)

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "failing: boom" {
		t.Fatalf("runner should surface start error with service name, got %v", err)
	}
	if !failing.stopped.Load() || !blocking.stopped.Load() {
		t.Fatalf("all services should be stopped")
	}
}

func TestRunnerReturnsNilOnCancel(t *testing.T) {
	blocking := &stubService{name: "http", block: true}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRunner(blocking).Run(ctx, time.Second, nil) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("cancelled runner should return nil, got %v", err)
	}
	if !blocking.stopped.Load() {
		t.Fatalf("service should be stopped after cancel")
	}
}

func TestRunnerRejectsEmpty(t *testing.T) {
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("empty runner should fail")
	}
}

func TestRunnerStopsInReverseOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	first := &stubService{name: "http", block: true, onStop: record("http")}
	second := &stubService{name: "scheduler", block: true, onStop: record("scheduler")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewRunner(first, second).Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled runner should return nil, got %v", err)
	}
	if len(order) != 2 || order[0] != "scheduler" || order[1] != "http" {
		t.Fatalf("want scheduler stopped before http, got %v", order)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]string{"": ModeAll, "API": ModeAPI, " worker ": ModeWorker, "all": ModeAll}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseMode("cron"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

func TestHTTPServiceStartStop(t *testing.T) {
	svc := NewHTTPService("127.0.0.1:0", http.NotFoundHandler())
	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()
	deadline := time.Now().Add(time.Second)
	for svc.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	resp, err := http.Get("http://" + svc.Addr() + "/missing")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start should return nil after shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("http service did not stop")
	}
}

func TestBuildRunnerRequiresConfig(t *testing.T) {
	if _, err := BuildRunner(nil, ModeAll); err == nil {
		t.Fatalf("nil config should fail")
	}
	var cfg *config.Config
	if err := Run(Options{Config: cfg}); err == nil {
		t.Fatalf("run without config should fail")
	}
}
