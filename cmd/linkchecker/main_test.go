package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"linkchecker/internal/checker"
	"linkchecker/internal/store"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := checker.DefaultConfig()
	if opts.cfg != d {
		t.Fatalf("expected default config %+v, got %+v", d, opts.cfg)
	}
	if opts.dsn != "localhost:6379" || opts.prefix != store.DefaultPrefix || opts.statusTopic != "" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestParseOptionsEnvironmentAndFlags(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PACK_SIZE", "16")
	t.Setenv("JOBS", "4")
	t.Setenv("STRICT_UNKNOWN", "yes")

	opts, err := parseOptions([]string{"-delay", "0.5", "-age", "7", "-timeout", "10s", "-jobs", "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.dsn != "redis:6379" {
		t.Fatalf("expected dsn from env, got %s", opts.dsn)
	}
	cfg := opts.cfg
	if cfg.PageSize != 16 || cfg.Jobs != 2 || !cfg.StrictUnknown {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HostDelay != 500*time.Millisecond || cfg.RecheckAge != 7*24*time.Hour || cfg.Timeout != 10*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
}

func TestParseOptionsRejectsNegativeAge(t *testing.T) {
	if _, err := parseOptions([]string{"-age", "-1"}); err == nil {
		t.Fatal("expected error for negative age")
	}
}

func TestOpenLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "check.log")
	if err := os.WriteFile(path, []byte("earlier\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	closer, err := openLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Printf("later")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "earlier\n") || !strings.Contains(string(data), "later") {
		t.Fatalf("unexpected log contents: %q", data)
	}
}

func TestExitCode(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name string
		ctx  context.Context
		err  error
		want int
	}{
		{"success", live, nil, 0},
		{"interrupted", cancelled, context.Canceled, 130},
		{"storage failure during shutdown", cancelled, checker.ErrStorage, 130},
		{"storage failure", live, fmt.Errorf("%w: commit: boom", checker.ErrStorage), 1},
		{"strict unclassified", live, checker.ErrUnclassifiedProbe, 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.ctx, tc.err); got != tc.want {
			t.Fatalf("%s: exitCode = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	if code := run([]string{"-age", "-2"}); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if code := run([]string{"-h"}); code != 0 {
		t.Fatalf("expected exit code 0 for help, got %d", code)
	}
}
