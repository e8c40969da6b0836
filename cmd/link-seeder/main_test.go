package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingRegistry struct {
	calls [][]string
	err   error
}

func (r *recordingRegistry) AddLinks(_ context.Context, urls ...string) error {
	r.calls = append(r.calls, append([]string(nil), urls...))
	return r.err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "links.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		body    string
		wantErr bool
		urls    int
	}{
		{"valid", `{"urls":["https://example.com/","ftp://example.com/f"]}`, false, 2},
		{"blank entries", `{"urls":["", "http://a.com/", ""]}`, false, 1},
		{"empty urls", `{"urls":[]}`, true, 0},
		{"bad json", `{not json`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeConfig(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadConfig() err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(cfg.URLs) != tt.urls {
				t.Fatalf("expected %d urls, got %d", tt.urls, len(cfg.URLs))
			}
		})
	}

	if _, err := loadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunRegistersInChunks(t *testing.T) {
	urls := make([]string, 0, seedChunk+3)
	for i := 0; i < seedChunk+3; i++ {
		urls = append(urls, fmt.Sprintf("%q", fmt.Sprintf("http://host%d.example/", i)))
	}
	path := writeConfig(t, `{"urls":[`+strings.Join(urls, ",")+`]}`)

	registry := &recordingRegistry{}
	if err := run(context.Background(), path, registry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(registry.calls) != 2 || len(registry.calls[0]) != seedChunk || len(registry.calls[1]) != 3 {
		t.Fatalf("unexpected chunking: %d calls", len(registry.calls))
	}
	if registry.calls[1][2] != fmt.Sprintf("http://host%d.example/", seedChunk+2) {
		t.Fatalf("unexpected last url: %s", registry.calls[1][2])
	}
}

func TestRunPropagatesRegistryError(t *testing.T) {
	path := writeConfig(t, `{"urls":["http://a.com/"]}`)
	registry := &recordingRegistry{err: errors.New("redis down")}

	err := run(context.Background(), path, registry)
	if err == nil || !strings.Contains(err.Error(), "redis down") {
		t.Fatalf("expected registry error, got %v", err)
	}
}

func TestRunConfigError(t *testing.T) {
	path := writeConfig(t, `{"urls":[]}`)
	if err := run(context.Background(), path, &recordingRegistry{}); !errors.Is(err, errNoURLs) {
		t.Fatalf("expected errNoURLs, got %v", err)
	}
}
