package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"linkchecker/common"
	"linkchecker/internal/linkurl"
	"linkchecker/internal/store"
)

// Config holds the links to register.
type Config struct {
	URLs []string `json:"urls"`
}

// linkRegistrar adds URLs to the catalog of links to check.
type linkRegistrar interface {
	AddLinks(ctx context.Context, urls ...string) error
}

// seedChunk bounds the size of a single AddLinks call.
const seedChunk = 500

func main() {
	configPath := flag.String("config", "links.json", "Path to JSON config file with urls")
	redisAddr := flag.String("dsn", common.GetEnv("REDIS_ADDR", "localhost:6379"), "Redis address holding the link catalog")
	prefix := flag.String("prefix", common.GetEnv("REDIS_PREFIX", store.DefaultPrefix), "Redis key prefix")
	flag.Parse()

	linkStore := store.NewRedisLinkStore(*redisAddr, *prefix)
	defer func() {
		if err := linkStore.Close(); err != nil {
			log.Printf("failed to close link store: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, *configPath, linkStore); err != nil {
		log.Fatal(err)
	}
}

// run loads config from configPath and registers every URL with registry in chunks. URLs that
// the checker would skip are still registered; the checker logs them when it reaches them.
func run(ctx context.Context, configPath string, registry linkRegistrar) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	skipped := 0
	for _, u := range cfg.URLs {
		if !linkurl.Eligible(u) {
			skipped++
		}
	}

	for start := 0; start < len(cfg.URLs); start += seedChunk {
		end := min(start+seedChunk, len(cfg.URLs))
		if err := registry.AddLinks(ctx, cfg.URLs[start:end]...); err != nil {
			return fmt.Errorf("register links %d-%d: %w", start, end, err)
		}
	}
	log.Printf("registered %d links (%d with unsupported scheme)", len(cfg.URLs), skipped)
	return nil
}

// loadConfig reads and parses the JSON config file, dropping blank entries.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	urls := cfg.URLs[:0]
	for _, u := range cfg.URLs {
		if u != "" {
			urls = append(urls, u)
		}
	}
	cfg.URLs = urls
	if len(cfg.URLs) == 0 {
		return cfg, errNoURLs
	}
	return cfg, nil
}

var errNoURLs = fmt.Errorf("config has no urls")
