package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"linkchecker/common"
	"linkchecker/internal/linkurl"
	"linkchecker/internal/store"
)

// linkRegistrar adds URLs to the catalog of links to check.
type linkRegistrar interface {
	AddLinks(ctx context.Context, urls ...string) error
}

type server struct {
	store    store.StatusReader
	registry linkRegistrar
}

func newServer(reader store.StatusReader, registry linkRegistrar) *server {
	return &server{
		store:    reader,
		registry: registry,
	}
}

func main() {
	redisAddr := common.GetEnv("REDIS_ADDR", "localhost:6379")
	prefix := common.GetEnv("REDIS_PREFIX", store.DefaultPrefix)
	addr := common.GetEnv("API_ADDR", ":8080")

	linkStore := store.NewRedisLinkStore(redisAddr, prefix)
	defer func() {
		if err := linkStore.Close(); err != nil {
			log.Printf("failed to close link store: %v", err)
		}
	}()

	srv := newServer(linkStore, linkStore)

	mux := http.NewServeMux()
	mux.HandleFunc("/links", srv.handleLinks)
	mux.HandleFunc("/metrics", srv.handleMetrics)

	log.Printf("status api listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// handleLinks serves the last committed status of a link (GET) or registers a new one (POST).
//
// Method: GET, POST
// Path:   /links?url=...
// Example:
//
//	curl "http://localhost:8080/links?url=https://example.com/"
//	curl -X POST "http://localhost:8080/links?url=https://example.com/"
func (s *server) handleLinks(w http.ResponseWriter, r *http.Request) {
	link := strings.TrimSpace(r.URL.Query().Get("url"))
	if link == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getStatus(w, r, link)
	case http.MethodPost:
		s.register(w, r, link)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request, link string) {
	status, ok, err := s.store.GetLinkStatus(r.Context(), link)
	if err != nil {
		log.Printf("status lookup error url=%s: %v", link, err)
		http.Error(w, "failed to load status", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, status, http.StatusOK)
}

func (s *server) register(w http.ResponseWriter, r *http.Request, link string) {
	if !linkurl.Eligible(link) {
		http.Error(w, "only http and https links can be checked", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.registry.AddLinks(ctx, link); err != nil {
		log.Printf("register error url=%s: %v", link, err)
		http.Error(w, "failed to register link", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"url": link, "status": "registered"}, http.StatusAccepted)
}

// handleMetrics exposes a minimal Prometheus-compatible endpoint.
//
// Method: GET
// Path:   /metrics
func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("linkchecker_status_api_up 1\n"))
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
