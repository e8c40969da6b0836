package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"linkchecker/common"
	"linkchecker/internal/graph"
	"linkchecker/internal/models"
	"linkchecker/internal/stream"
)

// statusWriter persists one decoded status event.
type statusWriter interface {
	WriteStatus(ctx context.Context, event models.LinkStatusEvent) error
}

var (
	// Counters exposed on /metrics. received: messages fetched; failed: decode or Neo4j errors.
	eventsReceived uint64
	eventsFailed   uint64
	eventsWritten  uint64
	redirectEdges  uint64
)

func main() {
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	statusTopic := common.GetEnv("KAFKA_STATUS_TOPIC", "linkchecker.status")
	groupID := common.GetEnv("KAFKA_GROUP_ID", "linkchecker-redirect-graph")
	metricsAddr := common.GetEnv("METRICS_ADDR", ":9091")

	neo4jURI := common.GetEnv("NEO4J_URI", "neo4j://localhost:7687")
	neo4jUser := common.GetEnv("NEO4J_USER", "neo4j")
	neo4jPassword := common.GetEnv("NEO4J_PASSWORD", "neo4j")

	driver, err := graph.NewDriver(neo4jURI, neo4jUser, neo4jPassword)
	if err != nil {
		log.Fatalf("neo4j driver error: %v", err)
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			log.Printf("neo4j close error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   statusTopic,
		GroupID: groupID,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("status reader close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr)
	}

	log.Printf("redirect graph consuming topic=%s group=%s broker=%s", statusTopic, groupID, broker)
	consumeStatuses(ctx, reader, graph.NewWriter(driver))
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", handleMetrics)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics shutdown error: %v", err)
		}
	}()

	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	body := fmt.Sprintf(
		"linkchecker_redirect_graph_up 1\n"+
			"linkchecker_redirect_graph_events_received_total %d\n"+
			"linkchecker_redirect_graph_events_failed_total %d\n"+
			"linkchecker_redirect_graph_events_written_total %d\n"+
			"linkchecker_redirect_graph_permanent_redirects_total %d\n",
		atomic.LoadUint64(&eventsReceived),
		atomic.LoadUint64(&eventsFailed),
		atomic.LoadUint64(&eventsWritten),
		atomic.LoadUint64(&redirectEdges),
	)
	_, _ = w.Write([]byte(body))
}

// consumeStatuses writes every status event to the graph and commits its offset afterwards.
// A message that fails to write is not committed, so it is redelivered after a rebalance.
func consumeStatuses(ctx context.Context, reader stream.MessageReader, writer statusWriter) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("status fetch error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		atomic.AddUint64(&eventsReceived, 1)
		event, err := decodeEvent(msg.Value)
		if err != nil {
			atomic.AddUint64(&eventsFailed, 1)
			log.Printf("status decode error offset=%d: %v", msg.Offset, err)
			continue
		}
		if err := writer.WriteStatus(ctx, event); err != nil {
			atomic.AddUint64(&eventsFailed, 1)
			log.Printf("status write error url=%s: %v", event.URL, err)
			continue
		}
		atomic.AddUint64(&eventsWritten, 1)
		if event.Location != nil {
			atomic.AddUint64(&redirectEdges, 1)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("status commit error: %v", err)
		}
	}
}

func decodeEvent(payload []byte) (models.LinkStatusEvent, error) {
	var event models.LinkStatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return event, err
	}
	if event.URL == "" {
		return event, fmt.Errorf("status event without url")
	}
	return event, nil
}
