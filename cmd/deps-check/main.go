package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"linkchecker/common"
	"linkchecker/internal/store"
)

func main() {
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	redisAddr := common.GetEnv("REDIS_ADDR", "localhost:6379")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	linkStore := store.NewRedisLinkStore(redisAddr, store.DefaultPrefix)
	defer linkStore.Close()
	if err := linkStore.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to reach Redis at %s: %v\n", redisAddr, err)
		os.Exit(1)
	}
	fmt.Printf("connected to Redis at %s\n", redisAddr)

	if common.ParseBool(common.GetEnv("SKIP_KAFKA", ""), false) {
		return
	}

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Kafka at %s: %v\n", broker, err)
		os.Exit(1)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read metadata: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("connected to Kafka at %s (%d partitions)\n", broker, len(partitions))
}
