package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkchecker/common"
	"linkchecker/internal/checker"
	"linkchecker/internal/kafka"
	"linkchecker/internal/metrics"
	"linkchecker/internal/probe"
	"linkchecker/internal/store"
)

// options is everything main needs, after flags and environment are merged.
type options struct {
	dsn         string
	prefix      string
	logFile     string
	broker      string
	statusTopic string
	metricsAddr string
	cfg         checker.Config
}

// parseOptions reads the environment for defaults and lets flags in args override them.
func parseOptions(args []string) (options, error) {
	d := checker.DefaultConfig()
	fs := flag.NewFlagSet("linkchecker", flag.ContinueOnError)

	opts := options{}
	fs.StringVar(&opts.dsn, "dsn", common.GetEnv("REDIS_ADDR", "localhost:6379"), "Redis address holding the link catalog")
	fs.StringVar(&opts.prefix, "prefix", common.GetEnv("REDIS_PREFIX", store.DefaultPrefix), "Redis key prefix")
	fs.StringVar(&opts.logFile, "logfile", common.GetEnv("LOG_FILE", ""), "append log output to this file instead of stderr")
	fs.StringVar(&opts.broker, "broker", common.GetEnv("KAFKA_BROKER", "localhost:9092"), "Kafka broker for status events")
	fs.StringVar(&opts.statusTopic, "status-topic", common.GetEnv("KAFKA_STATUS_TOPIC", ""), "Kafka topic for status events (empty disables publishing)")
	fs.StringVar(&opts.metricsAddr, "metrics", common.GetEnv("METRICS_ADDR", ""), "address to serve /metrics on (empty disables)")

	timeout := fs.Duration("timeout",
		common.ParseDuration(common.GetEnv("CHECK_TIMEOUT", ""), d.Timeout), "per-request timeout")
	delay := fs.Float64("delay",
		common.ParseFloat(common.GetEnv("HOST_DELAY_SECONDS", ""), d.HostDelay.Seconds()), "seconds between requests to one host")
	age := fs.Int("age",
		common.ParseInt(common.GetEnv("RECHECK_AGE_DAYS", ""), int(d.RecheckAge/(24*time.Hour))), "minimum age in days of a check before it is repeated")
	packSize := fs.Int("packsize",
		common.ParseInt(common.GetEnv("PACK_SIZE", ""), d.PageSize), "candidates requested per batch")
	jobs := fs.Int("jobs",
		common.ParseInt(common.GetEnv("JOBS", ""), d.Jobs), "hosts probed concurrently")
	strict := fs.Bool("strict",
		common.ParseBool(common.GetEnv("STRICT_UNKNOWN", ""), false), "abort on probe errors that fit no known kind")
	userAgent := fs.String("user-agent", common.GetEnv("USER_AGENT", d.UserAgent), "User-Agent header sent with every probe")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *age < 0 {
		return options{}, fmt.Errorf("age must not be negative, got %d", *age)
	}
	if *delay < 0 {
		return options{}, fmt.Errorf("delay must not be negative, got %g", *delay)
	}

	opts.cfg = checker.Config{
		Timeout:       *timeout,
		HostDelay:     time.Duration(*delay * float64(time.Second)),
		RecheckAge:    common.Days(*age),
		PageSize:      *packSize,
		Jobs:          *jobs,
		MaxRedirects:  probe.DefaultMaxRedirects,
		UserAgent:     *userAgent,
		StrictUnknown: *strict,
	}
	return opts, nil
}

// openLog redirects the standard logger to path in append mode. The returned closer is a no-op
// when path is empty.
func openLog(path string) (io.Closer, error) {
	if path == "" {
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run wires the checker and returns the process exit code: 0 when every candidate was
// processed, 130 when interrupted, 1 on any fatal error. Deferred cleanups run before main exits.
func run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		log.Printf("invalid arguments: %v", err)
		return 1
	}

	logCloser, err := openLog(opts.logFile)
	if err != nil {
		log.Printf("open log file %s: %v", opts.logFile, err)
		return 1
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		metrics.StartServer(ctx, opts.metricsAddr)
	}

	// Candidate discovery and status writes use separate connections.
	readStore := store.NewRedisLinkStore(opts.dsn, opts.prefix)
	defer func() {
		if err := readStore.Close(); err != nil {
			log.Printf("failed to close read-only redis client: %v", err)
		}
	}()
	writeStore := store.NewRedisLinkStore(opts.dsn, opts.prefix)
	defer func() {
		if err := writeStore.Close(); err != nil {
			log.Printf("failed to close read-write redis client: %v", err)
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = readStore.Ping(pingCtx)
	pingCancel()
	if err != nil {
		log.Printf("redis unreachable addr=%s: %v", opts.dsn, err)
		return exitCode(ctx, err)
	}

	var publisher kafka.StatusPublisher
	if opts.statusTopic != "" {
		producer := kafka.NewProducer(opts.broker, opts.statusTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Printf("failed to close status producer: %v", err)
			}
		}()
		publisher = producer
		log.Printf("publishing status events topic=%s broker=%s", opts.statusTopic, opts.broker)
	}

	prober := probe.New(probe.NewHTTPClient(), opts.cfg.UserAgent, opts.cfg.MaxRedirects)
	runner := checker.New(opts.cfg, readStore, writeStore, prober, publisher)

	summary, err := runner.Run(ctx)
	switch code := exitCode(ctx, err); code {
	case 0:
		log.Printf("run complete run=%s batches=%d results=%d", summary.RunID, summary.Batches, summary.Results)
		return code
	case 130:
		log.Printf("run interrupted run=%s batches=%d cursor=%s", summary.RunID, summary.Batches, summary.Cursor)
		return code
	default:
		log.Printf("run failed run=%s batches=%d cursor=%s: %v", summary.RunID, summary.Batches, summary.Cursor, err)
		return code
	}
}

// exitCode maps a run error onto the process exit status.
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return 130
	default:
		return 1
	}
}
