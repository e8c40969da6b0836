// Package schedule sequences a batch of candidate URLs so that consecutive requests to one
// host are spaced by a fixed delay while different hosts proceed without waiting.
package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"linkchecker/internal/linkurl"
	"linkchecker/internal/metrics"
	"linkchecker/internal/models"
)

// Prober checks a single URL. A non-nil error aborts the whole batch.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (models.LinkCheckResult, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Batcher probes one batch at a time. It keeps no state between Schedule calls.
type Batcher struct {
	prober Prober
	delay  time.Duration
	jobs   int
	sleep  Sleeper
}

// New returns a Batcher. jobs <= 1 probes strictly sequentially; larger values allow that many
// hosts to be probed concurrently.
func New(prober Prober, delay time.Duration, jobs int) *Batcher {
	if jobs < 1 {
		jobs = 1
	}
	return &Batcher{
		prober: prober,
		delay:  delay,
		jobs:   jobs,
		sleep:  sleepContext,
	}
}

// Schedule probes every eligible URL in urls and returns their results in input order.
// URLs with an unsupported scheme are logged and left out of the results.
func (b *Batcher) Schedule(ctx context.Context, urls []string) ([]models.LinkCheckResult, error) {
	if b.jobs == 1 {
		return b.sequential(ctx, urls)
	}
	return b.concurrent(ctx, urls)
}

func (b *Batcher) sequential(ctx context.Context, urls []string) ([]models.LinkCheckResult, error) {
	results := make([]models.LinkCheckResult, 0, len(urls))
	prevHost := ""
	for _, u := range urls {
		if !linkurl.Eligible(u) {
			skip(u)
			continue
		}
		log.Printf("processing url=%s", u)

		host := linkurl.HostKey(u)
		if host != "" && host == prevHost {
			if err := b.sleep(ctx, b.delay); err != nil {
				return nil, err
			}
		}

		result, err := b.prober.Probe(ctx, u)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
		prevHost = host
	}
	return results, nil
}

type laneItem struct {
	pos int
	url string
}

// lane is the ordered list of URLs for one host.
type lane []laneItem

// concurrent runs one goroutine per host lane, at most b.jobs at a time. Within a lane the
// delay separates every pair of consecutive probes.
func (b *Batcher) concurrent(ctx context.Context, urls []string) ([]models.LinkCheckResult, error) {
	lanes, eligible := buildLanes(urls)
	results := make([]models.LinkCheckResult, eligible)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		sem      = make(chan struct{}, b.jobs)
	)

dispatch:
	for _, l := range lanes {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(l lane) {
			defer func() {
				<-sem
				wg.Done()
			}()
			if err := b.runLane(ctx, l, results); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(l)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Batcher) runLane(ctx context.Context, l lane, results []models.LinkCheckResult) error {
	for i, item := range l {
		if i > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				return err
			}
		}
		log.Printf("processing url=%s", item.url)
		result, err := b.prober.Probe(ctx, item.url)
		if err != nil {
			return err
		}
		results[item.pos] = result
	}
	return nil
}

// buildLanes groups eligible URLs by host, keeping input order inside each lane and ordering
// lanes by first appearance. URLs without a host get a lane of their own. It also returns the
// number of eligible URLs.
func buildLanes(urls []string) ([]lane, int) {
	var lanes []lane
	index := make(map[string]int)
	pos := 0
	for _, u := range urls {
		if !linkurl.Eligible(u) {
			skip(u)
			continue
		}
		item := laneItem{pos: pos, url: u}
		pos++

		host := linkurl.HostKey(u)
		if host == "" {
			lanes = append(lanes, lane{item})
			continue
		}
		if i, ok := index[host]; ok {
			lanes[i] = append(lanes[i], item)
			continue
		}
		index[host] = len(lanes)
		lanes = append(lanes, lane{item})
	}
	return lanes, pos
}

func skip(u string) {
	metrics.URLSkipped()
	log.Printf("skipping url=%s reason=unsupported_scheme", u)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
