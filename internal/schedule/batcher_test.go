package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"linkchecker/internal/models"
)

type probeCall struct {
	url string
	at  time.Time
}

// recordingProber returns 200 for every URL and remembers when each probe started.
type recordingProber struct {
	mu    sync.Mutex
	calls []probeCall
	fail  map[string]error
}

func (p *recordingProber) Probe(_ context.Context, rawURL string) (models.LinkCheckResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, probeCall{url: rawURL, at: time.Now()})
	err := p.fail[rawURL]
	p.mu.Unlock()
	if err != nil {
		return models.LinkCheckResult{}, err
	}
	return models.LinkCheckResult{URL: rawURL, Status: 200}, nil
}

func (p *recordingProber) urls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, c.url)
	}
	return out
}

// sleepLog records requested delays without waiting; before holds the number of probes issued
// when each sleep happened.
type sleepLog struct {
	mu     sync.Mutex
	prober *recordingProber
	delays []time.Duration
	before []int
}

func (s *sleepLog) sleep(_ context.Context, d time.Duration) error {
	s.prober.mu.Lock()
	n := len(s.prober.calls)
	s.prober.mu.Unlock()
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.before = append(s.before, n)
	s.mu.Unlock()
	return nil
}

func resultURLs(results []models.LinkCheckResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.URL)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScheduleSkipsUnsupportedSchemes(t *testing.T) {
	prober := &recordingProber{}
	b := New(prober, time.Second, 1)
	log := &sleepLog{prober: prober}
	b.sleep = log.sleep

	results, err := b.Schedule(context.Background(), []string{
		"ftp://a.com/file",
		"http://a.com/1",
		"mirror://gentoo/pkg.tar.gz",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := prober.urls(); !equalStrings(got, []string{"http://a.com/1"}) {
		t.Fatalf("unexpected probes: %v", got)
	}
	if got := resultURLs(results); !equalStrings(got, []string{"http://a.com/1"}) {
		t.Fatalf("unexpected results: %v", got)
	}
}

func TestScheduleDelaysOnlyConsecutiveSameHost(t *testing.T) {
	prober := &recordingProber{}
	b := New(prober, 3*time.Second, 1)
	log := &sleepLog{prober: prober}
	b.sleep = log.sleep

	input := []string{
		"http://a.com/1",
		"http://a.com/2",
		"http://b.com/1",
		"http://a.com/3",
		"https://A.com:443/4",
	}
	results, err := b.Schedule(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resultURLs(results); !equalStrings(got, input) {
		t.Fatalf("expected results in input order, got %v", got)
	}
	// a/1 -> a/2 delays; b.com breaks the run; a/3 -> A.com/4 delays again.
	if len(log.delays) != 2 || log.before[0] != 1 || log.before[1] != 4 {
		t.Fatalf("unexpected sleeps: delays=%v before=%v", log.delays, log.before)
	}
	for _, d := range log.delays {
		if d != 3*time.Second {
			t.Fatalf("unexpected delay %s", d)
		}
	}
}

func TestScheduleSkippedURLKeepsPreviousHost(t *testing.T) {
	prober := &recordingProber{}
	b := New(prober, time.Second, 1)
	log := &sleepLog{prober: prober}
	b.sleep = log.sleep

	_, err := b.Schedule(context.Background(), []string{"http://a.com/1", "ftp://b.com/x", "http://a.com/2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log.delays) != 1 {
		t.Fatalf("expected one delay across the skipped url, got %d", len(log.delays))
	}
}

func TestScheduleRealDelay(t *testing.T) {
	prober := &recordingProber{}
	delay := 60 * time.Millisecond
	b := New(prober, delay, 1)

	if _, err := b.Schedule(context.Background(), []string{"http://a.com/1", "http://a.com/2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gap := prober.calls[1].at.Sub(prober.calls[0].at); gap < delay {
		t.Fatalf("expected gap >= %s between same-host probes, got %s", delay, gap)
	}

	other := &recordingProber{}
	b = New(other, time.Hour, 1)
	done := make(chan error, 1)
	go func() {
		_, err := b.Schedule(context.Background(), []string{"http://a.com/1", "http://b.com/1"})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("different hosts should not wait for the per-host delay")
	}
}

func TestScheduleProbeErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	prober := &recordingProber{fail: map[string]error{"http://b.com/1": boom}}
	b := New(prober, 0, 1)

	_, err := b.Schedule(context.Background(), []string{"http://a.com/1", "http://b.com/1", "http://c.com/1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := prober.urls(); len(got) != 2 {
		t.Fatalf("expected probing to stop after the failure, got %v", got)
	}
}

func TestScheduleCancelledDuringDelay(t *testing.T) {
	prober := &recordingProber{}
	b := New(prober, time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := b.Schedule(ctx, []string{"http://a.com/1", "http://a.com/2"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := prober.urls(); len(got) != 1 {
		t.Fatalf("expected the second probe to be abandoned, got %v", got)
	}
}

func TestScheduleConcurrentPreservesOrderAndHostSpacing(t *testing.T) {
	prober := &recordingProber{}
	delay := 40 * time.Millisecond
	b := New(prober, delay, 4)

	input := []string{
		"http://a.com/1",
		"http://a.com/2",
		"http://a.com/3",
		"http://b.com/1",
		"ftp://skip.me/",
		"http://b.com/2",
		"http://c.com/1",
	}
	results, err := b.Schedule(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"http://a.com/1", "http://a.com/2", "http://a.com/3", "http://b.com/1", "http://b.com/2", "http://c.com/1"}
	if got := resultURLs(results); !equalStrings(got, want) {
		t.Fatalf("expected input order %v, got %v", want, got)
	}

	byHost := map[string][]probeCall{}
	for _, c := range prober.calls {
		host := c.url[len("http://"):][:5]
		byHost[host] = append(byHost[host], c)
	}
	for host, calls := range byHost {
		for i := 1; i < len(calls); i++ {
			if calls[i].url <= calls[i-1].url {
				t.Fatalf("%s probes out of order: %v", host, calls)
			}
			if gap := calls[i].at.Sub(calls[i-1].at); gap < delay {
				t.Fatalf("%s probes only %s apart", host, gap)
			}
		}
	}
}

func TestScheduleConcurrentErrorCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	prober := &recordingProber{fail: map[string]error{"http://b.com/1": boom}}
	b := New(prober, time.Hour, 2)

	done := make(chan error, 1)
	go func() {
		_, err := b.Schedule(context.Background(), []string{"http://a.com/1", "http://a.com/2", "http://b.com/1"})
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the failing lane to cancel the sleeping lane")
	}
}

func TestBuildLanes(t *testing.T) {
	lanes, n := buildLanes([]string{"http://a.com/1", "http://b.com/1", "gopher://x/", "http://a.com/2", "http:///nohost"})
	if n != 4 {
		t.Fatalf("expected 4 eligible urls, got %d", n)
	}
	if len(lanes) != 3 {
		t.Fatalf("expected 3 lanes, got %d", len(lanes))
	}
	if len(lanes[0]) != 2 || lanes[0][0].pos != 0 || lanes[0][1].pos != 2 {
		t.Fatalf("unexpected a.com lane: %+v", lanes[0])
	}
	if lanes[2][0].url != "http:///nohost" || lanes[2][0].pos != 3 {
		t.Fatalf("unexpected hostless lane: %+v", lanes[2])
	}
}
