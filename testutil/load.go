//go:build loadtest

package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoadTestConfig configures a load test run.
type LoadTestConfig struct {
	// RequestsPerSecond is the target rate across all workers.
	RequestsPerSecond int

	// Requests is the total number of calls to make.
	Requests int

	// Workers is the number of concurrent goroutines issuing calls.
	Workers int

	// Timeout bounds each call. Zero means no per-call timeout.
	Timeout time.Duration
}

// LoadTestResult contains the results of a load test run.
type LoadTestResult struct {
	TotalRequests int
	SuccessCount  int
	ErrorCount    int
	LatencyP50    time.Duration
	LatencyP95    time.Duration
	LatencyP99    time.Duration
	Throughput    float64
	Duration      time.Duration

	// Errors maps each distinct error message to its count.
	Errors map[string]int
}

// SuccessRate returns the percentage of successful requests.
func (r LoadTestResult) SuccessRate() float64 {
	if r.TotalRequests == 0 {
		return 100.0
	}
	return float64(r.SuccessCount) / float64(r.TotalRequests) * 100.0
}

// RunLoadTest issues config.Requests calls to fn from config.Workers
// goroutines, paced by a token bucket at config.RequestsPerSecond. It stops
// early if ctx is cancelled.
func RunLoadTest(ctx context.Context, config LoadTestConfig, fn func(ctx context.Context) error) LoadTestResult {
	limiter := rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Workers)

	jobs := make(chan struct{})
	go func() {
		defer close(jobs)
		for i := 0; i < config.Requests; i++ {
			if limiter.Wait(ctx) != nil {
				return
			}
			jobs <- struct{}{}
		}
	}()

	var (
		mu        sync.Mutex
		latencies []time.Duration
		errs      = make(map[string]int)
		failed    int
		wg        sync.WaitGroup
	)

	start := time.Now()
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				callCtx, cancel := ctx, context.CancelFunc(func() {})
				if config.Timeout > 0 {
					callCtx, cancel = context.WithTimeout(ctx, config.Timeout)
				}
				began := time.Now()
				err := fn(callCtx)
				elapsed := time.Since(began)
				cancel()

				mu.Lock()
				if err != nil {
					errs[err.Error()]++
					failed++
				} else {
					latencies = append(latencies, elapsed)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	result := LoadTestResult{
		TotalRequests: len(latencies) + failed,
		SuccessCount:  len(latencies),
		ErrorCount:    failed,
		Duration:      elapsed,
		Errors:        errs,
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		result.LatencyP50 = percentile(latencies, 50)
		result.LatencyP95 = percentile(latencies, 95)
		result.LatencyP99 = percentile(latencies, 99)
	}
	if elapsed > 0 {
		result.Throughput = float64(result.TotalRequests) / elapsed.Seconds()
	}
	return result
}

// percentile returns the nearest-rank pth percentile of sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(p/100*float64(len(sorted)) + 0.5)
	if idx < 1 {
		idx = 1
	}
	if idx > len(sorted) {
		idx = len(sorted)
	}
	return sorted[idx-1]
}

// FormatLoadTestResult formats a LoadTestResult as a human-readable string.
func FormatLoadTestResult(r LoadTestResult) string {
	s := fmt.Sprintf("%d requests in %v (%.1f req/s), %.1f%% ok, p50=%v p95=%v p99=%v",
		r.TotalRequests, r.Duration.Round(time.Millisecond), r.Throughput, r.SuccessRate(),
		r.LatencyP50.Round(time.Microsecond), r.LatencyP95.Round(time.Microsecond), r.LatencyP99.Round(time.Microsecond))
	for msg, n := range r.Errors {
		s += fmt.Sprintf("\n  %d x %s", n, msg)
	}
	return s
}
