// Package main provides a performance benchmarking tool for the attribution CLI.
// It generates synthetic clickstreams of increasing size, runs each command multiple
// times, treating the first successful cached run as cold and averaging the rest as warm,
// and writes a CSV for performance analysis and documentation.
//
// Prerequisites:
// - attribution binary installed and available in PATH
//
// Usage: go run ./benchmark [work-dir]
//
//	work-dir: Directory for the generated event logs (defaults to a temp dir)
package main

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/step6836/marketing-attribution/internal/eventsrc"
	"github.com/step6836/marketing-attribution/schema"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Dataset     string
	Command     string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Datasets    map[string]int // name -> users
	Order       []string
}

func main() {
	workDir := ""
	switch len(os.Args) {
	case 1:
		dir, err := os.MkdirTemp("", "attribution-benchmark-*")
		if err != nil {
			fmt.Printf("Failed to create work dir: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		workDir = dir
	case 2:
		workDir = os.Args[1]
	default:
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     workDir,
		Timeout:     5 * time.Minute,
		Workers:     5,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Datasets:    map[string]int{"small": 1_000, "medium": 10_000, "large": 100_000},
		Order:       []string{"small", "medium", "large"},
	}

	if _, err := exec.LookPath("attribution"); err != nil {
		fmt.Printf("Prerequisites check failed: attribution binary not found in PATH\n")
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("attribution", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	} else {
		fmt.Printf("Cache cleared successfully\n")
	}

	results, err := runBenchmarks(config)
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// generateEventLog writes a synthetic clickstream where roughly 40% of users
// add to cart and 20% purchase.
func generateEventLog(path string, users int) error {
	rng := rand.New(rand.NewPCG(42, uint64(users)))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	events := make([]schema.Event, 0, users*3)
	for u := range users {
		user := fmt.Sprintf("u%06d", u)
		t := start.Add(time.Duration(rng.IntN(60*24*30)) * time.Minute)
		sessions := 1 + rng.IntN(3)
		for s := range sessions {
			session := fmt.Sprintf("%s-s%d", user, s)
			events = append(events, schema.Event{UserID: user, SessionID: session, Timestamp: t, Stage: schema.ViewStage, ProductID: "p1"})
			t = t.Add(time.Duration(1+rng.IntN(10)) * time.Minute)
			if rng.Float64() < 0.4 {
				events = append(events, schema.Event{UserID: user, SessionID: session, Timestamp: t, Stage: schema.CartStage, ProductID: "p1"})
				t = t.Add(time.Duration(1+rng.IntN(10)) * time.Minute)
			}
			t = t.Add(time.Duration(2+rng.IntN(48)) * time.Hour)
		}
		if rng.Float64() < 0.2 {
			price := 10 + float64(rng.IntN(50000))/100
			events = append(events, schema.Event{UserID: user, SessionID: fmt.Sprintf("%s-s%d", user, sessions-1), Timestamp: t, Stage: schema.PurchaseStage, Value: price, ProductID: "p1"})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return eventsrc.EncodeCSV(f, events)
}

// runBenchmarks executes all benchmark tests across the generated datasets
func runBenchmarks(config BenchmarkConfig) ([]BenchmarkResult, error) {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d datasets, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Datasets), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, name := range config.Order {
		users := config.Datasets[name]
		path := filepath.Join(config.WorkDir, name+".csv")
		fmt.Printf("Generating %s dataset (%d users)\n", name, users)
		if err := generateEventLog(path, users); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", name, err)
		}

		results = append(results,
			runBenchmarkSuite(config, name, "analyze", "full analysis", []string{path}),
			runBenchmarkSuite(config, name, "analyze", "heuristic models", []string{path, "--models", "first_touch,last_touch,linear"}),
			runBenchmarkSuite(config, name, "scenario", "calibrated presets", []string{path}),
		)
	}

	return results, nil
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a command
func runBenchmarkSuite(config BenchmarkConfig, dataset, command, description string, extraArgs []string) BenchmarkResult {
	fmt.Printf("Running %s on %s\n", description, dataset)

	runPhase := func(cacheBackend string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, command, extraArgs, cacheBackend, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	_, noCacheAvg := runPhase("none", config.NoCacheRuns, "No-cache")
	coldTime, warmAvg := runPhase("sqlite", config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Dataset:     dataset,
		Command:     command + " (" + description + ")",
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark executes a command multiple times with the given cache backend and returns cold time and warm times
func runBenchmark(config BenchmarkConfig, command string, extraArgs []string, cacheBackend string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := append([]string{command, "--cache-backend", cacheBackend, "--workers", fmt.Sprint(config.Workers)}, extraArgs...)

	var times []float64
	for range numRuns {
		start := time.Now()
		cmd := exec.Command("attribution", args...)

		done := make(chan bool, 1)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.CombinedOutput()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output, command) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks if command output indicates successful completion
func isSuccess(output []byte, command string) bool {
	outputStr := string(output)
	if command == "scenario" {
		return strings.Contains(outputStr, "Projected") && strings.Contains(outputStr, "scenarios in")
	}
	return strings.Contains(outputStr, "Analysis completed in") && strings.Contains(outputStr, "workers")
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(os.TempDir(), fmt.Sprintf("attribution_benchmark_%s.csv", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"dataset", "cmd", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Dataset, result.Command, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s %-36s: No-cache: %s, Cold: %s, Warm: %s\n", result.Dataset, result.Command, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
