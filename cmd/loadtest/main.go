// Command loadtest drives an in-process scatter group with a fixed query mix
// and reports round latency percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anhducle98/simple-search/internal/coordinator"
	"github.com/anhducle98/simple-search/internal/corpus"
	"github.com/anhducle98/simple-search/internal/tokenizer"
	"github.com/anhducle98/simple-search/internal/transport"
	"github.com/anhducle98/simple-search/internal/worker"
	"github.com/anhducle98/simple-search/pkg/config"
	"github.com/anhducle98/simple-search/pkg/logger"
)

type Config struct {
	CorpusDir    string
	Procs        int
	MaxDocuments int
	Duration     time.Duration
	Queries      []string
}

// Stats accumulates per-round outcomes.
type Stats struct {
	mu        sync.Mutex
	total     int
	failed    int
	zero      int
	latencies []time.Duration
}

func NewStats() *Stats {
	return &Stats{latencies: make([]time.Duration, 0, 10000)}
}

func (s *Stats) RecordRound(duration time.Duration, returned int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if err != nil {
		s.failed++
		return
	}
	if returned == 0 {
		s.zero++
	}
	s.latencies = append(s.latencies, duration)
}

func main() {
	procs := flag.Int("procs", 4, "process group size, coordinator included")
	maxDocs := flag.Int("max-docs", config.Unlimited, "documents considered per query (-1 for all)")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	analyzer := flag.String("analyzer", "builtin", "tokenizer analyzer")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <corpus-dir>\n", os.Args[0])
		os.Exit(2)
	}
	logger.Setup("warn", "text")

	cfg := Config{
		CorpusDir:    flag.Arg(0),
		Procs:        *procs,
		MaxDocuments: *maxDocs,
		Duration:     *duration,
		Queries: []string{
			"distributed systems",
			"search engine",
			"term frequency",
			"document ranking",
			"query processing",
			"worker process",
			"message passing",
			"top results",
			"hash partition",
			"full text search",
		},
	}
	tok, err := tokenizer.New(config.TokenizerConfig{Analyzer: *analyzer})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	fmt.Println("=== Scatter Load Test ===")
	fmt.Printf("Corpus:    %s\n", cfg.CorpusDir)
	fmt.Printf("Processes: %d\n", cfg.Procs)
	fmt.Printf("Duration:  %s\n", cfg.Duration)
	fmt.Printf("Queries:   %d unique\n", len(cfg.Queries))
	fmt.Println()

	started := time.Now()
	stats, err := runLoadTest(cfg, tok)
	if err != nil {
		slog.Error("load test aborted", "error", err)
	}
	summary := stats.Summary(time.Since(started))
	summary.Report(os.Stdout)
	if summary.Rounds == 0 || summary.Failed > 0 {
		fmt.Fprintln(os.Stderr, "\nWARNING: some rounds failed")
		os.Exit(1)
	}
}

// runLoadTest runs rounds back to back until the duration elapses. Rounds
// are serial because a group processes one query at a time.
func runLoadTest(cfg Config, tok tokenizer.Tokenizer) (*Stats, error) {
	stats := NewStats()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	links := make([]transport.Link, cfg.Procs)
	g, gctx := errgroup.WithContext(context.Background())
	for rank := 1; rank < cfg.Procs; rank++ {
		coordEnd, workerEnd := transport.Pipe(64)
		links[rank] = coordEnd
		w := worker.New(worker.Options{Rank: rank, Link: workerEnd, Tokenizer: tok, Loader: corpus.Loader{}})
		g.Go(func() error { return w.Run(gctx) })
	}

	coord, err := coordinator.New(coordinator.Options{
		Links:        links,
		Enumerator:   corpus.NewEnumerator(cfg.CorpusDir),
		MaxDocuments: cfg.MaxDocuments,
	})
	if err != nil {
		return stats, err
	}

	fmt.Print("Running")
	var runErr error
	for i := 0; ctx.Err() == nil; i++ {
		query := cfg.Queries[i%len(cfg.Queries)]
		start := time.Now()
		res, err := coord.Search(context.Background(), query)
		returned := 0
		if res != nil {
			returned = len(res.Candidates)
		}
		stats.RecordRound(time.Since(start), returned, err)
		if err != nil {
			runErr = err
			break
		}
		if i%100 == 99 {
			fmt.Print(".")
		}
	}
	fmt.Println(" done!")
	fmt.Println()

	if err := coord.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	transport.CloseAll(links)
	return stats, runErr
}

// Summary is the latency profile of the successful rounds.
type Summary struct {
	Rounds, Failed, Zero int
	RoundsPerSec         float64
	Min, Mean, Max       time.Duration
	StdDev               time.Duration
	// Percentiles holds the nearest-rank round latency for each entry of
	// reportedPercentiles.
	Percentiles []time.Duration
}

var reportedPercentiles = []int{50, 90, 95, 99}

// Summary computes the profile for rounds run over elapsed.
func (s *Stats) Summary(elapsed time.Duration) Summary {
	s.mu.Lock()
	rounds := slices.Clone(s.latencies)
	sum := Summary{Rounds: s.total, Failed: s.failed, Zero: s.zero}
	s.mu.Unlock()

	if elapsed > 0 {
		sum.RoundsPerSec = float64(sum.Rounds) / elapsed.Seconds()
	}
	if len(rounds) == 0 {
		return sum
	}
	slices.Sort(rounds)
	sum.Min, sum.Max = rounds[0], rounds[len(rounds)-1]

	var total float64
	for _, d := range rounds {
		total += float64(d)
	}
	mean := total / float64(len(rounds))
	var spread float64
	for _, d := range rounds {
		spread += (float64(d) - mean) * (float64(d) - mean)
	}
	sum.Mean = time.Duration(mean)
	sum.StdDev = time.Duration(math.Sqrt(spread / float64(len(rounds))))

	for _, p := range reportedPercentiles {
		rank := (p*len(rounds) + 99) / 100
		sum.Percentiles = append(sum.Percentiles, rounds[max(rank, 1)-1])
	}
	return sum
}

// Report writes the summary in the plain-text layout of the load test.
func (s Summary) Report(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Rounds:  %d\n", s.Rounds)
	fmt.Fprintf(w, "Failed:        %d\n", s.Failed)
	fmt.Fprintf(w, "Zero Results:  %d\n", s.Zero)
	fmt.Fprintf(w, "Rounds/sec:    %.2f\n", s.RoundsPerSec)
	if len(s.Percentiles) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Round Latency ===")
	fmt.Fprintf(w, "Min:    %s\n", s.Min)
	fmt.Fprintf(w, "Mean:   %s\n", s.Mean)
	for i, p := range reportedPercentiles {
		fmt.Fprintf(w, "P%-2d:    %s\n", p, s.Percentiles[i])
	}
	fmt.Fprintf(w, "Max:    %s\n", s.Max)
	fmt.Fprintf(w, "StdDev: %s\n", s.StdDev)
}
