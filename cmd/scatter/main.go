// Command scatter runs one member of a scatter-gather search group.
//
// Rank 0 is the coordinator: it reads one query per line from stdin, fans
// the work out to ranks 1..procs-1 and prints the ranked results on stdout.
// Every other rank is a worker that scores the documents it is sent.
//
//	scatter [flags] <corpus-dir> [max-docs]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/anhducle98/simple-search/internal/tokenizer"
	"github.com/anhducle98/simple-search/pkg/config"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
	"github.com/anhducle98/simple-search/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to YAML config file")
	rank := flag.Int("rank", -1, "process ordinal (default $SCATTER_RANK, else 0)")
	procs := flag.Int("procs", 0, "process group size (default $SCATTER_PROCS, else config)")
	local := flag.Bool("local", false, "run the coordinator and all workers in this process")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <corpus-dir> [max-docs]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitConfig
	}
	if err := applyArgs(cfg, flag.Args(), *rank, *procs, *local); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		return apperrors.ExitCode(err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		return apperrors.ExitCode(err)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	tok, err := tokenizer.New(cfg.Tokenizer)
	if err != nil {
		slog.Error("failed to build tokenizer", "error", err)
		return apperrors.ExitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting",
		"rank", cfg.Cluster.Rank,
		"procs", cfg.Cluster.Procs,
		"local", *local,
		"corpus", cfg.Corpus.Dir,
		"max_documents", cfg.Corpus.MaxDocuments,
		"tokenizer", tok.Name(),
	)

	switch {
	case *local:
		err = runLocal(ctx, cfg, tok)
	case cfg.IsCoordinator():
		err = runCoordinator(ctx, cfg, os.Stdin, os.Stdout)
	default:
		err = runWorker(ctx, cfg, tok)
	}
	if err != nil {
		slog.Error("stopped with error", "rank", cfg.Cluster.Rank, "error", err)
		return apperrors.ExitCode(err)
	}
	slog.Info("stopped", "rank", cfg.Cluster.Rank)
	return apperrors.ExitOK
}

// applyArgs layers flags and positional arguments over the loaded config.
func applyArgs(cfg *config.Config, args []string, rank, procs int, local bool) error {
	if len(args) > 2 {
		return apperrors.Configf("too many arguments: %v", args)
	}
	if len(args) >= 1 {
		cfg.Corpus.Dir = args[0]
	}
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return apperrors.Configf("max-docs must be a non-negative integer, got %q", args[1])
		}
		cfg.Corpus.MaxDocuments = n
	}
	if rank >= 0 {
		cfg.Cluster.Rank = rank
	}
	if procs > 0 {
		cfg.Cluster.Procs = procs
	}
	if local {
		cfg.Cluster.Rank = 0
	}
	return nil
}
