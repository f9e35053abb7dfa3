// Command scatterrun launches a complete scatter process group on one host:
// procs copies of the scatter binary with SCATTER_RANK and SCATTER_PROCS set.
// Rank 0 inherits stdin and stdout; every rank shares stderr. The first
// member to fail cancels the rest.
//
//	scatterrun -procs 4 [-bin scatter] -- [scatter flags] <corpus-dir> [max-docs]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/anhducle98/simple-search/pkg/errors"
	"github.com/anhducle98/simple-search/pkg/logger"
)

func main() {
	procs := flag.Int("procs", 2, "number of processes in the group, coordinator included")
	bin := flag.String("bin", "scatter", "path to the scatter binary")
	stagger := flag.Duration("stagger", 50*time.Millisecond, "delay between starting the coordinator and the workers")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] -- [scatter flags] <corpus-dir> [max-docs]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger.Setup(os.Getenv("SCATTER_LOGGING_LEVEL"), os.Getenv("SCATTER_LOGGING_FORMAT"))
	if *procs < 2 {
		fmt.Fprintf(os.Stderr, "%v\n", apperrors.Configf("procs must be at least 2, got %d", *procs))
		os.Exit(apperrors.ExitConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := launch(ctx, *bin, *procs, *stagger, flag.Args()); err != nil {
		slog.Error("process group failed", "error", err)
		os.Exit(exitStatus(err))
	}
}

// launch starts procs copies of bin and waits for all of them. If any member
// cannot be started, the members already running are terminated first.
func launch(ctx context.Context, bin string, procs int, stagger time.Duration, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < procs; rank++ {
		rank := rank
		cmd := exec.CommandContext(gctx, bin, args...)
		cmd.Env = append(os.Environ(),
			"SCATTER_RANK="+strconv.Itoa(rank),
			"SCATTER_PROCS="+strconv.Itoa(procs),
		)
		cmd.Stderr = os.Stderr
		if rank == 0 {
			cmd.Stdin = os.Stdin
			cmd.Stdout = os.Stdout
		}
		cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
		cmd.WaitDelay = 5 * time.Second

		if err := cmd.Start(); err != nil {
			cancel()
			g.Wait()
			return fmt.Errorf("starting rank %d: %w", rank, err)
		}
		slog.Debug("started", "rank", rank, "pid", cmd.Process.Pid)
		g.Go(func() error {
			if err := cmd.Wait(); err != nil {
				return &memberError{rank: rank, err: err}
			}
			return nil
		})
		if rank == 0 && stagger > 0 {
			time.Sleep(stagger)
		}
	}
	return g.Wait()
}

type memberError struct {
	rank int
	err  error
}

func (e *memberError) Error() string { return fmt.Sprintf("rank %d: %v", e.rank, e.err) }
func (e *memberError) Unwrap() error { return e.err }

// exitStatus forwards the failing member's exit code.
func exitStatus(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return apperrors.ExitCode(err)
}
