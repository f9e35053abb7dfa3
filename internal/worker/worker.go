// Package worker implements the scoring side of a query round.
//
// A Worker loops over its link to the coordinator:
//
//	Idle -> QueryReceived -> DocumentStream -> Flushing -> Idle
//
// and stops when a Shutdown arrives where a Query was expected. All state for
// a query lives in a round value that is discarded after Flushing.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/anhducle98/simple-search/internal/protocol"
	"github.com/anhducle98/simple-search/internal/scoring"
	"github.com/anhducle98/simple-search/internal/tokenizer"
	"github.com/anhducle98/simple-search/internal/topk"
	"github.com/anhducle98/simple-search/internal/transport"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
	"github.com/anhducle98/simple-search/pkg/metrics"
)

// Loader reads a document's content by identifier.
type Loader interface {
	Load(docID string) (string, error)
}

type Options struct {
	Rank      int
	Link      transport.Link
	Tokenizer tokenizer.Tokenizer
	Loader    Loader
	Metrics   *metrics.Metrics
	// TopK caps the local result set; <= 0 uses topk.DefaultCapacity.
	TopK int
}

type Worker struct {
	rank    int
	label   string
	link    transport.Link
	tok     tokenizer.Tokenizer
	loader  Loader
	metrics *metrics.Metrics
	topK    int
	logger  *slog.Logger
}

func New(opts Options) *Worker {
	if opts.TopK <= 0 {
		opts.TopK = topk.DefaultCapacity
	}
	return &Worker{
		rank:    opts.Rank,
		label:   strconv.Itoa(opts.Rank),
		link:    opts.Link,
		tok:     opts.Tokenizer,
		loader:  opts.Loader,
		metrics: opts.Metrics,
		topK:    opts.TopK,
		logger:  slog.Default().With("component", "worker", "rank", opts.Rank),
	}
}

// round is the per-query state.
type round struct {
	query    string
	vocab    scoring.Vocabulary
	selector *topk.Selector
	scored   int
	skipped  int
}

// Run serves query rounds until Shutdown, a link failure, a protocol
// violation, or ctx cancellation. Shutdown returns nil.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker ready", "tokenizer", w.tok.Name(), "top_k", w.topK)
	for {
		env, err := w.link.Recv(ctx)
		if err != nil {
			return fmt.Errorf("worker %d waiting for query: %w", w.rank, err)
		}
		switch env.Kind {
		case protocol.KindShutdown:
			w.logger.Info("shutdown received")
			return nil
		case protocol.KindQuery:
			r := w.newRound(env.Query)
			if err := w.stream(ctx, r); err != nil {
				return err
			}
			if err := w.flush(ctx, r); err != nil {
				return err
			}
		default:
			return protocol.Unexpected("waiting for a query", env)
		}
	}
}

func (w *Worker) newRound(query string) *round {
	r := &round{
		query:    query,
		vocab:    scoring.NewVocabulary(w.tok, query),
		selector: topk.New(w.topK),
	}
	w.logger.Debug("query received", "query", query, "terms", r.vocab.Len())
	return r
}

// stream consumes Document envelopes until EndOfDocuments.
func (w *Worker) stream(ctx context.Context, r *round) error {
	for {
		env, err := w.link.Recv(ctx)
		if err != nil {
			return fmt.Errorf("worker %d receiving documents: %w", w.rank, err)
		}
		switch env.Kind {
		case protocol.KindEndOfDocuments:
			return nil
		case protocol.KindDocument:
			w.score(r, env.DocID)
		default:
			return protocol.Unexpected("receiving documents", env)
		}
	}
}

// score loads and scores one document. Unreadable and empty documents are
// excluded from ranking.
func (w *Worker) score(r *round, docID string) {
	content, err := w.loader.Load(docID)
	if err != nil {
		w.logger.Warn("skipping unreadable document", "doc_id", docID, "error", err)
		w.skip(r, "unreadable")
		return
	}
	res, err := scoring.Score(w.tok, r.vocab, content)
	if errors.Is(err, apperrors.ErrEmptyDocument) {
		w.logger.Debug("skipping empty document", "doc_id", docID)
		w.skip(r, "empty")
		return
	}
	r.selector.Insert(topk.Candidate{DocID: docID, Score: res.Score})
	r.scored++
	if w.metrics != nil {
		w.metrics.DocumentsScored.WithLabelValues(w.label).Inc()
	}
}

func (w *Worker) skip(r *round, reason string) {
	r.skipped++
	if w.metrics != nil {
		w.metrics.DocumentsSkipped.WithLabelValues(w.label, reason).Inc()
	}
}

// flush streams the local top-K in descending order, then EndOfResults.
func (w *Worker) flush(ctx context.Context, r *round) error {
	results := r.selector.DrainDescending()
	for _, c := range results {
		if err := w.link.Send(ctx, protocol.Result(c)); err != nil {
			return fmt.Errorf("worker %d sending result: %w", w.rank, err)
		}
	}
	if err := w.link.Send(ctx, protocol.EndOfResults()); err != nil {
		return fmt.Errorf("worker %d sending end of results: %w", w.rank, err)
	}
	w.logger.Debug("round complete",
		"query", r.query,
		"scored", r.scored,
		"skipped", r.skipped,
		"returned", len(results),
	)
	return nil
}
