package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxQueryBytes bounds one input line.
const maxQueryBytes = 1 << 20

// Run reads one query per line from in and writes each ranked result to out.
// The query is echoed before its round starts, so a failing round still
// leaves its header on out. At end of input every worker is sent Shutdown.
func (c *Coordinator) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQueryBytes)
	w := bufio.NewWriter(out)

	for scanner.Scan() {
		query := strings.TrimRight(scanner.Text(), "\r")
		if err := renderHeader(w, query); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
		res, err := c.Search(ctx, query)
		if err != nil {
			return fmt.Errorf("query %q: %w", query, err)
		}
		if err := renderCandidates(w, res); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading queries: %w", err)
	}
	return c.Shutdown(ctx)
}

// Render writes res as
//
//	Processing query = <query>
//	Result =
//	<rank> | <doc id> | score=<score>
//	<blank line>
//
// with 1-based ranks and scores printed to six significant digits.
func Render(w io.Writer, res *Result) error {
	if err := renderHeader(w, res.Query); err != nil {
		return err
	}
	return renderCandidates(w, res)
}

func renderHeader(w io.Writer, query string) error {
	if _, err := fmt.Fprintf(w, "Processing query = %s\n", query); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}

func renderCandidates(w io.Writer, res *Result) error {
	var b strings.Builder
	b.WriteString("Result =\n")
	for i, c := range res.Candidates {
		fmt.Fprintf(&b, "%d | %s | score=%s\n", i+1, c.DocID, strconv.FormatFloat(c.Score, 'g', 6, 64))
	}
	b.WriteString("\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
