// Package scoring computes the term-frequency relevance of a document for a
// query: the fraction of the document's tokens that appear in the query's
// vocabulary.
package scoring

import (
	"github.com/anhducle98/simple-search/internal/tokenizer"
	apperrors "github.com/anhducle98/simple-search/pkg/errors"
)

// Vocabulary is the set of distinct query terms. A fresh Vocabulary is built
// for every query.
type Vocabulary map[string]struct{}

// NewVocabulary segments query text into a Vocabulary.
func NewVocabulary(tok tokenizer.Tokenizer, query string) Vocabulary {
	terms := tok.Segment(query)
	v := make(Vocabulary, len(terms))
	for _, term := range terms {
		v[term] = struct{}{}
	}
	return v
}

func (v Vocabulary) Contains(term string) bool {
	_, ok := v[term]
	return ok
}

func (v Vocabulary) Len() int { return len(v) }

// Result holds the counts behind a score.
type Result struct {
	Matched int
	Total   int
	Score   float64
}

// Score tokenizes content and returns matched/total. A document with no
// tokens yields ErrEmptyDocument and a zero Result; callers exclude such
// documents from ranking.
func Score(tok tokenizer.Tokenizer, vocab Vocabulary, content string) (Result, error) {
	return ScoreTerms(vocab, tok.Segment(content))
}

// ScoreTerms scores an already segmented document.
func ScoreTerms(vocab Vocabulary, terms []string) (Result, error) {
	if len(terms) == 0 {
		return Result{}, apperrors.ErrEmptyDocument
	}
	matched := 0
	for _, term := range terms {
		if vocab.Contains(term) {
			matched++
		}
	}
	return Result{
		Matched: matched,
		Total:   len(terms),
		Score:   float64(matched) / float64(len(terms)),
	}, nil
}
